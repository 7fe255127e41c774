package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
)

func newTestRefresher(svc *Service) *Refresher {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewRefresher(svc, 30*time.Second, 10*time.Second, metrics.NewUnregistered(), logger)
}

func TestRefresherBroadcastsOnlyOnChange(t *testing.T) {
	stats := &fakeStats{scoreboard: []models.ScoreboardGame{
		{ID: "001", HomeTeam: "LAL", AwayTeam: "BOS", Period: 1, HomeScore: 10, AwayScore: 12},
	}}
	svc := newTestService(stats, &fakeInjuries{}, 5*time.Minute)
	r := newTestRefresher(svc)

	var broadcasts []models.GameSnapshot
	r.OnGamesChange(func(snap models.GameSnapshot) {
		broadcasts = append(broadcasts, snap)
	})

	require.NoError(t, r.refreshGames(context.Background()))
	require.Len(t, broadcasts, 1)

	// Same scoreboard again: no new broadcast.
	require.NoError(t, r.refreshGames(context.Background()))
	require.Len(t, broadcasts, 1)

	// Score moves: broadcast fires.
	stats.mu.Lock()
	stats.scoreboard[0].HomeScore = 14
	stats.mu.Unlock()
	require.NoError(t, r.refreshGames(context.Background()))
	require.Len(t, broadcasts, 2)
	require.Equal(t, 14, broadcasts[1].Games[0].HomeScore)
}

func TestRefresherStopsOnContextCancel(t *testing.T) {
	stats := &fakeStats{scoreboard: []models.ScoreboardGame{{ID: "001"}}}
	svc := newTestService(stats, &fakeInjuries{}, 5*time.Minute)
	r := newTestRefresher(svc)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	// Both loops run their immediate first cycle before blocking on tickers.
	require.Eventually(t, func() bool {
		snap, _ := svc.GamesSnapshot()
		return len(snap.Games) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop after context cancellation")
	}
}
