package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
)

type fakeStats struct {
	mu            sync.Mutex
	playerCalls   int
	teamCalls     int
	boardCalls    int
	playerGames   []models.PlayerGame
	teamGames     []models.TeamGame
	scoreboard    []models.ScoreboardGame
	playerErr     error
	scoreboardErr error
}

func (f *fakeStats) PlayerGameLog(ctx context.Context, playerID int, season string) ([]models.PlayerGame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playerCalls++
	if f.playerErr != nil {
		return nil, f.playerErr
	}
	return f.playerGames, nil
}

func (f *fakeStats) TeamGameLog(ctx context.Context, teamID int, season string) ([]models.TeamGame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teamCalls++
	return f.teamGames, nil
}

func (f *fakeStats) LiveScoreboard(ctx context.Context) ([]models.ScoreboardGame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boardCalls++
	if f.scoreboardErr != nil {
		return nil, f.scoreboardErr
	}
	return f.scoreboard, nil
}

type fakeInjuries struct {
	report []models.TeamInjuries
	err    error
}

func (f *fakeInjuries) InjuryReport(ctx context.Context) ([]models.TeamInjuries, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func newTestService(stats *fakeStats, injuries *fakeInjuries, ttl time.Duration) *Service {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(stats, injuries, "2024-25", ttl, metrics.NewUnregistered(), logger)
}

func TestPlayerLogTTL(t *testing.T) {
	stats := &fakeStats{playerGames: []models.PlayerGame{{Points: 30}}}
	svc := newTestService(stats, &fakeInjuries{}, 5*time.Minute)

	now := time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	_, err := svc.PlayerLog(context.Background(), 2544)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.playerCalls)

	// Inside the TTL the cached entry is served without an upstream call.
	now = now.Add(4 * time.Minute)
	_, err = svc.PlayerLog(context.Background(), 2544)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.playerCalls)

	// At exactly the TTL the entry is no longer fresh.
	now = now.Add(time.Minute)
	_, err = svc.PlayerLog(context.Background(), 2544)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.playerCalls)
}

func TestPlayerLogErrorSurfaced(t *testing.T) {
	stats := &fakeStats{playerErr: errors.New("upstream down")}
	svc := newTestService(stats, &fakeInjuries{}, 5*time.Minute)

	_, err := svc.PlayerLog(context.Background(), 2544)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")

	// Failed fetches are not cached.
	_, err = svc.PlayerLog(context.Background(), 2544)
	require.Error(t, err)
	assert.Equal(t, 2, stats.playerCalls)
}

func TestPlayerLogCachedPerPlayer(t *testing.T) {
	stats := &fakeStats{playerGames: []models.PlayerGame{{Points: 30}}}
	svc := newTestService(stats, &fakeInjuries{}, 5*time.Minute)

	_, err := svc.PlayerLog(context.Background(), 2544)
	require.NoError(t, err)
	_, err = svc.PlayerLog(context.Background(), 201939)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.playerCalls)
}

func TestTeamLogTTL(t *testing.T) {
	stats := &fakeStats{teamGames: []models.TeamGame{{Result: "W", PointsFor: 120}}}
	svc := newTestService(stats, &fakeInjuries{}, 5*time.Minute)

	now := time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	_, err := svc.TeamLog(context.Background(), 1610612747)
	require.NoError(t, err)
	_, err = svc.TeamLog(context.Background(), 1610612747)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.teamCalls)

	now = now.Add(6 * time.Minute)
	_, err = svc.TeamLog(context.Background(), 1610612747)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.teamCalls)
}

func TestRefreshInjuriesStaleOverAbsent(t *testing.T) {
	injuries := &fakeInjuries{report: []models.TeamInjuries{
		{Team: "LAL", Players: []models.InjuredPlayer{{Name: "LeBron James", Status: "Out", Detail: "Ankle"}}},
	}}
	svc := newTestService(&fakeStats{}, injuries, 5*time.Minute)

	fetchTime := time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return fetchTime })

	require.NoError(t, svc.RefreshInjuries(context.Background()))
	snap, meta := svc.InjurySnapshot()
	require.Len(t, snap.ByTeam["LAL"], 1)
	assert.Equal(t, fetchTime, meta.UpdatedAt)
	assert.Equal(t, "ESPN NBA Injuries (Live)", meta.Source)

	// A failed cycle keeps the previous value and timestamp; only the source
	// records the error.
	injuries.err = errors.New("espn 503")
	require.Error(t, svc.RefreshInjuries(context.Background()))

	snap, meta = svc.InjurySnapshot()
	require.Len(t, snap.ByTeam["LAL"], 1)
	assert.True(t, snap.IsInjured("LeBron James"))
	assert.Equal(t, fetchTime, meta.UpdatedAt)
	assert.Contains(t, meta.Source, "espn 503")

	// Recovery replaces the entry whole.
	injuries.err = nil
	require.NoError(t, svc.RefreshInjuries(context.Background()))
	_, meta = svc.InjurySnapshot()
	assert.Equal(t, "ESPN NBA Injuries (Live)", meta.Source)
}

func TestRefreshGamesStaleOverAbsent(t *testing.T) {
	stats := &fakeStats{scoreboard: []models.ScoreboardGame{
		{ID: "001", HomeTeam: "LAL", AwayTeam: "BOS", Period: 2, Status: "Q2 5:30"},
	}}
	svc := newTestService(stats, &fakeInjuries{}, 5*time.Minute)

	require.NoError(t, svc.RefreshGames(context.Background()))

	stats.scoreboardErr = errors.New("cdn timeout")
	require.Error(t, svc.RefreshGames(context.Background()))

	snap, meta := svc.GamesSnapshot()
	require.Len(t, snap.Games, 1)
	assert.Equal(t, "LAL", snap.Games[0].HomeTeam)
	assert.Contains(t, meta.Source, "cdn timeout")
}

func TestLiveGamesFilter(t *testing.T) {
	stats := &fakeStats{scoreboard: []models.ScoreboardGame{
		{ID: "001", Period: 0, Status: "7:00 pm ET"},
		{ID: "002", Period: 3, Status: "Q3 2:15"},
		{ID: "003", Period: 4, Status: "Final"},
		{ID: "004", Period: 5, Status: "Final/OT"},
	}}
	svc := newTestService(stats, &fakeInjuries{}, 5*time.Minute)
	require.NoError(t, svc.RefreshGames(context.Background()))

	live, _ := svc.LiveGames()
	require.Len(t, live, 1)
	assert.Equal(t, "002", live[0].ID)
}

func TestSnapshotsAreCopies(t *testing.T) {
	injuries := &fakeInjuries{report: []models.TeamInjuries{
		{Team: "BOS", Players: []models.InjuredPlayer{{Name: "Jayson Tatum", Status: "Questionable"}}},
	}}
	stats := &fakeStats{scoreboard: []models.ScoreboardGame{{ID: "001", HomeTeam: "BOS"}}}
	svc := newTestService(stats, injuries, 5*time.Minute)

	require.NoError(t, svc.RefreshInjuries(context.Background()))
	require.NoError(t, svc.RefreshGames(context.Background()))

	snap, _ := svc.InjurySnapshot()
	snap.ByTeam["BOS"][0].Name = "mutated"
	snap.InjuredNames[0] = "mutated"

	games, _ := svc.GamesSnapshot()
	games.Games[0].HomeTeam = "mutated"

	fresh, _ := svc.InjurySnapshot()
	assert.Equal(t, "Jayson Tatum", fresh.ByTeam["BOS"][0].Name)
	assert.Equal(t, "jayson tatum", fresh.InjuredNames[0])

	freshGames, _ := svc.GamesSnapshot()
	assert.Equal(t, "BOS", freshGames.Games[0].HomeTeam)
}

func TestConcurrentReadsAndRefreshes(t *testing.T) {
	stats := &fakeStats{
		playerGames: []models.PlayerGame{{Points: 25}},
		scoreboard:  []models.ScoreboardGame{{ID: "001", Period: 1, Status: "Q1"}},
	}
	injuries := &fakeInjuries{report: []models.TeamInjuries{{Team: "LAL"}}}
	svc := newTestService(stats, injuries, 5*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = svc.RefreshGames(context.Background())
				_ = svc.RefreshInjuries(context.Background())
				svc.GamesSnapshot()
				svc.InjurySnapshot()
				svc.LiveGames()
				_, _ = svc.PlayerLog(context.Background(), 2544)
			}
		}()
	}
	wg.Wait()

	snap, _ := svc.GamesSnapshot()
	assert.Len(t, snap.Games, 1)
}
