package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
)

type fakeFinder struct {
	players []models.Player
}

func (f *fakeFinder) FindPlayer(fragment string) (models.Player, bool) {
	needle := strings.ToLower(fragment)
	for _, p := range f.players {
		if strings.Contains(strings.ToLower(p.FullName), needle) {
			return p, true
		}
	}
	return models.Player{}, false
}

type fakeLogs struct {
	calls int
	logs  map[int][]models.PlayerGame
	errs  map[int]error
}

func (f *fakeLogs) PlayerLog(ctx context.Context, playerID int) ([]models.PlayerGame, error) {
	f.calls++
	if err, ok := f.errs[playerID]; ok {
		return nil, err
	}
	return f.logs[playerID], nil
}

func newTestEngine(finder *fakeFinder, logs *fakeLogs) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(finder, logs, 15, 85, 15, 75, metrics.NewUnregistered(), logger)
}

// pointsLog builds a most-recent-first log with the given point totals.
func pointsLog(points ...float64) []models.PlayerGame {
	games := make([]models.PlayerGame, len(points))
	for i, p := range points {
		matchup := "LAL vs. BOS"
		if i%2 == 1 {
			matchup = "LAL @ BOS"
		}
		games[i] = models.PlayerGame{
			Date:    fmt.Sprintf("JAN %02d, 2025", len(points)-i),
			Matchup: matchup,
			Points:  p,
		}
	}
	return games
}

func TestAnalyzeLockVerdict(t *testing.T) {
	// 20 games averaging 28.3 against a 22.5 line: edge 5.8 contributes
	// +23.2, sample size +10, edge magnitude +8, hit rate 60% and 3 recent
	// hits contribute nothing. 50 + 41.2 clamps to confidence 91.
	points := []float64{
		40, 16, 30, 40, 16,
		40, 40, 40, 40, 40, 40,
		30, 30, 30,
		16, 16, 16, 16,
		15, 15,
	}
	finder := &fakeFinder{players: []models.Player{{ID: 2544, FullName: "LeBron James"}}}
	logs := &fakeLogs{logs: map[int][]models.PlayerGame{2544: pointsLog(points...)}}
	engine := newTestEngine(finder, logs)

	resp := engine.Analyze(context.Background(), []models.PropRequest{
		{Name: "lebron", Line: 22.5, Stat: "pts"},
	}, models.InjurySnapshot{})

	require.Len(t, resp.Results, 1)
	result := resp.Results[0]
	assert.Equal(t, "LeBron James", result.Name)
	assert.Equal(t, 20, result.Games)
	assert.Equal(t, 28.3, result.Avg)
	assert.Equal(t, 5.8, result.Edge)
	assert.Equal(t, 60.0, result.HitRate)
	assert.Equal(t, 3, result.Last5Hits)
	assert.Equal(t, 91, result.Confidence)
	assert.Equal(t, "LOCK OVER", result.Verdict)

	require.Len(t, resp.Locks, 1)
	assert.Equal(t, 1, resp.LockCount)
}

func TestAnalyzeInjuredSkipsBeforeFetch(t *testing.T) {
	finder := &fakeFinder{players: []models.Player{{ID: 203507, FullName: "Giannis Antetokounmpo"}}}
	logs := &fakeLogs{}
	engine := newTestEngine(finder, logs)

	injuries := models.BuildInjurySnapshot([]models.TeamInjuries{
		{Team: "MIL", Players: []models.InjuredPlayer{
			{Name: "Giannis Antetokounmpo", Status: "Out", Detail: "Knee"},
		}},
	})

	resp := engine.Analyze(context.Background(), []models.PropRequest{
		{Name: "Giannis", Line: 30.5, Stat: "pts"},
	}, injuries)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, models.VerdictSkip, resp.Results[0].Verdict)
	assert.Equal(t, "INJURED", resp.Results[0].Reason)
	assert.Equal(t, 0, logs.calls, "injured props must not hit the log source")
	assert.Equal(t, 1, resp.InjuriesChecked)
}

func TestAnalyzeUnknownPlayer(t *testing.T) {
	engine := newTestEngine(&fakeFinder{}, &fakeLogs{})

	resp := engine.Analyze(context.Background(), []models.PropRequest{
		{Name: "Nobody Realman", Line: 10.5},
	}, models.InjurySnapshot{})

	require.Len(t, resp.Results, 1)
	assert.Equal(t, models.VerdictSkip, resp.Results[0].Verdict)
	assert.Equal(t, "Not found", resp.Results[0].Reason)
}

func TestAnalyzeFetchErrorIsolated(t *testing.T) {
	finder := &fakeFinder{players: []models.Player{
		{ID: 1, FullName: "Broken Fetch"},
		{ID: 2, FullName: "Fine Player"},
	}}
	logs := &fakeLogs{
		errs: map[int]error{1: errors.New("stats timeout")},
		logs: map[int][]models.PlayerGame{2: pointsLog(30, 31, 29, 32, 30)},
	}
	engine := newTestEngine(finder, logs)

	resp := engine.Analyze(context.Background(), []models.PropRequest{
		{Name: "Broken", Line: 20.5},
		{Name: "Fine", Line: 20.5},
	}, models.InjurySnapshot{})

	require.Len(t, resp.Results, 2)
	assert.Equal(t, models.VerdictSkip, resp.Results[0].Verdict)
	assert.Contains(t, resp.Results[0].Reason, "stats timeout")
	assert.NotEqual(t, models.VerdictSkip, resp.Results[1].Verdict)
}

func TestAnalyzeBatchTruncation(t *testing.T) {
	engine := newTestEngine(&fakeFinder{}, &fakeLogs{})

	props := make([]models.PropRequest, 20)
	for i := range props {
		props[i] = models.PropRequest{Name: fmt.Sprintf("player %d", i), Line: 10.5}
	}

	resp := engine.Analyze(context.Background(), props, models.InjurySnapshot{})
	assert.Len(t, resp.Results, 15)
}

func TestAnalyzeUnknownStatDefaultsToPoints(t *testing.T) {
	finder := &fakeFinder{players: []models.Player{{ID: 7, FullName: "Stat Fallback"}}}
	logs := &fakeLogs{logs: map[int][]models.PlayerGame{7: pointsLog(20, 22, 18, 24, 21)}}
	engine := newTestEngine(finder, logs)

	resp := engine.Analyze(context.Background(), []models.PropRequest{
		{Name: "Fallback", Line: 19.5, Stat: "dunks"},
	}, models.InjurySnapshot{})

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "pts", resp.Results[0].Stat)
	assert.Equal(t, 21.0, resp.Results[0].Avg)
}

func TestAnalyzeUnderDirection(t *testing.T) {
	finder := &fakeFinder{players: []models.Player{{ID: 9, FullName: "Cold Shooter"}}}
	logs := &fakeLogs{logs: map[int][]models.PlayerGame{9: pointsLog(
		10, 12, 9, 11, 10, 12, 10, 9, 11, 10, 12, 10, 9, 11, 10, 12, 10, 9, 11, 10,
	)}}
	engine := newTestEngine(finder, logs)

	resp := engine.Analyze(context.Background(), []models.PropRequest{
		{Name: "Cold", Line: 18.5, Stat: "pts"},
	}, models.InjurySnapshot{})

	require.Len(t, resp.Results, 1)
	result := resp.Results[0]
	assert.Equal(t, models.DirectionUnder, result.Direction)
	// The signed edge term pulls confidence down for under props, so this
	// lands as a SKIP even with a large margin.
	assert.Equal(t, models.VerdictSkip, result.Verdict)
	assert.True(t, result.Edge < 0)
}

func TestAnalyzeLowConfidenceSkip(t *testing.T) {
	// Six games hugging the line: tiny edge, small sample, middling hit rate.
	finder := &fakeFinder{players: []models.Player{{ID: 11, FullName: "Line Hugger"}}}
	logs := &fakeLogs{logs: map[int][]models.PlayerGame{11: pointsLog(20, 21, 20, 21, 20, 21)}}
	engine := newTestEngine(finder, logs)

	resp := engine.Analyze(context.Background(), []models.PropRequest{
		{Name: "Hugger", Line: 20.5, Stat: "pts"},
	}, models.InjurySnapshot{})

	require.Len(t, resp.Results, 1)
	result := resp.Results[0]
	assert.Equal(t, models.VerdictSkip, result.Verdict)
	assert.Equal(t, "Low confidence", result.Reason)
	assert.NotZero(t, result.Confidence)
	assert.Empty(t, resp.Locks)
}

func TestAnalyzeEmptyLog(t *testing.T) {
	finder := &fakeFinder{players: []models.Player{{ID: 13, FullName: "No Games"}}}
	logs := &fakeLogs{logs: map[int][]models.PlayerGame{13: {}}}
	engine := newTestEngine(finder, logs)

	resp := engine.Analyze(context.Background(), []models.PropRequest{
		{Name: "No Games", Line: 10.5},
	}, models.InjurySnapshot{})

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "No games found", resp.Results[0].Reason)
}

func TestConfidenceScore(t *testing.T) {
	engine := newTestEngine(&fakeFinder{}, &fakeLogs{})

	// Overwhelming edge, big sample, perfect form pins the top clamp.
	assert.Equal(t, 95, engine.score(12, 30, 100, 5))
	// Every negative adjustment at once: 50 - 4 - 5 - 5 - 3.
	assert.Equal(t, 33, engine.score(-1, 5, 10, 0))
}
