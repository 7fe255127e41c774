package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
)

// statValue extracts one stat column from a game line. Unknown stat keys fall
// back to points.
type statValue func(models.PlayerGame) float64

var statColumns = map[string]statValue{
	"pts":      func(g models.PlayerGame) float64 { return g.Points },
	"points":   func(g models.PlayerGame) float64 { return g.Points },
	"reb":      func(g models.PlayerGame) float64 { return g.Rebounds },
	"rebounds": func(g models.PlayerGame) float64 { return g.Rebounds },
	"ast":      func(g models.PlayerGame) float64 { return g.Assists },
	"assists":  func(g models.PlayerGame) float64 { return g.Assists },
	"fg3m":     func(g models.PlayerGame) float64 { return g.Threes },
	"3pm":      func(g models.PlayerGame) float64 { return g.Threes },
	"stl":      func(g models.PlayerGame) float64 { return g.Steals },
	"steals":   func(g models.PlayerGame) float64 { return g.Steals },
	"blk":      func(g models.PlayerGame) float64 { return g.Blocks },
	"blocks":   func(g models.PlayerGame) float64 { return g.Blocks },
}

// PlayerFinder resolves a submitted name fragment to a directory entry.
type PlayerFinder interface {
	FindPlayer(fragment string) (models.Player, bool)
}

// LogSource provides cached player game logs.
type LogSource interface {
	PlayerLog(ctx context.Context, playerID int) ([]models.PlayerGame, error)
}

// Engine scores prop lines against cached game logs and the current injury
// snapshot.
type Engine struct {
	directory PlayerFinder
	logs      LogSource
	maxProps  int
	lockConf  int
	lockGames int
	goodConf  int
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

// New creates an analysis engine with the given verdict thresholds.
func New(directory PlayerFinder, logs LogSource, maxProps, lockConf, lockGames, goodConf int, m *metrics.Metrics, logger *logrus.Logger) *Engine {
	return &Engine{
		directory: directory,
		logs:      logs,
		maxProps:  maxProps,
		lockConf:  lockConf,
		lockGames: lockGames,
		goodConf:  goodConf,
		metrics:   m,
		logger:    logger,
	}
}

// Analyze scores a batch of props. Only the first maxProps entries are
// processed; the rest are dropped. Results keep submission order and a failure
// on one prop never aborts the batch.
func (e *Engine) Analyze(ctx context.Context, props []models.PropRequest, injuries models.InjurySnapshot) models.AnalysisResponse {
	start := time.Now()
	if len(props) > e.maxProps {
		e.logger.WithFields(logrus.Fields{
			"component": "analysis",
			"submitted": len(props),
			"limit":     e.maxProps,
		}).Warn("Prop batch truncated")
		props = props[:e.maxProps]
	}

	resp := models.AnalysisResponse{
		Results:         make([]models.PropResult, 0, len(props)),
		Locks:           []models.PropResult{},
		InjuriesChecked: len(injuries.InjuredNames),
	}

	for _, prop := range props {
		result := e.analyzeProp(ctx, prop, injuries)
		resp.Results = append(resp.Results, result)
		if strings.HasPrefix(result.Verdict, "LOCK") {
			resp.Locks = append(resp.Locks, result)
		}
	}
	resp.LockCount = len(resp.Locks)

	e.metrics.AnalyzeBatches.Inc()
	e.metrics.PropsAnalyzed.Add(float64(len(props)))
	e.metrics.LocksDetected.Add(float64(resp.LockCount))
	e.metrics.AnalyzeDuration.Observe(time.Since(start).Seconds())

	return resp
}

func (e *Engine) analyzeProp(ctx context.Context, prop models.PropRequest, injuries models.InjurySnapshot) (result models.PropResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"component": "analysis",
				"player":    prop.Name,
			}).Errorf("Prop analysis panicked: %v", r)
			result = skip(prop.Name, "Analysis error")
		}
	}()

	if injuries.IsInjured(prop.Name) {
		return skip(prop.Name, "INJURED")
	}

	player, ok := e.directory.FindPlayer(prop.Name)
	if !ok {
		return skip(prop.Name, "Not found")
	}

	games, err := e.logs.PlayerLog(ctx, player.ID)
	if err != nil {
		return skip(prop.Name, truncate(fmt.Sprintf("Error: %v", err), 120))
	}
	if len(games) == 0 {
		return skip(prop.Name, "No games found")
	}

	stat := strings.ToLower(strings.TrimSpace(prop.Stat))
	column, ok := statColumns[stat]
	if !ok {
		stat = "pts"
		column = statColumns[stat]
	}

	values := make([]float64, len(games))
	for i, g := range games {
		values[i] = column(g)
	}

	avg := mean(values)
	med := median(values)
	sd := stdDev(values, avg)
	edge := avg - prop.Line

	hits := 0
	for _, v := range values {
		if v > prop.Line {
			hits++
		}
	}
	hitRate := float64(hits) / float64(len(values)) * 100

	// Logs arrive most-recent-first, so the first five entries are the five
	// latest games.
	last5 := values
	if len(last5) > 5 {
		last5 = last5[:5]
	}
	last5Avg := mean(last5)
	last5Hits := 0
	for _, v := range last5 {
		if v > prop.Line {
			last5Hits++
		}
	}

	homeAvg, awayAvg := avg, avg
	var home, away []float64
	for i, g := range games {
		if g.IsHome() {
			home = append(home, values[i])
		} else if g.IsAway() {
			away = append(away, values[i])
		}
	}
	if len(home) > 0 {
		homeAvg = mean(home)
	}
	if len(away) > 0 {
		awayAvg = mean(away)
	}

	confidence := e.score(edge, len(values), hitRate, last5Hits)

	direction := models.DirectionUnder
	if edge > 0 {
		direction = models.DirectionOver
	}

	verdict := models.VerdictSkip
	reason := "Low confidence"
	switch {
	case confidence >= e.lockConf && len(values) >= e.lockGames:
		verdict = "LOCK " + direction
		reason = ""
	case confidence >= e.goodConf:
		verdict = "GOOD " + direction
		reason = ""
	}

	return models.PropResult{
		Name:       player.FullName,
		Stat:       stat,
		Line:       prop.Line,
		Games:      len(values),
		Avg:        round1(avg),
		Median:     round1(med),
		StdDev:     round2(sd),
		Edge:       round2(edge),
		HitRate:    round1(hitRate),
		Last5Avg:   round1(last5Avg),
		Last5Hits:  last5Hits,
		HomeAvg:    round1(homeAvg),
		AwayAvg:    round1(awayAvg),
		Confidence: confidence,
		Direction:  direction,
		Verdict:    verdict,
		Reason:     reason,
	}
}

// score computes the confidence for a prop: a base of 50 moved by the edge
// and adjusted for sample size, hit rate and recent form, clamped to [5, 95].
func (e *Engine) score(edge float64, games int, hitRate float64, last5Hits int) int {
	conf := 50.0

	conf += clamp(edge*4, -25, 25)

	if games >= 20 {
		conf += 10
	}
	if games < 15 {
		conf -= 5
	}

	absEdge := math.Abs(edge)
	if absEdge >= 5 {
		conf += 8
	}
	if absEdge >= 7 {
		conf += 7
	}

	if hitRate >= 70 {
		conf += 5
	}
	if hitRate <= 30 {
		conf -= 5
	}

	if last5Hits >= 4 {
		conf += 3
	}
	if last5Hits <= 1 {
		conf -= 3
	}

	return int(clamp(conf, 5, 95))
}

func skip(name, reason string) models.PropResult {
	return models.PropResult{
		Name:    name,
		Verdict: models.VerdictSkip,
		Reason:  reason,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// stdDev is the sample standard deviation. With fewer than two games there is
// no spread to measure, so a fraction of the average stands in.
func stdDev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return avg * 0.18
	}
	sum := 0.0
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
