package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
)

// Refresher drives the background push cycles, one goroutine per category.
// Each cycle runs immediately on start and then on its interval until the
// context is cancelled. A failed cycle is logged and the loop keeps going.
type Refresher struct {
	cache           *Service
	injuryInterval  time.Duration
	gamesInterval   time.Duration
	metrics         *metrics.Metrics
	logger          *logrus.Logger
	onGamesChange   func(models.GameSnapshot)
	lastGamesHash   string
	wg              sync.WaitGroup
}

// NewRefresher creates a refresher over the cache service.
func NewRefresher(cache *Service, injuryInterval, gamesInterval time.Duration, m *metrics.Metrics, logger *logrus.Logger) *Refresher {
	return &Refresher{
		cache:          cache,
		injuryInterval: injuryInterval,
		gamesInterval:  gamesInterval,
		metrics:        m,
		logger:         logger,
	}
}

// OnGamesChange registers a callback invoked whenever a games refresh produces
// a snapshot different from the previous one. Must be set before Start.
func (r *Refresher) OnGamesChange(fn func(models.GameSnapshot)) {
	r.onGamesChange = fn
}

// Start launches both refresh loops. It returns immediately; the loops stop
// when ctx is cancelled and Wait unblocks once they have drained.
func (r *Refresher) Start(ctx context.Context) {
	r.wg.Add(2)
	go r.runLoop(ctx, "injuries", r.injuryInterval, r.cache.RefreshInjuries)
	go r.runLoop(ctx, "games", r.gamesInterval, r.refreshGames)

	r.logger.WithFields(logrus.Fields{
		"component":        "refresher",
		"injury_interval":  r.injuryInterval.String(),
		"games_interval":   r.gamesInterval.String(),
	}).Info("Background refresh started")
}

// Wait blocks until both loops have exited.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) runLoop(ctx context.Context, category string, interval time.Duration, refresh func(context.Context) error) {
	defer r.wg.Done()

	r.runOnce(ctx, category, refresh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.WithField("category", category).Info("Refresh loop stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx, category, refresh)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context, category string, refresh func(context.Context) error) {
	start := time.Now()
	err := refresh(ctx)
	r.metrics.RefreshDuration.WithLabelValues(category).Observe(time.Since(start).Seconds())

	if err != nil {
		r.metrics.RefreshTotal.WithLabelValues(category, "error").Inc()
		r.logger.WithFields(logrus.Fields{
			"component": "refresher",
			"category":  category,
		}).WithError(err).Warn("Refresh cycle failed; serving previous snapshot")
		return
	}
	r.metrics.RefreshTotal.WithLabelValues(category, "success").Inc()
}

// refreshGames wraps the cache refresh with change detection so the caller
// can broadcast only when the scoreboard actually moved.
func (r *Refresher) refreshGames(ctx context.Context) error {
	if err := r.cache.RefreshGames(ctx); err != nil {
		return err
	}
	if r.onGamesChange == nil {
		return nil
	}

	snap, _ := r.cache.GamesSnapshot()
	hash := hashSnapshot(snap)
	if hash != r.lastGamesHash {
		r.lastGamesHash = hash
		r.onGamesChange(snap)
	}
	return nil
}

func hashSnapshot(snap models.GameSnapshot) string {
	data, err := json.Marshal(snap.Games)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
