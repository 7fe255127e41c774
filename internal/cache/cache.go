package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
)

// StatsProvider is the slice of the upstream gateway the cache needs for
// scoreboard and per-entity game log data.
type StatsProvider interface {
	PlayerGameLog(ctx context.Context, playerID int, season string) ([]models.PlayerGame, error)
	TeamGameLog(ctx context.Context, teamID int, season string) ([]models.TeamGame, error)
	LiveScoreboard(ctx context.Context) ([]models.ScoreboardGame, error)
}

// InjuryProvider is the slice of the upstream gateway the cache needs for the
// league injury report.
type InjuryProvider interface {
	InjuryReport(ctx context.Context) ([]models.TeamInjuries, error)
}

// Source labels recorded on successfully refreshed entries.
const (
	injurySource = "ESPN NBA Injuries (Live)"
	gamesSource  = "NBA Live Scoreboard"
)

// entry is a timestamped cached value. A zero fetchedAt means the category
// was never successfully populated. Entries are replaced whole; readers never
// see a value whose timestamp or source belongs to a different refresh
// generation.
type entry[T any] struct {
	value     T
	fetchedAt time.Time
	source    string
}

// Meta carries the freshness metadata of a snapshot read.
type Meta struct {
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source,omitempty"`
}

// Service owns all cached upstream data. Injuries and live games are refreshed
// by background push cycles and remain readable even while stale; per-entity
// game logs are fetched lazily with a TTL and fail loudly instead of falling
// back to stale data.
type Service struct {
	stats    StatsProvider
	injuries InjuryProvider
	season   string
	ttl      time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu         sync.RWMutex
	injurySnap entry[models.InjurySnapshot]
	gamesSnap  entry[models.GameSnapshot]
	playerLogs map[int]entry[[]models.PlayerGame]
	teamLogs   map[int]entry[[]models.TeamGame]
}

// New creates the cache service.
func New(stats StatsProvider, injuries InjuryProvider, season string, ttl time.Duration, m *metrics.Metrics, logger *logrus.Logger) *Service {
	return &Service{
		stats:      stats,
		injuries:   injuries,
		season:     season,
		ttl:        ttl,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
		playerLogs: make(map[int]entry[[]models.PlayerGame]),
		teamLogs:   make(map[int]entry[[]models.TeamGame]),
	}
}

// SetClock overrides the cache's clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// RefreshInjuries performs one injury push-refresh cycle. On failure the
// previous snapshot and its timestamp stay in place and only the source label
// records the error.
func (s *Service) RefreshInjuries(ctx context.Context) error {
	report, err := s.injuries.InjuryReport(ctx)
	if err != nil {
		s.mu.Lock()
		s.injurySnap.source = fmt.Sprintf("error: %v", err)
		s.mu.Unlock()
		return err
	}

	snap := models.BuildInjurySnapshot(report)

	s.mu.Lock()
	s.injurySnap = entry[models.InjurySnapshot]{
		value:     snap,
		fetchedAt: s.now(),
		source:    injurySource,
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"component": "cache",
		"category":  "injuries",
		"teams":     len(snap.ByTeam),
		"flagged":   len(snap.InjuredNames),
	}).Debug("Injury snapshot replaced")
	return nil
}

// RefreshGames performs one scoreboard push-refresh cycle with the same
// stale-over-absent semantics as RefreshInjuries.
func (s *Service) RefreshGames(ctx context.Context) error {
	games, err := s.stats.LiveScoreboard(ctx)
	if err != nil {
		s.mu.Lock()
		s.gamesSnap.source = fmt.Sprintf("error: %v", err)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.gamesSnap = entry[models.GameSnapshot]{
		value:     models.GameSnapshot{Games: games},
		fetchedAt: s.now(),
		source:    gamesSource,
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"component": "cache",
		"category":  "games",
		"count":     len(games),
	}).Debug("Game snapshot replaced")
	return nil
}

// InjurySnapshot returns a copy of the current injury snapshot with its
// freshness metadata. The copy is safe to hold across later refreshes.
func (s *Service) InjurySnapshot() (models.InjurySnapshot, Meta) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyInjurySnapshot(s.injurySnap.value), Meta{
		UpdatedAt: s.injurySnap.fetchedAt,
		Source:    s.injurySnap.source,
	}
}

// GamesSnapshot returns a copy of the current scoreboard snapshot.
func (s *Service) GamesSnapshot() (models.GameSnapshot, Meta) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	games := make([]models.ScoreboardGame, len(s.gamesSnap.value.Games))
	copy(games, s.gamesSnap.value.Games)
	return models.GameSnapshot{Games: games}, Meta{
		UpdatedAt: s.gamesSnap.fetchedAt,
		Source:    s.gamesSnap.source,
	}
}

// LiveGames returns the subset of the scoreboard that is currently in
// progress.
func (s *Service) LiveGames() ([]models.ScoreboardGame, Meta) {
	snap, meta := s.GamesSnapshot()
	live := make([]models.ScoreboardGame, 0, len(snap.Games))
	for _, g := range snap.Games {
		if g.InProgress() {
			live = append(live, g)
		}
	}
	return live, meta
}

// PlayerLog returns the player's game log, fetching from upstream when the
// cached entry is missing or older than the TTL. Unlike the push categories a
// fetch failure here is returned to the caller; pull data must be current or
// explicitly failed.
func (s *Service) PlayerLog(ctx context.Context, playerID int) ([]models.PlayerGame, error) {
	s.mu.RLock()
	e, ok := s.playerLogs[playerID]
	s.mu.RUnlock()

	if ok && s.now().Sub(e.fetchedAt) < s.ttl {
		s.metrics.GameLogHits.Inc()
		return copyGames(e.value), nil
	}

	s.metrics.GameLogMisses.Inc()
	games, err := s.stats.PlayerGameLog(ctx, playerID, s.season)
	if err != nil {
		return nil, fmt.Errorf("player %d game log: %w", playerID, err)
	}

	s.mu.Lock()
	s.playerLogs[playerID] = entry[[]models.PlayerGame]{
		value:     games,
		fetchedAt: s.now(),
		source:    "nba-stats",
	}
	s.mu.Unlock()

	return copyGames(games), nil
}

// TeamLog returns the team's game log under the same pull/TTL discipline as
// PlayerLog.
func (s *Service) TeamLog(ctx context.Context, teamID int) ([]models.TeamGame, error) {
	s.mu.RLock()
	e, ok := s.teamLogs[teamID]
	s.mu.RUnlock()

	if ok && s.now().Sub(e.fetchedAt) < s.ttl {
		s.metrics.GameLogHits.Inc()
		return copyTeamGames(e.value), nil
	}

	s.metrics.GameLogMisses.Inc()
	games, err := s.stats.TeamGameLog(ctx, teamID, s.season)
	if err != nil {
		return nil, fmt.Errorf("team %d game log: %w", teamID, err)
	}

	s.mu.Lock()
	s.teamLogs[teamID] = entry[[]models.TeamGame]{
		value:     games,
		fetchedAt: s.now(),
		source:    "nba-stats",
	}
	s.mu.Unlock()

	return copyTeamGames(games), nil
}

func copyInjurySnapshot(snap models.InjurySnapshot) models.InjurySnapshot {
	out := models.InjurySnapshot{
		ByTeam:       make(map[string][]models.InjuredPlayer, len(snap.ByTeam)),
		InjuredNames: make([]string, len(snap.InjuredNames)),
	}
	for team, players := range snap.ByTeam {
		list := make([]models.InjuredPlayer, len(players))
		copy(list, players)
		out.ByTeam[team] = list
	}
	copy(out.InjuredNames, snap.InjuredNames)
	return out
}

func copyGames(games []models.PlayerGame) []models.PlayerGame {
	out := make([]models.PlayerGame, len(games))
	copy(out, games)
	return out
}

func copyTeamGames(games []models.TeamGame) []models.TeamGame {
	out := make([]models.TeamGame, len(games))
	copy(out, games)
	return out
}
