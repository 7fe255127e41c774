package models

import (
	"strings"
	"time"
)

// Player represents an entry in the league player directory
type Player struct {
	ID       int    `json:"id"`
	FullName string `json:"full_name"`
}

// Team represents an entry in the league team directory
type Team struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation"`
	FullName     string `json:"full_name"`
	City         string `json:"city"`
}

// PlayerGame holds a player's box score line for a single game.
// Logs are ordered most-recent-first as delivered by the stats provider.
type PlayerGame struct {
	Date      string  `json:"date"`
	Matchup   string  `json:"matchup"` // "LAL vs. BOS" (home) or "LAL @ BOS" (away)
	Points    float64 `json:"pts"`
	Rebounds  float64 `json:"reb"`
	Assists   float64 `json:"ast"`
	Threes    float64 `json:"fg3m"`
	Steals    float64 `json:"stl"`
	Blocks    float64 `json:"blk"`
	Turnovers float64 `json:"tov"`
}

// IsHome reports whether the game was played at home, inferred from the
// matchup string convention ("vs." home, "@" away).
func (g PlayerGame) IsHome() bool {
	return strings.Contains(g.Matchup, "vs.")
}

// IsAway reports whether the game was played on the road.
func (g PlayerGame) IsAway() bool {
	return strings.Contains(g.Matchup, "@")
}

// TeamGame holds a team's result line for a single game
type TeamGame struct {
	Date      string  `json:"date"`
	Matchup   string  `json:"matchup"`
	Result    string  `json:"result"` // "W" or "L"
	PointsFor float64 `json:"points_for"`
}

// IsHome reports whether the team game was played at home.
func (g TeamGame) IsHome() bool {
	return strings.Contains(g.Matchup, "vs.")
}

// ScoreboardGame represents one game from the live scoreboard
type ScoreboardGame struct {
	ID        string    `json:"game_id"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeScore int       `json:"home_score"`
	AwayScore int       `json:"away_score"`
	Status    string    `json:"status"`
	Period    int       `json:"period"`
	Clock     string    `json:"clock"`
	StartTime time.Time `json:"start_time"`
}

// InProgress reports whether the game has tipped off and not yet finished.
func (g ScoreboardGame) InProgress() bool {
	return g.Period > 0 && !strings.HasPrefix(strings.ToLower(g.Status), "final")
}

// InjuredPlayer represents a single entry on a team's injury report
type InjuredPlayer struct {
	Name   string `json:"name"`
	Status string `json:"status"` // Out, Questionable, Doubtful, Day-To-Day, ...
	Detail string `json:"reason"`
}

// TeamInjuries holds one team's section of the league injury report
type TeamInjuries struct {
	Team    string          `json:"team"`
	Players []InjuredPlayer `json:"players"`
}

// flaggedStatuses are the injury statuses that exclude a player from analysis
var flaggedStatuses = map[string]bool{
	"Out":          true,
	"Questionable": true,
	"Doubtful":     true,
	"Day-To-Day":   true,
}

// InjurySnapshot is a point-in-time view of the league injury report.
// InjuredNames holds lowercased names of players whose status is one of
// Out/Questionable/Doubtful/Day-To-Day.
type InjurySnapshot struct {
	ByTeam       map[string][]InjuredPlayer `json:"teams"`
	InjuredNames []string                   `json:"injured_players"`
}

// BuildInjurySnapshot assembles a snapshot from a raw injury report.
func BuildInjurySnapshot(report []TeamInjuries) InjurySnapshot {
	snap := InjurySnapshot{ByTeam: make(map[string][]InjuredPlayer, len(report))}
	for _, team := range report {
		snap.ByTeam[team.Team] = team.Players
		for _, p := range team.Players {
			if flaggedStatuses[p.Status] {
				snap.InjuredNames = append(snap.InjuredNames, strings.ToLower(p.Name))
			}
		}
	}
	return snap
}

// IsInjured checks a player name against the flagged set using bidirectional
// case-insensitive substring containment, tolerating the punctuation and
// suffix differences between prop names and injury report names.
func (s InjurySnapshot) IsInjured(name string) bool {
	lower := strings.ToLower(name)
	if lower == "" {
		return false
	}
	for _, injured := range s.InjuredNames {
		if strings.Contains(injured, lower) || strings.Contains(lower, injured) {
			return true
		}
	}
	return false
}

// GameSnapshot is a point-in-time view of the live scoreboard
type GameSnapshot struct {
	Games []ScoreboardGame `json:"games"`
}

// PropRequest is a single prop line submitted for analysis
type PropRequest struct {
	Name string  `json:"name"`
	Line float64 `json:"line"`
	Stat string  `json:"stat"`
}

// Verdict and direction labels assigned by the analysis engine
const (
	VerdictSkip = "SKIP"

	DirectionOver  = "OVER"
	DirectionUnder = "UNDER"
)

// PropResult is the analysis outcome for one prop. Skipped props carry only
// Name, Verdict and Reason.
type PropResult struct {
	Name       string  `json:"name"`
	Stat       string  `json:"stat,omitempty"`
	Line       float64 `json:"line,omitempty"`
	Games      int     `json:"games,omitempty"`
	Avg        float64 `json:"avg,omitempty"`
	Median     float64 `json:"median,omitempty"`
	StdDev     float64 `json:"std_dev,omitempty"`
	Edge       float64 `json:"edge,omitempty"`
	HitRate    float64 `json:"hit_rate,omitempty"`
	Last5Avg   float64 `json:"last5_avg,omitempty"`
	Last5Hits  int     `json:"last5_hits,omitempty"`
	HomeAvg    float64 `json:"home_avg,omitempty"`
	AwayAvg    float64 `json:"away_avg,omitempty"`
	Confidence int     `json:"confidence,omitempty"`
	Direction  string  `json:"direction,omitempty"`
	Verdict    string  `json:"verdict"`
	Reason     string  `json:"reason,omitempty"`
}

// AnalysisResponse is the full outcome of a prop batch
type AnalysisResponse struct {
	Results         []PropResult `json:"results"`
	Locks           []PropResult `json:"locks"`
	LockCount       int          `json:"lock_count"`
	InjuriesChecked int          `json:"injuries_checked"`
}

// PlayerStatsSummary holds season averages for a player
type PlayerStatsSummary struct {
	Name     string             `json:"name"`
	Games    int                `json:"games"`
	Averages map[string]float64 `json:"averages"`
}

// TeamStatsSummary holds record, splits and streak for a team
type TeamStatsSummary struct {
	Team       string  `json:"team"`
	Games      int     `json:"games"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Record     string  `json:"record"`
	HomeRecord string  `json:"home_record"`
	AwayRecord string  `json:"away_record"`
	Streak     string  `json:"streak"` // e.g. "W4", "L2"
	PointsFor  float64 `json:"avg_points_for"`
}
