package analysis

import (
	"fmt"
	"strings"

	"github.com/joshuakim/propedge/internal/models"
)

// BuildPlayerSummary computes season averages over a player's game log.
func BuildPlayerSummary(name string, games []models.PlayerGame) models.PlayerStatsSummary {
	summary := models.PlayerStatsSummary{
		Name:     name,
		Games:    len(games),
		Averages: map[string]float64{},
	}
	if len(games) == 0 {
		return summary
	}

	var pts, reb, ast, fg3m, stl, blk float64
	for _, g := range games {
		pts += g.Points
		reb += g.Rebounds
		ast += g.Assists
		fg3m += g.Threes
		stl += g.Steals
		blk += g.Blocks
	}
	n := float64(len(games))
	summary.Averages = map[string]float64{
		"pts":  round1(pts / n),
		"reb":  round1(reb / n),
		"ast":  round1(ast / n),
		"fg3m": round1(fg3m / n),
		"stl":  round1(stl / n),
		"blk":  round1(blk / n),
	}
	return summary
}

// BuildTeamSummary computes record, home/away splits and current streak over
// a team's game log. Logs arrive most-recent-first, so the streak is read off
// the front.
func BuildTeamSummary(team string, games []models.TeamGame) models.TeamStatsSummary {
	summary := models.TeamStatsSummary{Team: team, Games: len(games)}
	if len(games) == 0 {
		summary.Record = "0-0"
		summary.HomeRecord = "0-0"
		summary.AwayRecord = "0-0"
		return summary
	}

	var wins, losses, homeWins, homeLosses, awayWins, awayLosses int
	var pointsFor float64
	for _, g := range games {
		won := strings.EqualFold(g.Result, "W")
		pointsFor += g.PointsFor
		if won {
			wins++
		} else {
			losses++
		}
		if g.IsHome() {
			if won {
				homeWins++
			} else {
				homeLosses++
			}
		} else {
			if won {
				awayWins++
			} else {
				awayLosses++
			}
		}
	}

	streakResult := games[0].Result
	streakLen := 0
	for _, g := range games {
		if g.Result != streakResult {
			break
		}
		streakLen++
	}

	summary.Wins = wins
	summary.Losses = losses
	summary.Record = fmt.Sprintf("%d-%d", wins, losses)
	summary.HomeRecord = fmt.Sprintf("%d-%d", homeWins, homeLosses)
	summary.AwayRecord = fmt.Sprintf("%d-%d", awayWins, awayLosses)
	summary.Streak = fmt.Sprintf("%s%d", strings.ToUpper(streakResult), streakLen)
	summary.PointsFor = round1(pointsFor / float64(len(games)))
	return summary
}
