package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joshuakim/propedge/internal/models"
)

func TestBuildPlayerSummary(t *testing.T) {
	games := []models.PlayerGame{
		{Points: 30, Rebounds: 8, Assists: 9, Threes: 2, Steals: 1, Blocks: 1},
		{Points: 25, Rebounds: 7, Assists: 11, Threes: 3, Steals: 2, Blocks: 0},
		{Points: 28, Rebounds: 9, Assists: 10, Threes: 1, Steals: 0, Blocks: 2},
	}

	summary := BuildPlayerSummary("LeBron James", games)

	assert.Equal(t, "LeBron James", summary.Name)
	assert.Equal(t, 3, summary.Games)
	assert.Equal(t, 27.7, summary.Averages["pts"])
	assert.Equal(t, 8.0, summary.Averages["reb"])
	assert.Equal(t, 10.0, summary.Averages["ast"])
	assert.Equal(t, 2.0, summary.Averages["fg3m"])
	assert.Equal(t, 1.0, summary.Averages["stl"])
	assert.Equal(t, 1.0, summary.Averages["blk"])
}

func TestBuildPlayerSummaryEmpty(t *testing.T) {
	summary := BuildPlayerSummary("Rookie", nil)
	assert.Equal(t, 0, summary.Games)
	assert.Empty(t, summary.Averages)
}

func TestBuildTeamSummary(t *testing.T) {
	// Most-recent-first: three straight wins, then a loss on the road.
	games := []models.TeamGame{
		{Matchup: "LAL vs. BOS", Result: "W", PointsFor: 120},
		{Matchup: "LAL vs. DEN", Result: "W", PointsFor: 115},
		{Matchup: "LAL @ PHX", Result: "W", PointsFor: 110},
		{Matchup: "LAL @ GSW", Result: "L", PointsFor: 98},
	}

	summary := BuildTeamSummary("LAL", games)

	assert.Equal(t, 4, summary.Games)
	assert.Equal(t, 3, summary.Wins)
	assert.Equal(t, 1, summary.Losses)
	assert.Equal(t, "3-1", summary.Record)
	assert.Equal(t, "2-0", summary.HomeRecord)
	assert.Equal(t, "1-1", summary.AwayRecord)
	assert.Equal(t, "W3", summary.Streak)
	assert.Equal(t, 110.8, summary.PointsFor)
}

func TestBuildTeamSummaryEmpty(t *testing.T) {
	summary := BuildTeamSummary("LAL", nil)
	assert.Equal(t, "0-0", summary.Record)
	assert.Empty(t, summary.Streak)
}
