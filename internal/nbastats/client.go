package nbastats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/joshuakim/propedge/internal/breaker"
	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
)

const (
	statsBaseURL     = "https://stats.nba.com/stats"
	liveScoreboardURL = "https://cdn.nba.com/static/json/liveData/scoreboard/todaysScoreboard_00.json"

	// Provider is the breaker/metrics label for this upstream.
	Provider = "nba-stats"
)

// Client handles communication with the NBA stats API. Per-entity game log
// fetches are paced by a token bucket to stay inside the provider's informal
// rate limits; all calls carry a bounded timeout via the underlying client.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	scoreboardURL string
	limiter       *rate.Limiter
	breakers      *breaker.Registry
	metrics       *metrics.Metrics
	logger        *logrus.Logger
}

// NewClient creates a new NBA stats client. delay is the minimum spacing
// between per-entity game log calls.
func NewClient(timeout, delay time.Duration, breakers *breaker.Registry, m *metrics.Metrics, logger *logrus.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	return &Client{
		httpClient:    rc.StandardClient(),
		baseURL:       statsBaseURL,
		scoreboardURL: liveScoreboardURL,
		limiter:       rate.NewLimiter(rate.Every(delay), 1),
		breakers:      breakers,
		metrics:       m,
		logger:        logger,
	}
}

// statsResponse is the tabular envelope used by every stats.nba.com endpoint.
type statsResponse struct {
	ResultSets []resultSet `json:"resultSets"`
}

type resultSet struct {
	Name    string          `json:"name"`
	Headers []string        `json:"headers"`
	RowSet  [][]interface{} `json:"rowSet"`
}

func (rs resultSet) column(name string) int {
	for i, h := range rs.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

func cellString(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	if s, ok := row[idx].(string); ok {
		return s
	}
	return ""
}

func cellFloat(row []interface{}, idx int) float64 {
	if idx < 0 || idx >= len(row) {
		return 0
	}
	switch v := row[idx].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// ListPlayers fetches the league player directory for the season, in the
// provider's order.
func (c *Client) ListPlayers(ctx context.Context, season string) ([]models.Player, error) {
	params := url.Values{}
	params.Set("LeagueID", "00")
	params.Set("Season", season)
	params.Set("IsOnlyCurrentSeason", "1")

	resp, err := c.getStats(ctx, "commonallplayers", params)
	if err != nil {
		return nil, err
	}

	rs, err := findResultSet(resp, "CommonAllPlayers")
	if err != nil {
		return nil, err
	}

	idCol := rs.column("PERSON_ID")
	nameCol := rs.column("DISPLAY_FIRST_LAST")

	players := make([]models.Player, 0, len(rs.RowSet))
	for _, row := range rs.RowSet {
		players = append(players, models.Player{
			ID:       int(cellFloat(row, idCol)),
			FullName: cellString(row, nameCol),
		})
	}
	return players, nil
}

// PlayerGameLog fetches a player's per-game stat lines for the season,
// most-recent-first. The call waits on the pacing limiter before hitting the
// provider.
func (c *Client) PlayerGameLog(ctx context.Context, playerID int, season string) ([]models.PlayerGame, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("PlayerID", fmt.Sprintf("%d", playerID))
	params.Set("Season", season)
	params.Set("SeasonType", "Regular Season")

	resp, err := c.getStats(ctx, "playergamelog", params)
	if err != nil {
		return nil, err
	}

	rs, err := findResultSet(resp, "PlayerGameLog")
	if err != nil {
		return nil, err
	}

	dateCol := rs.column("GAME_DATE")
	matchupCol := rs.column("MATCHUP")
	ptsCol := rs.column("PTS")
	rebCol := rs.column("REB")
	astCol := rs.column("AST")
	fg3mCol := rs.column("FG3M")
	stlCol := rs.column("STL")
	blkCol := rs.column("BLK")
	tovCol := rs.column("TOV")

	games := make([]models.PlayerGame, 0, len(rs.RowSet))
	for _, row := range rs.RowSet {
		games = append(games, models.PlayerGame{
			Date:      cellString(row, dateCol),
			Matchup:   cellString(row, matchupCol),
			Points:    cellFloat(row, ptsCol),
			Rebounds:  cellFloat(row, rebCol),
			Assists:   cellFloat(row, astCol),
			Threes:    cellFloat(row, fg3mCol),
			Steals:    cellFloat(row, stlCol),
			Blocks:    cellFloat(row, blkCol),
			Turnovers: cellFloat(row, tovCol),
		})
	}
	return games, nil
}

// TeamGameLog fetches a team's per-game results for the season,
// most-recent-first, paced like the player log path.
func (c *Client) TeamGameLog(ctx context.Context, teamID int, season string) ([]models.TeamGame, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("TeamID", fmt.Sprintf("%d", teamID))
	params.Set("Season", season)
	params.Set("SeasonType", "Regular Season")

	resp, err := c.getStats(ctx, "teamgamelog", params)
	if err != nil {
		return nil, err
	}

	rs, err := findResultSet(resp, "TeamGameLog")
	if err != nil {
		return nil, err
	}

	dateCol := rs.column("GAME_DATE")
	matchupCol := rs.column("MATCHUP")
	wlCol := rs.column("WL")
	ptsCol := rs.column("PTS")

	games := make([]models.TeamGame, 0, len(rs.RowSet))
	for _, row := range rs.RowSet {
		games = append(games, models.TeamGame{
			Date:      cellString(row, dateCol),
			Matchup:   cellString(row, matchupCol),
			Result:    cellString(row, wlCol),
			PointsFor: cellFloat(row, ptsCol),
		})
	}
	return games, nil
}

// scoreboardResponse mirrors the cdn.nba.com liveData payload.
type scoreboardResponse struct {
	Scoreboard struct {
		Games []struct {
			GameID         string    `json:"gameId"`
			GameStatusText string    `json:"gameStatusText"`
			Period         int       `json:"period"`
			GameClock      string    `json:"gameClock"`
			GameTimeUTC    time.Time `json:"gameTimeUTC"`
			HomeTeam       struct {
				TeamTricode string `json:"teamTricode"`
				Score       int    `json:"score"`
			} `json:"homeTeam"`
			AwayTeam struct {
				TeamTricode string `json:"teamTricode"`
				Score       int    `json:"score"`
			} `json:"awayTeam"`
		} `json:"games"`
	} `json:"scoreboard"`
}

// LiveScoreboard fetches today's games with live scores.
func (c *Client) LiveScoreboard(ctx context.Context) ([]models.ScoreboardGame, error) {
	body, err := c.get(ctx, c.scoreboardURL)
	if err != nil {
		return nil, err
	}

	var resp scoreboardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode scoreboard: %w", err)
	}

	games := make([]models.ScoreboardGame, 0, len(resp.Scoreboard.Games))
	for _, g := range resp.Scoreboard.Games {
		games = append(games, models.ScoreboardGame{
			ID:        g.GameID,
			HomeTeam:  g.HomeTeam.TeamTricode,
			AwayTeam:  g.AwayTeam.TeamTricode,
			HomeScore: g.HomeTeam.Score,
			AwayScore: g.AwayTeam.Score,
			Status:    g.GameStatusText,
			Period:    g.Period,
			Clock:     g.GameClock,
			StartTime: g.GameTimeUTC,
		})
	}
	return games, nil
}

func (c *Client) getStats(ctx context.Context, endpoint string, params url.Values) (*statsResponse, error) {
	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	body, err := c.get(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	var resp statsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	result, err := c.breakers.Execute(Provider, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		setStatsHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(Provider, "error").Inc()
		c.logger.WithFields(logrus.Fields{
			"component": "nbastats",
			"url":       fullURL,
		}).WithError(err).Debug("Upstream request failed")
		return nil, err
	}

	c.metrics.UpstreamRequests.WithLabelValues(Provider, "success").Inc()
	return result.([]byte), nil
}

// setStatsHeaders adds the headers stats.nba.com requires before it will
// answer programmatic clients.
func setStatsHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://www.nba.com/")
	req.Header.Set("Origin", "https://www.nba.com")
	req.Header.Set("x-nba-stats-origin", "stats")
	req.Header.Set("x-nba-stats-token", "true")
}

func findResultSet(resp *statsResponse, name string) (resultSet, error) {
	for _, rs := range resp.ResultSets {
		if rs.Name == name {
			return rs, nil
		}
	}
	return resultSet{}, fmt.Errorf("result set %q not found in response", name)
}
