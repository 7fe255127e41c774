package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/joshuakim/propedge/internal/breaker"
	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
)

const (
	baseURL = "https://site.api.espn.com/apis/site/v2/sports/basketball/nba"

	// Provider is the breaker/metrics label for this upstream.
	Provider = "espn"
)

// Client handles communication with the ESPN site API for the league injury
// report and the team directory.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breakers   *breaker.Registry
	metrics    *metrics.Metrics
	logger     *logrus.Logger
}

// NewClient creates a new ESPN client.
func NewClient(timeout time.Duration, breakers *breaker.Registry, m *metrics.Metrics, logger *logrus.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	return &Client{
		httpClient: rc.StandardClient(),
		baseURL:    baseURL,
		breakers:   breakers,
		metrics:    m,
		logger:     logger,
	}
}

// injuriesResponse mirrors the ESPN injuries payload.
type injuriesResponse struct {
	Injuries []struct {
		Team struct {
			Abbreviation string `json:"abbreviation"`
		} `json:"team"`
		Injuries []struct {
			Status  string `json:"status"`
			Athlete struct {
				DisplayName string `json:"displayName"`
			} `json:"athlete"`
			Details struct {
				Detail string `json:"detail"`
			} `json:"details"`
			LongComment string `json:"longComment"`
		} `json:"injuries"`
	} `json:"injuries"`
}

// InjuryReport fetches the current league injury report grouped by team.
func (c *Client) InjuryReport(ctx context.Context) ([]models.TeamInjuries, error) {
	body, err := c.get(ctx, c.baseURL+"/injuries")
	if err != nil {
		return nil, err
	}

	var resp injuriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode injuries: %w", err)
	}

	report := make([]models.TeamInjuries, 0, len(resp.Injuries))
	for _, team := range resp.Injuries {
		abbr := team.Team.Abbreviation
		if abbr == "" {
			abbr = "UNK"
		}
		entry := models.TeamInjuries{Team: abbr}
		for _, inj := range team.Injuries {
			detail := inj.Details.Detail
			if detail == "" {
				detail = inj.LongComment
			}
			entry.Players = append(entry.Players, models.InjuredPlayer{
				Name:   inj.Athlete.DisplayName,
				Status: inj.Status,
				Detail: detail,
			})
		}
		report = append(report, entry)
	}
	return report, nil
}

// teamsResponse mirrors the ESPN team directory payload.
type teamsResponse struct {
	Sports []struct {
		Leagues []struct {
			Teams []struct {
				Team struct {
					ID           string `json:"id"`
					Abbreviation string `json:"abbreviation"`
					DisplayName  string `json:"displayName"`
					Location     string `json:"location"`
				} `json:"team"`
			} `json:"teams"`
		} `json:"leagues"`
	} `json:"sports"`
}

// ListTeams fetches the league team directory in the provider's order.
func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	body, err := c.get(ctx, c.baseURL+"/teams")
	if err != nil {
		return nil, err
	}

	var resp teamsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode teams: %w", err)
	}

	var teams []models.Team
	for _, sport := range resp.Sports {
		for _, league := range sport.Leagues {
			for _, t := range league.Teams {
				id, _ := strconv.Atoi(t.Team.ID)
				teams = append(teams, models.Team{
					ID:           id,
					Abbreviation: t.Team.Abbreviation,
					FullName:     t.Team.DisplayName,
					City:         t.Team.Location,
				})
			}
		}
	}
	return teams, nil
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	result, err := c.breakers.Execute(Provider, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

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
			"component": "espn",
			"url":       fullURL,
		}).WithError(err).Debug("Upstream request failed")
		return nil, err
	}

	c.metrics.UpstreamRequests.WithLabelValues(Provider, "success").Inc()
	return result.([]byte), nil
}
