package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/version"
)

const defaultBaseURL = "https://api.football-data.org/v4"

// FootballDataOptions parameterise the football-data.org client.
type FootballDataOptions struct {
	BaseURL           string
	APIToken          string
	Competition       string
	RequestsPerMinute int
	Timeout           time.Duration
	UserAgent         string
}

// FootballData fetches standings from football-data.org.
type FootballData struct {
	opts    FootballDataOptions
	client  *resty.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewFootballData constructs a standings fetcher. The free tier allows ten
// requests per minute.
func NewFootballData(opts FootballDataOptions, logger zerolog.Logger) *FootballData {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 10
	}
	if opts.Competition == "" {
		opts.Competition = "PL"
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = version.UserAgent()
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", ua)

	rps := float64(opts.RequestsPerMinute) / 60.0
	return &FootballData{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger.With().Str("component", "standings_fetcher").Logger(),
	}
}

// FetchStandings returns the TOTAL table for the configured competition.
func (f *FootballData) FetchStandings(ctx context.Context) ([]forecast.Standing, error) {
	if f.opts.APIToken == "" {
		return nil, errors.New("source api token not configured")
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var payload standingsResponse
	var apiErr errorResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("X-Auth-Token", f.opts.APIToken).
		SetPathParam("competition", f.opts.Competition).
		ForceContentType("application/json").
		SetResult(&payload).
		SetError(&apiErr).
		Get("/competitions/{competition}/standings")
	if err != nil {
		return nil, fmt.Errorf("fetch standings: %w", err)
	}
	if resp.IsError() {
		return nil, parseHTTPError(resp.StatusCode(), apiErr, resp.Body())
	}

	standings, err := payload.total()
	if err != nil {
		return nil, err
	}
	f.logger.Debug().
		Str("competition", f.opts.Competition).
		Int("teams", len(standings)).
		Int("matchday", payload.Season.CurrentMatchday).
		Msg("standings fetched")
	return standings, nil
}

type standingsResponse struct {
	Season struct {
		CurrentMatchday int `json:"currentMatchday"`
	} `json:"season"`
	Standings []struct {
		Type  string `json:"type"`
		Table []struct {
			Position int `json:"position"`
			Team     struct {
				Name      string `json:"name"`
				ShortName string `json:"shortName"`
			} `json:"team"`
			PlayedGames    int `json:"playedGames"`
			Won            int `json:"won"`
			Draw           int `json:"draw"`
			Lost           int `json:"lost"`
			Points         int `json:"points"`
			GoalsFor       int `json:"goalsFor"`
			GoalsAgainst   int `json:"goalsAgainst"`
			GoalDifference int `json:"goalDifference"`
		} `json:"table"`
	} `json:"standings"`
}

func (r standingsResponse) total() ([]forecast.Standing, error) {
	for _, group := range r.Standings {
		if group.Type != "TOTAL" {
			continue
		}
		if len(group.Table) == 0 {
			return nil, errors.New("standings table is empty")
		}
		out := make([]forecast.Standing, 0, len(group.Table))
		for _, row := range group.Table {
			out = append(out, forecast.Standing{
				TeamName:       teamName(row.Team.Name),
				Position:       row.Position,
				Played:         row.PlayedGames,
				Won:            row.Won,
				Drawn:          row.Draw,
				Lost:           row.Lost,
				Points:         row.Points,
				GoalsFor:       row.GoalsFor,
				GoalsAgainst:   row.GoalsAgainst,
				GoalDifference: row.GoalDifference,
			})
		}
		return out, nil
	}
	return nil, errors.New("no TOTAL standings in response")
}

// teamAliases maps football-data club names onto the app's roster spelling.
var teamAliases = map[string]string{
	"Brighton & Hove Albion":  "Brighton",
	"Tottenham Hotspur":       "Tottenham",
	"West Ham United":         "West Ham",
	"Wolverhampton Wanderers": "Wolves",
	"AFC Bournemouth":         "Bournemouth",
}

func teamName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.TrimSuffix(name, " AFC")
	name = strings.TrimSuffix(name, " FC")
	if alias, ok := teamAliases[name]; ok {
		return alias
	}
	return name
}

type errorResponse struct {
	Message   string `json:"message"`
	ErrorCode int    `json:"errorCode"`
}

func parseHTTPError(status int, apiErr errorResponse, body []byte) error {
	if apiErr.Message != "" {
		return fmt.Errorf("football-data api error (%d): %s", status, apiErr.Message)
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		return fmt.Errorf("football-data api error (%d): %s", status, trimmed)
	}
	return fmt.Errorf("football-data api error (%d)", status)
}

var _ StandingsFetcher = (*FootballData)(nil)
