package fetcher

import (
	"context"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
)

// StandingsFetcher retrieves the current real league table.
type StandingsFetcher interface {
	FetchStandings(ctx context.Context) ([]forecast.Standing, error)
}
