package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/notification"
)

// Simulate pushes a hypothetical move of one team through the notification
// pipeline against the stored subscribers. Only that team's subscribers are
// notified; the teams it displaces are not.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	team, ok := notification.CanonicalTeam(opts.Team)
	if !ok {
		return fmt.Errorf("%w: %s", notification.ErrUnknownTeam, opts.Team)
	}
	size := len(notification.Teams)
	for _, pos := range []int{opts.PreviousPosition, opts.NewPosition} {
		if pos < 1 || pos > size {
			return fmt.Errorf("positions must be between 1 and %d", size)
		}
	}
	if opts.PreviousPosition == opts.NewPosition {
		return errors.New("--from and --to must differ")
	}

	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	now := time.Now().UTC()
	season := a.Config.Forecast.Season
	previous := forecast.NewSnapshot(syntheticTable(team, opts.PreviousPosition), season, "", now.Add(-time.Minute))
	current := forecast.NewSnapshot(syntheticTable(team, opts.NewPosition), season, opts.Context, now)

	summary, err := c.service.ProcessTeamChange(ctx, previous, current, team)
	if err != nil {
		return err
	}
	return a.printJSON(summary)
}

// syntheticTable lays the roster out in order, with team moved to position.
func syntheticTable(team string, position int) []forecast.Position {
	others := make([]string, 0, len(notification.Teams)-1)
	for _, name := range notification.Teams {
		if name != team {
			others = append(others, name)
		}
	}

	table := make([]forecast.Position, 0, len(notification.Teams))
	for pos := 1; pos <= len(notification.Teams); pos++ {
		name := team
		if pos != position {
			name, others = others[0], others[1:]
		}
		table = append(table, forecast.Position{
			TeamName: name,
			Position: pos,
			Points:   float64(90 - 3*(pos-1)),
		})
	}
	return table
}
