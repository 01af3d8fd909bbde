package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/notification"
)

// Replay walks stored snapshot history and prints every detected movement
// with its classification. Nothing is sent.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	from := opts.From.UTC()
	to := opts.To.UTC()
	if !from.Before(to) {
		return errors.New("replay range is empty, check --from/--to")
	}

	team := ""
	if strings.TrimSpace(opts.Team) != "" {
		canonical, ok := notification.CanonicalTeam(opts.Team)
		if !ok {
			return fmt.Errorf("%w: %s", notification.ErrUnknownTeam, opts.Team)
		}
		team = canonical
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot replay")
	}
	defer closeStore()

	snaps, err := store.ListSnapshotsBetween(ctx, a.Config.Forecast.Season, from.Unix(), to.Unix(), a.Config.ResolveMaxPoints(0))
	if err != nil {
		return err
	}
	if len(snaps) < 2 {
		fmt.Fprintln(a.Out, "fewer than two snapshots in range")
		return nil
	}

	gen := notification.NewGenerator(a.Config.Forecast.Zones)
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tTeam\tFrom\tTo\tChange\tSignificance\tContext")

	moves := 0
	for i := 1; i < len(snaps); i++ {
		for _, change := range forecast.Diff(snaps[i-1], snaps[i]) {
			if team != "" && change.TeamName != team {
				continue
			}
			kind, significance := gen.Classify(change)
			fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
				time.Unix(change.Timestamp, 0).UTC().Format(time.RFC3339),
				change.TeamName,
				change.PreviousPosition,
				change.NewPosition,
				kind,
				significance,
				sanitizeInline(change.Context),
			)
			moves++
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	a.Logger.Info().Int("snapshots", len(snaps)).Int("changes", moves).Msg("replay finished")
	return nil
}
