package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/storage"
)

// Show prints the latest forecast table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show forecast")
	}
	if closeStore != nil {
		defer closeStore()
	}

	season := opts.Season
	if season == "" {
		season = a.Config.Forecast.Season
	}
	snap, err := store.LatestSnapshot(ctx, season)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(a.Out, "no forecast stored for season %s\n", season)
		return nil
	}
	if err != nil {
		return err
	}

	return writeTable(a.Out, snap, a.Config.Forecast.Zones)
}

func writeTable(out io.Writer, snap forecast.Snapshot, zones forecast.Zones) error {
	fmt.Fprintf(out, "Season %s, updated %s (%s)\n\n",
		snap.Season,
		time.Unix(snap.Timestamp, 0).UTC().Format(time.RFC3339),
		sanitizeInline(snap.Context))

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Pos\tTeam\tForecast\tPts\tP\tW\tD\tL\tGD\tPPG\tZone")
	for _, team := range snap.Teams {
		fmt.Fprintf(writer, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%+d\t%s\t%s\n",
			team.Position,
			team.TeamName,
			formatDecimal(decimal.NewFromFloat(team.Points), 1),
			team.ActualPoints,
			team.Played,
			team.Won,
			team.Drawn,
			team.Lost,
			team.GoalDifference,
			formatDecimal(decimal.NewFromFloat(team.PointsPerGame), 2),
			zoneLabel(zones, team.Position),
		)
	}
	return writer.Flush()
}

func zoneLabel(zones forecast.Zones, position int) string {
	bands := zones.Bands(position)
	labels := make([]string, 0, len(bands))
	for _, b := range bands {
		labels = append(labels, string(b))
	}
	return strings.Join(labels, ",")
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
