package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/notification"
	"github.com/TheLoudSteve/epl-forecast/internal/storage"
)

// defaultChartTeams is how many teams from the top of the latest table are
// charted when none are named.
const defaultChartTeams = 6

// Export renders forecast history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	teams, err := canonicalTeams(opts.Teams)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := to.Add(-a.Config.Forecast.SnapshotTTL)
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	history, err := loadHistory(ctx, store, a.Config.Forecast.Season, from, to, opts.MaxPoints, teams)
	if err != nil {
		return err
	}
	if history.total == 0 {
		a.Logger.Info().Msg("no snapshots found for export window")
		return nil
	}
	teams = history.teams
	downsampled := history.snapshots
	a.Logger.Info().Int("total", history.total).Int("exported", len(downsampled)).Strs("teams", teams).Msg("exporting forecast history")

	if opts.CSVPath != "" {
		if err := writeFile(opts.CSVPath, func(w io.Writer) error { return writeHistoryCSV(w, downsampled, teams) }); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeFile(opts.PNGPath, func(w io.Writer) error { return writeHistoryPNG(w, downsampled, teams) }); err != nil {
			return err
		}
	}
	return nil
}

type exportHistory struct {
	snapshots []forecast.Snapshot
	teams     []string
	total     int
}

// loadHistory reads every snapshot in [from, to) and thins it to maxPoints
// spread across the window. Without named teams the top of the latest
// snapshot is charted.
func loadHistory(ctx context.Context, store storage.SnapshotStore, season string, from, to time.Time, maxPoints int, teams []string) (exportHistory, error) {
	snaps, err := store.ListSnapshotsBetween(ctx, season, from.Unix(), to.Unix(), 0)
	if err != nil {
		return exportHistory{}, err
	}
	if len(snaps) == 0 {
		return exportHistory{}, nil
	}
	if len(teams) == 0 {
		teams = topTeams(snaps[len(snaps)-1], defaultChartTeams)
	}
	return exportHistory{
		snapshots: downsampleSnapshots(snaps, maxPoints),
		teams:     teams,
		total:     len(snaps),
	}, nil
}

func canonicalTeams(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		team, ok := notification.CanonicalTeam(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", notification.ErrUnknownTeam, name)
		}
		out = append(out, team)
	}
	return out, nil
}

func topTeams(snap forecast.Snapshot, n int) []string {
	out := make([]string, 0, n)
	for _, team := range snap.Teams {
		if len(out) == n {
			break
		}
		out = append(out, team.TeamName)
	}
	return out
}

func downsampleSnapshots(snaps []forecast.Snapshot, max int) []forecast.Snapshot {
	if max <= 1 || len(snaps) <= max {
		return snaps
	}

	result := make([]forecast.Snapshot, 0, max)
	step := float64(len(snaps)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(snaps) {
			idx = len(snaps) - 1
		}
		result = append(result, snaps[idx])
	}
	return result
}

func writeFile(path string, render func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func writeHistoryCSV(w io.Writer, snaps []forecast.Snapshot, teams []string) error {
	writer := csv.NewWriter(w)

	header := []string{"timestamp", "context", "team", "position", "forecast_points", "played", "actual_points"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snap := range snaps {
		ts := time.Unix(snap.Timestamp, 0).UTC().Format(time.RFC3339)
		for _, name := range teams {
			team, ok := snap.Team(name)
			if !ok {
				continue
			}
			record := []string{
				ts,
				snap.Context,
				team.TeamName,
				strconv.Itoa(team.Position),
				strconv.FormatFloat(team.Points, 'f', 1, 64),
				strconv.Itoa(team.Played),
				strconv.Itoa(team.ActualPoints),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeHistoryPNG(w io.Writer, snaps []forecast.Snapshot, teams []string) error {
	if len(snaps) < 2 {
		return errors.New("at least two snapshots are needed to draw a chart")
	}

	series := make([]chart.Series, 0, len(teams))
	for _, name := range teams {
		x := make([]time.Time, 0, len(snaps))
		y := make([]float64, 0, len(snaps))
		for _, snap := range snaps {
			team, ok := snap.Team(name)
			if !ok {
				continue
			}
			x = append(x, time.Unix(snap.Timestamp, 0).UTC())
			y = append(y, float64(team.Position))
		}
		if len(x) == 0 {
			continue
		}
		series = append(series, chart.TimeSeries{Name: name, XValues: x, YValues: y})
	}
	if len(series) == 0 {
		return errors.New("none of the requested teams appear in the history")
	}

	leagueSize := float64(len(snaps[len(snaps)-1].Teams))
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Forecast position",
			Range: &chart.ContinuousRange{
				Min:        1,
				Max:        leagueSize,
				Descending: true,
			},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
