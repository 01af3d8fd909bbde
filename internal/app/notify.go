package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/TheLoudSteve/epl-forecast/internal/delivery"
	"github.com/TheLoudSteve/epl-forecast/internal/notification"
	"github.com/TheLoudSteve/epl-forecast/internal/storage"
)

// Stats prints a user's notification counts and eligibility.
func (a *App) Stats(ctx context.Context, userID string) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.close()
	if c.store == nil {
		return errors.New("database not configured; cannot report stats")
	}

	stats, err := c.limiter.Stats(ctx, userID)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "User\t%s\n", stats.UserID)
	fmt.Fprintf(writer, "Last hour\t%d / %d\n", stats.LastHour, stats.Limits.MaxPerHour)
	fmt.Fprintf(writer, "Last day\t%d / %d\n", stats.LastDay, stats.Limits.MaxPerDay)
	fmt.Fprintf(writer, "Last week\t%d\n", stats.LastWeek)
	fmt.Fprintf(writer, "Last sent\t%s\n", formatUnix(stats.LastSentAt))
	fmt.Fprintf(writer, "Can send\t%t\n", stats.CanSend)
	if stats.Reason != "" {
		fmt.Fprintf(writer, "Reason\t%s\n", stats.Reason)
	}
	if !stats.CanSend {
		fmt.Fprintf(writer, "Next allowed\t%s\n", formatUnix(stats.NextAllowedAt))
	}
	return writer.Flush()
}

// TestNotify sends the test notification to one user.
func (a *App) TestNotify(ctx context.Context, userID string) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	result, err := c.service.SendTest(ctx, userID)
	if err != nil {
		return err
	}
	return a.printJSON(result)
}

// Preview prints sample notifications for a user's team.
func (a *App) Preview(ctx context.Context, userID string) error {
	c, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	previews, err := c.service.Preview(ctx, userID, time.Now())
	if err != nil {
		return err
	}
	for _, p := range previews {
		fmt.Fprintf(a.Out, "[%s]\n%s\n%s\n\n", p.Type, p.Title, p.Body)
	}
	return nil
}

// GetPrefs prints a user's stored preferences.
func (a *App) GetPrefs(ctx context.Context, userID string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot read preferences")
	}
	defer closeStore()

	prefs, err := store.GetPreferences(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no preferences stored for user %s", userID)
	}
	if err != nil {
		return err
	}
	return a.printJSON(prefs)
}

// SetPrefs validates and stores a preference update, creating the row with
// defaults when the user has none.
func (a *App) SetPrefs(ctx context.Context, opts PrefsOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot store preferences")
	}
	defer closeStore()

	current, err := store.GetPreferences(ctx, opts.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if opts.Team == nil {
			return errors.New("--team is required for a new subscription")
		}
		current = notification.NewPreferences(opts.UserID, "")
	case err != nil:
		return err
	}

	updated, err := applyPrefs(current, opts)
	if err != nil {
		return err
	}
	saved, err := store.UpsertPreferences(ctx, updated)
	if err != nil {
		return err
	}
	return a.printJSON(saved)
}

func applyPrefs(p notification.Preferences, opts PrefsOptions) (notification.Preferences, error) {
	if opts.Team != nil {
		team, ok := notification.CanonicalTeam(*opts.Team)
		if !ok {
			return p, fmt.Errorf("%w: %s", notification.ErrUnknownTeam, *opts.Team)
		}
		p.TeamName = team
	}
	if opts.Enabled != nil {
		p.Enabled = *opts.Enabled
	}
	if opts.Timing != nil {
		timing, err := notification.ParseTiming(*opts.Timing)
		if err != nil {
			return p, err
		}
		p.Timing = timing
	}
	if opts.Sensitivity != nil {
		sensitivity, err := notification.ParseSensitivity(*opts.Sensitivity)
		if err != nil {
			return p, err
		}
		p.Sensitivity = sensitivity
	}
	if opts.PushToken != nil {
		token := strings.TrimSpace(*opts.PushToken)
		if token != "" {
			if err := delivery.ValidateToken(token); err != nil {
				return p, err
			}
		}
		p.PushToken = token
	}
	if opts.Email != nil {
		p.EmailAddress = strings.TrimSpace(*opts.Email)
		p.EmailEnabled = p.EmailAddress != ""
	}
	return p, p.Validate()
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return "never"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
