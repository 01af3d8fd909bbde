package app

import (
	"context"
	"errors"
	"time"

	"github.com/TheLoudSteve/epl-forecast/internal/service"
)

// Cleanup removes expired snapshots and notification records.
func (a *App) Cleanup(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; nothing to clean up")
	}
	defer closeStore()

	report, err := service.Cleanup(ctx, store, store, time.Now())
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("snapshots", report.Snapshots).Int64("records", report.Records).Msg("expired rows deleted")
	return a.printJSON(report)
}

// Migrate applies the database schema.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot migrate")
	}
	defer closeStore()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("schema applied")
	return nil
}
