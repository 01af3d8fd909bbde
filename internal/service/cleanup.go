package service

import (
	"context"
	"fmt"
	"time"

	"github.com/TheLoudSteve/epl-forecast/internal/storage"
)

// CleanupReport counts rows removed past their expiry.
type CleanupReport struct {
	Snapshots int64 `json:"snapshots"`
	Records   int64 `json:"records"`
}

// Cleanup deletes expired snapshots and notification records. Preferences
// are never expired.
func Cleanup(ctx context.Context, snapshots storage.SnapshotStore, records storage.NotificationRecordStore, now time.Time) (CleanupReport, error) {
	var report CleanupReport
	ts := now.UTC().Unix()
	if snapshots != nil {
		n, err := snapshots.DeleteExpiredSnapshots(ctx, ts)
		if err != nil {
			return report, fmt.Errorf("delete expired snapshots: %w", err)
		}
		report.Snapshots = n
	}
	if records != nil {
		n, err := records.DeleteExpiredNotificationRecords(ctx, ts)
		if err != nil {
			return report, fmt.Errorf("delete expired notification records: %w", err)
		}
		report.Records = n
	}
	return report, nil
}
