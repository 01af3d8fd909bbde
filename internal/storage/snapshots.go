package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
)

// snapshotBeforeScanLimit bounds the history scan of SnapshotBefore.
const snapshotBeforeScanLimit = 10

const (
	upsertSnapshotSQL = `INSERT INTO forecast_snapshots (
        snapshot_id,
        ts,
        season,
        context,
        teams,
        expires_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    ON CONFLICT (snapshot_id) DO UPDATE
    SET
        ts         = EXCLUDED.ts,
        season     = EXCLUDED.season,
        context    = EXCLUDED.context,
        teams      = EXCLUDED.teams,
        expires_at = EXCLUDED.expires_at;`

	getSnapshotSQL = `SELECT
        snapshot_id,
        ts,
        season,
        context,
        teams,
        expires_at
    FROM forecast_snapshots
    WHERE snapshot_id = $1;`

	listSnapshotsBeforeSQL = `SELECT
        snapshot_id,
        ts,
        season,
        context,
        teams,
        expires_at
    FROM forecast_snapshots
    WHERE season = $1
      AND ts < $2
      AND snapshot_id NOT LIKE 'latest-%'
    ORDER BY ts DESC
    LIMIT $3;`

	listSnapshotsBetweenSQL = `SELECT
        snapshot_id,
        ts,
        season,
        context,
        teams,
        expires_at
    FROM forecast_snapshots
    WHERE season = $1
      AND ts >= $2
      AND ts < $3
      AND snapshot_id NOT LIKE 'latest-%'
    ORDER BY ts
    LIMIT $4;`

	deleteExpiredSnapshotsSQL = `DELETE FROM forecast_snapshots
    WHERE expires_at IS NOT NULL
      AND expires_at < $1;`
)

// SaveSnapshot writes the timestamped history row and overwrites the season's
// latest alias in one transaction so both carry the same timestamp.
func (s *Store) SaveSnapshot(ctx context.Context, snap forecast.Snapshot, ttl time.Duration) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	history, err := EncodeSnapshot(snap, SnapshotID(snap.Season, snap.Timestamp), ttl)
	if err != nil {
		return err
	}
	latest, err := EncodeSnapshot(snap, LatestID(snap.Season), 0)
	if err != nil {
		return err
	}

	txErr := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, row := range []SnapshotRow{history, latest} {
			if _, err := tx.Exec(ctx, upsertSnapshotSQL,
				row.SnapshotID,
				row.Timestamp,
				row.Season,
				row.Context,
				row.Teams,
				row.ExpiresAt,
			); err != nil {
				return fmt.Errorf("upsert snapshot %s: %w", row.SnapshotID, err)
			}
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("save snapshot: %w", txErr)
	}
	return nil
}

// LatestSnapshot is a point lookup of the season's latest alias.
func (s *Store) LatestSnapshot(ctx context.Context, season string) (forecast.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return forecast.Snapshot{}, err
	}

	row, err := scanSnapshot(pool.QueryRow(ctx, getSnapshotSQL, LatestID(season)))
	if errors.Is(err, pgx.ErrNoRows) {
		return forecast.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return forecast.Snapshot{}, fmt.Errorf("get latest snapshot: %w", err)
	}
	return DecodeSnapshot(row)
}

// SnapshotBefore returns the most recent history snapshot strictly older
// than ts.
func (s *Store) SnapshotBefore(ctx context.Context, season string, ts int64) (forecast.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return forecast.Snapshot{}, err
	}

	rows, err := pool.Query(ctx, listSnapshotsBeforeSQL, season, ts, snapshotBeforeScanLimit)
	if err != nil {
		return forecast.Snapshot{}, fmt.Errorf("list snapshots before: %w", err)
	}
	snaps, err := collectSnapshots(rows)
	if err != nil {
		return forecast.Snapshot{}, err
	}

	best, ok := mostRecentBefore(snaps, ts)
	if !ok {
		return forecast.Snapshot{}, ErrNotFound
	}
	return best, nil
}

// ListSnapshotsBetween lists history snapshots in [from, to) ordered by time.
// A non-positive limit returns every row in the range.
func (s *Store) ListSnapshotsBetween(ctx context.Context, season string, from, to int64, limit int) ([]forecast.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	// LIMIT NULL is no limit.
	var rowLimit *int
	if limit > 0 {
		rowLimit = &limit
	}
	rows, err := pool.Query(ctx, listSnapshotsBetweenSQL, season, from, to, rowLimit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots between: %w", err)
	}
	return collectSnapshots(rows)
}

// DeleteExpiredSnapshots removes history rows past their expiry.
func (s *Store) DeleteExpiredSnapshots(ctx context.Context, now int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, err := pool.Exec(ctx, deleteExpiredSnapshotsSQL, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectSnapshots(rows pgx.Rows) ([]forecast.Snapshot, error) {
	defer rows.Close()

	snaps := make([]forecast.Snapshot, 0)
	for rows.Next() {
		row, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snap, err := DecodeSnapshot(row)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

func scanSnapshot(row pgx.Row) (SnapshotRow, error) {
	var r SnapshotRow
	if err := row.Scan(
		&r.SnapshotID,
		&r.Timestamp,
		&r.Season,
		&r.Context,
		&r.Teams,
		&r.ExpiresAt,
	); err != nil {
		return SnapshotRow{}, err
	}
	return r, nil
}

// mostRecentBefore re-sorts locally rather than trusting the scan order.
func mostRecentBefore(snaps []forecast.Snapshot, ts int64) (forecast.Snapshot, bool) {
	candidates := slices.DeleteFunc(slices.Clone(snaps), func(s forecast.Snapshot) bool {
		return s.Timestamp >= ts
	})
	if len(candidates) == 0 {
		return forecast.Snapshot{}, false
	}
	slices.SortFunc(candidates, func(a, b forecast.Snapshot) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
	return candidates[0], true
}
