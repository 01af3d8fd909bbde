package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/notification"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
)

const (
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore persists forecast snapshots and their per-season latest alias.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap forecast.Snapshot, ttl time.Duration) error
	LatestSnapshot(ctx context.Context, season string) (forecast.Snapshot, error)
	SnapshotBefore(ctx context.Context, season string, ts int64) (forecast.Snapshot, error)
	ListSnapshotsBetween(ctx context.Context, season string, from, to int64, limit int) ([]forecast.Snapshot, error)
	DeleteExpiredSnapshots(ctx context.Context, now int64) (int64, error)
}

// PreferenceStore holds user notification preferences.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (notification.Preferences, error)
	UpsertPreferences(ctx context.Context, prefs notification.Preferences) (notification.Preferences, error)
	// ListEnabledPreferences pages through enabled rows ordered by user id,
	// starting after afterUserID.
	ListEnabledPreferences(ctx context.Context, afterUserID string, limit int) ([]notification.Preferences, error)
}

// NotificationRecordStore keeps the audit trail the rate limiter reads.
type NotificationRecordStore interface {
	InsertNotificationRecord(ctx context.Context, record notification.Record) error
	ListNotificationRecordsSince(ctx context.Context, userID string, since int64) ([]notification.Record, error)
	DeleteExpiredNotificationRecords(ctx context.Context, now int64) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to snapshots, preferences and notification records.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock also ends with the connection
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

var (
	_ SnapshotStore           = (*Store)(nil)
	_ PreferenceStore         = (*Store)(nil)
	_ NotificationRecordStore = (*Store)(nil)
	_ AdvisoryLocker          = (*Store)(nil)
)
