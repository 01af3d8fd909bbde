package storage

import (
	"context"
	"fmt"

	"github.com/TheLoudSteve/epl-forecast/internal/notification"
)

const (
	insertRecordSQL = `INSERT INTO notification_records (
        user_id,
        sent_at,
        team_name,
        notification_type,
        message_id,
        content_hash,
        expires_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    );`

	listRecordsSinceSQL = `SELECT
        user_id,
        sent_at,
        team_name,
        notification_type,
        message_id,
        content_hash,
        expires_at
    FROM notification_records
    WHERE user_id = $1
      AND sent_at >= $2
    ORDER BY sent_at, record_id;`

	deleteExpiredRecordsSQL = `DELETE FROM notification_records WHERE expires_at < $1;`
)

// InsertNotificationRecord stores a send. Every call adds a row, so two sends
// in the same second both count against the user's windows.
func (s *Store) InsertNotificationRecord(ctx context.Context, record notification.Record) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	row := EncodeRecord(record)
	if _, err := pool.Exec(ctx, insertRecordSQL,
		row.UserID,
		row.SentAt,
		row.TeamName,
		row.Type,
		row.MessageID,
		row.ContentHash,
		row.ExpiresAt,
	); err != nil {
		return fmt.Errorf("insert notification record: %w", err)
	}
	return nil
}

// ListNotificationRecordsSince lists a user's records sent at or after since.
func (s *Store) ListNotificationRecordsSince(ctx context.Context, userID string, since int64) ([]notification.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listRecordsSinceSQL, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list notification records: %w", err)
	}
	defer rows.Close()

	records := make([]notification.Record, 0)
	for rows.Next() {
		var r RecordRow
		if err := rows.Scan(
			&r.UserID,
			&r.SentAt,
			&r.TeamName,
			&r.Type,
			&r.MessageID,
			&r.ContentHash,
			&r.ExpiresAt,
		); err != nil {
			return nil, err
		}
		records = append(records, DecodeRecord(r))
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteExpiredNotificationRecords removes records past their expiry.
func (s *Store) DeleteExpiredNotificationRecords(ctx context.Context, now int64) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, err := pool.Exec(ctx, deleteExpiredRecordsSQL, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired notification records: %w", err)
	}
	return tag.RowsAffected(), nil
}
