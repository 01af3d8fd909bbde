package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/TheLoudSteve/epl-forecast/internal/notification"
)

const (
	getPreferencesSQL = `SELECT
        user_id,
        team_name,
        enabled,
        timing,
        sensitivity,
        push_token,
        email_address,
        email_enabled,
        created_at,
        updated_at
    FROM user_preferences
    WHERE user_id = $1;`

	upsertPreferencesSQL = `INSERT INTO user_preferences (
        user_id,
        team_name,
        enabled,
        timing,
        sensitivity,
        push_token,
        email_address,
        email_enabled,
        created_at,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (user_id) DO UPDATE
    SET
        team_name     = EXCLUDED.team_name,
        enabled       = EXCLUDED.enabled,
        timing        = EXCLUDED.timing,
        sensitivity   = EXCLUDED.sensitivity,
        push_token    = EXCLUDED.push_token,
        email_address = EXCLUDED.email_address,
        email_enabled = EXCLUDED.email_enabled,
        updated_at    = EXCLUDED.updated_at
    RETURNING user_id, team_name, enabled, timing, sensitivity, push_token,
        email_address, email_enabled, created_at, updated_at;`

	listEnabledPreferencesSQL = `SELECT
        user_id,
        team_name,
        enabled,
        timing,
        sensitivity,
        push_token,
        email_address,
        email_enabled,
        created_at,
        updated_at
    FROM user_preferences
    WHERE enabled
      AND user_id > $1
    ORDER BY user_id
    LIMIT $2;`
)

// GetPreferences loads one user's preferences.
func (s *Store) GetPreferences(ctx context.Context, userID string) (notification.Preferences, error) {
	pool, err := s.getPool()
	if err != nil {
		return notification.Preferences{}, err
	}

	row, err := scanPreferences(pool.QueryRow(ctx, getPreferencesSQL, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return notification.Preferences{}, ErrNotFound
	}
	if err != nil {
		return notification.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return DecodePreferences(row)
}

// UpsertPreferences stamps and stores preferences. created_at of an existing
// row is preserved.
func (s *Store) UpsertPreferences(ctx context.Context, prefs notification.Preferences) (notification.Preferences, error) {
	pool, err := s.getPool()
	if err != nil {
		return notification.Preferences{}, err
	}

	prefs.Stamp(s.now())
	in := EncodePreferences(prefs)

	row, err := scanPreferences(pool.QueryRow(ctx, upsertPreferencesSQL,
		in.UserID,
		in.TeamName,
		in.Enabled,
		in.Timing,
		in.Sensitivity,
		in.PushToken,
		in.EmailAddress,
		in.EmailEnabled,
		in.CreatedAt,
		in.UpdatedAt,
	))
	if err != nil {
		return notification.Preferences{}, fmt.Errorf("upsert preferences: %w", err)
	}
	return DecodePreferences(row)
}

// ListEnabledPreferences returns one keyset page of enabled preferences.
func (s *Store) ListEnabledPreferences(ctx context.Context, afterUserID string, limit int) ([]notification.Preferences, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listEnabledPreferencesSQL, afterUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list enabled preferences: %w", err)
	}
	defer rows.Close()

	out := make([]notification.Preferences, 0, limit)
	for rows.Next() {
		row, err := scanPreferences(rows)
		if err != nil {
			return nil, err
		}
		prefs, err := DecodePreferences(row)
		if err != nil {
			return nil, err
		}
		out = append(out, prefs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func scanPreferences(row pgx.Row) (PreferencesRow, error) {
	var r PreferencesRow
	if err := row.Scan(
		&r.UserID,
		&r.TeamName,
		&r.Enabled,
		&r.Timing,
		&r.Sensitivity,
		&r.PushToken,
		&r.EmailAddress,
		&r.EmailEnabled,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return PreferencesRow{}, err
	}
	return r, nil
}
