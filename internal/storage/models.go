package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
	"github.com/TheLoudSteve/epl-forecast/internal/notification"
)

const (
	snapshotIDPrefix = "snapshot_"
	latestIDPrefix   = "latest-"
)

// SnapshotID is the permanent history key of a snapshot, unique per season
// and second.
func SnapshotID(season string, ts int64) string {
	return fmt.Sprintf("%s%s_%d", snapshotIDPrefix, season, ts)
}

// LatestID is the fixed alias overwritten on every save for a season.
func LatestID(season string) string {
	return latestIDPrefix + season
}

// SnapshotRow is the persisted shape of a forecast snapshot.
type SnapshotRow struct {
	SnapshotID string
	Timestamp  int64
	Season     string
	Context    string
	Teams      []byte
	ExpiresAt  *int64
}

// EncodeSnapshot converts a snapshot into a row under the given id. A
// non-positive ttl leaves the row without expiry.
func EncodeSnapshot(snap forecast.Snapshot, id string, ttl time.Duration) (SnapshotRow, error) {
	teams := snap.Teams
	if teams == nil {
		teams = []forecast.Position{}
	}
	payload, err := json.Marshal(teams)
	if err != nil {
		return SnapshotRow{}, fmt.Errorf("encode snapshot teams: %w", err)
	}

	row := SnapshotRow{
		SnapshotID: id,
		Timestamp:  snap.Timestamp,
		Season:     snap.Season,
		Context:    snap.Context,
		Teams:      payload,
	}
	if ttl > 0 {
		expires := snap.Timestamp + int64(ttl/time.Second)
		row.ExpiresAt = &expires
	}
	return row, nil
}

// DecodeSnapshot converts a stored row back into a snapshot.
func DecodeSnapshot(row SnapshotRow) (forecast.Snapshot, error) {
	var teams []forecast.Position
	if err := json.Unmarshal(row.Teams, &teams); err != nil {
		return forecast.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", row.SnapshotID, err)
	}
	return forecast.Snapshot{
		Timestamp: row.Timestamp,
		Season:    row.Season,
		Context:   row.Context,
		Teams:     teams,
	}, nil
}

// PreferencesRow is the persisted shape of user preferences.
type PreferencesRow struct {
	UserID       string
	TeamName     string
	Enabled      bool
	Timing       string
	Sensitivity  string
	PushToken    *string
	EmailAddress *string
	EmailEnabled bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EncodePreferences converts preferences into a row.
func EncodePreferences(p notification.Preferences) PreferencesRow {
	return PreferencesRow{
		UserID:       p.UserID,
		TeamName:     p.TeamName,
		Enabled:      p.Enabled,
		Timing:       string(p.Timing),
		Sensitivity:  string(p.Sensitivity),
		PushToken:    optional(p.PushToken),
		EmailAddress: optional(p.EmailAddress),
		EmailEnabled: p.EmailEnabled,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// DecodePreferences converts a row into preferences, rejecting enum values
// the application no longer understands.
func DecodePreferences(row PreferencesRow) (notification.Preferences, error) {
	timing, err := notification.ParseTiming(row.Timing)
	if err != nil {
		return notification.Preferences{}, fmt.Errorf("decode preferences %s: %w", row.UserID, err)
	}
	sensitivity, err := notification.ParseSensitivity(row.Sensitivity)
	if err != nil {
		return notification.Preferences{}, fmt.Errorf("decode preferences %s: %w", row.UserID, err)
	}
	return notification.Preferences{
		UserID:       row.UserID,
		TeamName:     row.TeamName,
		Enabled:      row.Enabled,
		Timing:       timing,
		Sensitivity:  sensitivity,
		PushToken:    deref(row.PushToken),
		EmailAddress: deref(row.EmailAddress),
		EmailEnabled: row.EmailEnabled,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}, nil
}

// RecordRow is the persisted shape of a notification record.
type RecordRow struct {
	UserID      string
	SentAt      int64
	TeamName    string
	Type        string
	MessageID   *string
	ContentHash *string
	ExpiresAt   int64
}

// EncodeRecord converts a record into a row.
func EncodeRecord(r notification.Record) RecordRow {
	return RecordRow{
		UserID:      r.UserID,
		SentAt:      r.SentAt,
		TeamName:    r.TeamName,
		Type:        r.Type,
		MessageID:   optional(r.MessageID),
		ContentHash: optional(r.ContentHash),
		ExpiresAt:   r.ExpiresAt,
	}
}

// DecodeRecord converts a row into a record.
func DecodeRecord(row RecordRow) notification.Record {
	return notification.Record{
		UserID:      row.UserID,
		SentAt:      row.SentAt,
		TeamName:    row.TeamName,
		Type:        row.Type,
		MessageID:   deref(row.MessageID),
		ContentHash: deref(row.ContentHash),
		ExpiresAt:   row.ExpiresAt,
	}
}

func optional(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
