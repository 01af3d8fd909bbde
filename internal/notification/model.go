// Package notification defines user subscriptions and the content pushed to
// them when a tracked team's forecasted position moves.
package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TheLoudSteve/epl-forecast/internal/forecast"
)

var (
	// ErrUnknownTeam is returned for team names outside the league roster.
	ErrUnknownTeam = errors.New("notification: unknown team")
	// ErrInvalidTiming is returned for unrecognised timing values.
	ErrInvalidTiming = errors.New("notification: invalid timing")
	// ErrInvalidSensitivity is returned for unrecognised sensitivity values.
	ErrInvalidSensitivity = errors.New("notification: invalid sensitivity")
)

// Timing controls when a notification is delivered.
type Timing string

const (
	TimingImmediate Timing = "immediate"
	TimingEndOfDay  Timing = "end_of_day"
)

// ParseTiming validates a timing value.
func ParseTiming(v string) (Timing, error) {
	switch t := Timing(strings.ToLower(strings.TrimSpace(v))); t {
	case TimingImmediate, TimingEndOfDay:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTiming, v)
}

// Sensitivity controls which position changes are notified.
type Sensitivity string

const (
	SensitivityAnyChange       Sensitivity = "any_change"
	SensitivitySignificantOnly Sensitivity = "significant_only"
)

// ParseSensitivity validates a sensitivity value.
func ParseSensitivity(v string) (Sensitivity, error) {
	switch s := Sensitivity(strings.ToLower(strings.TrimSpace(v))); s {
	case SensitivityAnyChange, SensitivitySignificantOnly:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSensitivity, v)
}

// Preferences is one user's subscription.
type Preferences struct {
	UserID       string      `json:"user_id"`
	TeamName     string      `json:"team_name"`
	Enabled      bool        `json:"enabled"`
	Timing       Timing      `json:"timing"`
	Sensitivity  Sensitivity `json:"sensitivity"`
	PushToken    string      `json:"push_token,omitempty"`
	EmailAddress string      `json:"email_address,omitempty"`
	EmailEnabled bool        `json:"email_enabled"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewPreferences returns enabled, immediate, any-change preferences.
func NewPreferences(userID, teamName string) Preferences {
	return Preferences{
		UserID:      userID,
		TeamName:    teamName,
		Enabled:     true,
		Timing:      TimingImmediate,
		Sensitivity: SensitivityAnyChange,
	}
}

// Stamp sets CreatedAt when missing and always refreshes UpdatedAt.
func (p *Preferences) Stamp(now time.Time) {
	now = now.UTC().Truncate(time.Second)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

// Validate checks the roster and enum fields. Push tokens are validated by
// the delivery package at send time.
func (p Preferences) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return errors.New("notification: user id is required")
	}
	if _, ok := CanonicalTeam(p.TeamName); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTeam, p.TeamName)
	}
	if _, err := ParseTiming(string(p.Timing)); err != nil {
		return err
	}
	if _, err := ParseSensitivity(string(p.Sensitivity)); err != nil {
		return err
	}
	return nil
}

// Tracks reports whether the change concerns the user's team.
func (p Preferences) Tracks(change forecast.Change) bool {
	return strings.EqualFold(change.TeamName, p.TeamName)
}

// Notification types.
const (
	TypePositionChange = "position_change"
	TypeTest           = "test"
	TypeDailySummary   = "daily_summary"
)

// Content is a generated notification, ready for rate limiting and delivery.
type Content struct {
	Title          string           `json:"title"`
	Body           string           `json:"body"`
	TeamName       string           `json:"team_name"`
	PositionChange *forecast.Change `json:"position_change,omitempty"`
	Type           string           `json:"notification_type"`
}

// PushData is the application-defined block carried next to title and body.
type PushData struct {
	TeamName         string           `json:"team_name"`
	NotificationType string           `json:"notification_type"`
	PositionChange   *forecast.Change `json:"position_change"`
}

// Data returns the payload data block.
func (c Content) Data() PushData {
	return PushData{
		TeamName:         c.TeamName,
		NotificationType: c.Type,
		PositionChange:   c.PositionChange,
	}
}

// Record is the audit entry persisted after a successful send.
type Record struct {
	UserID      string `json:"user_id"`
	SentAt      int64  `json:"sent_at"`
	TeamName    string `json:"team_name"`
	Type        string `json:"notification_type"`
	MessageID   string `json:"message_id"`
	ContentHash string `json:"content_hash"`
	ExpiresAt   int64  `json:"expires_at"`
}

// RecordID renders the user#timestamp label used when logging a record.
func (r Record) RecordID() string {
	return fmt.Sprintf("%s#%d", r.UserID, r.SentAt)
}
