package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/TheLoudSteve/epl-forecast/internal/notification"
)

// DigestQueue collects end-of-day notifications for batched delivery.
type DigestQueue interface {
	Enqueue(ctx context.Context, prefs notification.Preferences, content notification.Content) error
}

// LogDigestQueue records the intent to deliver later. Batched delivery is not
// implemented.
type LogDigestQueue struct {
	logger zerolog.Logger
}

// NewLogDigestQueue constructs a logging digest queue.
func NewLogDigestQueue(logger zerolog.Logger) *LogDigestQueue {
	return &LogDigestQueue{logger: logger.With().Str("component", "digest").Logger()}
}

func (q *LogDigestQueue) Enqueue(_ context.Context, prefs notification.Preferences, content notification.Content) error {
	q.logger.Info().
		Str("user_id", prefs.UserID).
		Str("team", content.TeamName).
		Str("title", content.Title).
		Msg("queued for end-of-day summary")
	return nil
}

var _ DigestQueue = (*LogDigestQueue)(nil)
