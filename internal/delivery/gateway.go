package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheLoudSteve/epl-forecast/internal/notification"
)

// Options tune the gateway.
type Options struct {
	Sandbox bool
	// Timeout bounds every platform call.
	Timeout time.Duration
}

// Gateway delivers notifications to users' devices. A nil platform disables
// delivery.
type Gateway struct {
	platform Platform
	opts     Options
	now      func() time.Time
	logger   zerolog.Logger
}

// NewGateway constructs a Gateway.
func NewGateway(platform Platform, opts Options, logger zerolog.Logger) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Gateway{
		platform: platform,
		opts:     opts,
		now:      time.Now,
		logger:   logger.With().Str("component", "delivery").Logger(),
	}
}

// Enabled reports whether a platform is configured.
func (g *Gateway) Enabled() bool {
	return g != nil && g.platform != nil
}

// Send resolves the user's endpoint and publishes the content, returning the
// platform message id.
func (g *Gateway) Send(ctx context.Context, prefs notification.Preferences, content notification.Content) (string, error) {
	if !g.Enabled() {
		return "", ErrDisabled
	}
	if prefs.PushToken == "" {
		return "", fmt.Errorf("%w: user %s", ErrNoDeviceRegistered, prefs.UserID)
	}
	if err := ValidateToken(prefs.PushToken); err != nil {
		return "", fmt.Errorf("user %s: %w", prefs.UserID, err)
	}

	arn, err := g.resolveEndpoint(ctx, prefs.PushToken, prefs.UserID)
	if err != nil {
		return "", err
	}

	message, err := BuildMessage(content, g.opts.Sandbox)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	messageID, err := g.platform.Publish(callCtx, arn, message)
	if err != nil {
		return "", fmt.Errorf("publish to user %s: %w", prefs.UserID, err)
	}

	g.logger.Info().
		Str("user_id", prefs.UserID).
		Str("team", content.TeamName).
		Str("type", content.Type).
		Str("message_id", messageID).
		Msg("push notification sent")
	return messageID, nil
}

// Message pairs a recipient with its content.
type Message struct {
	Preferences notification.Preferences
	Content     notification.Content
}

// Result is the outcome of one send in a batch.
type Result struct {
	UserID    string
	TeamName  string
	Type      string
	MessageID string
	Err       error
}

// BulkResult aggregates a batch.
type BulkResult struct {
	Sent      int
	Failed    int
	Successes []Result
	Failures  []Result
}

// SendBulk sends each message independently; one failure never aborts the
// batch.
func (g *Gateway) SendBulk(ctx context.Context, messages []Message) BulkResult {
	var out BulkResult
	for _, m := range messages {
		res := Result{UserID: m.Preferences.UserID, TeamName: m.Content.TeamName, Type: m.Content.Type}
		res.MessageID, res.Err = g.Send(ctx, m.Preferences, m.Content)
		if res.Err != nil {
			out.Failed++
			out.Failures = append(out.Failures, res)
			continue
		}
		out.Sent++
		out.Successes = append(out.Successes, res)
	}

	g.logger.Info().Int("sent", out.Sent).Int("failed", out.Failed).Msg("bulk send finished")
	return out
}

type endpointUserData struct {
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

func (g *Gateway) resolveEndpoint(ctx context.Context, token, userID string) (string, error) {
	if ep, ok, err := g.findEndpoint(ctx, token); err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("endpoint search failed, creating")
	} else if ok {
		return g.ensureEnabled(ctx, ep, userID), nil
	}

	userData, err := json.Marshal(endpointUserData{
		UserID:    userID,
		CreatedAt: g.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("marshal endpoint user data: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	arn, err := g.platform.CreateEndpoint(callCtx, token, string(userData))
	cancel()
	if err == nil {
		g.logger.Info().Str("user_id", userID).Str("endpoint", arn).Msg("endpoint created")
		return arn, nil
	}
	if !errors.Is(err, ErrEndpointExists) {
		return "", fmt.Errorf("create endpoint for user %s: %w", userID, err)
	}

	g.logger.Info().Str("user_id", userID).Msg("endpoint already exists, searching")
	if ep, ok, findErr := g.findEndpoint(ctx, token); findErr == nil && ok {
		return g.ensureEnabled(ctx, ep, userID), nil
	}
	if arn, ok := g.repairEndpoint(ctx, token, userID); ok {
		return arn, nil
	}
	return "", fmt.Errorf("%w: user %s", ErrEndpointUnresolved, userID)
}

// findEndpoint searches for an endpoint registered with exactly this token.
func (g *Gateway) findEndpoint(ctx context.Context, token string) (Endpoint, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	endpoints, err := g.platform.ListEndpoints(callCtx)
	if err != nil {
		return Endpoint{}, false, fmt.Errorf("list endpoints: %w", err)
	}
	for _, ep := range endpoints {
		if ep.Token == token {
			return ep, true, nil
		}
	}
	return Endpoint{}, false, nil
}

// repairEndpoint broadens the search to endpoints tagged with the user id and
// points a match at the new token.
func (g *Gateway) repairEndpoint(ctx context.Context, token, userID string) (string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	endpoints, err := g.platform.ListEndpoints(callCtx)
	cancel()
	if err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Msg("endpoint repair search failed")
		return "", false
	}

	for _, ep := range endpoints {
		if ep.Token == token {
			return g.ensureEnabled(ctx, ep, userID), true
		}
		var data endpointUserData
		if json.Unmarshal([]byte(ep.CustomUserData), &data) != nil || data.UserID != userID {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		err := g.platform.UpdateEndpoint(callCtx, ep.ARN, token)
		cancel()
		if err != nil {
			g.logger.Warn().Err(err).Str("user_id", userID).Str("endpoint", ep.ARN).Msg("endpoint token update failed")
			continue
		}
		g.logger.Info().Str("user_id", userID).Str("endpoint", ep.ARN).Msg("endpoint token repaired")
		return ep.ARN, true
	}
	return "", false
}

func (g *Gateway) ensureEnabled(ctx context.Context, ep Endpoint, userID string) string {
	if ep.Enabled {
		return ep.ARN
	}
	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	if err := g.platform.UpdateEndpoint(callCtx, ep.ARN, ""); err != nil {
		g.logger.Warn().Err(err).Str("user_id", userID).Str("endpoint", ep.ARN).Msg("failed to re-enable endpoint")
	}
	return ep.ARN
}
