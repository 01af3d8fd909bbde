// Package delivery sends push notifications through a device-endpoint push
// platform, creating, reusing and repairing endpoints as needed.
package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TheLoudSteve/epl-forecast/internal/notification"
)

var (
	// ErrDisabled is returned when no push platform is configured.
	ErrDisabled = errors.New("delivery: push platform not configured")
	// ErrNoDeviceRegistered is returned when preferences carry no push token.
	ErrNoDeviceRegistered = errors.New("delivery: no device registered")
	// ErrInvalidToken is returned for malformed device tokens.
	ErrInvalidToken = errors.New("delivery: invalid push token format")
	// ErrEndpointExists is returned by platforms when an endpoint for the
	// token already exists with different attributes.
	ErrEndpointExists = errors.New("delivery: endpoint already exists")
	// ErrEndpointUnresolved is returned when no usable endpoint could be found
	// or created.
	ErrEndpointUnresolved = errors.New("delivery: could not resolve endpoint")
)

// tokenLength is the length of an APNs device token in hex characters.
const tokenLength = 64

// Endpoint is a platform registration binding a device token to an address.
type Endpoint struct {
	ARN            string
	Token          string
	CustomUserData string
	Enabled        bool
}

// Platform is the push platform contract.
type Platform interface {
	// ListEndpoints returns every endpoint of the platform application with
	// its attributes.
	ListEndpoints(ctx context.Context) ([]Endpoint, error)
	// CreateEndpoint registers a token and returns the endpoint address. It
	// returns ErrEndpointExists when the token is already registered with
	// different attributes.
	CreateEndpoint(ctx context.Context, token, customUserData string) (string, error)
	// UpdateEndpoint sets the token (when non-empty) and enables the endpoint.
	UpdateEndpoint(ctx context.Context, arn, token string) error
	// Publish sends a json-structured message and returns its message id.
	Publish(ctx context.Context, arn, message string) (string, error)
}

// ValidateToken checks a device token is exactly 64 hexadecimal characters.
func ValidateToken(token string) error {
	if len(token) != tokenLength {
		return fmt.Errorf("%w: want %d characters, got %d", ErrInvalidToken, tokenLength, len(token))
	}
	for _, r := range token {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return fmt.Errorf("%w: non-hex character %q", ErrInvalidToken, r)
		}
	}
	return nil
}

type apsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type aps struct {
	Alert apsAlert `json:"alert"`
	Badge int      `json:"badge"`
	Sound string   `json:"sound"`
}

type apnsPayload struct {
	APS        aps                   `json:"aps"`
	CustomData notification.PushData `json:"custom_data"`
}

// BuildMessage renders the platform message: an APNs payload under the APNS
// or APNS_SANDBOX key plus the body as the default fallback.
func BuildMessage(content notification.Content, sandbox bool) (string, error) {
	inner, err := json.Marshal(apnsPayload{
		APS: aps{
			Alert: apsAlert{Title: content.Title, Body: content.Body},
			Badge: 1,
			Sound: "default",
		},
		CustomData: content.Data(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal apns payload: %w", err)
	}

	key := "APNS"
	if sandbox {
		key = "APNS_SANDBOX"
	}
	outer, err := json.Marshal(map[string]string{
		key:       string(inner),
		"default": content.Body,
	})
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return string(outer), nil
}
