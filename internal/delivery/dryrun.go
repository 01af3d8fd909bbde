package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DryRunPlatform logs instead of delivering. Endpoints live in memory and
// message ids have the form mock-<uuid>.
type DryRunPlatform struct {
	mu        sync.Mutex
	endpoints map[string]Endpoint
	logger    zerolog.Logger
}

// NewDryRunPlatform constructs an empty dry-run platform.
func NewDryRunPlatform(logger zerolog.Logger) *DryRunPlatform {
	return &DryRunPlatform{
		endpoints: make(map[string]Endpoint),
		logger:    logger.With().Str("component", "delivery_dryrun").Logger(),
	}
}

func (p *DryRunPlatform) ListEndpoints(context.Context) ([]Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Endpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		out = append(out, ep)
	}
	return out, nil
}

func (p *DryRunPlatform) CreateEndpoint(_ context.Context, token, customUserData string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	arn := fmt.Sprintf("arn:dryrun:endpoint/%s", uuid.NewString())
	p.endpoints[arn] = Endpoint{ARN: arn, Token: token, CustomUserData: customUserData, Enabled: true}
	p.logger.Info().Str("endpoint", arn).Msg("dry-run endpoint created")
	return arn, nil
}

func (p *DryRunPlatform) UpdateEndpoint(_ context.Context, arn, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep, ok := p.endpoints[arn]
	if !ok {
		return fmt.Errorf("dry-run endpoint %s not found", arn)
	}
	if token != "" {
		ep.Token = token
	}
	ep.Enabled = true
	p.endpoints[arn] = ep
	return nil
}

func (p *DryRunPlatform) Publish(_ context.Context, arn, message string) (string, error) {
	id := "mock-" + uuid.NewString()
	p.logger.Info().Str("endpoint", arn).Str("message_id", id).RawJSON("message", []byte(message)).Msg("dry-run publish")
	return id, nil
}

var _ Platform = (*DryRunPlatform)(nil)
