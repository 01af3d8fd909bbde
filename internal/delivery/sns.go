package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// SNSAPI is the subset of the SNS client used by SNSPlatform.
type SNSAPI interface {
	CreatePlatformEndpoint(ctx context.Context, params *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	SetEndpointAttributes(ctx context.Context, params *sns.SetEndpointAttributesInput, optFns ...func(*sns.Options)) (*sns.SetEndpointAttributesOutput, error)
	ListEndpointsByPlatformApplication(ctx context.Context, params *sns.ListEndpointsByPlatformApplicationInput, optFns ...func(*sns.Options)) (*sns.ListEndpointsByPlatformApplicationOutput, error)
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPlatform talks to an SNS platform application.
type SNSPlatform struct {
	client         SNSAPI
	applicationARN string
	logger         zerolog.Logger
}

// NewSNSPlatform loads the default AWS config for region and wraps an SNS
// client.
func NewSNSPlatform(ctx context.Context, region, applicationARN string, logger zerolog.Logger) (*SNSPlatform, error) {
	if applicationARN == "" {
		return nil, fmt.Errorf("delivery.platform_application_arn is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSNSPlatformWithClient(sns.NewFromConfig(cfg), applicationARN, logger), nil
}

// NewSNSPlatformWithClient wraps an existing client.
func NewSNSPlatformWithClient(client SNSAPI, applicationARN string, logger zerolog.Logger) *SNSPlatform {
	return &SNSPlatform{
		client:         client,
		applicationARN: applicationARN,
		logger:         logger.With().Str("component", "delivery_sns").Logger(),
	}
}

// ListEndpoints pages through the platform application's endpoints.
func (p *SNSPlatform) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	paginator := sns.NewListEndpointsByPlatformApplicationPaginator(p.client, &sns.ListEndpointsByPlatformApplicationInput{
		PlatformApplicationArn: aws.String(p.applicationARN),
	})

	endpoints := make([]Endpoint, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, ep := range page.Endpoints {
			endpoints = append(endpoints, Endpoint{
				ARN:            aws.ToString(ep.EndpointArn),
				Token:          ep.Attributes["Token"],
				CustomUserData: ep.Attributes["CustomUserData"],
				Enabled:        strings.EqualFold(ep.Attributes["Enabled"], "true"),
			})
		}
	}
	return endpoints, nil
}

// CreateEndpoint registers a device token.
func (p *SNSPlatform) CreateEndpoint(ctx context.Context, token, customUserData string) (string, error) {
	out, err := p.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(p.applicationARN),
		Token:                  aws.String(token),
		CustomUserData:         aws.String(customUserData),
	})
	if err != nil {
		if endpointExists(err) {
			return "", fmt.Errorf("%w: %v", ErrEndpointExists, err)
		}
		return "", err
	}
	return aws.ToString(out.EndpointArn), nil
}

// UpdateEndpoint re-enables an endpoint and optionally replaces its token.
func (p *SNSPlatform) UpdateEndpoint(ctx context.Context, arn, token string) error {
	attrs := map[string]string{"Enabled": "true"}
	if token != "" {
		attrs["Token"] = token
	}
	_, err := p.client.SetEndpointAttributes(ctx, &sns.SetEndpointAttributesInput{
		EndpointArn: aws.String(arn),
		Attributes:  attrs,
	})
	return err
}

// Publish sends a json-structured message to one endpoint.
func (p *SNSPlatform) Publish(ctx context.Context, arn, message string) (string, error) {
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(arn),
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func endpointExists(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidParameter", "Conflict":
			return true
		}
		if strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "already exists") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

var _ Platform = (*SNSPlatform)(nil)
