package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/TheLoudSteve/epl-forecast/internal/config"
)

// SecretGetter is the subset of the Secrets Manager client used here.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// DBCredentials is the JSON document stored in the database secret.
type DBCredentials struct {
	Host     string      `json:"host"`
	Port     json.Number `json:"port"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	DBName   string      `json:"dbname"`
}

// DSN renders a postgres URL for pgx.
func (c DBCredentials) DSN(sslMode string) string {
	port := c.Port.String()
	if port == "" {
		port = "5432"
	}
	if sslMode == "" {
		sslMode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + port,
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}

// ResolveDSN returns cfg with DSN filled in. An explicit DSN wins; otherwise
// the credentials secret is read. With neither set the config is returned
// unchanged and persistence stays disabled.
func ResolveDSN(ctx context.Context, cfg config.DatabaseConfig, client SecretGetter) (config.DatabaseConfig, error) {
	if cfg.DSN != "" || cfg.SecretARN == "" {
		return cfg, nil
	}

	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return cfg, fmt.Errorf("load aws config: %w", err)
		}
		client = secretsmanager.NewFromConfig(awsCfg)
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(cfg.SecretARN),
	})
	if err != nil {
		return cfg, fmt.Errorf("get database secret: %w", err)
	}
	if out.SecretString == nil {
		return cfg, fmt.Errorf("database secret %s has no string value", cfg.SecretARN)
	}

	var creds DBCredentials
	if err := json.Unmarshal([]byte(*out.SecretString), &creds); err != nil {
		return cfg, fmt.Errorf("decode database secret: %w", err)
	}
	if creds.Host == "" || creds.DBName == "" {
		return cfg, fmt.Errorf("database secret is missing host or dbname")
	}

	cfg.DSN = creds.DSN(cfg.SSLMode)
	return cfg, nil
}
