package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"

	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
)

// SecretGetter is the Secrets Manager call used when the cache is unavailable
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type stringCache interface {
	GetSecretString(secretID string) (string, error)
}

// Store reads JSON secret bundles such as {"ERP_API_TOKEN": "...", "SLACK_BOT_TOKEN": "..."}
type Store struct {
	client SecretGetter
	cache  stringCache
	logger *slog.Logger
}

// NewStore builds a caching store over the Secrets Manager client
func NewStore(client *secretsmanager.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := secretcache.New(func(c *secretcache.Cache) {
		c.Client = client
	})
	if err != nil {
		logger.Warn("Secret cache unavailable, reading secrets directly", "error", err)
		return &Store{client: client, logger: logger}
	}
	return &Store{client: client, cache: cache, logger: logger}
}

// NewStoreFromConfig creates the Secrets Manager client from an AWS config
func NewStoreFromConfig(cfg aws.Config, logger *slog.Logger) *Store {
	return NewStore(secretsmanager.NewFromConfig(cfg), logger)
}

// Bundle returns the key/value pairs stored in secretID
func (s *Store) Bundle(ctx context.Context, secretID string) (map[string]string, error) {
	raw, err := s.secretString(ctx, secretID)
	if err != nil {
		return nil, appErrors.NewConfigurationError(fmt.Sprintf("secret %s could not be read: %v", secretID, err))
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, appErrors.NewConfigurationError(fmt.Sprintf("secret %s is not a JSON object of strings", secretID))
	}
	return values, nil
}

func (s *Store) secretString(ctx context.Context, secretID string) (string, error) {
	if s.cache != nil {
		value, err := s.cache.GetSecretString(secretID)
		if err == nil {
			return value, nil
		}
		s.logger.Warn("Cached secret read failed, falling back to GetSecretValue", "secret_id", secretID, "error", err)
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", err
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret has no string value")
	}
	return *out.SecretString, nil
}
