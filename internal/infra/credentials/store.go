// Package credentials keeps provider API keys in the database so they can be
// rotated without redeploying the api and worker.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"novelforge/internal/infra"
	"novelforge/internal/sqlinline"
)

const (
	ProviderOpenAI = "openai"
)

var ErrUnknownProvider = errors.New("credentials: unknown provider")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) OpenAIAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderOpenAI)
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	provider, err := normalizeProvider(provider)
	if err != nil {
		return "", err
	}
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: read %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// SetOpenAIAPIKey stores key, recording model alongside it when given.
func (s *Store) SetOpenAIAPIKey(ctx context.Context, key, model string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("openai api key is required")
	}
	if !strings.HasPrefix(key, "sk-") {
		return errors.New("openai api key must start with sk-")
	}
	props := map[string]any{}
	if model = strings.TrimSpace(model); model != "" {
		props["model"] = model
	}
	return s.upsert(ctx, ProviderOpenAI, key, props)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	if _, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw); err != nil {
		return fmt.Errorf("credentials: store %s token: %w", provider, err)
	}
	return nil
}

func normalizeProvider(provider string) (string, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	switch provider {
	case ProviderOpenAI:
		return provider, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}
