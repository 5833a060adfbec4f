// Package secrets loads provider credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// API is the subset of the Secrets Manager client used here.
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Client reads and caches secret strings.
type Client struct {
	api   API
	cache map[string]string
	mu    sync.RWMutex
}

// New creates a client from the default AWS credential chain.
func New(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(secretsmanager.NewFromConfig(cfg)), nil
}

// NewWithAPI creates a client with a custom API implementation.
func NewWithAPI(api API) *Client {
	return &Client{
		api:   api,
		cache: make(map[string]string),
	}
}

// GetSecret returns the secret string stored under name.
func (c *Client) GetSecret(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	if v, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &name})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}

	c.mu.Lock()
	c.cache[name] = *out.SecretString
	c.mu.Unlock()

	return *out.SecretString, nil
}

// Values decodes a secret holding a flat JSON object of strings, keyed by
// environment variable name.
func (c *Client) Values(ctx context.Context, name string) (map[string]string, error) {
	raw, err := c.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("secret %s is not a JSON object of strings: %w", name, err)
	}
	return values, nil
}
