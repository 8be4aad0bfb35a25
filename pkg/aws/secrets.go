package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsClient reads string secrets from Secrets Manager. Values are cached for
// the life of the process; the webhook signing secret is read once at startup.
type SecretsClient struct {
	api   secretsAPI
	mu    sync.Mutex
	cache map[string]string
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return &SecretsClient{api: secretsmanager.NewFromConfig(cfg), cache: map[string]string{}}
}

// GetSecret returns the raw string value of the secret.
func (s *SecretsClient) GetSecret(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.cache[name]; ok {
		return v, nil
	}
	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	value := strings.TrimSpace(sdkaws.ToString(out.SecretString))
	if value == "" {
		return "", fmt.Errorf("secret %s has no string value", name)
	}
	s.cache[name] = value
	return value, nil
}

// GetSecretField reads one key of a key/value secret, the format the console
// creates by default. An empty key, or a secret that is not a JSON object,
// returns the raw value.
func (s *SecretsClient) GetSecretField(ctx context.Context, name, key string) (string, error) {
	raw, err := s.GetSecret(ctx, name)
	if err != nil || key == "" {
		return raw, err
	}
	var fields map[string]string
	if json.Unmarshal([]byte(raw), &fields) != nil {
		return raw, nil
	}
	v, ok := fields[key]
	if !ok || v == "" {
		return "", fmt.Errorf("secret %s has no field %q", name, key)
	}
	return v, nil
}
