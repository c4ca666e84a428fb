package vault

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/pkg/config"
)

// SecretManager reads service secrets from a KV v2 mount.
type SecretManager struct {
	client *api.Client
	path   string
	log    *zap.Logger
}

func NewSecretManager(cfg config.VaultConfig, log *zap.Logger) (*SecretManager, error) {
	vc := api.DefaultConfig()
	vc.Address = cfg.Address

	client, err := api.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &SecretManager{client: client, path: cfg.SecretPath, log: log}, nil
}

// ReadSecret returns one string field of the secret at path. KV v2 responses
// nest fields under "data".
func (sm *SecretManager) ReadSecret(ctx context.Context, path, key string) (string, error) {
	secret, err := sm.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault: no secret at %s", path)
	}

	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested
	}
	val, ok := data[key].(string)
	if !ok || val == "" {
		return "", fmt.Errorf("vault: %s has no %q field", path, key)
	}
	return val, nil
}

// Apply overrides the JWT secret and database URL in cfg with the values
// stored in Vault. Fields absent from the secret keep their configured value.
func (sm *SecretManager) Apply(ctx context.Context, cfg *config.Config) error {
	if secret, err := sm.ReadSecret(ctx, sm.path, "jwt_secret"); err == nil {
		cfg.JWT.Secret = secret
	} else {
		sm.log.Warn("JWT secret not loaded from Vault", zap.Error(err))
	}

	if url, err := sm.ReadSecret(ctx, sm.path, "database_url"); err == nil {
		cfg.Database.URL = url
	} else if cfg.Storage.Driver == "postgres" && cfg.Database.URL == "" {
		return fmt.Errorf("database url: %w", err)
	}

	sm.log.Info("Secrets loaded from Vault", zap.String("path", sm.path))
	return nil
}
