package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/pkg/config"
)

func newVaultServer(t *testing.T, data map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Path != "/v1/secret/data/rec-hub" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"data": data},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSecretManager_Apply(t *testing.T) {
	srv := newVaultServer(t, map[string]interface{}{
		"jwt_secret":   "from-vault",
		"database_url": "postgres://vault",
	})
	sm, err := NewSecretManager(config.VaultConfig{Address: srv.URL, Token: "root", SecretPath: "secret/data/rec-hub"}, zap.NewNop())
	require.NoError(t, err)

	cfg := &config.Config{Storage: config.StorageConfig{Driver: "postgres"}}
	require.NoError(t, sm.Apply(context.Background(), cfg))

	assert.Equal(t, "from-vault", cfg.JWT.Secret)
	assert.Equal(t, "postgres://vault", cfg.Database.URL)
}

func TestSecretManager_ApplyMissingDatabaseURL(t *testing.T) {
	srv := newVaultServer(t, map[string]interface{}{"jwt_secret": "from-vault"})
	sm, err := NewSecretManager(config.VaultConfig{Address: srv.URL, Token: "root", SecretPath: "secret/data/rec-hub"}, zap.NewNop())
	require.NoError(t, err)

	cfg := &config.Config{Storage: config.StorageConfig{Driver: "postgres"}}
	assert.Error(t, sm.Apply(context.Background(), cfg))

	cfg = &config.Config{Storage: config.StorageConfig{Driver: "memory"}}
	assert.NoError(t, sm.Apply(context.Background(), cfg))
}

func TestSecretManager_ReadSecretMissingPath(t *testing.T) {
	srv := newVaultServer(t, nil)
	sm, err := NewSecretManager(config.VaultConfig{Address: srv.URL, Token: "root"}, zap.NewNop())
	require.NoError(t, err)

	_, err = sm.ReadSecret(context.Background(), "secret/data/other", "jwt_secret")
	assert.Error(t, err)
}
