package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Load reads config.yaml (if present) and environment overrides into a
// validated Config.
func Load() (*Config, error) {
	return load(viper.New(), "")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath("/app/configs")
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	_ = v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	_ = v.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	_ = v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	_ = v.BindEnv("nats.url", "NATS_URL", "APP_NATS_URL")
	_ = v.BindEnv("rabbitmq.url", "RABBITMQ_URL", "APP_RABBITMQ_URL")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET", "APP_JWT_SECRET")
	_ = v.BindEnv("vault.token", "VAULT_TOKEN", "APP_VAULT_TOKEN")
	_ = v.BindEnv("vault.address", "VAULT_ADDR", "APP_VAULT_ADDRESS")
	_ = v.BindEnv("token.owner", "REC_OWNER", "APP_TOKEN_OWNER")
	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT")
	_ = v.BindEnv("logging.level", "LOG_LEVEL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "rec-hub")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "120s")
	v.SetDefault("http.body_limit", 1<<20)

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("token.name", "Voltx Renewable Energy Certificate")
	v.SetDefault("token.symbol", "VREC")

	v.SetDefault("storage.driver", "memory")

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("events.broker", "none")
	v.SetDefault("events.relay_interval", "1s")
	v.SetDefault("events.batch_size", 100)
	v.SetDefault("events.max_attempts", 10)

	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")
	v.SetDefault("rabbitmq.exchange", "rec.events")

	v.SetDefault("jwt.access_token_duration", "15m")
	v.SetDefault("jwt.refresh_token_duration", "168h")
	v.SetDefault("jwt.issuer", "rec-hub")
	v.SetDefault("jwt.audience", "rec-hub-api")

	v.SetDefault("auth.nonce_ttl", "5m")

	v.SetDefault("vault.secret_path", "secret/data/rec-hub")

	v.SetDefault("opentelemetry.service_name", "rec-hub")
	v.SetDefault("opentelemetry.otlp.endpoint", "localhost:4317")
	v.SetDefault("opentelemetry.otlp.insecure", true)
	v.SetDefault("opentelemetry.sample_ratio", 1.0)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("rate_limiting.max_requests", 100)
	v.SetDefault("rate_limiting.window", "1m")

	v.SetDefault("circuit_breaker.max_requests", 5)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_threshold", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 10)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PATCH", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key", "Idempotency-Key"})
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", "24h")
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Token.Owner != "" && !common.IsHexAddress(c.Token.Owner) {
		return fmt.Errorf("token.owner %q is not a hex address", c.Token.Owner)
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" && !c.Vault.Enabled {
			return errors.New("database.url is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Events.Broker {
	case "none", "nats", "rabbitmq":
	default:
		return fmt.Errorf("unknown events.broker %q", c.Events.Broker)
	}
	for _, k := range c.Auth.APIKeys {
		if !common.IsHexAddress(k.Account) {
			return fmt.Errorf("auth.api_keys[%s]: account %q is not a hex address", k.ID, k.Account)
		}
		if k.Hash == "" {
			return fmt.Errorf("auth.api_keys[%s]: hash is required", k.ID)
		}
	}
	return nil
}
