// Package config provides application configuration loading from environment
// variables and .env files. It uses viper for flexible configuration
// management with sensible defaults.
package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"

	"github.com/flagshipsdk/flagship-go/internal/auth"
)

// Config holds all application configuration loaded from environment
// variables or a .env file. Configuration priority: environment variables >
// .env file > defaults.
type Config struct {
	AppEnv         string                // Application environment (dev, staging, prod)
	HTTPAddr       string                // HTTP server bind address for the SDK-facing endpoints
	MetricsAddr    string                // Metrics/pprof server bind address
	AdminAPIKey    string                // Legacy superadmin bearer key for mutate endpoints
	APIKeys        map[string]auth.Role  // Provisioned bcrypt-hashed keys, by hash, with their role
	RateLimitPerIP int                   // Rate limit (requests/minute/IP) applied to the polling and events routes
	WebhookURL     string                // Optional ops-notification webhook target
	WebhookSecret  string                // HMAC secret for the ops-notification webhook
}

const defaultAdminAPIKey = "admin-123"

// Load reads configuration from environment variables and .env file (if
// present). Environment variables take precedence over .env file values.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig() // .env is optional
	v.AutomaticEnv()

	setConfigDefaults(v)
	appEnv := strings.TrimSpace(v.GetString("APP_ENV"))

	apiKeys, err := parseAPIKeys(v.GetString("API_KEYS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:         appEnv,
		HTTPAddr:       strings.TrimSpace(v.GetString("APP_HTTP_ADDR")),
		MetricsAddr:    strings.TrimSpace(v.GetString("METRICS_ADDR")),
		AdminAPIKey:    strings.TrimSpace(v.GetString("ADMIN_API_KEY")),
		APIKeys:        apiKeys,
		RateLimitPerIP: v.GetInt("RATE_LIMIT_PER_IP"),
		WebhookURL:     strings.TrimSpace(v.GetString("WEBHOOK_URL")),
		WebhookSecret:  strings.TrimSpace(v.GetString("WEBHOOK_SECRET")),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	warnOnUnsafeDefaults(cfg)
	return cfg, nil
}

// parseAPIKeys parses API_KEYS, a comma-separated list of "bcryptHash:role"
// pairs provisioned out-of-band (e.g. via auth.GenerateAPIKey +
// auth.HashAPIKey at key-issuance time). Empty input yields no extra keys;
// the legacy ADMIN_API_KEY remains the only way in.
func parseAPIKeys(raw string) (map[string]auth.Role, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	keys := make(map[string]auth.Role)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		hash, role, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("API_KEYS entry %q must be in hash:role form", entry)
		}
		role = strings.TrimSpace(role)
		if !auth.ValidateRole(role) {
			return nil, fmt.Errorf("API_KEYS entry %q has an unrecognized role %q", entry, role)
		}
		keys[strings.TrimSpace(hash)] = auth.Role(role)
	}
	return keys, nil
}

func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("ADMIN_API_KEY", defaultAdminAPIKey) // Change in production!
	v.SetDefault("RATE_LIMIT_PER_IP", 100)
	v.SetDefault("API_KEYS", "")
}

func validateConfig(cfg *Config) error {
	if cfg.AppEnv == "" {
		return fmt.Errorf("APP_ENV must not be empty")
	}
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("APP_HTTP_ADDR must not be empty")
	}
	if cfg.MetricsAddr == "" {
		return fmt.Errorf("METRICS_ADDR must not be empty")
	}
	if (cfg.WebhookURL == "") != (cfg.WebhookSecret == "") {
		return fmt.Errorf("WEBHOOK_URL and WEBHOOK_SECRET must be set together")
	}
	return nil
}

func warnOnUnsafeDefaults(cfg *Config) {
	if strings.EqualFold(cfg.AppEnv, "prod") && (cfg.AdminAPIKey == "" || cfg.AdminAPIKey == defaultAdminAPIKey) {
		log.Printf("WARNING: APP_ENV=prod with default ADMIN_API_KEY. Set a strong ADMIN_API_KEY before production use.")
	}
}
