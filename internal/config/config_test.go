package config

import (
	"os"
	"testing"
)

func TestLoadDefaultValues(t *testing.T) {
	env := []string{"APP_ENV", "APP_HTTP_ADDR", "ADMIN_API_KEY", "METRICS_ADDR", "RATE_LIMIT_PER_IP", "WEBHOOK_URL", "WEBHOOK_SECRET"}
	for _, key := range env {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("expected AppEnv='dev', got %q", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected HTTPAddr=':8080', got %q", cfg.HTTPAddr)
	}
	if cfg.AdminAPIKey != "admin-123" {
		t.Errorf("expected AdminAPIKey='admin-123', got %q", cfg.AdminAPIKey)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr=':9090', got %q", cfg.MetricsAddr)
	}
	if cfg.RateLimitPerIP != 100 {
		t.Errorf("expected RateLimitPerIP=100, got %d", cfg.RateLimitPerIP)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	os.Setenv("APP_ENV", "test")
	os.Setenv("APP_HTTP_ADDR", ":9999")
	os.Setenv("ADMIN_API_KEY", "custom-key")
	os.Setenv("METRICS_ADDR", ":7777")
	os.Setenv("RATE_LIMIT_PER_IP", "200")
	defer func() {
		os.Unsetenv("APP_ENV")
		os.Unsetenv("APP_HTTP_ADDR")
		os.Unsetenv("ADMIN_API_KEY")
		os.Unsetenv("METRICS_ADDR")
		os.Unsetenv("RATE_LIMIT_PER_IP")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "test" {
		t.Errorf("expected AppEnv='test', got %q", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("expected HTTPAddr=':9999', got %q", cfg.HTTPAddr)
	}
	if cfg.AdminAPIKey != "custom-key" {
		t.Errorf("expected AdminAPIKey='custom-key', got %q", cfg.AdminAPIKey)
	}
	if cfg.MetricsAddr != ":7777" {
		t.Errorf("expected MetricsAddr=':7777', got %q", cfg.MetricsAddr)
	}
	if cfg.RateLimitPerIP != 200 {
		t.Errorf("expected RateLimitPerIP=200, got %d", cfg.RateLimitPerIP)
	}
}

func TestLoadMissingEnvFileIsAcceptable(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not fail when .env is missing: %v", err)
	}
	if cfg == nil {
		t.Fatal("config should not be nil")
	}
}

func TestLoadRequiresWebhookURLAndSecretTogether(t *testing.T) {
	os.Setenv("WEBHOOK_URL", "https://example.com/hook")
	os.Unsetenv("WEBHOOK_SECRET")
	defer os.Unsetenv("WEBHOOK_URL")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error when WEBHOOK_URL is set without WEBHOOK_SECRET")
	}
}

func TestLoadParsesAPIKeys(t *testing.T) {
	os.Setenv("API_KEYS", "$2a$12$hash1:admin, $2a$12$hash2:readonly")
	defer os.Unsetenv("API_KEYS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(cfg.APIKeys) != 2 {
		t.Fatalf("expected 2 provisioned keys, got %d: %v", len(cfg.APIKeys), cfg.APIKeys)
	}
	if cfg.APIKeys["$2a$12$hash1"] != "admin" {
		t.Errorf("expected hash1 to map to admin, got %q", cfg.APIKeys["$2a$12$hash1"])
	}
	if cfg.APIKeys["$2a$12$hash2"] != "readonly" {
		t.Errorf("expected hash2 to map to readonly, got %q", cfg.APIKeys["$2a$12$hash2"])
	}
}

func TestLoadRejectsUnrecognizedAPIKeyRole(t *testing.T) {
	os.Setenv("API_KEYS", "somehash:owner")
	defer os.Unsetenv("API_KEYS")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unrecognized role in API_KEYS")
	}
}

func TestLoadRejectsMalformedAPIKeysEntry(t *testing.T) {
	os.Setenv("API_KEYS", "not-a-pair")
	defer os.Unsetenv("API_KEYS")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a malformed API_KEYS entry")
	}
}
