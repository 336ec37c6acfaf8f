package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != "info" {
		t.Errorf("unexpected log level %q", cfg.LogLevel)
	}
	if cfg.API.Port != 3000 {
		t.Errorf("unexpected port %d", cfg.API.Port)
	}
	if cfg.Webhook.TimeoutSeconds != 10 {
		t.Errorf("unexpected webhook timeout %d", cfg.Webhook.TimeoutSeconds)
	}
	if cfg.Channels.WhatsApp.PairingMode != "qr" {
		t.Errorf("unexpected pairing mode %q", cfg.Channels.WhatsApp.PairingMode)
	}
	if !cfg.Channels.WhatsApp.PrintQR {
		t.Error("expected PrintQR enabled by default")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("WAHOOK_LOG_LEVEL", "debug")
	t.Setenv("WAHOOK_API_PORT", "8080")
	t.Setenv("WAHOOK_API_AUTH_ENABLED", "true")
	t.Setenv("WAHOOK_WEBHOOK_URL", "https://hooks.example.com/inbound")
	t.Setenv("WAHOOK_WHATSAPP_PAIRING_MODE", "code")
	t.Setenv("WAHOOK_WHATSAPP_PAIR_PHONE", "15550001111")

	cfg := DefaultConfig()
	if !applyEnvOverrides(cfg) {
		t.Fatal("expected overrides to report a change")
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log level not overridden: %q", cfg.LogLevel)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("port not overridden: %d", cfg.API.Port)
	}
	if !cfg.API.AuthEnabled {
		t.Error("auth not enabled")
	}
	if cfg.Webhook.URL != "https://hooks.example.com/inbound" {
		t.Errorf("webhook URL not overridden: %q", cfg.Webhook.URL)
	}
	if cfg.Channels.WhatsApp.PairingMode != "code" || cfg.Channels.WhatsApp.PairPhone != "15550001111" {
		t.Errorf("pairing settings not overridden: %+v", cfg.Channels.WhatsApp)
	}
}

func TestApplyEnvOverridesNoChange(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("WAHOOK_WEBHOOK_URL", "")
	t.Setenv("N8N_WEBHOOK_URL", "")

	cfg := DefaultConfig()
	if applyEnvOverrides(cfg) {
		t.Fatal("expected no change without env vars set")
	}
}

func TestApplyEnvOverridesIgnoresInvalidValues(t *testing.T) {
	t.Setenv("WAHOOK_API_PORT", "not-a-number")
	t.Setenv("WAHOOK_API_AUTH_ENABLED", "maybe")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.API.Port != 3000 {
		t.Errorf("invalid port applied: %d", cfg.API.Port)
	}
	if cfg.API.AuthEnabled {
		t.Error("invalid bool applied")
	}
}

func TestWebhookURLFallbackEnv(t *testing.T) {
	t.Setenv("N8N_WEBHOOK_URL", "https://n8n.example.com/webhook/abc")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Webhook.URL != "https://n8n.example.com/webhook/abc" {
		t.Errorf("fallback env not applied: %q", cfg.Webhook.URL)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"log_level": "warn",
		"api": {"host": "127.0.0.1", "port": 9000},
		"webhook": {"url": "https://hooks.example.com/x", "timeout_seconds": 30}
	}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != "warn" || cfg.API.Host != "127.0.0.1" || cfg.API.Port != 9000 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Webhook.TimeoutSeconds != 30 {
		t.Fatalf("webhook timeout not applied: %d", cfg.Webhook.TimeoutSeconds)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Channels.WhatsApp.PairingMode != "qr" {
		t.Fatalf("defaults lost for absent fields: %+v", cfg.Channels.WhatsApp)
	}
}

func TestLoadConfigFromFileMissing(t *testing.T) {
	if _, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestEnsureAPIToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.AuthEnabled = true

	token, generated, err := cfg.EnsureAPIToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generated || token == "" {
		t.Fatal("expected a generated token")
	}
	if cfg.API.Token != token {
		t.Fatal("token not stored in config")
	}

	// A second call must keep the existing token.
	if _, generated, _ := cfg.EnsureAPIToken(); generated {
		t.Fatal("token regenerated despite being set")
	}
}

func TestEnsureAPITokenDisabled(t *testing.T) {
	cfg := DefaultConfig()

	if _, generated, err := cfg.EnsureAPIToken(); err != nil || generated {
		t.Fatalf("expected no-op with auth disabled (generated=%v, err=%v)", generated, err)
	}
}

func TestSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Token = "secret"

	snap := cfg.Snapshot()
	if snap.API.Token != "secret" || snap.API.Port != cfg.API.Port {
		t.Fatalf("snapshot lost values: %+v", snap.API)
	}

	// Mutating the snapshot must not touch the source.
	snap.API.Port = 9999
	if cfg.API.Port == 9999 {
		t.Fatal("snapshot aliases the live config")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "*****abc"},
		{"supersecrettoken", "*****token"},
	}
	for _, tt := range tests {
		if got := MaskSecret(tt.in); got != tt.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveConfigStoreTarget(t *testing.T) {
	t.Setenv("WAHOOK_CONFIG_DATABASE_URL", "")

	driver, dsn, err := resolveConfigStoreTarget("/tmp/wahook-test.db")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver != "sqlite" || dsn != "/tmp/wahook-test.db" {
		t.Fatalf("unexpected target %s %s", driver, dsn)
	}

	t.Setenv("WAHOOK_CONFIG_DATABASE_URL", "postgres://user:pw@db/wahook")
	driver, dsn, err = resolveConfigStoreTarget("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver != "postgres" {
		t.Fatalf("unexpected driver %s", driver)
	}
	if dsn != "postgres://user:pw@db/wahook?sslmode=disable" {
		t.Fatalf("sslmode not appended: %s", dsn)
	}
}

func TestEnsurePostgresSSLMode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://db/x", "postgres://db/x?sslmode=disable"},
		{"postgres://db/x?a=1", "postgres://db/x?a=1&sslmode=disable"},
		{"postgres://db/x?sslmode=require", "postgres://db/x?sslmode=require"},
	}
	for _, tt := range tests {
		if got := ensurePostgresSSLMode(tt.in); got != tt.want {
			t.Errorf("ensurePostgresSSLMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
