package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		WithEnvFile(""),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{
			"FUNNEL_SITE_BASE":  "https://store.example.com/",
			"FUNNEL_APP_ORIGIN": "https://funnel.example.com",
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Server.Port)
	}
	if cfg.Bridge.SiteBase != "https://store.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.Bridge.SiteBase)
	}
	if cfg.Bridge.BaseURL != "https://store.example.com/wp-json/hp-funnel/v1" {
		t.Fatalf("expected derived bridge base url, got %s", cfg.Bridge.BaseURL)
	}
	if cfg.Funnel.ID != "fastingkit" || cfg.Funnel.Name != "Fasting Kit" {
		t.Fatalf("unexpected funnel identity: %+v", cfg.Funnel)
	}
	if cfg.Funnel.ResolvePollInterval != time.Second || cfg.Funnel.ResolvePollAttempts != 30 {
		t.Fatalf("unexpected polling bounds: %+v", cfg.Funnel)
	}
	if cfg.Funnel.SessionTTL != 2*time.Hour {
		t.Fatalf("unexpected session ttl: %v", cfg.Funnel.SessionTTL)
	}
}

func TestLoadMissingRequiredFields(t *testing.T) {
	_, err := Load(WithEnvFile(""), WithoutSystemEnv())
	if err == nil {
		t.Fatal("expected a validation error")
	}

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}

	fields := validation.Fields()
	want := map[string]bool{"Bridge.SiteBase": false, "Funnel.AppOrigin": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Fatalf("expected %s in %v", field, fields)
		}
	}
}

func TestLoadEnvMapOverridesDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "FUNNEL_SITE_BASE=https://dotenv.example.com\n" +
		"FUNNEL_APP_ORIGIN=https://funnel.example.com\n" +
		"FUNNEL_SERVER_PORT=9999\n" +
		"# comment line\n" +
		"export FUNNEL_ID=\"quoted\"\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}

	cfg, err := Load(
		WithEnvFile(envFile),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"FUNNEL_SITE_BASE": "https://override.example.com"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Bridge.SiteBase != "https://override.example.com" {
		t.Fatalf("expected env map to win, got %s", cfg.Bridge.SiteBase)
	}
	if cfg.Server.Port != "9999" {
		t.Fatalf("expected dotenv port, got %s", cfg.Server.Port)
	}
	if cfg.Funnel.ID != "quoted" {
		t.Fatalf("expected export line parsed with quotes stripped, got %q", cfg.Funnel.ID)
	}
}

func TestSuccessReturnURL(t *testing.T) {
	cfg := FunnelConfig{AppOrigin: "https://funnel.example.com", BasePath: "/fastingkit"}
	if got := cfg.SuccessReturnURL(); got != "https://funnel.example.com/fastingkit/upsell" {
		t.Fatalf("unexpected success url: %s", got)
	}

	root := FunnelConfig{AppOrigin: "https://funnel.example.com", BasePath: "/"}
	if got := root.SuccessReturnURL(); got != "https://funnel.example.com/upsell" {
		t.Fatalf("unexpected success url: %s", got)
	}
}
