package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("POLL_INTERVAL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %s, want 2s", cfg.PollInterval)
	}
	if cfg.TransportErrorLimit != 3 {
		t.Fatalf("TransportErrorLimit = %d, want 3", cfg.TransportErrorLimit)
	}
	if cfg.ProviderName != "synthetic" {
		t.Fatalf("ProviderName = %q, want synthetic", cfg.ProviderName)
	}
}

func TestLoadConfigDurationOverride(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("JOB_MAX_WAIT", "90s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Fatalf("PollInterval = %s, want 500ms", cfg.PollInterval)
	}
	if cfg.MaxWait != 90*time.Second {
		t.Fatalf("MaxWait = %s, want 90s", cfg.MaxWait)
	}
}

func TestLoadConfigInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "not-a-duration")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %s, want fallback 2s", cfg.PollInterval)
	}
}

func TestLoadConfigRejectsAPIKeyWithoutBaseURL(t *testing.T) {
	t.Setenv("PROVIDER_API_KEY", "secret")
	t.Setenv("PROVIDER_BASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for API key without base URL")
	}
}
