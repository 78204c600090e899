package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPPort != "3000" {
		t.Errorf("expected default port 3000, got %s", cfg.HTTPPort)
	}
	if cfg.DarajaBaseURL != "https://sandbox.safaricom.co.ke" {
		t.Errorf("unexpected default gateway URL %s", cfg.DarajaBaseURL)
	}
	if cfg.RecentWindow != 60*time.Second {
		t.Errorf("expected 60s recency window, got %s", cfg.RecentWindow)
	}
	if cfg.GatewayTimeout != 5*time.Second {
		t.Errorf("expected 5s gateway timeout, got %s", cfg.GatewayTimeout)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8088")
	t.Setenv("RECENT_WINDOW_SECONDS", "120")
	t.Setenv("DARAJA_BASE_URL", "https://api.safaricom.co.ke")

	cfg := LoadConfig()

	if cfg.HTTPPort != "8088" {
		t.Errorf("expected port 8088, got %s", cfg.HTTPPort)
	}
	if cfg.RecentWindow != 120*time.Second {
		t.Errorf("expected 120s window, got %s", cfg.RecentWindow)
	}
	if cfg.DarajaBaseURL != "https://api.safaricom.co.ke" {
		t.Errorf("expected override, got %s", cfg.DarajaBaseURL)
	}
}
