package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.Session.Store != "redis" || cfg.Session.SignInPath != "/signin" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Session.MaxAge != 12*time.Hour || cfg.Audit.Retention != 2160*time.Hour {
		t.Fatalf("unexpected durations: %+v / %+v", cfg.Session, cfg.Audit)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("development is the default environment")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_KEY", "k")
	t.Setenv("TOKEN_STORE", "cookie")
	t.Setenv("BACKEND_URL", "https://api.example.com")
	t.Setenv("BACKEND_TIMEOUT", "3s")
	t.Setenv("SIGNIN_RATE", "0.5")
	t.Setenv("ENV", "production")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Store != "cookie" || cfg.Backend.BaseURL != "https://api.example.com" || cfg.Backend.Timeout != 3*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Limits.SignInPerSecond != 0.5 {
		t.Fatalf("SignInPerSecond = %v", cfg.Limits.SignInPerSecond)
	}
	if cfg.IsDevelopment() {
		t.Fatal("production must not report development")
	}
}

func TestLoad_RequiresSessionKey(t *testing.T) {
	t.Setenv("SESSION_KEY", "")
	_ = os.Unsetenv("SESSION_KEY")

	if _, err := Load(context.Background()); err == nil {
		t.Fatal("expected error without SESSION_KEY")
	}
}

func TestLoad_RejectsUnknownTokenStore(t *testing.T) {
	t.Setenv("SESSION_KEY", "k")
	t.Setenv("TOKEN_STORE", "memcached")

	if _, err := Load(context.Background()); err == nil {
		t.Fatal("expected error for unknown TOKEN_STORE")
	}
}
