package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.CookieName != "token" {
		t.Fatalf("cookie name = %q, want token", cfg.Auth.CookieName)
	}
	if cfg.Auth.TokenTTL != 7*24*time.Hour {
		t.Fatalf("token ttl = %v", cfg.Auth.TokenTTL)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate to report missing DATABASE_URL and JWT_SECRET")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
env: staging
server:
  port: 9090
database:
  url: postgres://file/db
auth:
  jwt_secret: from-file
  token_ttl: 1h
schema:
  marker_ttl: 5s
events:
  backend: nats
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "staging" || cfg.Server.Port != 9090 {
		t.Fatalf("file values not applied: %+v", cfg.Server)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("env must override file, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTL != time.Hour || cfg.Schema.MarkerTTL != 5*time.Second {
		t.Fatalf("durations not parsed: %v %v", cfg.Auth.TokenTTL, cfg.Schema.MarkerTTL)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.HTTP.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SERVER_PORT", "eighty")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric SERVER_PORT")
	}
}
