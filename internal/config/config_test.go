package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/pairchat"
logLevel: "debug"
redisAddr: "localhost:6379"
sessionTTL: "12h"
uploadDir: "/tmp/uploads"
minio:
  endpoint: "localhost:9000"
  accessKey: "minio"
  secretKey: "miniosecret"
  bucket: "images"
authRateLimit: 10
authRateWindow: "30s"
trustedProxies:
  - "10.0.0.0/8"
  - "192.168.1.10"
validateParticipants: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DatabaseURL != "postgres://localhost/pairchat" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Minio.Endpoint != "localhost:9000" || cfg.Minio.Bucket != "images" {
		t.Fatalf("minio section not parsed: %+v", cfg.Minio)
	}
	if cfg.AuthRateLimit != 10 || !cfg.ValidateParticipants {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("trustedProxies not parsed: %+v", cfg.TrustedProxies)
	}
	ttl, err := ParseSessionTTL(cfg.SessionTTL)
	if err != nil || ttl != 12*time.Hour {
		t.Fatalf("session ttl: %v %v", ttl, err)
	}
	window, err := ParseAuthRateWindow(cfg.AuthRateWindow)
	if err != nil || window != 30*time.Second {
		t.Fatalf("auth rate window: %v %v", window, err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://file/db"
redisAddr: "file:6379"
`)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("MINIO_ENDPOINT", "env:9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("PORT not applied: %q", cfg.Port)
	}
	if cfg.DatabaseURL != "postgres://env/db" {
		t.Fatalf("DATABASE_URL not applied: %q", cfg.DatabaseURL)
	}
	if cfg.RedisAddr != "env:6379" {
		t.Fatalf("REDIS_ADDR not applied: %q", cfg.RedisAddr)
	}
	if cfg.JWTSecret != "env-secret" {
		t.Fatalf("JWT_SECRET not applied: %q", cfg.JWTSecret)
	}
	if cfg.Minio.Endpoint != "env:9000" {
		t.Fatalf("MINIO_ENDPOINT not applied: %q", cfg.Minio.Endpoint)
	}
}

func TestLoadRequiresPortAndDatabase(t *testing.T) {
	path := writeConfig(t, `databaseURL: "postgres://localhost/db"`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "port") {
		t.Fatalf("expected port error, got: %v", err)
	}

	path = writeConfig(t, `port: "8080"`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "databaseURL") {
		t.Fatalf("expected databaseURL error, got: %v", err)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/db"
sessionTTL: "not-a-duration"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for bad sessionTTL")
	}

	path = writeConfig(t, `
port: "8080"
databaseURL: "postgres://localhost/db"
authRateWindow: "-5s"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for negative authRateWindow")
	}
}

func TestDurationDefaults(t *testing.T) {
	ttl, err := ParseSessionTTL("")
	if err != nil || ttl != 24*time.Hour {
		t.Fatalf("expected 24h default, got %v (%v)", ttl, err)
	}
	window, err := ParseAuthRateWindow("")
	if err != nil || window != time.Minute {
		t.Fatalf("expected 1m default, got %v (%v)", window, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
