package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	for _, key := range []string{"MAX_FILE_SIZE", "ALLOWED_MIME_TYPES", "LOCK_TTL", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Storage.MaxFileSize != 10<<20 {
		t.Errorf("MaxFileSize = %d, want %d", cfg.Storage.MaxFileSize, 10<<20)
	}
	if len(cfg.Storage.AllowedMimeTypes) != len(DefaultAllowedMimeTypes) {
		t.Errorf("AllowedMimeTypes = %v", cfg.Storage.AllowedMimeTypes)
	}
	if cfg.LockTTL != 30*time.Second {
		t.Errorf("LockTTL = %s", cfg.LockTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("MAX_FILE_SIZE", "2048")
	t.Setenv("ALLOWED_MIME_TYPES", " image/png , ,application/pdf")
	t.Setenv("LOCK_TTL", "5s")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()

	if cfg.Storage.MaxFileSize != 2048 {
		t.Errorf("MaxFileSize = %d", cfg.Storage.MaxFileSize)
	}
	want := []string{"image/png", "application/pdf"}
	if len(cfg.Storage.AllowedMimeTypes) != 2 || cfg.Storage.AllowedMimeTypes[0] != want[0] || cfg.Storage.AllowedMimeTypes[1] != want[1] {
		t.Errorf("AllowedMimeTypes = %v, want %v", cfg.Storage.AllowedMimeTypes, want)
	}
	if cfg.LockTTL != 5*time.Second {
		t.Errorf("LockTTL = %s", cfg.LockTTL)
	}
	if cfg.Redis.DB != 3 {
		t.Errorf("Redis.DB = %d", cfg.Redis.DB)
	}
}
