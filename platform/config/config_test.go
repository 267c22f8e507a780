package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/leads")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ALLOW_ALL", "false")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("BUSINESS_TIMEZONE", "Asia/Kolkata")
	t.Setenv("QUALIFIED_CATEGORIES", "bch, lc1 ,lc2")
	t.Setenv("LEAD_LOCK_WAIT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.GetQualifiedCategories(); len(got) != 3 || got[1] != "lc1" {
		t.Fatalf("unexpected qualified categories %v", got)
	}
	if cfg.GetBusinessLocation().String() != "Asia/Kolkata" {
		t.Fatalf("unexpected location %s", cfg.GetBusinessLocation())
	}
	if cfg.GetLockWait() != 3*time.Second {
		t.Fatalf("unexpected lock wait %s", cfg.GetLockWait())
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing database", "DATABASE_URL", ""},
		{"missing jwt secret", "JWT_ACCESS_SECRET", ""},
		{"bad timezone", "BUSINESS_TIMEZONE", "Mars/Olympus"},
		{"no qualified categories", "QUALIFIED_CATEGORIES", " , "},
		{"wildcard cors with credentials", "CORS_ORIGINS", "*"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
