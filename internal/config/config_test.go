package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "postgres://localhost/commissions")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("APPROVAL_REQUIRED", "false")
	t.Setenv("AGGREGATOR_FETCH_TIMEOUT", "3s")
	t.Setenv("COMMISSION_POLICY_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/commissions" {
		t.Fatalf("expected PG_DSN fallback, got %q", cfg.DatabaseURL)
	}
	if cfg.ApprovalRequired {
		t.Fatalf("expected approval flag from env")
	}
	if cfg.FetchTimeout != 3*time.Second {
		t.Fatalf("unexpected fetch timeout %s", cfg.FetchTimeout)
	}
	if cfg.CalcMaxParallel != 4 || cfg.Policy.SystemRate != 0.05 || cfg.Policy.SourceStrategy != "tank_stock_first" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadPolicy_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := []byte(`
rate_mode: absolute
bonus_tiers:
  - min_volume: 50000
    amount: 100
  - min_volume: 100000
    amount: 250
    rate_per_litre: 0.001
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadPolicy(path, Policy{SystemRate: 0.05, RateMode: "percentage", SourceStrategy: "sales_only"})
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if policy.SystemRate != 0.05 || policy.SourceStrategy != "sales_only" {
		t.Fatalf("defaults lost: %+v", policy)
	}
	if policy.RateMode != "absolute" || len(policy.BonusTiers) != 2 || policy.BonusTiers[1].RatePerLitre != 0.001 {
		t.Fatalf("policy not parsed: %+v", policy)
	}
}

func TestValidate_RequiresSecretAndRedis(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://x", CalcMaxParallel: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing secret error")
	}
	cfg.JWTSecret = "s"
	cfg.Cache.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing redis url error")
	}
}
