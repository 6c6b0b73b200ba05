package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.JWT.TTL != 24*time.Hour {
		t.Fatalf("expected 24h token ttl, got %s", cfg.JWT.TTL)
	}
	if cfg.Demo.TTL != 10*time.Minute || cfg.Demo.SweepInterval != 30*time.Second {
		t.Fatalf("unexpected demo defaults: %+v", cfg.Demo)
	}
	if cfg.Federated.Provider != "facebook" {
		t.Fatalf("expected facebook provider, got %q", cfg.Federated.Provider)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("expected redis disabled by default, got %q", cfg.Redis.Addr)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	if _, err := Load(context.Background()); err == nil {
		t.Fatalf("expected error when JWT_SECRET is empty")
	}
}

func TestLoad_OIDCRequiresJWKS(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("FEDERATED_PROVIDER", "oidc")

	if _, err := Load(context.Background()); err == nil {
		t.Fatalf("expected error without OIDC_JWKS_URL")
	}

	t.Setenv("OIDC_JWKS_URL", "https://idp.example.com/.well-known/jwks.json")
	if _, err := Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_DemoOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DEMO_TTL", "5s")
	t.Setenv("DEMO_SWEEP_INTERVAL", "1s")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Demo.TTL != 5*time.Second || cfg.Demo.SweepInterval != time.Second {
		t.Fatalf("unexpected demo config: %+v", cfg.Demo)
	}
}
