package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "JWT_TTL_MINUTES", "CORS_ALLOWED_ORIGINS", "SUPABASE_URL", "SUPABASE_KEY", "DB_AUTO_MIGRATE"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8080" || cfg.JWTTTL != 24*time.Hour || !cfg.AutoMigrate {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected cors default %v", cfg.CORSAllowedOrigins)
	}
	if cfg.MediaConfigured() {
		t.Fatalf("media should be unconfigured without supabase settings")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_TTL_MINUTES", "30")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DB_AUTO_MIGRATE", "off")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_KEY", "k")
	t.Setenv("BCRYPT_COST", "junk")

	cfg := LoadConfig()
	if cfg.JWTTTL != 30*time.Minute || cfg.AutoMigrate || cfg.BcryptCost != 10 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors list %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.MediaConfigured() {
		t.Fatalf("media should be configured")
	}
}
