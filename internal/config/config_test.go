package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadWithDefaults_Succeeds(t *testing.T) {
	// Ensure envs are clean to use defaults
	os.Unsetenv("DB_PATH")
	os.Unsetenv("GRPC_ADDRESS")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := LoadWithDefaults()
	if err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if cfg.GRPC.Address == "" || cfg.Database.Path == "" || cfg.Auth.JWTSecret == "" {
		t.Fatalf("unexpected empty defaults: %+v", cfg)
	}
	if cfg.HTTP.Address != ":8080" || cfg.Database.MaxOpenConns != 8 || cfg.Identity.Timeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("LOG_LEVEL not applied: %q", cfg.Log.Level)
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	// Clear JWT_SECRET ensures error
	os.Unsetenv("JWT_SECRET")
	// Other vars can be set or default
	t.Setenv("DB_PATH", "test.db")
	t.Setenv("GRPC_ADDRESS", ":1234")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is not set")
	}
	// When set, it should succeed
	t.Setenv("JWT_SECRET", "x")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with secret set: %v", err)
	}
	if cfg.GRPC.Address != ":1234" || cfg.Database.Path != "test.db" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("DB_MAX_OPEN_CONNS", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero pool size")
	}
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric pool size")
	}
}

func TestAdminsAndOrigins(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("ADMIN_UIDS", " ops1:alice , ops2 ,")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	admins := cfg.Admins()
	if len(admins) != 2 || admins[0] != (AdminSeed{UID: "ops1", Username: "alice"}) || admins[1] != (AdminSeed{UID: "ops2", Username: "ops2"}) {
		t.Fatalf("admins = %+v", admins)
	}
	if o := cfg.AllowedOrigins(); len(o) != 2 || o[1] != "https://b.example" {
		t.Fatalf("origins = %v", o)
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{JWTSecret: "super-secret"}, Redis: RedisConfig{URL: "redis://:pw@localhost:6379"}}
	s := cfg.String()
	if strings.Contains(s, "super-secret") || strings.Contains(s, "pw@") {
		t.Fatalf("secrets leaked: %s", s)
	}
}
