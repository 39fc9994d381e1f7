package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"google.golang.org/grpc/metadata"

	"scrapPickup/internal/db"
)

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// Caller is responsible for closing the DB, typically via t.Cleanup.
func OpenInMemoryDB(t *testing.T, name string) *sqlx.DB {
	t.Helper()
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// OpenFileDB opens a WAL database file in a per-test temp dir with a multi-connection
// pool, for tests that exercise concurrent writers.
func OpenFileDB(t *testing.T) *sqlx.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"), db.Options{MaxOpenConns: 8})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// TokenClaims are the identity claims minted into test credentials.
type TokenClaims struct {
	Subject string
	Kind    string
	Name    string
	Phone   string
	Email   string
}

// GenerateJWTHS256 returns a signed JWT string with the claims the verifier reads.
func GenerateJWTHS256(t *testing.T, secret string, c TokenClaims) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  c.Subject,
		"kind": c.Kind,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	if c.Name != "" {
		claims["name"] = c.Name
	}
	if c.Phone != "" {
		claims["phone_number"] = c.Phone
	}
	if c.Email != "" {
		claims["email"] = c.Email
		claims["email_verified"] = true
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// UserToken mints a customer credential for uid.
func UserToken(t *testing.T, secret, uid string) string {
	t.Helper()
	return GenerateJWTHS256(t, secret, TokenClaims{Subject: uid, Kind: "user", Phone: "+10000000000"})
}

// AdminToken mints a credential claiming kind=admin for uid.
func AdminToken(t *testing.T, secret, uid string) string {
	t.Helper()
	return GenerateJWTHS256(t, secret, TokenClaims{Subject: uid, Kind: "admin", Name: "ops"})
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}

// OutgoingBearer attaches the token to outgoing gRPC metadata for client calls.
func OutgoingBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
