package auth

import (
	"context"
	"errors"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"

	"scrapPickup/internal/errs"
)

const (
	KindUser  = "user"
	KindAdmin = "admin"
)

// Principal represents the authenticated caller from a verified credential.
type Principal struct {
	UserID        string
	Kind          string // "user" | "admin"
	Name          string
	Phone         string
	Email         string
	EmailVerified bool
}

// IsAdmin reports whether the credential claims admin. The claim alone is not
// trusted; see RequireAdmin.
func (p *Principal) IsAdmin() bool { return p != nil && p.Kind == KindAdmin }

// Verifier turns a bearer credential into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

type principalKey struct{}

// WithPrincipal stores the principal in context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the principal from context (if any).
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// JWTVerifier validates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

type claims struct {
	Kind          string `json:"kind"`
	Name          string `json:"name"`
	PhoneNumber   string `json:"phone_number"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

// Verify validates and extracts claims from a JWT token.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	if len(v.secret) == 0 {
		return nil, errs.Unauthorized("invalid credential", errors.New("jwt secret is empty"))
	}
	if token == "" {
		return nil, errs.Unauthorized("missing credential", nil)
	}
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, errs.Unauthorized("invalid credential", err)
	}
	c, _ := tok.Claims.(*claims)
	if c == nil || strings.TrimSpace(c.Subject) == "" {
		return nil, errs.Unauthorized("invalid credential", errors.New("invalid claims"))
	}
	kind := strings.ToLower(strings.TrimSpace(c.Kind))
	if kind == "" {
		kind = KindUser
	}
	if kind != KindUser && kind != KindAdmin {
		return nil, errs.Unauthorized("invalid credential", errors.New("unknown principal kind"))
	}
	return &Principal{
		UserID:        c.Subject,
		Kind:          kind,
		Name:          c.Name,
		Phone:         c.PhoneNumber,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errs.Unauthorized("missing authorization", nil)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errs.Unauthorized("invalid authorization header", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}

// ParseFromMD extracts and verifies a Bearer token from gRPC metadata.
func ParseFromMD(ctx context.Context, v Verifier) (*Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errs.Unauthorized("missing metadata", nil)
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return nil, errs.Unauthorized("missing authorization", nil)
	}
	tok, err := BearerToken(vals[0])
	if err != nil {
		return nil, err
	}
	return v.Verify(ctx, tok)
}
