// Package auth issues and verifies the bearer tokens identifying users.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/at-ishikawa/mindbank/internal/config"
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// AuthError is a token that could not be verified.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "unauthenticated: " + e.Reason
	}
	return fmt.Sprintf("unauthenticated: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Identity is the signed-in user.
type Identity struct {
	UserID    string    `json:"userId"`
	Anonymous bool      `json:"anonymous"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type claims struct {
	Anonymous bool `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(cfg config.AuthConfig) (*Issuer, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	return &Issuer{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}, nil
}

// SignInAnonymously creates a new user and returns a token for it.
func (i *Issuer) SignInAnonymously() (string, Identity, error) {
	return i.Issue(uuid.NewString(), true)
}

func (i *Issuer) Issue(userID string, anonymous bool) (string, Identity, error) {
	now := i.now()
	identity := Identity{
		UserID:    userID,
		Anonymous: anonymous,
		ExpiresAt: now.Add(i.ttl).Truncate(time.Second),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Anonymous: anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(identity.ExpiresAt),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", Identity{}, fmt.Errorf("token.SignedString > %w", err)
	}
	return signed, identity, nil
}

// Verify parses a token and returns the identity it carries.
func (i *Issuer) Verify(tokenString string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		reason := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "token expired"
		}
		return Identity{}, &AuthError{Reason: reason, Err: err}
	}
	if c.Subject == "" {
		return Identity{}, &AuthError{Reason: "token has no subject"}
	}
	return Identity{
		UserID:    c.Subject,
		Anonymous: c.Anonymous,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// VerifyHeader verifies an Authorization header of the form "Bearer <token>".
func (i *Issuer) VerifyHeader(header string) (Identity, error) {
	token, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Identity{}, &AuthError{Reason: "missing token", Err: ErrMissingToken}
	}
	return i.Verify(strings.TrimSpace(token))
}
