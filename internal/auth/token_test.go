package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/mindbank/internal/config"
)

var testConfig = config.AuthConfig{
	JWTSecret: "test-secret",
	Issuer:    "mindbank",
	TokenTTL:  time.Hour,
}

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(testConfig)
	require.NoError(t, err)
	issuer.now = func() time.Time { return now }
	return issuer
}

func TestNewIssuer(t *testing.T) {
	_, err := NewIssuer(config.AuthConfig{Issuer: "mindbank", TokenTTL: time.Hour})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIssuer_SignInAnonymously(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)

	token, identity, err := issuer.SignInAnonymously()
	require.NoError(t, err)
	assert.NotEmpty(t, identity.UserID)
	assert.True(t, identity.Anonymous)
	assert.Equal(t, now.Add(time.Hour), identity.ExpiresAt)

	verified, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, identity.UserID, verified.UserID)
	assert.True(t, verified.Anonymous)
	assert.True(t, identity.ExpiresAt.Equal(verified.ExpiresAt))

	_, other, err := issuer.SignInAnonymously()
	require.NoError(t, err)
	assert.NotEqual(t, identity.UserID, other.UserID)
}

func TestIssuer_Verify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, now)
	valid, _, err := issuer.Issue("u1", false)
	require.NoError(t, err)

	expired, _, err := newTestIssuer(t, now.Add(-2*time.Hour)).Issue("u1", false)
	require.NoError(t, err)

	otherSecret, err := NewIssuer(config.AuthConfig{JWTSecret: "other", Issuer: "mindbank", TokenTTL: time.Hour})
	require.NoError(t, err)
	otherSecret.now = func() time.Time { return now }
	forged, _, err := otherSecret.Issue("u1", false)
	require.NoError(t, err)

	otherIssuer, err := NewIssuer(config.AuthConfig{JWTSecret: "test-secret", Issuer: "someone-else", TokenTTL: time.Hour})
	require.NoError(t, err)
	otherIssuer.now = func() time.Time { return now }
	foreign, _, err := otherIssuer.Issue("u1", false)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "mindbank",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		wantUser   string
		wantReason string
	}{
		{name: "valid", token: valid, wantUser: "u1"},
		{name: "expired", token: expired, wantReason: "token expired"},
		{name: "wrong secret", token: forged, wantReason: "invalid token"},
		{name: "wrong issuer", token: foreign, wantReason: "invalid token"},
		{name: "unsigned", token: none, wantReason: "invalid token"},
		{name: "garbage", token: "not-a-token", wantReason: "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := issuer.Verify(tt.token)
			if tt.wantReason != "" {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, tt.wantReason, authErr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUser, got.UserID)
			assert.False(t, got.Anonymous)
		})
	}
}

func TestIssuer_VerifyHeader(t *testing.T) {
	issuer := newTestIssuer(t, time.Now())
	token, _, err := issuer.Issue("u1", true)
	require.NoError(t, err)

	got, err := issuer.VerifyHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	for _, header := range []string{"", "Bearer ", "Basic abc", token} {
		_, err := issuer.VerifyHeader(header)
		assert.ErrorIs(t, err, ErrMissingToken, header)
	}
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1"})
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
}
