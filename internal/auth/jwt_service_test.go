package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, secret string, now func() time.Time) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{
		Secret: secret,
		Issuer: "skycast",
		Clock:  now,
	})
	require.NoError(t, err)
	return svc
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestGenerateAndValidateSessionToken(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(t, "super-secret", func() time.Time { return current })
	require.Equal(t, 24*time.Hour, svc.SessionTTL())

	issued, err := svc.GenerateSessionToken(SessionTokenInput{
		UserID: "user-123",
		Email:  "alice@example.com",
		Name:   "Alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.True(t, issued.ExpiresAt.Equal(current.Add(24*time.Hour)))

	claims, err := svc.ValidateSessionToken(issued.Token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "user-123", claims.Subject)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "Alice", claims.Name)
	require.Equal(t, "skycast", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{AudienceSession}, claims.Audience)
	require.True(t, claims.IssuedAt.Time.Equal(current))
}

func TestSessionTokenRequiresUserID(t *testing.T) {
	svc := newService(t, "secret", time.Now)
	_, err := svc.GenerateSessionToken(SessionTokenInput{})
	require.Error(t, err)
}

func TestValidateSessionTokenInvalidSignature(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }

	issued, err := newService(t, "issuer-secret", now).GenerateSessionToken(SessionTokenInput{UserID: "user-123"})
	require.NoError(t, err)

	_, err = newService(t, "other-secret", now).ValidateSessionToken(issued.Token)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
}

func TestValidateSessionTokenExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(t, "secret", func() time.Time { return current })

	issued, err := svc.GenerateSessionToken(SessionTokenInput{UserID: "user-123"})
	require.NoError(t, err)

	current = current.Add(25 * time.Hour)
	_, err = svc.ValidateSessionToken(issued.Token)
	require.Error(t, err)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestValidateRejectsForeignIssuer(t *testing.T) {
	now := time.Now
	other, err := NewJWTService(JWTConfig{Secret: "shared", Issuer: "someone-else", Clock: now})
	require.NoError(t, err)

	issued, err := other.GenerateSessionToken(SessionTokenInput{UserID: "user-123"})
	require.NoError(t, err)

	_, err = newService(t, "shared", now).ValidateSessionToken(issued.Token)
	require.Error(t, err)
}

func TestResetGrantAndSessionAreNotInterchangeable(t *testing.T) {
	current := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	svc := newService(t, "secret", func() time.Time { return current })

	grant, err := svc.GenerateResetGrant("user-1", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, grant.ID)
	require.True(t, grant.ExpiresAt.Equal(current.Add(DefaultResetGrantTTL)))

	claims, err := svc.ValidateResetGrant(grant.Token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, grant.ID, claims.ID)

	_, err = svc.ValidateSessionToken(grant.Token)
	require.Error(t, err)

	session, err := svc.GenerateSessionToken(SessionTokenInput{UserID: "user-1"})
	require.NoError(t, err)
	_, err = svc.ValidateResetGrant(session.Token)
	require.Error(t, err)

	current = current.Add(DefaultResetGrantTTL + time.Second)
	_, err = svc.ValidateResetGrant(grant.Token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateEmptyToken(t *testing.T) {
	svc := newService(t, "secret", time.Now)
	_, err := svc.ValidateSessionToken("  ")
	require.EqualError(t, err, "jwt: token string is empty")
}
