package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultSessionTTL is how long a signed-in session token stays valid.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultResetGrantTTL bounds the gap between confirming a reset code and
	// choosing the new password.
	DefaultResetGrantTTL = 10 * time.Minute

	AudienceSession       = "session"
	AudiencePasswordReset = "password_reset"
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret        string
	Issuer        string
	SessionTTL    time.Duration
	ResetGrantTTL time.Duration
	Clock         func() time.Time
}

// Claims are embedded in every token this service signs.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// SessionTokenInput identifies the user a session token is minted for.
type SessionTokenInput struct {
	UserID string
	Email  string
	Name   string
}

// IssuedToken is a signed token together with its identifiers.
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// JWTService issues and validates HS256 tokens. Sessions and reset grants use
// distinct audiences so one can never be presented as the other.
type JWTService struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	grantTTL time.Duration
	now      func() time.Time
}

func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	grantTTL := cfg.ResetGrantTTL
	if grantTTL <= 0 {
		grantTTL = DefaultResetGrantTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &JWTService{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		ttl:      ttl,
		grantTTL: grantTTL,
		now:      now,
	}, nil
}

// SessionTTL reports the configured session lifetime.
func (s *JWTService) SessionTTL() time.Duration {
	return s.ttl
}

// SecretLength returns the signing secret length in bytes.
func (s *JWTService) SecretLength() int {
	return len(s.secret)
}

// GenerateSessionToken signs a session token carrying the user's id, email and name.
func (s *JWTService) GenerateSessionToken(input SessionTokenInput) (IssuedToken, error) {
	if input.UserID == "" {
		return IssuedToken{}, errors.New("jwt: user id is required")
	}
	return s.sign(input.UserID, input.Email, input.Name, AudienceSession, s.ttl)
}

// ValidateSessionToken parses a session token. Reset grants are rejected.
func (s *JWTService) ValidateSessionToken(token string) (*Claims, error) {
	return s.parse(token, AudienceSession)
}

// GenerateResetGrant signs a short-lived authorisation to set a new password.
// Each grant has a unique id so callers can enforce single use.
func (s *JWTService) GenerateResetGrant(userID, email string) (IssuedToken, error) {
	if userID == "" {
		return IssuedToken{}, errors.New("jwt: user id is required")
	}
	return s.sign(userID, email, "", AudiencePasswordReset, s.grantTTL)
}

func (s *JWTService) ValidateResetGrant(token string) (*Claims, error) {
	claims, err := s.parse(token, AudiencePasswordReset)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, errors.New("jwt: reset grant without id")
	}
	return claims, nil
}

func (s *JWTService) sign(userID, email, name, audience string, ttl time.Duration) (IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(ttl)
	id := uuid.NewString()

	claims := &Claims{
		UserID: userID,
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}
	return IssuedToken{Token: signed, ID: id, ExpiresAt: expiresAt}, nil
}

func (s *JWTService) parse(tokenString, audience string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, errors.New("jwt: missing user id claim")
	}
	return &claims, nil
}
