package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/skycast/internal/auth"
	"github.com/charlesng35/skycast/internal/auth/otp"
	"github.com/charlesng35/skycast/internal/cache"
	"github.com/charlesng35/skycast/internal/models"
	"github.com/charlesng35/skycast/pkg/crypto"
	apperrors "github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/logger"
	"github.com/charlesng35/skycast/pkg/metrics"
)

// LoginResult is returned once both sign-in steps succeed.
type LoginResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
	User        *models.User
}

// ResetGrant authorises exactly one password change for one user.
type ResetGrant struct {
	Token     string
	ExpiresAt time.Time
}

// AuthServiceOption customises an AuthService.
type AuthServiceOption func(*AuthService)

func WithAuthAudit(audit *AuditService) AuthServiceOption {
	return func(s *AuthService) {
		s.audit = audit
	}
}

// WithAuthLimiter throttles how often codes can be requested.
func WithAuthLimiter(limiter *otp.Limiter) AuthServiceOption {
	return func(s *AuthService) {
		s.limiter = limiter
	}
}

// AuthService runs the two-step sign-in and the three-step password reset.
type AuthService struct {
	users    *UserService
	ledger   *otp.Ledger
	notifier CodeNotifier
	tokens   *auth.JWTService
	grants   cache.Store
	limiter  *otp.Limiter
	audit    *AuditService
	// decoy is compared against when the email is unknown so both failure
	// paths cost one bcrypt comparison.
	decoy string
}

// NewAuthService wires the sign-in flow. grants records consumed reset grants.
func NewAuthService(users *UserService, ledger *otp.Ledger, notifier CodeNotifier, tokens *auth.JWTService, grants cache.Store, opts ...AuthServiceOption) (*AuthService, error) {
	switch {
	case users == nil:
		return nil, errors.New("auth service: user service is required")
	case ledger == nil:
		return nil, errors.New("auth service: otp ledger is required")
	case tokens == nil:
		return nil, errors.New("auth service: jwt service is required")
	case grants == nil:
		return nil, errors.New("auth service: grant store is required")
	}

	decoy, err := crypto.HashWithCost("skycast-decoy-password", users.hashCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: prepare decoy hash: %w", err)
	}

	svc := &AuthService{
		users:    users,
		ledger:   ledger,
		notifier: notifier,
		tokens:   tokens,
		grants:   grants,
		decoy:    decoy,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ValidateCredentials is sign-in step one. On a correct email and password it
// issues a login code and sends it; the caller only learns that it worked.
// An unknown email and a wrong password fail identically.
func (s *AuthService) ValidateCredentials(ctx context.Context, email, password string) error {
	ctx = ensureContext(ctx)
	email = strings.TrimSpace(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if user == nil {
		crypto.VerifyPassword(s.decoy, password)
		s.fail(ctx, AuditLoginPassword, nil, email, "unknown_email")
		return apperrors.ErrInvalidCredentials
	}
	if !crypto.VerifyPassword(user.Password, password) {
		s.fail(ctx, AuditLoginPassword, user, email, "wrong_password")
		return apperrors.ErrInvalidCredentials
	}

	if err := s.issueAndSend(ctx, user, otp.PurposeLogin); err != nil {
		return err
	}
	s.succeed(ctx, AuditLoginPassword, user)
	return nil
}

// CompleteLogin is sign-in step two: it consumes the login code and mints a
// session token.
func (s *AuthService) CompleteLogin(ctx context.Context, email, code string) (*LoginResult, error) {
	ctx = ensureContext(ctx)
	email = strings.TrimSpace(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.fail(ctx, AuditLoginOTP, nil, email, "unknown_email")
			return nil, apperrors.ErrInvalidOrExpiredCode
		}
		return nil, err
	}

	if err := s.verify(ctx, user, otp.PurposeLogin, code); err != nil {
		s.fail(ctx, AuditLoginOTP, user, email, "invalid_code")
		return nil, err
	}

	issued, err := s.tokens.GenerateSessionToken(auth.SessionTokenInput{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: mint session: %w", err)
	}

	s.succeed(ctx, AuditLoginOTP, user)
	return &LoginResult{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresAt:   issued.ExpiresAt,
		User:        user,
	}, nil
}

// StartPasswordReset is reset step one. Unlike sign-in it reports an unknown
// email as ErrUserNotFound.
func (s *AuthService) StartPasswordReset(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)
	email = strings.TrimSpace(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.fail(ctx, AuditResetRequest, nil, email, "unknown_email")
		}
		return err
	}

	if err := s.issueAndSend(ctx, user, otp.PurposePasswordReset); err != nil {
		return err
	}
	s.succeed(ctx, AuditResetRequest, user)
	return nil
}

// ConfirmPasswordResetCode is reset step two. It consumes the reset code and
// returns a grant that SetNewPassword requires. The password is not changed here.
func (s *AuthService) ConfirmPasswordResetCode(ctx context.Context, email, code string) (*ResetGrant, error) {
	ctx = ensureContext(ctx)
	email = strings.TrimSpace(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.fail(ctx, AuditResetVerify, nil, email, "unknown_email")
			return nil, apperrors.ErrInvalidOrExpiredCode
		}
		return nil, err
	}

	if err := s.verify(ctx, user, otp.PurposePasswordReset, code); err != nil {
		s.fail(ctx, AuditResetVerify, user, email, "invalid_code")
		return nil, err
	}

	issued, err := s.tokens.GenerateResetGrant(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("auth service: mint reset grant: %w", err)
	}

	s.succeed(ctx, AuditResetVerify, user)
	return &ResetGrant{Token: issued.Token, ExpiresAt: issued.ExpiresAt}, nil
}

// SetNewPassword is reset step three. The grant must be valid, unexpired,
// issued for the account behind email, and unused.
func (s *AuthService) SetNewPassword(ctx context.Context, email, newPassword, grant string) error {
	ctx = ensureContext(ctx)
	email = strings.TrimSpace(email)

	claims, err := s.tokens.ValidateResetGrant(grant)
	if err != nil {
		s.fail(ctx, AuditResetComplete, nil, email, "invalid_grant")
		return apperrors.ErrResetGrantInvalid.WithInternal(err)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.fail(ctx, AuditResetComplete, nil, email, "unknown_email")
			return apperrors.ErrResetGrantInvalid
		}
		return err
	}
	if claims.UserID != user.ID {
		s.fail(ctx, AuditResetComplete, user, email, "grant_user_mismatch")
		return apperrors.ErrResetGrantInvalid
	}

	hashed, err := s.users.HashPassword(newPassword)
	if err != nil {
		s.fail(ctx, AuditResetComplete, user, email, "password_rejected")
		return err
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < time.Minute {
		remaining = time.Minute
	}
	uses, _, err := s.grants.IncrementWithTTL(ctx, "reset:grant:"+claims.ID, remaining)
	if err != nil {
		return fmt.Errorf("auth service: record grant use: %w", err)
	}
	if uses > 1 {
		s.fail(ctx, AuditResetComplete, user, email, "grant_reused")
		return apperrors.ErrResetGrantInvalid
	}

	if err := s.users.SetPasswordHash(ctx, user.ID, hashed); err != nil {
		return err
	}
	s.succeed(ctx, AuditResetComplete, user)
	return nil
}

func (s *AuthService) issueAndSend(ctx context.Context, user *models.User, purpose otp.Purpose) error {
	if err := s.limiter.Allow(ctx, user.ID, purpose); err != nil {
		return err
	}

	code, _, err := s.ledger.Issue(ctx, user.ID, purpose)
	if err != nil {
		return fmt.Errorf("auth service: issue code: %w", err)
	}
	metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()

	if s.notifier == nil {
		return nil
	}
	err = s.notifier.SendCode(ctx, CodeNotification{
		Email:   user.Email,
		Name:    user.Name,
		Code:    code,
		Purpose: purpose,
		TTL:     s.ledger.TTL(),
	})
	if err != nil {
		metrics.OTPDispatchFailures.WithLabelValues(string(purpose)).Inc()
		logger.WithModule("auth").Warn("one-time code not delivered",
			zap.String("user_id", user.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
	}
	return nil
}

func (s *AuthService) verify(ctx context.Context, user *models.User, purpose otp.Purpose, code string) error {
	err := s.ledger.Verify(ctx, user.ID, purpose, code)
	switch {
	case err == nil:
		metrics.OTPVerifications.WithLabelValues(string(purpose), "success").Inc()
	case errors.Is(err, otp.ErrInvalidOrExpiredCode):
		metrics.OTPVerifications.WithLabelValues(string(purpose), "rejected").Inc()
	default:
		metrics.OTPVerifications.WithLabelValues(string(purpose), "error").Inc()
	}
	return err
}

func (s *AuthService) succeed(ctx context.Context, action string, user *models.User) {
	metrics.AuthAttempts.WithLabelValues(action, AuditResultSuccess).Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID: &user.ID,
		Email:  user.Email,
		Action: action,
		Result: AuditResultSuccess,
	})
}

func (s *AuthService) fail(ctx context.Context, action string, user *models.User, email, reason string) {
	metrics.AuthAttempts.WithLabelValues(action, AuditResultFailure).Inc()
	entry := AuditEntry{
		Email:    email,
		Action:   action,
		Result:   AuditResultFailure,
		Metadata: map[string]any{"reason": reason},
	}
	if user != nil {
		entry.UserID = &user.ID
	}
	recordAudit(s.audit, ctx, entry)
}
