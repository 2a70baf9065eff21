// Package otp issues and verifies single-use numeric codes scoped to a user and
// a purpose. Only bcrypt hashes of codes are persisted.
package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/models"
	"github.com/charlesng35/skycast/pkg/crypto"
	appErrors "github.com/charlesng35/skycast/pkg/errors"
)

const (
	// CodeLength is the number of digits in every issued code.
	CodeLength = 6
	// DefaultTTL is how long a freshly issued code stays valid.
	DefaultTTL = 5 * time.Minute
)

// Purpose scopes a code to one flow.
type Purpose = models.OTPPurpose

const (
	PurposeLogin         = models.OTPPurposeLogin
	PurposePasswordReset = models.OTPPurposePasswordReset
)

// ErrInvalidOrExpiredCode is returned for every verification failure: no
// matching record, an expired record, a hash mismatch, or losing a race to a
// concurrent verifier.
var ErrInvalidOrExpiredCode = appErrors.ErrInvalidOrExpiredCode

// ErrUnknownPurpose rejects purposes outside the closed set.
var ErrUnknownPurpose = errors.New("otp: unknown purpose")

// ParsePurpose converts external input to a Purpose.
func ParsePurpose(value string) (Purpose, error) {
	p := Purpose(strings.TrimSpace(value))
	if !p.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownPurpose, value)
	}
	return p, nil
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithTTL overrides the code lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock injects a custom time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithHashCost sets the bcrypt work factor for code hashes. Tests lower it.
func WithHashCost(cost int) Option {
	return func(l *Ledger) {
		l.cost = cost
	}
}

// Ledger persists issued codes and enforces expiry, purpose scoping and single use.
type Ledger struct {
	db   *gorm.DB
	ttl  time.Duration
	cost int
	now  func() time.Time
}

func NewLedger(db *gorm.DB, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("otp ledger: db is required")
	}

	l := &Ledger{
		db:   db,
		ttl:  DefaultTTL,
		cost: crypto.PasswordCost,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// TTL reports the lifetime given to newly issued codes.
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Issue creates a new code for (userID, purpose) and returns its plaintext.
// The plaintext is not retrievable afterwards.
func (l *Ledger) Issue(ctx context.Context, userID string, purpose Purpose) (string, *models.OneTimeCode, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", nil, errors.New("otp ledger: user id is required")
	}
	if !purpose.Valid() {
		return "", nil, fmt.Errorf("%w %q", ErrUnknownPurpose, purpose)
	}

	code, err := crypto.RandomDigits(CodeLength)
	if err != nil {
		return "", nil, fmt.Errorf("otp ledger: generate code: %w", err)
	}
	hash, err := crypto.HashWithCost(code, l.cost)
	if err != nil {
		return "", nil, fmt.Errorf("otp ledger: hash code: %w", err)
	}

	now := l.now()
	record := &models.OneTimeCode{
		UserID:    userID,
		CodeHash:  hash,
		Purpose:   purpose,
		ExpiresAt: now.Add(l.ttl),
		CreatedAt: now,
	}
	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", nil, fmt.Errorf("otp ledger: store code: %w", err)
	}

	return code, record, nil
}

// Verify checks code against the most recently issued unused record for
// (userID, purpose) and consumes it on success. The consume step is a
// conditional update on used=false, so of two concurrent callers presenting
// the same valid code at most one succeeds.
func (l *Ledger) Verify(ctx context.Context, userID string, purpose Purpose, code string) error {
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" || !purpose.Valid() || !crypto.IsDigits(code, CodeLength) {
		return ErrInvalidOrExpiredCode
	}

	var record models.OneTimeCode
	err := l.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND used = ?", userID, purpose, false).
		Order("created_at DESC").
		Order("id DESC").
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidOrExpiredCode
	}
	if err != nil {
		return fmt.Errorf("otp ledger: find code: %w", err)
	}

	if !l.now().Before(record.ExpiresAt) {
		return ErrInvalidOrExpiredCode
	}
	if !crypto.VerifyPassword(record.CodeHash, code) {
		return ErrInvalidOrExpiredCode
	}

	res := l.db.WithContext(ctx).
		Model(&models.OneTimeCode{}).
		Where("id = ? AND used = ?", record.ID, false).
		Updates(map[string]any{"used": true, "used_at": l.now()})
	if res.Error != nil {
		return fmt.Errorf("otp ledger: consume code: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return ErrInvalidOrExpiredCode
	}
	return nil
}

// PurgeBefore deletes codes that expired or were used before cutoff. It is
// not part of the sign-in flow and only runs from the retention job.
func (l *Ledger) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("expires_at < ? OR (used = ? AND used_at < ?)", cutoff, true, cutoff).
		Delete(&models.OneTimeCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("otp ledger: purge codes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
