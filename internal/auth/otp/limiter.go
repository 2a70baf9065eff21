package otp

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/skycast/internal/cache"
	appErrors "github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/logger"
)

// LimiterConfig bounds how often codes can be requested per (user, purpose).
type LimiterConfig struct {
	// Cooldown is the minimum gap between two requests.
	Cooldown time.Duration
	// Window and MaxInWindow cap the total number of requests; exceeding the
	// cap blocks further requests for BlockFor.
	Window      time.Duration
	MaxInWindow int
	BlockFor    time.Duration
}

// Limiter throttles code issuance using the shared cache store. Store errors
// are logged and the request is let through.
type Limiter struct {
	store cache.Store
	cfg   LimiterConfig
}

// NewLimiter returns nil when store is nil; a nil Limiter allows everything.
func NewLimiter(store cache.Store, cfg LimiterConfig) *Limiter {
	if store == nil {
		return nil
	}
	if cfg.BlockFor <= 0 {
		cfg.BlockFor = cfg.Window * 3
	}
	return &Limiter{store: store, cfg: cfg}
}

// Allow records a request and returns appErrors.ErrOTPCooldown when it must be refused.
func (l *Limiter) Allow(ctx context.Context, userID string, purpose Purpose) error {
	if l == nil {
		return nil
	}
	log := logger.WithModule("otp.limiter")

	blockKey := fmt.Sprintf("otp:block:%s:%s", userID, purpose)
	if _, blocked, err := l.store.Get(ctx, blockKey); err != nil {
		log.Warn("read otp block marker", zap.String("user_id", userID), zap.Error(err))
	} else if blocked {
		return appErrors.ErrOTPCooldown
	}

	if l.cfg.Cooldown > 0 {
		lastKey := fmt.Sprintf("otp:last:%s:%s", userID, purpose)
		count, _, err := l.store.IncrementWithTTL(ctx, lastKey, l.cfg.Cooldown)
		if err != nil {
			log.Warn("track otp cooldown", zap.String("user_id", userID), zap.Error(err))
		} else if count > 1 {
			return appErrors.ErrOTPCooldown
		}
	}

	if l.cfg.MaxInWindow > 0 && l.cfg.Window > 0 {
		countKey := fmt.Sprintf("otp:count:%s:%s", userID, purpose)
		count, _, err := l.store.IncrementWithTTL(ctx, countKey, l.cfg.Window)
		if err != nil {
			log.Warn("track otp window", zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		if int(count) > l.cfg.MaxInWindow {
			if err := l.store.Set(ctx, blockKey, []byte("1"), l.cfg.BlockFor); err != nil {
				log.Warn("set otp block marker", zap.String("user_id", userID), zap.Error(err))
			}
			return appErrors.ErrOTPCooldown
		}
	}
	return nil
}
