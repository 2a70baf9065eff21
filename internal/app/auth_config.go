package app

import (
	"time"

	"github.com/charlesng35/skycast/internal/auth"
	"github.com/charlesng35/skycast/internal/auth/otp"
)

const defaultCodeRetention = 30 * 24 * time.Hour

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}
	grantTTL := c.Reset.GrantTTL
	if grantTTL <= 0 {
		grantTTL = auth.DefaultResetGrantTTL
	}

	return auth.JWTConfig{
		Secret:        c.JWT.Secret,
		Issuer:        c.JWT.Issuer,
		SessionTTL:    ttl,
		ResetGrantTTL: grantTTL,
	}
}

// LedgerOptions converts the OTP settings into ledger options.
func (c AuthConfig) LedgerOptions() []otp.Option {
	return []otp.Option{otp.WithTTL(c.OTP.TTL)}
}

// LimiterConfig converts the OTP settings into code issuance throttling.
func (c AuthConfig) LimiterConfig() otp.LimiterConfig {
	return otp.LimiterConfig{
		Cooldown:    c.OTP.ResendCooldown,
		Window:      c.OTP.Window,
		MaxInWindow: c.OTP.MaxInWindow,
	}
}

// CodeRetention is how long used and expired codes are kept before purging.
func (c AuthConfig) CodeRetention() time.Duration {
	if c.OTP.CodeRetention <= 0 {
		return defaultCodeRetention
	}
	return c.OTP.CodeRetention
}
