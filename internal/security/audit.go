package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/app"
	iauth "github.com/charlesng35/skycast/internal/auth"
	"github.com/charlesng35/skycast/internal/database"
)

// CheckStatus captures the outcome of a posture check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a per-status count.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// Auditor evaluates the deployment's authentication posture at startup.
type Auditor struct {
	db  *gorm.DB
	jwt *iauth.JWTService
	cfg *app.Config
	now func() time.Time
}

// NewAuditor constructs an Auditor. Missing dependencies degrade the
// affected checks to warnings.
func NewAuditor(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) *Auditor {
	return &Auditor{db: db, jwt: jwt, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results.
func (a *Auditor) WithClock(clock func() time.Time) {
	if clock != nil {
		a.now = clock
	}
}

// Run executes all checks.
func (a *Auditor) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		a.checkDatabase(ctx),
		a.checkJWTSecret(),
		a.checkCodeLifetime(),
		a.checkCodeDelivery(),
		a.checkCORS(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: a.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (a *Auditor) checkDatabase(ctx context.Context) Check {
	if a.db == nil {
		return Check{
			ID:          "database_reachable",
			Status:      StatusWarn,
			Message:     "Database handle missing; connectivity not verified.",
			Remediation: "Open the database before running the audit.",
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := database.Ping(pingCtx, a.db); err != nil {
		return Check{
			ID:          "database_reachable",
			Status:      StatusFail,
			Message:     fmt.Sprintf("Database ping failed: %v", err),
			Remediation: "Check the database settings and that the server is running.",
		}
	}

	return Check{ID: "database_reachable", Status: StatusPass, Message: "Database reachable."}
}

func (a *Auditor) checkJWTSecret() Check {
	if a.jwt == nil {
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     "JWT service not initialised; signing secret not assessed.",
			Remediation: "Initialise the JWT service with a strong secret.",
		}
	}

	length := a.jwt.SecretLength()
	switch {
	case length < 32:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < 48:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider 48+ bytes.", length),
			Remediation: "Increase SKYCAST_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      "jwt_secret_strength",
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

const maxRecommendedCodeTTL = 15 * time.Minute

func (a *Auditor) checkCodeLifetime() Check {
	if a.cfg == nil {
		return Check{
			ID:      "otp_code_ttl",
			Status:  StatusWarn,
			Message: "Configuration not loaded; code lifetime not evaluated.",
		}
	}

	ttl := a.cfg.Auth.OTP.TTL
	if ttl > maxRecommendedCodeTTL {
		return Check{
			ID:          "otp_code_ttl",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("One-time code lifetime (%s) exceeds %s.", ttl, maxRecommendedCodeTTL),
			Remediation: "Lower SKYCAST_AUTH_OTP_TTL to shrink the guessing window.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}

	return Check{
		ID:      "otp_code_ttl",
		Status:  StatusPass,
		Message: fmt.Sprintf("One-time codes expire after %s.", ttl),
	}
}

func (a *Auditor) checkCodeDelivery() Check {
	if a.cfg == nil {
		return Check{
			ID:      "otp_delivery",
			Status:  StatusWarn,
			Message: "Configuration not loaded; code delivery not evaluated.",
		}
	}

	smtp := a.cfg.Email.SMTP
	switch {
	case !smtp.Enabled:
		return Check{
			ID:          "otp_delivery",
			Status:      StatusWarn,
			Message:     "SMTP is disabled; users cannot receive login or reset codes.",
			Remediation: "Enable email.smtp and point it at a relay.",
		}
	case strings.TrimSpace(smtp.From) == "":
		return Check{
			ID:          "otp_delivery",
			Status:      StatusWarn,
			Message:     "SMTP sender address is empty; relays may reject code emails.",
			Remediation: "Set SKYCAST_EMAIL_SMTP_FROM.",
		}
	case !smtp.UseTLS:
		return Check{
			ID:          "otp_delivery",
			Status:      StatusWarn,
			Message:     "SMTP runs without TLS; codes travel in clear text.",
			Remediation: "Enable email.smtp.use_tls.",
		}
	}

	return Check{ID: "otp_delivery", Status: StatusPass, Message: fmt.Sprintf("Codes delivered via %s:%d.", smtp.Host, smtp.Port)}
}

func (a *Auditor) checkCORS() Check {
	if a.cfg == nil {
		return Check{ID: "cors_origins", Status: StatusWarn, Message: "Configuration not loaded; CORS not evaluated."}
	}

	cors := a.cfg.Server.CORS
	wildcard := len(cors.AllowedOrigins) == 0
	for _, origin := range cors.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			wildcard = true
		}
	}

	if wildcard {
		return Check{
			ID:          "cors_origins",
			Status:      StatusWarn,
			Message:     "Any browser origin may call the API.",
			Remediation: "List the frontend origins in server.cors.allowed_origins.",
		}
	}

	return Check{
		ID:      "cors_origins",
		Status:  StatusPass,
		Message: "Browser origins restricted.",
		Details: map[string]any{"origins": cors.AllowedOrigins},
	}
}
