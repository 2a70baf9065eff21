package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/skycast/pkg/logger"
)

// Audit actions.
const (
	AuditUserRegister       = "user.register"
	AuditUserUpdate         = "user.update"
	AuditUserPasswordChange = "user.password.change"
	AuditUserDelete         = "user.delete"
	AuditLoginPassword      = "auth.login.password"
	AuditLoginOTP           = "auth.login.otp"
	AuditResetRequest       = "auth.reset.request"
	AuditResetVerify        = "auth.reset.verify"
	AuditResetComplete      = "auth.reset.complete"

	AuditResultSuccess = "success"
	AuditResultFailure = "failure"
)

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if entry.IPAddress == "" && entry.UserAgent == "" {
		if meta, ok := RequestMetaFromContext(ctx); ok {
			entry.IPAddress = meta.IPAddress
			entry.UserAgent = meta.UserAgent
		}
	}
	if err := audit.Log(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("audit write failed",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

type requestMetaKey struct{}

// RequestMeta carries caller details from the HTTP layer into audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ContextWithRequestMeta attaches request details to ctx.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ensureContext(ctx), requestMetaKey{}, meta)
}

func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}
