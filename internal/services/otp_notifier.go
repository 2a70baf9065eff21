package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/charlesng35/skycast/internal/auth/otp"
	"github.com/charlesng35/skycast/pkg/mail"
)

// ErrDispatch wraps notification delivery failures. The sign-in flow logs it
// and carries on.
var ErrDispatch = errors.New("otp notifier: dispatch failed")

// CodeNotification is everything needed to tell a user about a new code.
type CodeNotification struct {
	Email   string
	Name    string
	Code    string
	Purpose otp.Purpose
	TTL     time.Duration
}

// CodeNotifier delivers one-time codes to users.
type CodeNotifier interface {
	SendCode(ctx context.Context, n CodeNotification) error
}

// MailCodeNotifier sends codes as plain-text email.
type MailCodeNotifier struct {
	mailer mail.Mailer
	from   string
}

func NewMailCodeNotifier(mailer mail.Mailer, from string) *MailCodeNotifier {
	return &MailCodeNotifier{mailer: mailer, from: strings.TrimSpace(from)}
}

func (n *MailCodeNotifier) SendCode(ctx context.Context, note CodeNotification) error {
	if n == nil || n.mailer == nil {
		return fmt.Errorf("%w: no mailer configured", ErrDispatch)
	}

	label := purposeLabel(note.Purpose)
	minutes := int(note.TTL.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	greeting := "Hello"
	if name := strings.TrimSpace(note.Name); name != "" {
		greeting = "Hello " + name
	}

	msg := mail.Message{
		From:    n.from,
		To:      []string{note.Email},
		Subject: fmt.Sprintf("Your SkyCast %s code", label),
		Body: fmt.Sprintf(
			"%s,\n\nYour %s code is %s.\nIt expires in %d minute(s) and can be used once.\n\nIf you did not request this code you can ignore this email.\n",
			greeting, strings.ToLower(label), note.Code, minutes,
		),
	}
	if err := n.mailer.Send(ensureContext(ctx), msg); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	return nil
}

// purposeLabel turns "password_reset" into "Password Reset".
func purposeLabel(p otp.Purpose) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(p), "_", " "))
}
