package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	from   string
	rcpts  []string
	body   bytes.Buffer
	authed bool
	quit   bool
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (f *fakeClient) Mail(from string) error          { f.from = from; return nil }
func (f *fakeClient) Rcpt(to string) error            { f.rcpts = append(f.rcpts, to); return nil }
func (f *fakeClient) Data() (io.WriteCloser, error)   { return nopWriteCloser{&f.body}, nil }
func (f *fakeClient) Quit() error                     { f.quit = true; return nil }
func (f *fakeClient) Close() error                    { return nil }
func (f *fakeClient) StartTLS(*tls.Config) error      { return nil }
func (f *fakeClient) Auth(smtp.Auth) error            { f.authed = true; return nil }
func (f *fakeClient) Extension(string) (bool, string) { return false, "" }

func newTestMailer(t *testing.T, cfg SMTPSettings, client *fakeClient) *smtpMailer {
	t.Helper()
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)
	sm := m.(*smtpMailer)
	sm.dial = func(context.Context, SMTPSettings) (net.Conn, smtpClient, error) {
		server, conn := net.Pipe()
		t.Cleanup(func() { _ = server.Close() })
		return conn, client, nil
	}
	sm.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return sm
}

func enabledSettings() SMTPSettings {
	return SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587, From: "no-reply@skycast.test"}
}

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com"})
	require.ErrorContains(t, err, "port is required")

	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, mailer.(*smtpMailer).cfg.Timeout)
}

func TestSMTPMailerSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"alice@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSMTPMailerDelivers(t *testing.T) {
	client := &fakeClient{}
	cfg := enabledSettings()
	cfg.Username = "mailer"
	m := newTestMailer(t, cfg, client)

	err := m.Send(context.Background(), Message{
		To:      []string{"alice@example.com", " alice@example.com "},
		Subject: "Your Login code\r\nBcc: evil@example.com",
		Body:    "Your code is 123456",
	})
	require.NoError(t, err)

	require.True(t, client.authed)
	require.True(t, client.quit)
	require.Equal(t, "no-reply@skycast.test", client.from)
	require.Equal(t, []string{"alice@example.com"}, client.rcpts)

	body := client.body.String()
	require.Contains(t, body, "Subject: Your Login code  Bcc: evil@example.com\r\n")
	require.Contains(t, body, "Date: Wed, 01 May 2024 09:00:00 +0000")
	require.Contains(t, body, "@skycast.test>")
	require.True(t, strings.HasSuffix(body, "\r\n\r\nYour code is 123456"))
}

func TestSMTPMailerEnvelopeValidation(t *testing.T) {
	m := newTestMailer(t, enabledSettings(), &fakeClient{})

	err := m.Send(context.Background(), Message{To: []string{"  ", "\t"}})
	require.ErrorContains(t, err, "at least one recipient")

	err = m.Send(context.Background(), Message{From: "invalid-from", To: []string{"alice@example.com"}})
	require.ErrorContains(t, err, "invalid from address")

	err = m.Send(context.Background(), Message{To: []string{"alice@example.com", "bad-address"}})
	require.ErrorContains(t, err, "invalid recipient address")
}

func TestSMTPMailerDialFailure(t *testing.T) {
	m := newTestMailer(t, enabledSettings(), &fakeClient{})
	m.dial = func(context.Context, SMTPSettings) (net.Conn, smtpClient, error) {
		return nil, nil, errors.New("smtp: dial refused")
	}

	err := m.Send(context.Background(), Message{To: []string{"alice@example.com"}})
	require.ErrorContains(t, err, "dial refused")
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	_, ok := rec.Last()
	require.False(t, ok)

	require.NoError(t, rec.Send(context.Background(), Message{Subject: "one"}))
	rec.Err = errors.New("down")
	require.Error(t, rec.Send(context.Background(), Message{Subject: "two"}))

	last, ok := rec.Last()
	require.True(t, ok)
	require.Equal(t, "two", last.Subject)
	require.Len(t, rec.Messages(), 2)
}

func TestUniqueAddresses(t *testing.T) {
	result := uniqueAddresses([]string{"alice@example.com", "bob@example.com", " alice@example.com ", "", "bob@example.com"})
	require.Equal(t, []string{"alice@example.com", "bob@example.com"}, result)
}
