package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/skycast/internal/auth"
	"github.com/charlesng35/skycast/internal/auth/otp"
	"github.com/charlesng35/skycast/internal/cache"
	"github.com/charlesng35/skycast/internal/database/testutil"
	"github.com/charlesng35/skycast/internal/models"
)

// codeInbox captures delivered codes instead of mailing them.
type codeInbox struct {
	mu    sync.Mutex
	sent  []CodeNotification
	err   error
	calls int
}

func (b *codeInbox) SendCode(_ context.Context, n CodeNotification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, n)
	return nil
}

func (b *codeInbox) latest(t *testing.T, email string, purpose otp.Purpose) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.sent) - 1; i >= 0; i-- {
		if b.sent[i].Email == email && b.sent[i].Purpose == purpose {
			return b.sent[i].Code
		}
	}
	t.Fatalf("no %s code delivered to %s", purpose, email)
	return ""
}

type authFixture struct {
	db     *gorm.DB
	users  *UserService
	audit  *AuditService
	ledger *otp.Ledger
	tokens *auth.JWTService
	store  *cache.DatabaseStore
	inbox  *codeInbox
	auth   *AuthService
}

type authFixtureOption func(*authFixtureConfig)

type authFixtureConfig struct {
	limiter *otp.LimiterConfig
}

func withLimiter(cfg otp.LimiterConfig) authFixtureOption {
	return func(c *authFixtureConfig) {
		c.limiter = &cfg
	}
}

func newAuthFixture(t *testing.T, opts ...authFixtureOption) *authFixture {
	t.Helper()
	cfg := authFixtureConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	users, err := NewUserService(db, audit, WithPasswordHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	ledger, err := otp.NewLedger(db, otp.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	tokens, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret-test-secret-test-secret", Issuer: "skycast-test"})
	require.NoError(t, err)

	store := cache.NewDatabaseStore(db)
	inbox := &codeInbox{}

	authOpts := []AuthServiceOption{WithAuthAudit(audit)}
	if cfg.limiter != nil {
		authOpts = append(authOpts, WithAuthLimiter(otp.NewLimiter(store, *cfg.limiter)))
	}
	authSvc, err := NewAuthService(users, ledger, inbox, tokens, store, authOpts...)
	require.NoError(t, err)

	return &authFixture{
		db:     db,
		users:  users,
		audit:  audit,
		ledger: ledger,
		tokens: tokens,
		store:  store,
		inbox:  inbox,
		auth:   authSvc,
	}
}

func (f *authFixture) register(t *testing.T, name, email, password string) *models.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), CreateUserInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return user
}

func (f *authFixture) codes(t *testing.T, userID string, purpose otp.Purpose) []models.OneTimeCode {
	t.Helper()
	var records []models.OneTimeCode
	require.NoError(t, f.db.Where("user_id = ? AND purpose = ?", userID, purpose).
		Order("created_at ASC").Find(&records).Error)
	return records
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func newTestUserService(t *testing.T, db *gorm.DB) *UserService {
	t.Helper()
	svc, err := NewUserService(db, nil, WithPasswordHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	return svc
}

func mustCreateUser(t *testing.T, svc *UserService, email string) *models.User {
	t.Helper()
	user, err := svc.Create(context.Background(), CreateUserInput{Name: "Test User", Email: email, Password: "secret1"})
	require.NoError(t, err)
	return user
}
