package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/multierr"

	"github.com/charlesng35/skycast/internal/auth/otp"
	"github.com/charlesng35/skycast/internal/cache"
	testutil "github.com/charlesng35/skycast/internal/database/testutil"
	"github.com/charlesng35/skycast/internal/models"
	"github.com/charlesng35/skycast/internal/services"
)

type mutableClock struct {
	current time.Time
}

func (c *mutableClock) Now() time.Time {
	return c.current
}

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	ctx := context.Background()
	now := time.Now().UTC()
	clock := &mutableClock{current: now.Add(-40 * 24 * time.Hour)}

	ledger, err := otp.NewLedger(db, otp.WithClock(clock.Now), otp.WithHashCost(bcrypt.MinCost))
	require.NoError(t, err)
	userID := uuid.NewString()
	_, stale, err := ledger.Issue(ctx, userID, otp.PurposeLogin)
	require.NoError(t, err)

	store := cache.NewDatabaseStore(db, cache.WithClock(clock.Now))
	require.NoError(t, store.Set(ctx, "weather:stale", []byte("{}"), time.Minute))

	clock.current = now
	_, fresh, err := ledger.Issue(ctx, userID, otp.PurposeLogin)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "weather:fresh", []byte("{}"), time.Hour))

	auditSvc, err := services.NewAuditService(db)
	require.NoError(t, err)
	require.NoError(t, auditSvc.Log(ctx, services.AuditEntry{Action: "auth.login", Result: "success", Email: "alice@example.com"}))
	require.NoError(t, db.Model(&models.AuditLog{}).Where("1 = 1").Update("created_at", now.AddDate(0, 0, -10)).Error)

	c := NewCleaner(ledger, store, auditSvc,
		WithNow(clock.Now),
		WithAuditRetentionDays(7),
		WithCodeRetention(24*time.Hour),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)
	require.NoError(t, c.RunOnce(ctx))

	var codes []models.OneTimeCode
	require.NoError(t, db.Find(&codes).Error)
	require.Len(t, codes, 1)
	require.Equal(t, fresh.ID, codes[0].ID)
	require.NotEqual(t, stale.ID, codes[0].ID)

	_, ok, err := store.Get(ctx, "weather:fresh")
	require.NoError(t, err)
	require.True(t, ok)
	var cacheRows int64
	require.NoError(t, db.Model(&models.CacheEntry{}).Count(&cacheRows).Error)
	require.Equal(t, int64(1), cacheRows)

	var auditCount int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&auditCount).Error)
	require.Zero(t, auditCount)
}

type failingPurger struct{ err error }

func (f failingPurger) PurgeBefore(context.Context, time.Time) (int64, error) { return 0, f.err }
func (f failingPurger) PurgeExpired(context.Context) (int64, error)           { return 0, f.err }

func TestCleanerRunOnceAggregatesErrors(t *testing.T) {
	codesErr := errors.New("codes offline")
	cacheErr := errors.New("cache offline")

	c := NewCleaner(failingPurger{err: codesErr}, failingPurger{err: cacheErr}, nil)
	err := c.RunOnce(context.Background())
	require.ErrorIs(t, err, codesErr)
	require.ErrorIs(t, err, cacheErr)
	require.Len(t, multierr.Errors(err), 2)
}

func TestCleanerStartSchedulesJobs(t *testing.T) {
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	c := NewCleaner(failingPurger{}, failingPurger{}, nil, WithCron(scheduler), WithCodeSchedule("@every 1h"))
	require.NoError(t, c.Start())
	t.Cleanup(func() { <-c.Stop().Done() })

	require.Len(t, scheduler.Entries(), 2)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	c := NewCleaner(failingPurger{}, nil, nil, WithCodeSchedule("not a schedule"))
	require.Error(t, c.Start())
}

func TestCleanerWithoutJobsIsNoop(t *testing.T) {
	c := NewCleaner(nil, nil, nil)
	require.NoError(t, c.Start())
	require.NoError(t, c.RunOnce(context.Background()))
}
