package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/skycast/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultCodeRetention      = 30 * 24 * time.Hour
	defaultCodeSpec           = "@hourly"
	defaultCacheSpec          = "@every 15m"
	defaultAuditSpec          = "@daily"
)

// CodePurger deletes one-time codes that expired before a cutoff.
type CodePurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CachePurger deletes expired cache rows.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// AuditPruner deletes audit logs older than a number of days.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// Cleaner coordinates background maintenance: purging stale one-time codes,
// expired cache rows and old audit logs.
type Cleaner struct {
	codes     CodePurger
	cache     CachePurger
	audit     AuditPruner
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int
	codeTTL   time.Duration

	codeSchedule  string
	cacheSchedule string
	auditSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cutoff computations.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithCodeRetention keeps expired codes for d before purging them.
func WithCodeRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.codeTTL = d
		}
	}
}

func WithCodeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.codeSchedule = spec
		}
	}
}

func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil dependency
// skips the corresponding job.
func NewCleaner(codes CodePurger, cache CachePurger, audit AuditPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		codes:         codes,
		cache:         cache,
		audit:         audit,
		now:           time.Now,
		retention:     defaultAuditRetentionDays,
		codeTTL:       defaultCodeRetention,
		codeSchedule:  defaultCodeSpec,
		cacheSchedule: defaultCacheSpec,
		auditSchedule: defaultAuditSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

// Start registers the enabled jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.codes == nil && c.cache == nil && c.audit == nil {
		return nil
	}

	if c.codes != nil {
		if _, err := c.cron.AddFunc(c.codeSchedule, func() {
			if err := c.purgeCodes(context.Background()); err != nil {
				c.log.Warn("code cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if err := c.purgeCache(context.Background()); err != nil {
				c.log.Warn("cache cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			if err := c.pruneAudit(context.Background()); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and aggregates their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.codes != nil {
		errs = multierr.Append(errs, c.purgeCodes(ctx))
	}
	if c.cache != nil {
		errs = multierr.Append(errs, c.purgeCache(ctx))
	}
	if c.audit != nil {
		errs = multierr.Append(errs, c.pruneAudit(ctx))
	}
	return errs
}

func (c *Cleaner) purgeCodes(ctx context.Context) error {
	removed, err := c.codes.PurgeBefore(ctx, c.now().Add(-c.codeTTL))
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Debug("purged one-time codes", zap.Int64("removed", removed))
	}
	return nil
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	removed, err := c.cache.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Debug("purged cache entries", zap.Int64("removed", removed))
	}
	return nil
}

func (c *Cleaner) pruneAudit(ctx context.Context) error {
	removed, err := c.audit.CleanupOlderThan(ctx, c.retention)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Debug("pruned audit logs", zap.Int64("removed", removed))
	}
	return nil
}
