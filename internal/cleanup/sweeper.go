// Package cleanup removes registrations that never confirmed their email.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/account"
	"github.com/elskow/tourfurr/internal/config"
	"github.com/elskow/tourfurr/internal/identity"
)

const (
	StepAuth       = "auth"
	StepStorage    = "storage"
	StepDatabase   = "database"
	StepProcessing = "processing"

	TriggerHTTP     = "http"
	TriggerSchedule = "schedule"

	batchSize = 500
)

var ErrAlreadyRunning = errors.New("cleanup already running")

// Identities removes credential records; *identity.Service satisfies it.
type Identities interface {
	Delete(ctx context.Context, id string) error
}

type Avatars interface {
	Remove(ctx context.Context, key string) error
}

// Codes is one verification code table.
type Codes interface {
	Purge(ctx context.Context, email string) error
	PurgeExpired(ctx context.Context, retain time.Duration) (int64, error)
}

type Failure struct {
	Email string `json:"email"`
	Error string `json:"error"`
	Step  string `json:"step"`
}

type Report struct {
	Message      string    `json:"message"`
	Deleted      int       `json:"deleted"`
	DeletedUsers []string  `json:"deleted_users"`
	Errors       []Failure `json:"errors"`
	CodesPurged  int64     `json:"codes_purged"`
	Timestamp    time.Time `json:"timestamp"`
}

type Sweeper struct {
	accounts   account.Repository
	cache      *account.Cache
	identities Identities
	avatars    Avatars
	codes      []Codes
	grace      time.Duration
	retain     time.Duration
	metrics    *MetricsCollector
	log        *zap.Logger
	now        func() time.Time
	running    atomic.Bool
}

func NewSweeper(
	cfg *config.AppConfig,
	accounts account.Repository,
	cache *account.Cache,
	identities Identities,
	avatars Avatars,
	metrics *MetricsCollector,
	log *zap.Logger,
	codes ...Codes,
) *Sweeper {
	return &Sweeper{
		accounts:   accounts,
		cache:      cache,
		identities: identities,
		avatars:    avatars,
		codes:      codes,
		grace:      cfg.Auth.GracePeriod,
		retain:     cfg.Verification.RetainExpired,
		metrics:    metrics,
		log:        log.Named("cleanup"),
		now:        time.Now,
	}
}

// Run deletes every unverified account past its grace period, then drops
// long-expired codes. Failures are collected per account; the sweep only
// returns an error when it could not start.
func (s *Sweeper) Run(ctx context.Context, trigger string) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	runID := ksuid.New().String()
	s.metrics.StartRun(runID, trigger)

	report, err := s.sweep(ctx)
	if err != nil {
		s.metrics.EndRun(runID, nil, "failed")
		s.log.Error("cleanup failed", zap.String("run_id", runID), zap.Error(err))
		return nil, err
	}

	status := "completed"
	if len(report.Errors) > 0 {
		status = "partial"
	}
	s.metrics.EndRun(runID, report, status)

	s.log.Info("cleanup finished",
		zap.String("run_id", runID),
		zap.String("trigger", trigger),
		zap.Int("deleted", report.Deleted),
		zap.Int("failures", len(report.Errors)),
		zap.Int64("codes_purged", report.CodesPurged))
	return report, nil
}

func (s *Sweeper) sweep(ctx context.Context) (*Report, error) {
	now := s.now()
	report := &Report{DeletedUsers: []string{}, Errors: []Failure{}, Timestamp: now.UTC()}

	stale, err := s.accounts.ListUnverifiedBefore(ctx, now.Add(-s.grace), batchSize)
	if err != nil {
		return nil, fmt.Errorf("list unverified accounts: %w", err)
	}

	for i := range stale {
		a := &stale[i]
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, Failure{Email: a.Email, Error: err.Error(), Step: StepProcessing})
			continue
		}
		if !a.UnverifiedExpired(s.grace, now) {
			continue
		}
		if f := s.remove(ctx, a); f != nil {
			report.Errors = append(report.Errors, *f)
			continue
		}
		report.Deleted++
		report.DeletedUsers = append(report.DeletedUsers, a.Email)
	}

	if ctx.Err() == nil {
		report.CodesPurged = s.purgeExpiredCodes(ctx)
	}

	report.Message = fmt.Sprintf("Deleted %d unverified accounts", report.Deleted)
	return report, nil
}

// remove deletes the identity first so the email is free even if a later
// step fails; the row stays listed and the next run retries it.
func (s *Sweeper) remove(ctx context.Context, a *account.Account) *Failure {
	fail := func(step string, err error) *Failure {
		s.log.Warn("failed to remove unverified account",
			zap.String("account_id", a.ID),
			zap.String("step", step),
			zap.Error(err))
		return &Failure{Email: a.Email, Error: err.Error(), Step: step}
	}

	if err := s.identities.Delete(ctx, a.ID); err != nil && !errors.Is(err, identity.ErrIdentityNotFound) {
		return fail(StepAuth, err)
	}
	if err := s.avatars.Remove(ctx, a.AvatarKey); err != nil {
		return fail(StepStorage, err)
	}
	for _, c := range s.codes {
		if err := c.Purge(ctx, a.Email); err != nil {
			return fail(StepDatabase, err)
		}
	}
	if err := s.accounts.Delete(ctx, a.ID); err != nil && !errors.Is(err, account.ErrAccountNotFound) {
		return fail(StepDatabase, err)
	}
	s.cache.Evict(a.ID)
	return nil
}

func (s *Sweeper) purgeExpiredCodes(ctx context.Context) int64 {
	var total int64
	for _, c := range s.codes {
		n, err := c.PurgeExpired(ctx, s.retain)
		if err != nil {
			s.log.Warn("failed to purge expired codes", zap.Error(err))
			continue
		}
		total += n
	}
	return total
}

func (s *Sweeper) Metrics() *MetricsCollector {
	return s.metrics
}
