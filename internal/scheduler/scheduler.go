package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referrals/internal/clock"
	obslogger "github.com/smallbiznis/referrals/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/referrals/internal/observability/metrics"
	webhookdomain "github.com/smallbiznis/referrals/internal/webhook/domain"
	dbpkg "github.com/smallbiznis/referrals/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobAbandonStale = "abandon_stale_deliveries"
	JobPruneJournal = "prune_delivery_journal"

	// maxPruneRounds bounds one prune run so a large backlog drains over
	// several ticks instead of holding the job open.
	maxPruneRounds = 20
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    webhookdomain.Repository
	GenID   *snowflake.Node
	Clock   clock.Clock         `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
	Config  Config              `optional:"true"`
}

// Scheduler runs housekeeping over the webhook delivery journal.
type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	repo    webhookdomain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Repo == nil || p.GenID == nil {
		return nil, ErrInvalidConfig
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		repo:    p.Repo,
		genID:   p.GenID,
		clock:   clk,
		metrics: p.Metrics,
	}, nil
}

// RunForever runs every job once per interval until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) (int64, error)
	}{
		{JobAbandonStale, s.AbandonStaleDeliveries},
		{JobPruneJournal, s.PruneJournal},
	}
	for _, job := range jobs {
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}

	return err
}

// AbandonStaleDeliveries closes journal rows whose delivery never finished,
// typically because the process died mid-request.
func (s *Scheduler) AbandonStaleDeliveries(ctx context.Context) (int64, error) {
	now := s.clock.Now().UTC()
	cutoff := now.Add(-s.cfg.StaleAfter)

	affected, err := s.repo.AbandonStale(ctx, s.db, cutoff, now)
	if err != nil {
		return 0, dbpkg.WrapPersistence("abandon stale deliveries", err)
	}
	return affected, nil
}

// PruneJournal deletes deliveries older than the retention window in batches.
func (s *Scheduler) PruneJournal(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-s.cfg.Retention)

	var total int64
	for round := 0; round < maxPruneRounds; round++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		deleted, err := s.repo.PruneBefore(ctx, s.db, cutoff, s.cfg.BatchSize)
		if err != nil {
			return total, dbpkg.WrapPersistence("prune delivery journal", err)
		}
		total += deleted
		if deleted < int64(s.cfg.BatchSize) {
			break
		}
	}
	return total, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(context.Context) (int64, error)) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	runID := s.genID.Generate().String()
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("job", name),
		zap.String("run_id", runID),
	)

	affected, err := fn(ctx)
	elapsed := time.Since(start)
	if err == nil {
		s.metrics.RecordMaintenanceJob(ctx, name, "success", affected, elapsed)
		if affected > 0 {
			log.Info("job finished", zap.Int64("rows", affected), zap.Duration("duration", elapsed))
		} else {
			log.Debug("job finished", zap.Duration("duration", elapsed))
		}
		return nil
	}

	// Deadline is a soft timeout; the next tick picks up the remainder.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.RecordMaintenanceJob(ctx, name, "timeout", affected, elapsed)
		log.Warn("job timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Int64("rows", affected),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordMaintenanceJob(ctx, name, "error", affected, elapsed)
	log.Error("job failed", zap.Error(err))
	return fmt.Errorf("%s: %w", name, err)
}
