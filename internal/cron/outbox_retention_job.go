package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
	"github.com/angelmondragon/mediconnect-backend/pkg/logger"
	"github.com/angelmondragon/mediconnect-backend/pkg/metrics"
	"gorm.io/gorm"
)

const (
	outboxRetentionDays = 14
	outboxMinAttempts   = 3
)

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	DeadLetters deadLetterCounter
	Metrics     *metrics.JobMetrics
	Retention   int
	MinAttempts int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts int) (int64, error)
}

type deadLetterCounter interface {
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

// NewOutboxRetentionJob prunes published fulfillment and inventory events.
// Events that took several publish attempts are kept for inspection. When a
// dead-letter counter is wired the job also reports DLQ depth, since a
// stuck reservation event there means a consumer never saw a stock change.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		deadLetters: params.DeadLetters,
		metrics:     params.Metrics,
		retention:   retention,
		minAttempts: minAttempts,
		now:         time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxRetentionRepo
	deadLetters deadLetterCounter
	metrics     *metrics.JobMetrics
	retention   int
	minAttempts int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.minAttempts)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "outbox retention cleanup complete")

	return j.reportDeadLetters(ctx)
}

func (j *outboxRetentionJob) reportDeadLetters(ctx context.Context) error {
	if j.deadLetters == nil {
		return nil
	}
	counts, err := j.deadLetters.CountByReason(ctx)
	if err != nil {
		return fmt.Errorf("count dead letters: %w", err)
	}
	var total int64
	for reason, n := range counts {
		j.metrics.SetDeadLetters(string(reason), n)
		total += n
	}
	if total > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "dead_letters", counts), "outbox dead letters pending review")
	}
	return nil
}
