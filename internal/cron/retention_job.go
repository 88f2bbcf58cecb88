package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

const (
	outboxRetentionDays       = 30
	scaleReadingRetentionDays = 14
	printJobRetentionDays     = 30
	dlqRetentionDays          = 90
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type scaleReadingRepo interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type dlqRepo interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type printJobRepo interface {
	DeletePrintedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// retentionJob deletes rows older than a number of days.
type retentionJob struct {
	name      string
	logg      *logger.Logger
	retention int
	purge     func(ctx context.Context, cutoff time.Time) (int64, error)
	now       func() time.Time
}

func newRetentionJob(name string, logg *logger.Logger, retention, fallback int, purge func(context.Context, time.Time) (int64, error)) (*retentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retention <= 0 {
		retention = fallback
	}
	return &retentionJob{
		name:      name,
		logg:      logg,
		retention: retention,
		purge:     purge,
		now:       time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "retention cleanup complete")
	return nil
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxRetentionRepo
	Retention  int
}

// NewOutboxRetentionJob deletes published outbox rows. Unpublished rows are
// kept whatever their age.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return newRetentionJob("outbox-retention", params.Logger, params.Retention, outboxRetentionDays,
		func(ctx context.Context, cutoff time.Time) (int64, error) {
			var deleted int64
			err := params.DB.WithTx(ctx, func(tx *gorm.DB) error {
				rows, err := params.Repository.DeletePublishedBefore(tx, cutoff)
				deleted = rows
				return err
			})
			return deleted, err
		})
}

type ScaleReadingRetentionJobParams struct {
	Logger     *logger.Logger
	Repository scaleReadingRepo
	Retention  int
}

// NewScaleReadingRetentionJob trims the scale reading audit log.
func NewScaleReadingRetentionJob(params ScaleReadingRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("scale reading repository required")
	}
	return newRetentionJob("scale-reading-retention", params.Logger, params.Retention, scaleReadingRetentionDays, params.Repository.DeleteBefore)
}

type PrintJobRetentionJobParams struct {
	Logger     *logger.Logger
	Repository printJobRepo
	Retention  int
}

// NewPrintJobRetentionJob deletes printed jobs. Queued and failed jobs stay
// until a station acknowledges them.
func NewPrintJobRetentionJob(params PrintJobRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("print job repository required")
	}
	return newRetentionJob("print-job-retention", params.Logger, params.Retention, printJobRetentionDays, params.Repository.DeletePrintedBefore)
}

type DLQRetentionJobParams struct {
	Logger     *logger.Logger
	Repository dlqRepo
	Retention  int
}

// NewDLQRetentionJob drops dead-lettered outbox events once nobody is going to replay them.
func NewDLQRetentionJob(params DLQRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("dlq repository required")
	}
	return newRetentionJob("outbox-dlq-retention", params.Logger, params.Retention, dlqRetentionDays, params.Repository.DeleteFailedBefore)
}
