package labels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/internal/bins"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/identifiers"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
	"github.com/angelmondragon/bintrack-backend/pkg/pagination"
)

const maxCopies = 20

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type printMetrics interface {
	IncPrintJob(status string)
}

// Service exposes label reprints and the print-station side of the queue.
type Service interface {
	RequestReprint(ctx context.Context, input ReprintInput) (*ReprintResult, error)
	ListJobs(ctx context.Context, params ListJobsParams) (*ListJobsResult, error)
	Ack(ctx context.Context, input AckInput) (*models.PrintJob, error)
}

type ReprintInput struct {
	BinID  string `json:"binId" validate:"required,max=64,scanid"`
	Copies int    `json:"copies" validate:"omitempty,gte=1,lte=20"`
}

type ReprintResult struct {
	BinID  string `json:"binId"`
	JTC    string `json:"jtc"`
	Copies int    `json:"copies"`
}

type ListJobsParams struct {
	Status *enums.PrintJobStatus
	BinID  string
	pagination.Params
}

type ListJobsResult struct {
	Items  []models.PrintJob `json:"items"`
	Cursor string            `json:"cursor"`
}

// AckInput is a print station's report on one job.
type AckInput struct {
	JobID   uuid.UUID
	Printed bool   `json:"printed"`
	Error   string `json:"error" validate:"max=512"`
}

type ServiceParams struct {
	Repo          Repository
	Bins          bins.Repository
	Tx            txRunner
	Outbox        outbox.Emitter
	Metrics       printMetrics
	Logger        *logger.Logger
	DefaultCopies int
	Clock         func() time.Time
}

type service struct {
	repo          Repository
	bins          bins.Repository
	tx            txRunner
	outbox        outbox.Emitter
	metrics       printMetrics
	logg          *logger.Logger
	defaultCopies int
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("print job repository required")
	}
	if params.Bins == nil {
		return nil, fmt.Errorf("bin repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	copies := params.DefaultCopies
	if copies <= 0 {
		copies = 1
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:          params.Repo,
		bins:          params.Bins,
		tx:            params.Tx,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		logg:          params.Logger,
		defaultCopies: copies,
		now:           clock,
	}, nil
}

// RequestReprint queues another label for a bin that holds a work order.
func (s *service) RequestReprint(ctx context.Context, input ReprintInput) (*ReprintResult, error) {
	binID := identifiers.Normalize(input.BinID)
	if binID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bin id required")
	}
	copies := input.Copies
	if copies <= 0 {
		copies = s.defaultCopies
	}
	if copies > maxCopies {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d copies per request", maxCopies))
	}

	var result *ReprintResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		bin, err := s.bins.WithTx(tx).FindBin(ctx, binID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("bin %s not found", binID)).
					WithDetails(map[string]any{"binId": binID})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bin")
		}
		jtc := bin.JTCValue()
		if jtc == "" {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("bin %s has no work order to label", binID)).
				WithDetails(map[string]any{"binId": binID, "status": bin.Status})
		}
		if err := bins.EmitLabelRequest(ctx, s.outbox, tx, binID, jtc, enums.LabelKindReprint, copies, s.now()); err != nil {
			return err
		}
		result = &ReprintResult{BinID: binID, JTC: jtc, Copies: copies}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithJTC(s.logg.WithBinID(ctx, binID), result.JTC)
		s.logg.Info(s.logg.WithField(logCtx, "copies", copies), "label reprint requested")
	}
	return result, nil
}

func (s *service) ListJobs(ctx context.Context, params ListJobsParams) (*ListJobsResult, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := listQuery{
		status: params.Status,
		binID:  identifiers.Normalize(params.BinID),
		limit:  pagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list print jobs")
	}
	items, next := pagination.Page(rows, limit, func(j models.PrintJob) pagination.Cursor {
		return pagination.Cursor{CreatedAt: j.CreatedAt, ID: j.ID.String()}
	})
	if items == nil {
		items = []models.PrintJob{}
	}
	return &ListJobsResult{Items: items, Cursor: next}, nil
}

// Ack records the outcome reported by a print station. A printed job is
// final; acknowledging it as printed again returns it unchanged.
func (s *service) Ack(ctx context.Context, input AckInput) (*models.PrintJob, error) {
	if input.JobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job id required")
	}
	message := strings.TrimSpace(input.Error)
	if !input.Printed && message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "error required when the label was not printed")
	}

	var (
		job     *models.PrintJob
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindByID(ctx, input.JobID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "print job not found").
					WithDetails(map[string]any{"jobId": input.JobID.String()})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load print job")
		}
		job = found
		if job.Status == enums.PrintJobStatusPrinted {
			if input.Printed {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "print job already printed").
				WithDetails(map[string]any{"jobId": job.ID.String()})
		}

		if input.Printed {
			at := s.now()
			job.Status = enums.PrintJobStatusPrinted
			job.PrintedAt = &at
			job.LastError = nil
		} else {
			job.Status = enums.PrintJobStatusFailed
			job.LastError = &message
		}
		changed = true
		if err := repo.Save(ctx, job); err != nil {
			return pkgerrors.WrapStorage(err, "save print job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		if s.metrics != nil {
			s.metrics.IncPrintJob(string(job.Status))
		}
		if s.logg != nil {
			logCtx := s.logg.WithBinID(ctx, job.BinID)
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"print_job_id": job.ID.String(),
				"status":       string(job.Status),
			})
			s.logg.Info(logCtx, "print job acknowledged")
		}
	}
	return job, nil
}
