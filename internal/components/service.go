package components

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/internal/reconcile"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/identifiers"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type calibrationMetrics interface {
	IncCalibration()
}

// Service exposes the component master catalog and the calibration step.
type Service interface {
	Get(ctx context.Context, componentID string) (*models.ComponentMaster, error)
	List(ctx context.Context) ([]models.ComponentMaster, error)
	LastKnown(ctx context.Context, binID, componentID string) (*LastKnown, error)
	Calibrate(ctx context.Context, tx *gorm.DB, update reconcile.CalibrationUpdate) (bool, error)
	RecordWeight(ctx context.Context, input RecordWeightInput) (*RecordWeightResult, error)
}

// LastKnown is a master together with what a bin last recorded for it.
// UnitWeightGrams follows the same bin-before-master precedence as scans.
type LastKnown struct {
	Master          models.ComponentMaster `json:"master"`
	BinRecord       *models.BinComponent   `json:"binRecord,omitempty"`
	UnitWeightGrams *float64               `json:"unitWeightGrams"`
}

// RecordWeightInput is a bulk weighing taken at the operator station.
type RecordWeightInput struct {
	ComponentID string  `json:"componentId"`
	WeightKg    float64 `json:"weightKg" validate:"gt=0"`
	Quantity    int     `json:"quantity" validate:"gt=0"`
}

type RecordWeightResult struct {
	ComponentID     string  `json:"componentId"`
	UnitWeightGrams float64 `json:"unitWeightGrams"`
	Calibrated      bool    `json:"calibrated"`
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outbox.Emitter
	Metrics calibrationMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics calibrationMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("component repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     clock,
	}, nil
}

func (s *service) Get(ctx context.Context, componentID string) (*models.ComponentMaster, error) {
	id := identifiers.Normalize(componentID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "component id required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, id)
	}
	return row, nil
}

func (s *service) List(ctx context.Context) ([]models.ComponentMaster, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list components")
	}
	return rows, nil
}

func (s *service) LastKnown(ctx context.Context, binID, componentID string) (*LastKnown, error) {
	master, err := s.Get(ctx, componentID)
	if err != nil {
		return nil, err
	}
	out := &LastKnown{Master: *master, UnitWeightGrams: master.UnitWeightGrams}

	bin := identifiers.Normalize(binID)
	if bin == "" {
		return out, nil
	}
	rec, err := s.repo.FindBinRecord(ctx, bin, master.ComponentID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return out, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bin component")
	}
	out.BinRecord = rec
	if rec.UnitWeightGrams != nil && *rec.UnitWeightGrams > 0 {
		out.UnitWeightGrams = rec.UnitWeightGrams
	}
	return out, nil
}

// Calibrate applies a unit weight change to the master inside tx. The master
// is re-read under lock so two scans racing on the same component settle on
// a single write. It reports whether the master changed.
func (s *service) Calibrate(ctx context.Context, tx *gorm.DB, update reconcile.CalibrationUpdate) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	repo := s.repo.WithTx(tx)
	row, err := repo.LockByID(ctx, update.ComponentID)
	if err != nil {
		return false, mapLookupError(err, update.ComponentID)
	}
	fresh, ok := reconcile.CalibrationFor(ToMaster(*row), update.Grams)
	if !ok {
		return false, nil
	}

	at := s.now()
	if err := repo.UpdateUnitWeight(ctx, fresh.ComponentID, fresh.Grams, at); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update unit weight")
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventComponentCalibrated,
		AggregateType: enums.AggregateComponent,
		AggregateID:   fresh.ComponentID,
		Data: payloads.ComponentCalibratedEvent{
			ComponentID:   fresh.ComponentID,
			PreviousGrams: fresh.Previous,
			Grams:         fresh.Grams,
			CalibratedAt:  at,
		},
		OccurredAt: at,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit calibration event")
	}

	if s.metrics != nil {
		s.metrics.IncCalibration()
	}
	if s.logg != nil {
		logCtx := s.logg.WithComponentID(ctx, fresh.ComponentID)
		logCtx = s.logg.WithField(logCtx, "unit_weight_grams", fresh.Grams)
		s.logg.Info(logCtx, "component unit weight calibrated")
	}
	return true, nil
}

func (s *service) RecordWeight(ctx context.Context, input RecordWeightInput) (*RecordWeightResult, error) {
	id := identifiers.Normalize(input.ComponentID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "component id required")
	}
	grams, ok := reconcile.UnitWeightFromWeighing(input.WeightKg, input.Quantity)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight and quantity must be positive").
			WithDetails(map[string]any{"componentId": id})
	}

	result := &RecordWeightResult{ComponentID: id, UnitWeightGrams: grams}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := s.Calibrate(ctx, tx, reconcile.CalibrationUpdate{ComponentID: id, Grams: grams})
		if err != nil {
			return err
		}
		result.Calibrated = changed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ToMaster projects a persisted master onto the reconciliation input.
func ToMaster(row models.ComponentMaster) reconcile.Master {
	return reconcile.Master{
		ComponentID:            row.ComponentID,
		ExpectedQuantityPerBin: row.ExpectedQuantityPerBin,
		UnitWeightGrams:        row.UnitWeightGrams,
		RequiresScale:          row.RequiresScale,
	}
}

func mapLookupError(err error, componentID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.ComponentNotFound(componentID)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load component")
}
