// Package scans saves the scan of a bin: reconciliation of every scanned
// component, the calibration step, the readiness check and the resulting
// lifecycle transition, in one transaction.
package scans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/internal/bins"
	"github.com/angelmondragon/bintrack-backend/internal/components"
	"github.com/angelmondragon/bintrack-backend/internal/locks"
	"github.com/angelmondragon/bintrack-backend/internal/readiness"
	"github.com/angelmondragon/bintrack-backend/internal/reconcile"
	"github.com/angelmondragon/bintrack-backend/internal/scale"
	"github.com/angelmondragon/bintrack-backend/internal/workorders"
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

type calibrator interface {
	Calibrate(ctx context.Context, tx *gorm.DB, update reconcile.CalibrationUpdate) (bool, error)
}

type scaleSource interface {
	Current(ctx context.Context, stationID string) (*scale.Reading, error)
}

type scanMetrics interface {
	IncReconciliation(discrepancy string)
	IncFailure(code string)
	IncTransition(from, to string)
	ObserveScan(duration time.Duration)
}

// Service saves bin scans.
type Service interface {
	SaveScan(ctx context.Context, input SaveScanInput) (*SaveScanResult, error)
}

// ReadingInput is a reading captured by the client, typically the station UI
// that already polled the scale.
type ReadingInput struct {
	NetKg           float64    `json:"netKg"`
	PieceCount      int        `json:"pieceCount"`
	UnitWeightGrams float64    `json:"unitWeightGrams"`
	SerialNo        string     `json:"serialNo"`
	Timestamp       *time.Time `json:"timestamp"`
}

// ComponentScan is the scan of one component. A scale component without a
// reading takes the station's live reading when UseScale is set.
type ComponentScan struct {
	ComponentID      string        `json:"componentId" validate:"required,max=64,scanid"`
	UseScale         bool          `json:"useScale"`
	Reading          *ReadingInput `json:"reading"`
	QuantityOverride *int          `json:"quantityOverride" validate:"omitempty,gte=0"`
}

// SaveScanInput is one scan of a bin. A JTC is linked only when the bin
// reconciles to Ready; moving a bin off another work order needs
// ConfirmReassign.
type SaveScanInput struct {
	BinID           string          `json:"binId"`
	JTC             string          `json:"jtc" validate:"max=64"`
	StationID       string          `json:"stationId" validate:"max=64"`
	ConfirmReassign bool            `json:"confirmReassign"`
	Components      []ComponentScan `json:"components" validate:"required,min=1,dive"`
}

// ComponentFailure reports a component whose scan could not be used. The
// rest of the bin is still saved.
type ComponentFailure struct {
	ComponentID string         `json:"componentId"`
	Code        pkgerrors.Code `json:"code"`
	Message     string         `json:"message"`
	Retryable   bool           `json:"retryable"`
}

type SaveScanResult struct {
	Bin        models.Bin            `json:"bin"`
	Components []models.BinComponent `json:"components"`
	Failures   []ComponentFailure    `json:"failures"`
	Readiness  readiness.BinVerdict  `json:"readiness"`
	Calibrated []string              `json:"calibrated,omitempty"`
}

type ServiceParams struct {
	Bins          bins.Repository
	Components    components.Repository
	Calibrator    calibrator
	WorkOrders    workorders.Repository
	Scale         scaleSource
	Tx            txRunner
	Locker        locks.Locker
	Outbox        outbox.Emitter
	Lifecycle     bins.Lifecycle
	Metrics       scanMetrics
	Logger        *logger.Logger
	DefaultCopies int
	Clock         func() time.Time
}

type service struct {
	bins          bins.Repository
	components    components.Repository
	calibrator    calibrator
	workOrders    workorders.Repository
	scale         scaleSource
	tx            txRunner
	locker        locks.Locker
	outbox        outbox.Emitter
	lifecycle     bins.Lifecycle
	metrics       scanMetrics
	logg          *logger.Logger
	defaultCopies int
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Bins == nil {
		return nil, fmt.Errorf("bin repository required")
	}
	if params.Components == nil {
		return nil, fmt.Errorf("component repository required")
	}
	if params.Calibrator == nil {
		return nil, fmt.Errorf("calibrator required")
	}
	if params.WorkOrders == nil {
		return nil, fmt.Errorf("work order repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	locker := params.Locker
	if locker == nil {
		locker = locks.NoopLocker{}
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
		bins:          params.Bins,
		components:    params.Components,
		calibrator:    params.Calibrator,
		workOrders:    params.WorkOrders,
		scale:         params.Scale,
		tx:            params.Tx,
		locker:        locker,
		outbox:        params.Outbox,
		lifecycle:     params.Lifecycle,
		metrics:       params.Metrics,
		logg:          params.Logger,
		defaultCopies: copies,
		now:           clock,
	}, nil
}

// scanState carries one SaveScan from the pre-transaction reads to the
// post-commit reporting.
type scanState struct {
	binID    string
	station  string
	scans    []ComponentScan
	readings map[string]*reconcile.ScaleReading
	failures error

	fresh      []reconcile.Record
	calibrated []string
	from       enums.BinStatus
	result     *SaveScanResult
}

func (s *service) SaveScan(ctx context.Context, input SaveScanInput) (*SaveScanResult, error) {
	started := time.Now()
	state, err := s.prepare(input)
	if err != nil {
		return nil, err
	}

	err = s.locker.WithLock(ctx, locks.ScopeBin, state.binID, func(ctx context.Context) error {
		if err := s.readScale(ctx, state); err != nil {
			return err
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.apply(ctx, tx, state, input.JTC, input.ConfirmReassign)
		})
	})
	if err != nil {
		return nil, err
	}

	s.report(ctx, state, time.Since(started))
	return state.result, nil
}

func (s *service) prepare(input SaveScanInput) (*scanState, error) {
	binID := identifiers.Normalize(input.BinID)
	if binID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bin id required")
	}
	if len(input.Components) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one component scan required").
			WithDetails(map[string]any{"binId": binID})
	}

	seen := make(map[string]struct{}, len(input.Components))
	scans := make([]ComponentScan, 0, len(input.Components))
	for _, scan := range input.Components {
		scan.ComponentID = identifiers.Normalize(scan.ComponentID)
		if scan.ComponentID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "component id required").
				WithDetails(map[string]any{"binId": binID})
		}
		if _, dup := seen[scan.ComponentID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("component %s scanned twice", scan.ComponentID)).
				WithDetails(map[string]any{"binId": binID, "componentId": scan.ComponentID})
		}
		seen[scan.ComponentID] = struct{}{}
		scans = append(scans, scan)
	}

	return &scanState{
		binID:    binID,
		station:  strings.TrimSpace(input.StationID),
		scans:    scans,
		readings: map[string]*reconcile.ScaleReading{},
	}, nil
}

// readScale resolves readings before the transaction opens so the bridge
// round trip never holds row locks. Components that need the live reading
// and cannot get one are recorded as failures.
func (s *service) readScale(ctx context.Context, state *scanState) error {
	var live []string
	for _, scan := range state.scans {
		if scan.Reading != nil {
			reading := reconcile.ScaleReading{
				NetKg:           scan.Reading.NetKg,
				PieceCount:      scan.Reading.PieceCount,
				UnitWeightGrams: scan.Reading.UnitWeightGrams,
				SerialNo:        strings.TrimSpace(scan.Reading.SerialNo),
			}
			if scan.Reading.Timestamp != nil {
				reading.Timestamp = scan.Reading.Timestamp.UTC()
			}
			state.readings[scan.ComponentID] = &reading
			continue
		}
		if scan.UseScale {
			live = append(live, scan.ComponentID)
		}
	}
	if len(live) == 0 {
		return nil
	}

	masters, err := s.components.FindByIDs(ctx, live)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load components")
	}
	for _, componentID := range live {
		master, ok := masters[componentID]
		if !ok || !master.RequiresScale {
			continue
		}
		if s.scale == nil {
			state.failures = multierr.Append(state.failures, componentError{componentID, pkgerrors.NoScaleData(s.stationLabel(state))})
			continue
		}
		current, err := s.scale.Current(ctx, state.station)
		if err != nil {
			state.failures = multierr.Append(state.failures, componentError{componentID, err})
			continue
		}
		reading := current.ToScaleReading()
		state.readings[componentID] = &reading
	}
	return nil
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, state *scanState, rawJTC string, confirmReassign bool) error {
	failures := state.failures
	state.fresh, state.calibrated = nil, nil

	binRepo := s.bins.WithTx(tx)
	bin, err := binRepo.FindBin(ctx, state.binID, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("bin %s not found", state.binID)).
				WithDetails(map[string]any{"binId": state.binID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bin")
	}
	if err := s.lifecycle.CanScan(*bin); err != nil {
		return err
	}

	jtc := ""
	if strings.TrimSpace(rawJTC) != "" {
		wo, err := workorders.LoadWorkOrder(ctx, s.workOrders.WithTx(tx), rawJTC)
		if err != nil {
			return err
		}
		jtc = wo.JTCID
	}

	priorRows, err := binRepo.ListComponents(ctx, bin.BinID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bin components")
	}
	ids := make([]string, 0, len(state.scans)+len(priorRows))
	for _, scan := range state.scans {
		ids = append(ids, scan.ComponentID)
	}
	for _, row := range priorRows {
		ids = append(ids, row.ComponentID)
	}
	masters, err := s.components.WithTx(tx).FindByIDs(ctx, identifiers.NormalizeAll(ids))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load components")
	}

	prior := make(map[string]reconcile.Record, len(priorRows))
	priorList := make([]reconcile.Record, 0, len(priorRows))
	for _, row := range priorRows {
		rec := fromRow(row, masters[row.ComponentID].RequiresScale)
		prior[row.ComponentID] = rec
		priorList = append(priorList, rec)
	}

	now := s.now()
	keepSaved := bin.QuantityCheckStatus.KeepsSavedQuantities()
	failed := failedSet(failures)
	for _, scan := range state.scans {
		row, ok := masters[scan.ComponentID]
		if !ok {
			failures = multierr.Append(failures, componentError{scan.ComponentID, pkgerrors.ComponentNotFound(scan.ComponentID)})
			continue
		}
		master := components.ToMaster(row)
		var priorRec *reconcile.Record
		if rec, ok := prior[scan.ComponentID]; ok {
			priorRec = &rec
		}
		if _, ok := failed[scan.ComponentID]; ok {
			state.fresh = append(state.fresh, reconcile.Unreconciled(master, priorRec, now))
			continue
		}

		rec, err := reconcile.Reconcile(master, reconcile.Input{
			ComponentID:       scan.ComponentID,
			Reading:           state.readings[scan.ComponentID],
			QuantityOverride:  scan.QuantityOverride,
			KeepSavedQuantity: keepSaved,
		}, priorRec, now)
		if err != nil {
			failures = multierr.Append(failures, componentError{scan.ComponentID, err})
			state.fresh = append(state.fresh, reconcile.Unreconciled(master, priorRec, now))
			continue
		}

		if update, ok := reconcile.CalibrationCandidate(master, rec); ok {
			changed, err := s.calibrator.Calibrate(ctx, tx, update)
			if err != nil {
				return err
			}
			if changed {
				state.calibrated = append(state.calibrated, scan.ComponentID)
			}
		}
		state.fresh = append(state.fresh, rec)
	}

	partial := bin.QuantityCheckStatus.IsPartialUpdate()
	merged := reconcile.Merge(priorList, state.fresh, partial)
	failureList := toFailures(failures)
	qcs := reconcile.CheckStatus(merged, len(failureList))
	verdict := readiness.EvaluateBin(merged)
	if qcs == enums.QuantityCheckReady && !verdict.Ready {
		qcs = enums.QuantityCheckPending
	}

	state.from = bin.Status
	previousJTC := bin.JTC
	relinked := false
	if jtc != "" && qcs == enums.QuantityCheckReady && jtc != bin.JTCValue() {
		if err := s.lifecycle.CanRelink(*bin, jtc, confirmReassign); err != nil {
			return err
		}
		assigned := jtc
		bin.JTC = &assigned
		relinked = true
	}
	bin.Status = s.lifecycle.AfterScan(*bin, qcs)
	bin.QuantityCheckStatus = qcs
	if state.station != "" {
		bin.StationID = state.station
	}
	bin.LastUpdated = now

	rows := toRows(bin.BinID, merged)
	if err := binRepo.ReplaceComponents(ctx, bin.BinID, rows); err != nil {
		return pkgerrors.WrapStorage(err, "save bin components")
	}
	if err := binRepo.Save(ctx, bin); err != nil {
		return pkgerrors.WrapStorage(err, "save bin")
	}

	failedIDs := make([]string, 0, len(failureList))
	for _, f := range failureList {
		failedIDs = append(failedIDs, f.ComponentID)
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBinScanned,
		AggregateType: enums.AggregateBin,
		AggregateID:   bin.BinID,
		Data: payloads.BinScannedEvent{
			BinID:               bin.BinID,
			JTC:                 bin.JTC,
			PreviousStatus:      state.from,
			Status:              bin.Status,
			QuantityCheckStatus: qcs,
			Components:          outcomes(merged),
			FailedComponents:    failedIDs,
			ScannedAt:           now,
		},
		OccurredAt: now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit bin scanned")
	}
	if relinked {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBinAssigned,
			AggregateType: enums.AggregateBin,
			AggregateID:   bin.BinID,
			Data:          payloads.BinAssignedEvent{BinID: bin.BinID, JTC: jtc, PreviousJTC: previousJTC},
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit bin assigned")
		}
	}
	// A bin that becomes ready, or is relabelled for a new work order, gets a label.
	if bin.Status == enums.BinStatusReadyForRelease && (state.from != enums.BinStatusReadyForRelease || relinked) {
		if err := bins.EmitLabelRequest(ctx, s.outbox, tx, bin.BinID, bin.JTCValue(), enums.LabelKindAssignment, s.defaultCopies, now); err != nil {
			return err
		}
	}

	state.result = &SaveScanResult{
		Bin:        *bin,
		Components: rows,
		Failures:   failureList,
		Readiness:  verdict,
		Calibrated: state.calibrated,
	}
	return nil
}

func (s *service) report(ctx context.Context, state *scanState, elapsed time.Duration) {
	result := state.result
	if s.metrics != nil {
		for _, rec := range state.fresh {
			kind := ""
			if rec.DiscrepancyType != nil {
				kind = string(*rec.DiscrepancyType)
			}
			s.metrics.IncReconciliation(kind)
		}
		for _, f := range result.Failures {
			s.metrics.IncFailure(string(f.Code))
		}
		if state.from != result.Bin.Status {
			s.metrics.IncTransition(string(state.from), string(result.Bin.Status))
		}
		s.metrics.ObserveScan(elapsed)
	}
	if s.logg == nil {
		return
	}

	logCtx := s.logg.WithBinID(ctx, result.Bin.BinID)
	if jtc := result.Bin.JTCValue(); jtc != "" {
		logCtx = s.logg.WithJTC(logCtx, jtc)
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"from":                  string(state.from),
		"to":                    string(result.Bin.Status),
		"quantity_check_status": string(result.Bin.QuantityCheckStatus),
		"components":            len(state.fresh),
		"failed_components":     len(result.Failures),
	})
	if len(result.Failures) > 0 {
		s.logg.Warn(logCtx, "bin scan saved with component failures")
		return
	}
	s.logg.Info(logCtx, "bin scan saved")
}

func (s *service) stationLabel(state *scanState) string {
	if state.station != "" {
		return state.station
	}
	return "default"
}

// componentError ties a failure to the component it belongs to.
type componentError struct {
	componentID string
	err         error
}

func (e componentError) Error() string {
	return e.componentID + ": " + e.err.Error()
}

func (e componentError) Unwrap() error {
	return e.err
}

func failedSet(err error) map[string]struct{} {
	out := map[string]struct{}{}
	for _, e := range multierr.Errors(err) {
		var ce componentError
		if errors.As(e, &ce) {
			out[ce.componentID] = struct{}{}
		}
	}
	return out
}

func toFailures(err error) []ComponentFailure {
	errs := multierr.Errors(err)
	out := make([]ComponentFailure, 0, len(errs))
	for _, e := range errs {
		var ce componentError
		if !errors.As(e, &ce) {
			continue
		}
		failure := ComponentFailure{
			ComponentID: ce.componentID,
			Code:        pkgerrors.CodeInternal,
			Message:     ce.err.Error(),
		}
		if typed := pkgerrors.As(ce.err); typed != nil {
			failure.Code = typed.Code()
			failure.Message = typed.Message()
		}
		failure.Retryable = pkgerrors.MetadataFor(failure.Code).Retryable
		out = append(out, failure)
	}
	return out
}
