package bins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/internal/checklist"
	"github.com/angelmondragon/bintrack-backend/internal/locks"
	"github.com/angelmondragon/bintrack-backend/internal/readiness"
	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/identifiers"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/bintrack-backend/pkg/pagination"
)

const defaultReturnLocation = "WAREHOUSE"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lifecycleMetrics interface {
	IncTransition(from, to string)
	IncRelease(outcome string)
}

// Service drives bins through their lifecycle.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Bin, error)
	Get(ctx context.Context, binID string) (*Detail, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ListByJTC(ctx context.Context, jtc string, status *enums.BinStatus) ([]models.Bin, error)
	CountByJTC(ctx context.Context, jtc string) (int64, error)
	Zones(ctx context.Context) ([]ZoneSummary, error)
	AssignJTC(ctx context.Context, input AssignInput) (*BatchResult, error)
	Release(ctx context.Context, input ReleaseInput) (*ReleaseResult, error)
	Return(ctx context.Context, input ReturnInput) (*BatchResult, error)
	SetStatus(ctx context.Context, input SetStatusInput) (*models.Bin, error)
}

type ServiceParams struct {
	Repo          Repository
	WorkOrders    workorders.Repository
	Checklist     checklist.Repository
	Tx            txRunner
	Locker        locks.Locker
	Outbox        outbox.Emitter
	Lifecycle     Lifecycle
	Metrics       lifecycleMetrics
	Logger        *logger.Logger
	DefaultCopies int
	Clock         func() time.Time
}

type service struct {
	repo          Repository
	workOrders    workorders.Repository
	checklist     checklist.Repository
	tx            txRunner
	locker        locks.Locker
	outbox        outbox.Emitter
	lifecycle     Lifecycle
	metrics       lifecycleMetrics
	logg          *logger.Logger
	defaultCopies int
	now           func() time.Time
}

// transition is a committed status change, reported once the transaction
// has succeeded.
type transition struct {
	binID string
	jtc   string
	from  enums.BinStatus
	to    enums.BinStatus
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("bin repository required")
	}
	if params.WorkOrders == nil {
		return nil, fmt.Errorf("work order repository required")
	}
	if params.Checklist == nil {
		return nil, fmt.Errorf("checklist repository required")
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
		repo:          params.Repo,
		workOrders:    params.WorkOrders,
		checklist:     params.Checklist,
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

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Bin, error) {
	binID := identifiers.Normalize(input.BinID)
	if binID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bin id required")
	}
	now := s.now()
	bin := &models.Bin{
		BinID:               binID,
		Status:              enums.BinStatusPendingJTC,
		QuantityCheckStatus: enums.QuantityCheckUnchecked,
		Location:            strings.TrimSpace(input.Location),
		WorkcellID:          identifiers.Normalize(input.WorkcellID),
		StationID:           strings.TrimSpace(input.StationID),
		Remark:              strings.TrimSpace(input.Remark),
		LastUpdated:         now,
		CreatedAt:           now,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		_, err := repo.FindBin(ctx, binID, false)
		switch {
		case err == nil:
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("bin %s already exists", binID)).
				WithDetails(map[string]any{"binId": binID})
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bin")
		}
		if err := repo.Create(ctx, bin); err != nil {
			return pkgerrors.WrapStorage(err, "create bin")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordTransitions(ctx, []transition{{binID: binID, to: enums.BinStatusPendingJTC}})
	return bin, nil
}

func (s *service) Get(ctx context.Context, binID string) (*Detail, error) {
	id := identifiers.Normalize(binID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bin id required")
	}
	bin, err := s.repo.FindBin(ctx, id, false)
	if err != nil {
		return nil, mapBinLookup(err, id)
	}
	components, err := s.repo.ListComponents(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bin components")
	}
	return &Detail{Bin: *bin, Components: components}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := listQuery{
		statuses: params.Statuses,
		location: strings.TrimSpace(params.Location),
		limit:    pagination.LimitWithBuffer(params.Limit),
	}
	if params.Zone != "" {
		query.statuses = append(query.statuses, enums.StatusesInZone(params.Zone)...)
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bins")
	}
	items, next := pagination.Page(rows, limit, func(b models.Bin) pagination.Cursor {
		return pagination.Cursor{CreatedAt: b.CreatedAt, ID: b.BinID}
	})
	if items == nil {
		items = []models.Bin{}
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

func (s *service) ListByJTC(ctx context.Context, jtc string, status *enums.BinStatus) ([]models.Bin, error) {
	id := identifiers.NormalizeJTC(jtc)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "jtc required")
	}
	rows, err := s.repo.ListByJTC(ctx, id, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bins by jtc")
	}
	if rows == nil {
		rows = []models.Bin{}
	}
	return rows, nil
}

func (s *service) CountByJTC(ctx context.Context, jtc string) (int64, error) {
	id := identifiers.NormalizeJTC(jtc)
	if id == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "jtc required")
	}
	count, err := s.repo.CountByJTC(ctx, id)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count bins by jtc")
	}
	return count, nil
}

// Zones folds the per-status counts into the warehouse map areas.
func (s *service) Zones(ctx context.Context) ([]ZoneSummary, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count bins by status")
	}
	out := make([]ZoneSummary, 0, len(enums.Zones))
	index := make(map[enums.BinZone]int, len(enums.Zones))
	for _, zone := range enums.Zones {
		index[zone] = len(out)
		out = append(out, ZoneSummary{Zone: zone, Statuses: enums.StatusesInZone(zone)})
	}
	for status, count := range counts {
		out[index[status.Zone()]].Count += count
	}
	return out, nil
}

func (s *service) AssignJTC(ctx context.Context, input AssignInput) (*BatchResult, error) {
	jtc := identifiers.NormalizeJTC(input.JTC)
	if jtc == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "jtc required")
	}
	binIDs := identifiers.NormalizeAll(input.BinIDs)
	if len(binIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one bin id required")
	}
	copies := s.copies(input.Copies)

	result := &BatchResult{JTC: jtc}
	var moved []transition
	err := s.locker.WithLock(ctx, locks.ScopeWorkOrder, jtc, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			result.Outcomes, moved = nil, nil
			if _, err := workorders.LoadWorkOrder(ctx, s.workOrders.WithTx(tx), jtc); err != nil {
				return err
			}
			repo := s.repo.WithTx(tx)
			found, err := repo.FindBins(ctx, binIDs, true)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bins")
			}
			byID := indexBins(found)
			now := s.now()

			for _, binID := range binIDs {
				bin, ok := byID[binID]
				if !ok {
					result.Outcomes = append(result.Outcomes, notFoundOutcome(binID))
					continue
				}
				if err := s.lifecycle.CanAssign(*bin, jtc, input.ConfirmReassign); err != nil {
					result.Outcomes = append(result.Outcomes, outcomeFromError(binID, bin.Status, err))
					continue
				}

				previousJTC := bin.JTC
				from := bin.Status
				assigned := jtc
				bin.JTC = &assigned
				bin.Status = enums.BinStatusReadyForRelease
				bin.LastUpdated = now
				if err := repo.Save(ctx, bin); err != nil {
					return pkgerrors.WrapStorage(err, "save bin")
				}
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventBinAssigned,
					AggregateType: enums.AggregateBin,
					AggregateID:   binID,
					Data:          payloads.BinAssignedEvent{BinID: binID, JTC: jtc, PreviousJTC: previousJTC},
					OccurredAt:    now,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit bin assigned")
				}
				if err := EmitLabelRequest(ctx, s.outbox, tx, binID, jtc, enums.LabelKindAssignment, copies, now); err != nil {
					return err
				}
				result.Outcomes = append(result.Outcomes, Outcome{BinID: binID, Done: true, Status: bin.Status})
				moved = append(moved, transition{binID: binID, jtc: jtc, from: from, to: bin.Status})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.recordTransitions(ctx, moved)
	return result, nil
}

// Release moves bins into production once the work order's BOM is covered.
// The work order lock and row lock make the snapshot of sibling bins
// consistent with concurrent releases of the same work order.
func (s *service) Release(ctx context.Context, input ReleaseInput) (*ReleaseResult, error) {
	jtc := identifiers.NormalizeJTC(input.JTC)
	if jtc == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "jtc required")
	}
	binIDs := identifiers.NormalizeAll(input.BinIDs)
	if len(binIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one bin id required")
	}
	workcellOverride := identifiers.Normalize(input.WorkcellID)
	copies := s.copies(input.Copies)

	result := &ReleaseResult{JTC: jtc}
	var moved []transition
	err := s.locker.WithLock(ctx, locks.ScopeWorkOrder, jtc, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			result.Outcomes, moved = nil, nil
			woRepo := s.workOrders.WithTx(tx)
			wo, err := workorders.LockWorkOrder(ctx, woRepo, jtc)
			if err != nil {
				return err
			}
			bom, err := workorders.ResolveRevision(ctx, woRepo, wo.RevisionID, wo.QuantityNeeded)
			if err != nil {
				return err
			}

			repo := s.repo.WithTx(tx)
			found, err := repo.FindBins(ctx, binIDs, true)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bins")
			}
			byID := indexBins(found)

			refused := map[string]ReleaseOutcome{}
			var candidates []string
			for _, binID := range binIDs {
				bin, ok := byID[binID]
				if !ok {
					refused[binID] = ReleaseOutcome{Outcome: notFoundOutcome(binID)}
					continue
				}
				if err := s.lifecycle.CanRelease(*bin, jtc); err != nil {
					refused[binID] = ReleaseOutcome{Outcome: outcomeFromError(binID, bin.Status, err)}
					continue
				}
				if workcellOverride == "" && bin.WorkcellID == "" {
					err := refuse(*bin, string(enums.BinStatusReleased), "no workcell set for bin")
					refused[binID] = ReleaseOutcome{Outcome: outcomeFromError(binID, bin.Status, err)}
					continue
				}
				candidates = append(candidates, binID)
			}

			verdicts := map[string]readiness.ReleaseVerdict{}
			if len(candidates) > 0 {
				session, released, err := checklist.Snapshot(ctx, s.checklist.WithTx(tx), jtc, candidates)
				if err != nil {
					return err
				}
				for _, v := range readiness.EvaluateRelease(bom, session, released) {
					verdicts[v.BinID] = v
				}
			}

			now := s.now()
			for _, binID := range binIDs {
				if out, ok := refused[binID]; ok {
					result.Outcomes = append(result.Outcomes, out)
					continue
				}
				bin, verdict := byID[binID], verdicts[binID]
				if !verdict.Ready {
					err := refuse(*bin, string(enums.BinStatusReleased), releaseCondition(verdict))
					out := ReleaseOutcome{Outcome: outcomeFromError(binID, bin.Status, err), Components: verdict.Components}
					result.Outcomes = append(result.Outcomes, out)
					continue
				}

				from := bin.Status
				if workcellOverride != "" {
					bin.WorkcellID = workcellOverride
				}
				bin.Status = enums.BinStatusReleased
				bin.Location = bin.WorkcellID
				bin.LastUsed = &now
				bin.LastUpdated = now
				if err := repo.Save(ctx, bin); err != nil {
					return pkgerrors.WrapStorage(err, "save bin")
				}
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventBinReleased,
					AggregateType: enums.AggregateBin,
					AggregateID:   binID,
					Data:          payloads.BinReleasedEvent{BinID: binID, JTC: jtc, WorkcellID: bin.WorkcellID, ReleasedAt: now},
					OccurredAt:    now,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit bin released")
				}
				if err := EmitLabelRequest(ctx, s.outbox, tx, binID, jtc, enums.LabelKindRelease, copies, now); err != nil {
					return err
				}
				result.Outcomes = append(result.Outcomes, ReleaseOutcome{
					Outcome:    Outcome{BinID: binID, Done: true, Status: bin.Status},
					Components: verdict.Components,
				})
				moved = append(moved, transition{binID: binID, jtc: jtc, from: from, to: bin.Status})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordTransitions(ctx, moved)
	if s.metrics != nil {
		for _, out := range result.Outcomes {
			if out.Done {
				s.metrics.IncRelease("released")
			} else {
				s.metrics.IncRelease("refused")
			}
		}
	}
	return result, nil
}

func (s *service) Return(ctx context.Context, input ReturnInput) (*BatchResult, error) {
	binIDs := identifiers.NormalizeAll(input.BinIDs)
	if len(binIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one bin id required")
	}
	location := strings.TrimSpace(input.Location)
	if location == "" {
		location = defaultReturnLocation
	}

	result := &BatchResult{}
	var moved []transition
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result.Outcomes, moved = nil, nil
		repo := s.repo.WithTx(tx)
		found, err := repo.FindBins(ctx, binIDs, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bins")
		}
		byID := indexBins(found)
		now := s.now()

		for _, binID := range binIDs {
			bin, ok := byID[binID]
			if !ok {
				result.Outcomes = append(result.Outcomes, notFoundOutcome(binID))
				continue
			}
			if err := s.lifecycle.CanReturn(*bin); err != nil {
				result.Outcomes = append(result.Outcomes, outcomeFromError(binID, bin.Status, err))
				continue
			}

			from, previousJTC := bin.Status, bin.JTC
			if err := s.resetBin(ctx, repo, bin, now); err != nil {
				return err
			}
			bin.Status = enums.BinStatusReturnedToWarehouse
			bin.Location = location
			if err := repo.Save(ctx, bin); err != nil {
				return pkgerrors.WrapStorage(err, "save bin")
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBinReturned,
				AggregateType: enums.AggregateBin,
				AggregateID:   binID,
				Data:          payloads.BinReturnedEvent{BinID: binID, PreviousJTC: previousJTC, ReturnedAt: now},
				OccurredAt:    now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit bin returned")
			}
			result.Outcomes = append(result.Outcomes, Outcome{BinID: binID, Done: true, Status: bin.Status})
			moved = append(moved, transition{binID: binID, jtc: derefString(previousJTC), from: from, to: bin.Status})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordTransitions(ctx, moved)
	return result, nil
}

func (s *service) SetStatus(ctx context.Context, input SetStatusInput) (*models.Bin, error) {
	binID := identifiers.Normalize(input.BinID)
	if binID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bin id required")
	}
	target, err := enums.ParseBinStatus(string(input.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}

	var (
		out   *models.Bin
		moved []transition
	)
	err = s.locker.WithLock(ctx, locks.ScopeBin, binID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			moved = nil
			repo := s.repo.WithTx(tx)
			bin, err := repo.FindBin(ctx, binID, true)
			if err != nil {
				return mapBinLookup(err, binID)
			}
			out = bin
			if bin.Status == target {
				return nil
			}
			if err := s.lifecycle.CanSetStatus(*bin, target); err != nil {
				return err
			}

			now := s.now()
			from := bin.Status
			if target == enums.BinStatusPendingJTC {
				if err := s.resetBin(ctx, repo, bin, now); err != nil {
					return err
				}
			}
			bin.Status = target
			bin.LastUpdated = now
			if remark := strings.TrimSpace(input.Remark); remark != "" {
				bin.Remark = remark
			}
			if err := repo.Save(ctx, bin); err != nil {
				return pkgerrors.WrapStorage(err, "save bin")
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBinStatusChanged,
				AggregateType: enums.AggregateBin,
				AggregateID:   binID,
				Data:          payloads.BinStatusChangedEvent{BinID: binID, From: from, To: target, Remark: bin.Remark},
				OccurredAt:    now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit bin status changed")
			}
			moved = append(moved, transition{binID: binID, jtc: bin.JTCValue(), from: from, to: target})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.recordTransitions(ctx, moved)
	return out, nil
}

// resetBin clears the work order link and the recorded quantities.
func (s *service) resetBin(ctx context.Context, repo Repository, bin *models.Bin, now time.Time) error {
	if err := repo.ResetComponents(ctx, bin.BinID, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset bin components")
	}
	bin.JTC = nil
	bin.QuantityCheckStatus = enums.QuantityCheckUnchecked
	bin.LastUpdated = now
	return nil
}

func (s *service) copies(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.defaultCopies
}

func (s *service) recordTransitions(ctx context.Context, moved []transition) {
	for _, t := range moved {
		if s.metrics != nil {
			s.metrics.IncTransition(string(t.from), string(t.to))
		}
		if s.logg == nil {
			continue
		}
		logCtx := s.logg.WithBinID(ctx, t.binID)
		if t.jtc != "" {
			logCtx = s.logg.WithJTC(logCtx, t.jtc)
		}
		logCtx = s.logg.WithFields(logCtx, map[string]any{"from": string(t.from), "to": string(t.to)})
		s.logg.Info(logCtx, "bin status changed")
	}
}

// EmitLabelRequest queues a label for the bin through the outbox.
func EmitLabelRequest(ctx context.Context, emitter outbox.Emitter, tx *gorm.DB, binID, jtc string, kind enums.LabelKind, copies int, at time.Time) error {
	err := emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLabelRequested,
		AggregateType: enums.AggregateBin,
		AggregateID:   binID,
		Data: payloads.LabelRequestedEvent{
			BinID:       binID,
			JTC:         jtc,
			Kind:        kind,
			Copies:      copies,
			RequestedAt: at,
		},
		OccurredAt: at,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit label request")
	}
	return nil
}

func releaseCondition(v readiness.ReleaseVerdict) string {
	if v.Reason != "" {
		return v.Reason
	}
	parts := make([]string, 0, len(v.Unmet))
	for _, c := range v.Components {
		if !c.Met {
			parts = append(parts, fmt.Sprintf("%s %d/%d", c.ComponentID, c.Cumulative, c.Required))
		}
	}
	return "work order BOM not covered: " + strings.Join(parts, ", ")
}

func indexBins(rows []models.Bin) map[string]*models.Bin {
	out := make(map[string]*models.Bin, len(rows))
	for i := range rows {
		out[rows[i].BinID] = &rows[i]
	}
	return out
}

func mapBinLookup(err error, binID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("bin %s not found", binID)).
			WithDetails(map[string]any{"binId": binID})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bin")
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
