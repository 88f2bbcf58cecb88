package workorders

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/identifiers"
)

// WorkOrderBOM is a work order together with its resolved BOM.
type WorkOrderBOM struct {
	WorkOrder models.WorkOrder `json:"workOrder"`
	Lines     []BOMLine        `json:"lines"`
}

// Service resolves work orders and BOMs.
type Service interface {
	GetWorkOrder(ctx context.Context, jtc string) (*models.WorkOrder, error)
	Resolve(ctx context.Context, revisionID string, quantityNeeded int) ([]BOMLine, error)
	ResolveForWorkOrder(ctx context.Context, jtc string) (*WorkOrderBOM, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("work order repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetWorkOrder(ctx context.Context, jtc string) (*models.WorkOrder, error) {
	return LoadWorkOrder(ctx, s.repo, jtc)
}

func (s *service) Resolve(ctx context.Context, revisionID string, quantityNeeded int) ([]BOMLine, error) {
	return ResolveRevision(ctx, s.repo, revisionID, quantityNeeded)
}

func (s *service) ResolveForWorkOrder(ctx context.Context, jtc string) (*WorkOrderBOM, error) {
	wo, err := LoadWorkOrder(ctx, s.repo, jtc)
	if err != nil {
		return nil, err
	}
	lines, err := ResolveRevision(ctx, s.repo, wo.RevisionID, wo.QuantityNeeded)
	if err != nil {
		return nil, err
	}
	return &WorkOrderBOM{WorkOrder: *wo, Lines: lines}, nil
}

// LoadWorkOrder maps a missing row onto WORK_ORDER_NOT_FOUND. It accepts the
// raw JTC barcode as scanned.
func LoadWorkOrder(ctx context.Context, repo Repository, jtc string) (*models.WorkOrder, error) {
	return loadWorkOrder(ctx, jtc, repo.FindWorkOrder)
}

// LockWorkOrder is LoadWorkOrder taking a row lock; repo must be bound to a
// transaction.
func LockWorkOrder(ctx context.Context, repo Repository, jtc string) (*models.WorkOrder, error) {
	return loadWorkOrder(ctx, jtc, repo.LockWorkOrder)
}

func loadWorkOrder(ctx context.Context, jtc string, find func(context.Context, string) (*models.WorkOrder, error)) (*models.WorkOrder, error) {
	id := identifiers.NormalizeJTC(jtc)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "jtc required")
	}
	wo, err := find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.WorkOrderNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load work order")
	}
	return wo, nil
}

// ResolveRevision loads and multiplies the BOM of a revision. A revision
// without lines is BOM_NOT_FOUND; callers that accept an empty BOM check for it.
func ResolveRevision(ctx context.Context, repo Repository, revisionID string, quantityNeeded int) ([]BOMLine, error) {
	if revisionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "revision id required")
	}
	if quantityNeeded < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity needed must not be negative")
	}
	lines, err := repo.ListBomLines(ctx, revisionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bom lines")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.BomNotFound(revisionID)
	}
	return ResolveLines(lines, quantityNeeded), nil
}
