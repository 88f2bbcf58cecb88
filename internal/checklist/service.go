package checklist

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/bintrack-backend/internal/workorders"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/identifiers"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service computes the live release checklist of a work order.
type Service interface {
	ForWorkOrder(ctx context.Context, jtc string, sessionBinIDs []string) (*Checklist, error)
}

type service struct {
	repo       Repository
	workOrders workorders.Repository
	tx         txRunner
}

func NewService(repo Repository, workOrders workorders.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checklist repository required")
	}
	if workOrders == nil {
		return nil, fmt.Errorf("work order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, workOrders: workOrders, tx: tx}, nil
}

// ForWorkOrder reads the BOM and every contributing bin in one transaction
// so a concurrent release cannot be half counted.
func (s *service) ForWorkOrder(ctx context.Context, jtc string, sessionBinIDs []string) (*Checklist, error) {
	var out Checklist
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		woRepo := s.workOrders.WithTx(tx)
		wo, err := workorders.LoadWorkOrder(ctx, woRepo, jtc)
		if err != nil {
			return err
		}
		bom, err := workorders.ResolveRevision(ctx, woRepo, wo.RevisionID, wo.QuantityNeeded)
		if err != nil {
			return err
		}
		session, released, err := Snapshot(ctx, s.repo.WithTx(tx), wo.JTCID, sessionBinIDs)
		if err != nil {
			return err
		}
		out = Build(wo.JTCID, bom, session, released)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Snapshot loads the quantities of the session bins and of the bins already
// released for jtc. Unknown session bins are a NOT_FOUND error.
func Snapshot(ctx context.Context, repo Repository, jtc string, sessionBinIDs []string) ([]BinQuantities, []BinQuantities, error) {
	ids := identifiers.NormalizeAll(sessionBinIDs)
	existing, err := repo.ExistingBinIDs(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session bins")
	}
	if missing := difference(ids, existing); len(missing) > 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("bins not found: %s", strings.Join(missing, ", "))).
			WithDetails(map[string]any{"binIds": missing})
	}

	session, err := repo.Quantities(ctx, ids)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session quantities")
	}
	releasedIDs, err := repo.ReleasedBinIDs(ctx, jtc)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load released bins")
	}
	released, err := repo.Quantities(ctx, releasedIDs)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load released quantities")
	}
	return session, released, nil
}

func difference(want, have []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, id := range have {
		present[id] = struct{}{}
	}
	var missing []string
	for _, id := range want {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
