package supply

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/storage"
)

// checkCapacity verifica que el suministro quepa en la ubicación de recepción y en cada
// ancestro con límite. La ocupación de una ubicación es el total físico (incluido lo en
// tránsito) de todo su subárbol.
func (s *Service) checkCapacity(ctx context.Context, sup *entity.Supply) error {
	units, err := s.units.ListByWarehouse(ctx, sup.DestinationWarehouseID)
	if err != nil {
		return err
	}
	list := make([]entity.StorageUnit, 0, len(units))
	for _, u := range units {
		list = append(list, *u)
	}
	tree, err := storage.BuildTree(list)
	if err != nil {
		return err
	}
	target, ok := tree.Unit(sup.StorageUnitID)
	if !ok {
		return fmt.Errorf("ubicación %s: %w", sup.StorageUnitID, domain.ErrNotFound)
	}

	weights := newWeightCache(s)
	var incomingItems int64
	incomingWeight := decimal.Zero
	for _, it := range sup.Items {
		w, err := weights.kg(ctx, it.ProductID)
		if err != nil {
			return err
		}
		incomingItems += it.Quantity
		incomingWeight = incomingWeight.Add(w.Mul(decimal.NewFromInt(it.Quantity)))
	}

	chain := append([]string{target.ID}, tree.Ancestors(target.ID)...)
	for _, id := range chain {
		u, _ := tree.Unit(id)
		if u.MaxItems == nil && u.MaxWeight == nil {
			continue
		}
		entries, err := s.ledger.SnapshotUnits(ctx, tree.Subtree(id))
		if err != nil {
			return err
		}
		var items int64
		weight := decimal.Zero
		for _, e := range entries {
			w, err := weights.kg(ctx, e.ProductID)
			if err != nil {
				return err
			}
			items += e.Total()
			weight = weight.Add(w.Mul(decimal.NewFromInt(e.Total())))
		}
		if u.MaxItems != nil && items+incomingItems > *u.MaxItems {
			return fmt.Errorf("%w: %s admite %d unidades, ocupadas %d, entrantes %d",
				domain.ErrCapacityExceeded, u.Code, *u.MaxItems, items, incomingItems)
		}
		if u.MaxWeight != nil && weight.Add(incomingWeight).GreaterThan(*u.MaxWeight) {
			return fmt.Errorf("%w: %s admite %s kg, ocupados %s, entrantes %s",
				domain.ErrCapacityExceeded, u.Code, u.MaxWeight.String(), weight.String(), incomingWeight.String())
		}
	}
	return nil
}

// weightCache peso unitario en kg por producto, leído una sola vez por verificación.
type weightCache struct {
	svc   *Service
	byKey map[string]decimal.Decimal
}

func newWeightCache(svc *Service) *weightCache {
	return &weightCache{svc: svc, byKey: make(map[string]decimal.Decimal)}
}

func (c *weightCache) kg(ctx context.Context, productID string) (decimal.Decimal, error) {
	if w, ok := c.byKey[productID]; ok {
		return w, nil
	}
	p, err := c.svc.products.GetByID(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	w := decimal.Zero
	if p != nil {
		w = p.WeightKg()
	}
	c.byKey[productID] = w
	return w, nil
}
