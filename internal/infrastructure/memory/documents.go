package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// ──── Pedidos ────

type orderRepo struct {
	s *Store
}

func (r *orderRepo) Create(_ context.Context, o *entity.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.ID]; ok {
		return fmt.Errorf("insert order: %w", domain.ErrDuplicate)
	}
	for _, x := range r.s.orders {
		if x.MarketplaceID == o.MarketplaceID && x.ExternalID == o.ExternalID && o.ExternalID != "" {
			return fmt.Errorf("insert order %s/%s: %w", o.MarketplaceID, o.ExternalID, domain.ErrDuplicateExternalID)
		}
	}
	r.s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*entity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r *orderRepo) GetByExternalID(_ context.Context, marketplaceID, externalID string) (*entity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.orders {
		if o.MarketplaceID == marketplaceID && o.ExternalID == externalID {
			o = cloneOrder(o)
			return &o, nil
		}
	}
	return nil, nil
}

func (r *orderRepo) Update(_ context.Context, o *entity.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.orders[o.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != o.Version {
		return fmt.Errorf("update order %s: %w", o.ID, domain.ErrConcurrentUpdate)
	}
	o.Version++
	r.s.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r *orderRepo) ListByStatus(_ context.Context, companyID string, status entity.OrderStatus, limit, offset int) ([]*entity.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Order
	for _, o := range r.s.orders {
		if o.CompanyID == companyID && (status == "" || o.Status == status) {
			o = cloneOrder(o)
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

// ──── Suministros ────

type supplyRepo struct {
	s *Store
}

func (r *supplyRepo) Create(_ context.Context, s *entity.Supply) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.supplies[s.ID]; ok {
		return fmt.Errorf("insert supply: %w", domain.ErrDuplicate)
	}
	r.s.supplies[s.ID] = cloneSupply(*s)
	return nil
}

func (r *supplyRepo) GetByID(_ context.Context, id string) (*entity.Supply, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	s, ok := r.s.supplies[id]
	if !ok {
		return nil, nil
	}
	s = cloneSupply(s)
	return &s, nil
}

func (r *supplyRepo) GetByItemID(_ context.Context, itemID string) (*entity.Supply, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, s := range r.s.supplies {
		if s.Item(itemID) >= 0 {
			s = cloneSupply(s)
			return &s, nil
		}
	}
	return nil, nil
}

func (r *supplyRepo) Update(_ context.Context, s *entity.Supply) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.supplies[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != s.Version {
		return fmt.Errorf("update supply %s: %w", s.ID, domain.ErrConcurrentUpdate)
	}
	s.Version++
	r.s.supplies[s.ID] = cloneSupply(*s)
	return nil
}

func (r *supplyRepo) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.Supply, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Supply
	for _, s := range r.s.supplies {
		if s.CompanyID == companyID {
			s = cloneSupply(s)
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

// ──── Envíos ────

type shipmentRepo struct {
	s *Store
}

func (r *shipmentRepo) Create(_ context.Context, sh *entity.Shipment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.shipments[sh.ID]; ok {
		return fmt.Errorf("insert shipment: %w", domain.ErrDuplicate)
	}
	r.s.shipments[sh.ID] = cloneShipment(*sh)
	return nil
}

func (r *shipmentRepo) GetByID(_ context.Context, id string) (*entity.Shipment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sh, ok := r.s.shipments[id]
	if !ok {
		return nil, nil
	}
	sh = cloneShipment(sh)
	return &sh, nil
}

func (r *shipmentRepo) Update(_ context.Context, sh *entity.Shipment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.shipments[sh.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != sh.Version {
		return fmt.Errorf("update shipment %s: %w", sh.ID, domain.ErrConcurrentUpdate)
	}
	sh.Version++
	r.s.shipments[sh.ID] = cloneShipment(*sh)
	return nil
}

func (r *shipmentRepo) LinkOrder(_ context.Context, link *entity.ShipmentOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.links {
		if l.OrderID == link.OrderID && l.IsActive {
			return fmt.Errorf("pedido %s ya está en el envío %s: %w", link.OrderID, l.ShipmentID, domain.ErrConflict)
		}
	}
	r.s.links[link.ID] = *link
	return nil
}

func (r *shipmentRepo) UnlinkOrder(_ context.Context, shipmentID, orderID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, l := range r.s.links {
		if l.ShipmentID == shipmentID && l.OrderID == orderID && l.IsActive {
			if l.IsProcessed {
				return fmt.Errorf("pedido %s ya despachado: %w", orderID, domain.ErrConflict)
			}
			l.IsActive = false
			r.s.links[id] = l
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *shipmentRepo) ListLinks(_ context.Context, shipmentID string) ([]*entity.ShipmentOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.ShipmentOrder
	for _, l := range r.s.links {
		if l.ShipmentID == shipmentID && l.IsActive {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out, nil
}

func (r *shipmentRepo) MarkLinkProcessed(_ context.Context, linkID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[linkID]
	if !ok {
		return domain.ErrNotFound
	}
	l.IsProcessed = true
	r.s.links[linkID] = l
	return nil
}

func (r *shipmentRepo) GetActiveLinkByOrder(_ context.Context, orderID string) (*entity.ShipmentOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, l := range r.s.links {
		if l.OrderID == orderID && l.IsActive {
			return &l, nil
		}
	}
	return nil, nil
}

// ──── Inventarios ────

type inventoryRepo struct {
	s *Store
}

func (r *inventoryRepo) Create(_ context.Context, inv *entity.Inventory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.inventories[inv.ID]; ok {
		return fmt.Errorf("insert inventory: %w", domain.ErrDuplicate)
	}
	r.s.inventories[inv.ID] = cloneInventory(*inv)
	return nil
}

func (r *inventoryRepo) GetByID(_ context.Context, id string) (*entity.Inventory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.inventories[id]
	if !ok {
		return nil, nil
	}
	inv = cloneInventory(inv)
	return &inv, nil
}

func (r *inventoryRepo) GetByItemID(_ context.Context, itemID string) (*entity.Inventory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, inv := range r.s.inventories {
		if inv.Item(itemID) >= 0 {
			inv = cloneInventory(inv)
			return &inv, nil
		}
	}
	return nil, nil
}

func (r *inventoryRepo) Update(_ context.Context, inv *entity.Inventory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.inventories[inv.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != inv.Version {
		return fmt.Errorf("update inventory %s: %w", inv.ID, domain.ErrConcurrentUpdate)
	}
	if inv.Status == entity.InventoryInProgress && cur.Status != entity.InventoryInProgress {
		for id, other := range r.s.inventories {
			if id != inv.ID && other.WarehouseID == inv.WarehouseID && other.Status == entity.InventoryInProgress {
				return fmt.Errorf("bodega %s ya tiene el inventario %s en curso: %w", inv.WarehouseID, id, domain.ErrConflict)
			}
		}
	}
	inv.Version++
	r.s.inventories[inv.ID] = cloneInventory(*inv)
	return nil
}

func (r *inventoryRepo) GetInProgressByWarehouse(_ context.Context, warehouseID string) (*entity.Inventory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, inv := range r.s.inventories {
		if inv.WarehouseID == warehouseID && inv.Status == entity.InventoryInProgress {
			inv = cloneInventory(inv)
			return &inv, nil
		}
	}
	return nil, nil
}
