package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

type productRepo struct {
	s *Store
}

func (r *productRepo) Create(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; ok {
		return fmt.Errorf("insert product: %w", domain.ErrDuplicate)
	}
	for _, x := range r.s.products {
		if (p.Barcode != "" && x.Barcode == p.Barcode) || (p.Article != "" && x.CompanyID == p.CompanyID && x.Article == p.Article) {
			return fmt.Errorf("insert product: %w", domain.ErrDuplicate)
		}
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *productRepo) GetByCompanyAndArticle(_ context.Context, companyID, article string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.products {
		if p.CompanyID == companyID && p.Article == article {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *productRepo) GetByBarcode(_ context.Context, barcode string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.products {
		if p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *productRepo) Update(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.products[p.ID] = *p
	return nil
}

func (r *productRepo) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Product
	for _, p := range r.s.products {
		if p.CompanyID == companyID && !p.IsDeleted {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Article < out[j].Article })
	return paginate(out, limit, offset), nil
}

func (r *productRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.products, id)
	return nil
}

type warehouseRepo struct {
	s *Store
}

func (r *warehouseRepo) Create(_ context.Context, w *entity.Warehouse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.warehouses[w.ID]; ok {
		return fmt.Errorf("insert warehouse: %w", domain.ErrDuplicate)
	}
	r.s.warehouses[w.ID] = *w
	return nil
}

func (r *warehouseRepo) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.warehouses[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *warehouseRepo) ListByCompany(_ context.Context, companyID string) ([]*entity.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Warehouse
	for _, w := range r.s.warehouses {
		if w.CompanyID == companyID {
			w := w
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type unitRepo struct {
	s *Store
}

func (r *unitRepo) Create(_ context.Context, u *entity.StorageUnit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.units[u.ID]; ok {
		return fmt.Errorf("insert storage unit: %w", domain.ErrDuplicate)
	}
	for _, x := range r.s.units {
		if x.Code == u.Code {
			return fmt.Errorf("insert storage unit: código %s: %w", u.Code, domain.ErrDuplicate)
		}
	}
	r.s.units[u.ID] = cloneUnit(*u)
	return nil
}

func (r *unitRepo) GetByID(_ context.Context, id string) (*entity.StorageUnit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.units[id]
	if !ok {
		return nil, nil
	}
	u = cloneUnit(u)
	return &u, nil
}

func (r *unitRepo) GetByCode(_ context.Context, code string) (*entity.StorageUnit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.units {
		if u.Code == code {
			u = cloneUnit(u)
			return &u, nil
		}
	}
	return nil, nil
}

func (r *unitRepo) ListByWarehouse(_ context.Context, warehouseID string) ([]*entity.StorageUnit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.StorageUnit
	for _, u := range r.s.units {
		if u.WarehouseID == warehouseID {
			u = cloneUnit(u)
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *unitRepo) Update(_ context.Context, u *entity.StorageUnit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.units[u.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.units[u.ID] = cloneUnit(*u)
	return nil
}

type marketplaceRepo struct {
	s *Store
}

func (r *marketplaceRepo) GetByID(_ context.Context, id string) (*entity.Marketplace, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.marketplaces[id]
	if !ok {
		return nil, nil
	}
	m = cloneMarketplace(m)
	return &m, nil
}

func (r *marketplaceRepo) ListConnected(_ context.Context) ([]*entity.Marketplace, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Marketplace
	for _, m := range r.s.marketplaces {
		if m.IsConnected && m.IsFBSEnabled {
			m = cloneMarketplace(m)
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *marketplaceRepo) UpdateLastSync(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.marketplaces[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.LastSync != nil && !at.After(*m.LastSync) {
		return nil
	}
	m.LastSync = &at
	m.UpdatedAt = at
	r.s.marketplaces[id] = m
	return nil
}

type listingRepo struct {
	s *Store
}

func (r *listingRepo) Create(_ context.Context, pm *entity.ProductMarketplace) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, x := range r.s.listings {
		if x.MarketplaceID == pm.MarketplaceID && (x.ExternalID == pm.ExternalID || x.ProductID == pm.ProductID) {
			return fmt.Errorf("insert product marketplace: %w", domain.ErrDuplicateExternalID)
		}
	}
	r.s.listings[pm.ID] = *pm
	return nil
}

func (r *listingRepo) GetByProduct(_ context.Context, productID, marketplaceID string) (*entity.ProductMarketplace, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, x := range r.s.listings {
		if x.ProductID == productID && x.MarketplaceID == marketplaceID {
			return &x, nil
		}
	}
	return nil, nil
}

func (r *listingRepo) GetByExternalID(_ context.Context, marketplaceID, externalID string) (*entity.ProductMarketplace, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, x := range r.s.listings {
		if x.MarketplaceID == marketplaceID && x.ExternalID == externalID {
			return &x, nil
		}
	}
	return nil, nil
}

func (r *listingRepo) UpdateIfNewer(_ context.Context, pm *entity.ProductMarketplace) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.listings[pm.ID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !pm.LastSync.After(cur.LastSync) {
		return false, nil
	}
	for _, x := range r.s.listings {
		if x.ID != pm.ID && x.MarketplaceID == pm.MarketplaceID && x.ExternalID == pm.ExternalID {
			return false, fmt.Errorf("update product marketplace: %w", domain.ErrDuplicateExternalID)
		}
	}
	r.s.listings[pm.ID] = *pm
	return true, nil
}
