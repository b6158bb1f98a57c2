package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
	"github.com/jhoicas/fbs-core/internal/domain/storage"
)

// WarehouseUseCase casos de uso de bodegas y su árbol de ubicaciones.
type WarehouseUseCase struct {
	repo  repository.WarehouseRepository
	units repository.StorageUnitRepository
	log   zerolog.Logger
	now   func() time.Time

	// mu serializa cambios de jerarquía: dos movimientos cruzados validados
	// por separado podrían cerrar un ciclo.
	mu sync.Mutex
}

// NewWarehouseUseCase construye el caso de uso.
func NewWarehouseUseCase(repo repository.WarehouseRepository, units repository.StorageUnitRepository, log zerolog.Logger) *WarehouseUseCase {
	return &WarehouseUseCase{
		repo:  repo,
		units: units,
		log:   log.With().Str("component", "catalog").Logger(),
		now:   time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (uc *WarehouseUseCase) WithClock(now func() time.Time) *WarehouseUseCase {
	uc.now = now
	return uc
}

// Create crea una nueva bodega activa.
func (uc *WarehouseUseCase) Create(ctx context.Context, actor domain.Actor, in dto.CreateWarehouseRequest) (*dto.WarehouseResponse, error) {
	typ := entity.WarehouseType(in.Type)
	switch typ {
	case entity.WarehouseClient, entity.WarehouseFulfillment, entity.WarehouseMarketplace:
	default:
		return nil, fmt.Errorf("%w: tipo de bodega %q", domain.ErrInvalidInput, in.Type)
	}
	if in.Name == "" {
		return nil, domain.ErrInvalidInput
	}
	now := uc.now()
	w := &entity.Warehouse{
		ID:            uuid.New().String(),
		CompanyID:     actor.CompanyID,
		Name:          in.Name,
		Type:          typ,
		Address:       in.Address,
		ContactPerson: in.ContactPerson,
		ContactPhone:  in.ContactPhone,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	return toWarehouseResponse(w), nil
}

// GetByID obtiene una bodega de la empresa del actor.
func (uc *WarehouseUseCase) GetByID(ctx context.Context, actor domain.Actor, id string) (*dto.WarehouseResponse, error) {
	w, err := uc.get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return toWarehouseResponse(w), nil
}

func (uc *WarehouseUseCase) get(ctx context.Context, actor domain.Actor, id string) (*entity.Warehouse, error) {
	w, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil || w.CompanyID != actor.CompanyID {
		return nil, fmt.Errorf("bodega %s: %w", id, domain.ErrNotFound)
	}
	return w, nil
}

// AuthorizeUnit verifica que la ubicación pertenezca a una bodega de la empresa del actor.
func (uc *WarehouseUseCase) AuthorizeUnit(ctx context.Context, actor domain.Actor, unitID string) error {
	u, err := uc.units.GetByID(ctx, unitID)
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("ubicación %s: %w", unitID, domain.ErrNotFound)
	}
	_, err = uc.get(ctx, actor, u.WarehouseID)
	return err
}

// List bodegas de la empresa.
func (uc *WarehouseUseCase) List(ctx context.Context, actor domain.Actor) ([]dto.WarehouseResponse, error) {
	list, err := uc.repo.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.WarehouseResponse, 0, len(list))
	for _, w := range list {
		out = append(out, *toWarehouseResponse(w))
	}
	return out, nil
}

// ── Ubicaciones ───────────────────────────────────────────────────────────────

// CreateUnit crea una ubicación. El padre debe existir en la misma bodega.
func (uc *WarehouseUseCase) CreateUnit(ctx context.Context, actor domain.Actor, in dto.CreateStorageUnitRequest) (*dto.StorageUnitResponse, error) {
	switch entity.StorageUnitType(in.Type) {
	case entity.UnitShelf, entity.UnitRack, entity.UnitPallet, entity.UnitBox, entity.UnitCell:
	default:
		return nil, fmt.Errorf("%w: tipo de ubicación %q", domain.ErrInvalidInput, in.Type)
	}
	if in.Code == "" {
		return nil, fmt.Errorf("%w: código requerido", domain.ErrInvalidInput)
	}
	if in.MaxWeight != nil && in.MaxWeight.IsNegative() {
		return nil, fmt.Errorf("%w: peso máximo negativo", domain.ErrInvalidInput)
	}
	if in.MaxItems != nil && *in.MaxItems < 0 {
		return nil, fmt.Errorf("%w: máximo de unidades negativo", domain.ErrInvalidInput)
	}
	if _, err := uc.get(ctx, actor, in.WarehouseID); err != nil {
		return nil, err
	}
	dup, err := uc.units.GetByCode(ctx, in.Code)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, fmt.Errorf("código %s: %w", in.Code, domain.ErrDuplicate)
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	tree, err := uc.tree(ctx, in.WarehouseID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	u := entity.StorageUnit{
		ID:          uuid.New().String(),
		WarehouseID: in.WarehouseID,
		ParentID:    in.ParentID,
		Code:        in.Code,
		Name:        in.Name,
		Type:        entity.StorageUnitType(in.Type),
		Length:      in.Length,
		Width:       in.Width,
		Height:      in.Height,
		MaxWeight:   in.MaxWeight,
		MaxItems:    in.MaxItems,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tree.Insert(u); err != nil {
		return nil, err
	}
	if err := uc.units.Create(ctx, &u); err != nil {
		return nil, err
	}
	depth, _ := tree.Depth(u.ID)
	return toStorageUnitResponse(&u, depth), nil
}

// MoveUnit cuelga la ubicación de otro padre dentro de su bodega.
// Un padre que sea la propia ubicación o un descendiente devuelve ErrCycle.
func (uc *WarehouseUseCase) MoveUnit(ctx context.Context, actor domain.Actor, unitID string, in dto.MoveStorageUnitRequest) (*dto.StorageUnitResponse, error) {
	u, err := uc.units.GetByID(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("ubicación %s: %w", unitID, domain.ErrNotFound)
	}
	if _, err := uc.get(ctx, actor, u.WarehouseID); err != nil {
		return nil, err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	tree, err := uc.tree(ctx, u.WarehouseID)
	if err != nil {
		return nil, err
	}
	if err := tree.Reparent(unitID, in.ParentID); err != nil {
		return nil, err
	}
	moved, _ := tree.Unit(unitID)
	moved.UpdatedAt = uc.now()
	if err := uc.units.Update(ctx, &moved); err != nil {
		return nil, err
	}
	uc.log.Info().Str("unit", unitID).Str("parent", in.ParentID).Msg("ubicación movida")
	depth, _ := tree.Depth(unitID)
	return toStorageUnitResponse(&moved, depth), nil
}

// ListUnits ubicaciones de la bodega en preorden desde las raíces.
func (uc *WarehouseUseCase) ListUnits(ctx context.Context, actor domain.Actor, warehouseID string) ([]dto.StorageUnitResponse, error) {
	if _, err := uc.get(ctx, actor, warehouseID); err != nil {
		return nil, err
	}
	tree, err := uc.tree(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StorageUnitResponse, 0, tree.Len())
	for _, root := range tree.Roots(warehouseID) {
		for _, id := range tree.Subtree(root) {
			u, _ := tree.Unit(id)
			depth, _ := tree.Depth(id)
			out = append(out, *toStorageUnitResponse(&u, depth))
		}
	}
	return out, nil
}

func (uc *WarehouseUseCase) tree(ctx context.Context, warehouseID string) (*storage.Tree, error) {
	list, err := uc.units.ListByWarehouse(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	units := make([]entity.StorageUnit, len(list))
	for i, u := range list {
		units[i] = *u
	}
	return storage.BuildTree(units)
}

func toWarehouseResponse(w *entity.Warehouse) *dto.WarehouseResponse {
	if w == nil {
		return nil
	}
	return &dto.WarehouseResponse{
		ID:            w.ID,
		CompanyID:     w.CompanyID,
		Name:          w.Name,
		Type:          string(w.Type),
		Address:       w.Address,
		ContactPerson: w.ContactPerson,
		ContactPhone:  w.ContactPhone,
		IsActive:      w.IsActive,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

func toStorageUnitResponse(u *entity.StorageUnit, depth int) *dto.StorageUnitResponse {
	return &dto.StorageUnitResponse{
		ID:          u.ID,
		WarehouseID: u.WarehouseID,
		ParentID:    u.ParentID,
		Code:        u.Code,
		Name:        u.Name,
		Type:        string(u.Type),
		Depth:       depth,
		MaxWeight:   u.MaxWeight,
		MaxItems:    u.MaxItems,
		IsActive:    u.IsActive,
	}
}
