// Package audit implementa la toma de inventario: foto del ledger al iniciar, conteo por línea
// y ajuste de las diferencias al cerrar.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Ledger operaciones del ledger que usa la toma de inventario.
type Ledger interface {
	Snapshot(ctx context.Context, unitID, productID string) (entity.StockEntry, error)
	SnapshotUnits(ctx context.Context, unitIDs []string) ([]*entity.StockEntry, error)
	Adjust(ctx context.Context, m ledger.Mutation) (ledger.Result, error)
}

const (
	maxCASRetries = 5
	reportType    = "application/pdf"
)

var errNoChange = errors.New("sin cambios")

// Service casos de uso de tomas de inventario.
type Service struct {
	inventories     repository.InventoryRepository
	warehouses      repository.WarehouseRepository
	units           repository.StorageUnitRepository
	products        repository.ProductRepository
	ledger          Ledger
	renderer        ports.AuditReportRenderer
	reports         ports.ReportStore
	log             zerolog.Logger
	includeReserved bool
	now             func() time.Time
}

// NewService construye el servicio. Por defecto lo esperado es solo el stock disponible.
func NewService(
	inventories repository.InventoryRepository,
	warehouses repository.WarehouseRepository,
	units repository.StorageUnitRepository,
	products repository.ProductRepository,
	l Ledger,
	renderer ports.AuditReportRenderer,
	reports ports.ReportStore,
	log zerolog.Logger,
) *Service {
	return &Service{
		inventories: inventories,
		warehouses:  warehouses,
		units:       units,
		products:    products,
		ledger:      l,
		renderer:    renderer,
		reports:     reports,
		log:         log.With().Str("component", "audit").Logger(),
		now:         time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIncludeReserved valor por defecto de include_reserved para nuevas tomas.
func (s *Service) WithIncludeReserved(v bool) *Service {
	s.includeReserved = v
	return s
}

// Plan crea la toma en borrador. Con in.Start además la inicia.
func (s *Service) Plan(ctx context.Context, actor domain.Actor, in dto.StartAuditRequest) (*entity.Inventory, error) {
	if in.WarehouseID == "" {
		return nil, domain.ErrInvalidInput
	}
	wh, err := s.warehouses.GetByID(ctx, in.WarehouseID)
	if err != nil {
		return nil, err
	}
	if wh == nil || wh.CompanyID != actor.CompanyID {
		return nil, fmt.Errorf("bodega %s: %w", in.WarehouseID, domain.ErrNotFound)
	}
	include := s.includeReserved
	if in.IncludeReserved != nil {
		include = *in.IncludeReserved
	}
	name := in.Name
	if name == "" {
		name = "Inventario " + wh.Name
	}
	now := s.now()
	inv := &entity.Inventory{
		ID:              uuid.New().String(),
		CompanyID:       actor.CompanyID,
		WarehouseID:     wh.ID,
		Name:            name,
		Status:          entity.InventoryDraft,
		IncludeReserved: include,
		Comment:         in.Comment,
		CreatedBy:       actor.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.inventories.Create(ctx, inv); err != nil {
		return nil, err
	}
	if in.Start {
		return s.Start(ctx, actor, inv.ID)
	}
	return inv, nil
}

// StartAudit planifica e inicia en un paso.
func (s *Service) StartAudit(ctx context.Context, actor domain.Actor, in dto.StartAuditRequest) (*entity.Inventory, error) {
	in.Start = true
	return s.Plan(ctx, actor, in)
}

// Start draft -> in_progress. Toma la foto del ledger de cada (ubicación, producto) de la bodega.
// Falla con domain.ErrConflict si la bodega ya tiene otra toma en curso.
func (s *Service) Start(ctx context.Context, actor domain.Actor, inventoryID string) (*entity.Inventory, error) {
	inv, err := s.Get(ctx, actor, inventoryID)
	if err != nil {
		return nil, err
	}
	if inv.Status == entity.InventoryInProgress {
		return inv, nil
	}
	running, err := s.inventories.GetInProgressByWarehouse(ctx, inv.WarehouseID)
	if err != nil {
		return nil, err
	}
	if running != nil && running.ID != inv.ID {
		return nil, fmt.Errorf("bodega %s ya tiene el inventario %s en curso: %w", inv.WarehouseID, running.ID, domain.ErrConflict)
	}

	units, err := s.units.ListByWarehouse(ctx, inv.WarehouseID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	entries, err := s.ledger.SnapshotUnits(ctx, ids)
	if err != nil {
		return nil, err
	}

	started, err := s.mutate(ctx, actor, inv.ID, func(inv *entity.Inventory) error {
		now := s.now()
		if err := inv.Transition(entity.InventoryInProgress, now); err != nil {
			return err
		}
		inv.StartDate = &now
		inv.Items = inv.Items[:0]
		for _, e := range entries {
			expected := s.expected(inv, *e)
			if expected == 0 {
				continue
			}
			inv.Items = append(inv.Items, entity.InventoryItem{
				ID:               uuid.New().String(),
				InventoryID:      inv.ID,
				StorageUnitID:    e.StorageUnitID,
				ProductID:        e.ProductID,
				ExpectedQuantity: expected,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("inventory_id", started.ID).Str("warehouse_id", started.WarehouseID).
		Int("items", len(started.Items)).Bool("include_reserved", started.IncludeReserved).
		Msg("toma de inventario iniciada")
	return started, nil
}

func (s *Service) expected(inv *entity.Inventory, e entity.StockEntry) int64 {
	if inv.IncludeReserved {
		return e.Available + e.Reserved
	}
	return e.Available
}

// SubmitCount registra el conteo de una línea. Se puede recontar mientras la línea no se haya ajustado.
func (s *Service) SubmitCount(ctx context.Context, actor domain.Actor, itemID string, in dto.SubmitCountRequest) (*entity.Inventory, error) {
	if in.Quantity < 0 {
		return nil, fmt.Errorf("%w: conteo negativo", domain.ErrInvalidInput)
	}
	inv, err := s.inventories.GetByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("línea %s: %w", itemID, domain.ErrNotFound)
	}
	return s.mutate(ctx, actor, inv.ID, func(inv *entity.Inventory) error {
		if inv.Status != entity.InventoryInProgress {
			return fmt.Errorf("%w: inventario en %s", domain.ErrInvalidTransition, inv.Status)
		}
		i := inv.Item(itemID)
		if i < 0 {
			return fmt.Errorf("línea %s: %w", itemID, domain.ErrNotFound)
		}
		if inv.Items[i].IsApplied || inv.Closing {
			return fmt.Errorf("%w: la línea %s ya entró al cierre", domain.ErrConflict, itemID)
		}
		now := s.now()
		qty := in.Quantity
		inv.Items[i].ActualQuantity = &qty
		inv.Items[i].IsChecked = true
		inv.Items[i].DiscrepancyReason = in.DiscrepancyReason
		inv.Items[i].CheckedAt = &now
		inv.UpdatedAt = now
		return nil
	})
}

// AddFinding agrega y cuenta un producto hallado en una ubicación que no estaba en la foto.
func (s *Service) AddFinding(ctx context.Context, actor domain.Actor, inventoryID string, in dto.AddFindingRequest) (*entity.Inventory, error) {
	if in.Quantity < 0 || in.StorageUnitID == "" || in.ProductID == "" {
		return nil, domain.ErrInvalidInput
	}
	inv, err := s.Get(ctx, actor, inventoryID)
	if err != nil {
		return nil, err
	}
	u, err := s.units.GetByID(ctx, in.StorageUnitID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.WarehouseID != inv.WarehouseID {
		return nil, fmt.Errorf("%w: la ubicación %s no pertenece a la bodega", domain.ErrInvalidInput, in.StorageUnitID)
	}
	p, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.CompanyID != inv.CompanyID {
		return nil, fmt.Errorf("producto %s: %w", in.ProductID, domain.ErrNotFound)
	}
	entry, err := s.ledger.Snapshot(ctx, in.StorageUnitID, in.ProductID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, inv.ID, func(inv *entity.Inventory) error {
		if inv.Status != entity.InventoryInProgress {
			return fmt.Errorf("%w: inventario en %s", domain.ErrInvalidTransition, inv.Status)
		}
		if inv.Closing {
			return fmt.Errorf("%w: el inventario se está cerrando", domain.ErrConflict)
		}
		for _, it := range inv.Items {
			if it.StorageUnitID == in.StorageUnitID && it.ProductID == in.ProductID {
				return fmt.Errorf("%w: la línea ya existe, use el conteo", domain.ErrDuplicate)
			}
		}
		now := s.now()
		qty := in.Quantity
		inv.Items = append(inv.Items, entity.InventoryItem{
			ID:               uuid.New().String(),
			InventoryID:      inv.ID,
			StorageUnitID:    in.StorageUnitID,
			ProductID:        in.ProductID,
			ExpectedQuantity: s.expected(inv, entry),
			ActualQuantity:   &qty,
			IsChecked:        true,
			CheckedAt:        &now,
		})
		inv.UpdatedAt = now
		return nil
	})
}

// Complete cierra la toma. Exige todas las líneas contadas (domain.ErrIncompleteAudit) y ajusta
// cada diferencia en el ledger con motivo audit_correction. Antes de ajustar marca la toma en
// cierre: desde ahí no se aceptan conteos ni hallazgos y los ajustes usan los conteos de esa
// marca. Cada ajuste lleva clave audit:<toma>:<línea> y la línea queda marcada como aplicada:
// reintentar tras un fallo parcial solo aplica lo que falta.
func (s *Service) Complete(ctx context.Context, actor domain.Actor, inventoryID string) (*entity.Inventory, error) {
	inv, err := s.Get(ctx, actor, inventoryID)
	if err != nil {
		return nil, err
	}
	if inv.Status == entity.InventoryCompleted {
		return inv, nil
	}
	if inv.Status != entity.InventoryInProgress {
		return nil, &domain.TransitionError{Entity: "inventory", From: string(inv.Status), To: string(entity.InventoryCompleted)}
	}
	inv, err = s.mutate(ctx, actor, inv.ID, func(inv *entity.Inventory) error {
		if inv.Status == entity.InventoryCompleted {
			return errNoChange
		}
		if inv.Status != entity.InventoryInProgress {
			return &domain.TransitionError{Entity: "inventory", From: string(inv.Status), To: string(entity.InventoryCompleted)}
		}
		if n := inv.Unchecked(); n > 0 {
			return fmt.Errorf("%w: %d línea(s) pendientes", domain.ErrIncompleteAudit, n)
		}
		if inv.Closing {
			return errNoChange
		}
		inv.Closing = true
		inv.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if inv.Status == entity.InventoryCompleted {
		return inv, nil
	}

	for _, it := range inv.Items {
		if !it.HasDiscrepancy() || it.IsApplied {
			continue
		}
		_, err := s.ledger.Adjust(ctx, ledger.Mutation{
			UnitID:         it.StorageUnitID,
			ProductID:      it.ProductID,
			Quantity:       it.Difference(),
			Reason:         entity.ReasonAuditCorrection,
			Reference:      inv.ID,
			ActorID:        actor.UserID,
			IdempotencyKey: adjustKey(inv.ID, it.ID),
		})
		if err != nil {
			s.log.Error().Err(err).Str("inventory_id", inv.ID).Str("item_id", it.ID).
				Str("unit_id", it.StorageUnitID).Str("product_id", it.ProductID).
				Int64("delta", it.Difference()).Msg("ajuste de inventario rechazado")
			return nil, fmt.Errorf("ajustar línea %s: %w", it.ID, err)
		}
		itemID := it.ID
		if _, err := s.mutate(ctx, actor, inv.ID, func(inv *entity.Inventory) error {
			i := inv.Item(itemID)
			if i < 0 || inv.Items[i].IsApplied {
				return errNoChange
			}
			inv.Items[i].IsApplied = true
			return nil
		}); err != nil {
			return nil, err
		}
	}

	completed, err := s.mutate(ctx, actor, inv.ID, func(inv *entity.Inventory) error {
		if inv.Status == entity.InventoryCompleted {
			return errNoChange
		}
		if n := inv.Unchecked(); n > 0 {
			return fmt.Errorf("%w: %d línea(s) pendientes", domain.ErrIncompleteAudit, n)
		}
		for _, it := range inv.Items {
			if it.HasDiscrepancy() && !it.IsApplied {
				return fmt.Errorf("%w: la línea %s cambió durante el cierre", domain.ErrConflict, it.ID)
			}
		}
		now := s.now()
		inv.EndDate = &now
		return inv.Transition(entity.InventoryCompleted, now)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("inventory_id", completed.ID).Int("discrepancies", completed.Discrepancies()).Msg("toma de inventario cerrada")
	return completed, nil
}

// Cancel descarta la toma sin tocar el ledger.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, inventoryID string) (*entity.Inventory, error) {
	return s.mutate(ctx, actor, inventoryID, func(inv *entity.Inventory) error {
		if inv.Closing {
			return fmt.Errorf("%w: la toma ya está en cierre, complétela", domain.ErrConflict)
		}
		now := s.now()
		inv.EndDate = &now
		return inv.Transition(entity.InventoryCancelled, now)
	})
}

// Get devuelve la toma si pertenece a la empresa del actor.
func (s *Service) Get(ctx context.Context, actor domain.Actor, inventoryID string) (*entity.Inventory, error) {
	inv, err := s.inventories.GetByID(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	if inv == nil || (actor.CompanyID != "" && inv.CompanyID != actor.CompanyID) {
		return nil, fmt.Errorf("inventario %s: %w", inventoryID, domain.ErrNotFound)
	}
	return inv, nil
}

// Report genera el PDF de discrepancias y lo guarda en el almacén de reportes.
func (s *Service) Report(ctx context.Context, actor domain.Actor, inventoryID string) (ports.ReportHandle, error) {
	inv, err := s.Get(ctx, actor, inventoryID)
	if err != nil {
		return ports.ReportHandle{}, err
	}
	data := ports.AuditReportData{
		Inventory:    inv,
		ProductNames: make(map[string]string),
		UnitCodes:    make(map[string]string),
		GeneratedAt:  s.now(),
	}
	wh, err := s.warehouses.GetByID(ctx, inv.WarehouseID)
	if err != nil {
		return ports.ReportHandle{}, err
	}
	if wh != nil {
		data.WarehouseName = wh.Name
	}
	for _, it := range inv.Items {
		if _, ok := data.ProductNames[it.ProductID]; !ok {
			p, err := s.products.GetByID(ctx, it.ProductID)
			if err != nil {
				return ports.ReportHandle{}, err
			}
			if p != nil {
				data.ProductNames[it.ProductID] = p.Name
			}
		}
		if _, ok := data.UnitCodes[it.StorageUnitID]; !ok {
			u, err := s.units.GetByID(ctx, it.StorageUnitID)
			if err != nil {
				return ports.ReportHandle{}, err
			}
			if u != nil {
				data.UnitCodes[it.StorageUnitID] = u.Code
			}
		}
	}
	content, err := s.renderer.RenderAudit(data)
	if err != nil {
		return ports.ReportHandle{}, fmt.Errorf("generar reporte: %w", err)
	}
	return s.reports.Save(ctx, "audits/"+inv.ID+".pdf", reportType, content)
}

func (s *Service) mutate(ctx context.Context, actor domain.Actor, inventoryID string, fn func(*entity.Inventory) error) (*entity.Inventory, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		inv, err := s.Get(ctx, actor, inventoryID)
		if err != nil {
			return nil, err
		}
		if err := fn(inv); err != nil {
			if errors.Is(err, errNoChange) {
				return inv, nil
			}
			return nil, err
		}
		err = s.inventories.Update(ctx, inv)
		if err == nil {
			return inv, nil
		}
		if !errors.Is(err, domain.ErrConcurrentUpdate) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("inventario %s: %w", inventoryID, domain.ErrConcurrentUpdate)
}

func adjustKey(inventoryID, itemID string) string {
	return "audit:" + inventoryID + ":" + itemID
}
