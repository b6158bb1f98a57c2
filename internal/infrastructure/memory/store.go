// Package memory es un adaptador en memoria de todos los puertos de persistencia.
// Lo usan los tests y el modo de desarrollo sin PostgreSQL. Las entradas del ledger se
// bloquean por clave como lo haría SELECT ... FOR UPDATE.
package memory

import (
	"sync"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Store estado compartido en memoria. Todas las copias entran y salen clonadas.
type Store struct {
	mu sync.RWMutex

	rowLocks map[entity.StockKey]*sync.Mutex

	stock        map[entity.StockKey]entity.StockEntry
	movements    []entity.StockMovement
	movementKeys map[string]int

	products     map[string]entity.Product
	warehouses   map[string]entity.Warehouse
	units        map[string]entity.StorageUnit
	orders       map[string]entity.Order
	supplies     map[string]entity.Supply
	shipments    map[string]entity.Shipment
	links        map[string]entity.ShipmentOrder
	inventories  map[string]entity.Inventory
	marketplaces map[string]entity.Marketplace
	listings     map[string]entity.ProductMarketplace
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		rowLocks:     make(map[entity.StockKey]*sync.Mutex),
		stock:        make(map[entity.StockKey]entity.StockEntry),
		movementKeys: make(map[string]int),
		products:     make(map[string]entity.Product),
		warehouses:   make(map[string]entity.Warehouse),
		units:        make(map[string]entity.StorageUnit),
		orders:       make(map[string]entity.Order),
		supplies:     make(map[string]entity.Supply),
		shipments:    make(map[string]entity.Shipment),
		links:        make(map[string]entity.ShipmentOrder),
		inventories:  make(map[string]entity.Inventory),
		marketplaces: make(map[string]entity.Marketplace),
		listings:     make(map[string]entity.ProductMarketplace),
	}
}

// Accesores de repositorios (lecturas y escrituras fuera de transacción).

func (s *Store) Stock() repository.StockRepository                 { return &stockRepo{s: s} }
func (s *Store) Movements() repository.StockMovementRepository     { return &movementRepo{s: s} }
func (s *Store) Products() repository.ProductRepository            { return &productRepo{s: s} }
func (s *Store) Warehouses() repository.WarehouseRepository        { return &warehouseRepo{s: s} }
func (s *Store) StorageUnits() repository.StorageUnitRepository    { return &unitRepo{s: s} }
func (s *Store) Orders() repository.OrderRepository                { return &orderRepo{s: s} }
func (s *Store) Supplies() repository.SupplyRepository             { return &supplyRepo{s: s} }
func (s *Store) Shipments() repository.ShipmentRepository          { return &shipmentRepo{s: s} }
func (s *Store) Inventories() repository.InventoryRepository       { return &inventoryRepo{s: s} }
func (s *Store) Marketplaces() repository.MarketplaceRepository    { return &marketplaceRepo{s: s} }
func (s *Store) Listings() repository.ProductMarketplaceRepository { return &listingRepo{s: s} }

// TxRunner devuelve el runner transaccional del ledger.
func (s *Store) TxRunner() *TxRunner { return &TxRunner{s: s} }

func (s *Store) rowLock(k entity.StockKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[k]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[k] = l
	}
	return l
}

// MovementCount total de movimientos registrados.
func (s *Store) MovementCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.movements)
}
