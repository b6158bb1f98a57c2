package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// Store expone los repositorios sobre un mismo pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore construye el store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Stock() repository.StockRepository                 { return NewStockRepository(s.pool) }
func (s *Store) Movements() repository.StockMovementRepository     { return NewStockMovementRepository(s.pool) }
func (s *Store) Products() repository.ProductRepository            { return NewProductRepository(s.pool) }
func (s *Store) Warehouses() repository.WarehouseRepository        { return NewWarehouseRepository(s.pool) }
func (s *Store) StorageUnits() repository.StorageUnitRepository    { return NewStorageUnitRepository(s.pool) }
func (s *Store) Orders() repository.OrderRepository                { return NewOrderRepository(s.pool) }
func (s *Store) Supplies() repository.SupplyRepository             { return NewSupplyRepository(s.pool) }
func (s *Store) Shipments() repository.ShipmentRepository          { return NewShipmentRepository(s.pool) }
func (s *Store) Inventories() repository.InventoryRepository       { return NewInventoryRepository(s.pool) }
func (s *Store) Marketplaces() repository.MarketplaceRepository    { return NewMarketplaceRepository(s.pool) }
func (s *Store) Listings() repository.ProductMarketplaceRepository { return NewListingRepository(s.pool) }

// TxRunner runner transaccional del ledger.
func (s *Store) TxRunner() *TxRunner { return NewTxRunner(s.pool) }
