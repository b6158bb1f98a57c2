package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItemResponse línea de pedido con su estado de reserva.
type OrderItemResponse struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	StorageUnitID string          `json:"storage_unit_id,omitempty"`
	IsProcessed   bool            `json:"is_processed"`
	Unfulfillable bool            `json:"unfulfillable,omitempty"`
}

// OrderResponse pedido de marketplace.
type OrderResponse struct {
	ID                  string              `json:"id"`
	CompanyID           string              `json:"company_id"`
	MarketplaceID       string              `json:"marketplace_id"`
	ExternalID          string              `json:"external_id"`
	Status              string              `json:"status"`
	ShippingWarehouseID string              `json:"shipping_warehouse_id,omitempty"`
	ShippingDate        *time.Time          `json:"shipping_date,omitempty"`
	CustomerName        string              `json:"customer_name,omitempty"`
	TotalPrice          decimal.Decimal     `json:"total_price"`
	Weight              decimal.Decimal     `json:"weight"`
	Items               []OrderItemResponse `json:"items"`
	LastSync            time.Time           `json:"last_sync"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}
