package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent evento de pedido entregado por un marketplace (webhook o polling).
// UpdatedAt es el reloj del marketplace y define el orden entre eventos del mismo pedido.
type OrderEvent struct {
	ExternalID          string           `json:"external_id"`
	Status              string           `json:"status"` // new | cancelled (otros se ignoran)
	Items               []OrderEventItem `json:"items"`
	TotalPrice          decimal.Decimal  `json:"total_price"`
	ShippingWarehouseID string           `json:"shipping_warehouse_id,omitempty"`
	ShippingDate        *time.Time       `json:"shipping_date,omitempty"`
	CustomerName        string           `json:"customer_name,omitempty"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// OrderEventItem línea del evento. Se resuelve por ExternalProductID o, si viene, por ProductID.
type OrderEventItem struct {
	ExternalProductID string          `json:"external_product_id,omitempty"`
	ProductID         string          `json:"product_id,omitempty"`
	Quantity          int64           `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
}

// ListingEvent cambio de una publicación en el marketplace.
type ListingEvent struct {
	ProductID       string          `json:"product_id"`
	ExternalID      string          `json:"external_id"`
	ExternalBarcode string          `json:"external_barcode,omitempty"`
	ExternalArticle string          `json:"external_article,omitempty"`
	Price           decimal.Decimal `json:"price"`
	IsActive        bool            `json:"is_active"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IngestResponse resultado de ingerir un evento.
type IngestResponse struct {
	Outcome string `json:"outcome"` // created | updated | duplicate | stale | rejected
	OrderID string `json:"order_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
