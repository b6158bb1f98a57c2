package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateShipmentRequest entrada para crear un envío en borrador.
type CreateShipmentRequest struct {
	WarehouseID      string     `json:"warehouse_id" validate:"required"`
	ShipmentDate     *time.Time `json:"shipment_date,omitempty"`
	TransportCompany string     `json:"transport_company,omitempty"`
	TrackingNumber   string     `json:"tracking_number,omitempty"`
	PalletsCount     int        `json:"pallets_count"`
	BoxesCount       int        `json:"boxes_count"`
	Comment          string     `json:"comment,omitempty"`
}

// AddShipmentOrderRequest vincula un pedido listo al envío.
type AddShipmentOrderRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

// ShipmentOrderResponse vínculo envío-pedido.
type ShipmentOrderResponse struct {
	OrderID     string `json:"order_id"`
	IsProcessed bool   `json:"is_processed"`
}

// ShipmentResponse salida de un envío.
type ShipmentResponse struct {
	ID               string                  `json:"id"`
	CompanyID        string                  `json:"company_id"`
	WarehouseID      string                  `json:"warehouse_id"`
	Status           string                  `json:"status"`
	ShipmentDate     *time.Time              `json:"shipment_date,omitempty"`
	TransportCompany string                  `json:"transport_company,omitempty"`
	TrackingNumber   string                  `json:"tracking_number,omitempty"`
	PalletsCount     int                     `json:"pallets_count"`
	BoxesCount       int                     `json:"boxes_count"`
	TotalWeight      decimal.Decimal         `json:"total_weight"`
	Comment          string                  `json:"comment,omitempty"`
	Orders           []ShipmentOrderResponse `json:"orders"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}
