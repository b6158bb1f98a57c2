package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order pedido de un marketplace. (MarketplaceID, ExternalID) es único.
// Version se usa para compare-and-set en el repositorio.
type Order struct {
	ID                  string
	CompanyID           string
	MarketplaceID       string
	ExternalID          string
	Status              OrderStatus
	ShippingWarehouseID string // preferencia de ruteo (opcional)
	ShippingWave        string
	ShippingDate        *time.Time
	CustomerName        string
	TotalPrice          decimal.Decimal
	FulfillmentCost     decimal.Decimal
	Weight              decimal.Decimal // kg
	Items               []OrderItem
	LastSync            time.Time
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OrderItem línea del pedido. StorageUnitID indica dónde se reservó;
// IsProcessed = la reserva está vigente en el ledger.
type OrderItem struct {
	ID            string
	OrderID       string
	ProductID     string
	Quantity      int64
	Price         decimal.Decimal
	StorageUnitID string
	IsProcessed   bool
	Unfulfillable bool
}

// Transition aplica el cambio de estado si la tabla lo permite.
func (o *Order) Transition(to OrderStatus, now time.Time) error {
	if err := orderTransitions.check("order", o.Status, to); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

// Reserved indica si todas las líneas tienen la reserva vigente.
func (o *Order) Reserved() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if !it.IsProcessed {
			return false
		}
	}
	return true
}

// HasReservations indica si alguna línea conserva su reserva.
func (o *Order) HasReservations() bool {
	for _, it := range o.Items {
		if it.IsProcessed {
			return true
		}
	}
	return false
}

// ClearReservations marca todas las líneas sin reserva.
func (o *Order) ClearReservations() {
	for i := range o.Items {
		o.Items[i].IsProcessed = false
		o.Items[i].StorageUnitID = ""
	}
}
