package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shipment envío físico que agrupa pedidos listos de una misma bodega.
type Shipment struct {
	ID               string
	CompanyID        string
	WarehouseID      string
	Status           ShipmentStatus
	ShipmentDate     *time.Time
	TransportCompany string
	TrackingNumber   string
	PalletsCount     int
	BoxesCount       int
	TotalWeight      decimal.Decimal // kg
	Comment          string
	ShippingStarted  bool // Ship en curso: ya no se puede cancelar
	CreatedBy        string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ShipmentOrder vínculo envío-pedido. Un pedido tiene a lo sumo un vínculo activo.
// IsProcessed se marca cuando todas las líneas del pedido salieron del ledger.
type ShipmentOrder struct {
	ID          string
	ShipmentID  string
	OrderID     string
	IsProcessed bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Transition aplica el cambio de estado si la tabla lo permite.
func (s *Shipment) Transition(to ShipmentStatus, now time.Time) error {
	if err := shipmentTransitions.check("shipment", s.Status, to); err != nil {
		return err
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}
