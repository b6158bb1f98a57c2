package entity

import (
	"time"
)

// Supply suministro entrante de una bodega origen hacia una bodega destino.
// StorageUnitID es la ubicación de recepción en la bodega destino.
type Supply struct {
	ID                     string
	CompanyID              string
	Name                   string
	SourceWarehouseID      string
	DestinationWarehouseID string
	StorageUnitID          string
	Status                 SupplyStatus
	SupplyDate             *time.Time
	TimeSlot               string
	PalletsCount           int
	BoxesCount             int
	PickupRequired         bool
	Comment                string
	Items                  []SupplyItem
	Discrepancies          []SupplyDiscrepancy
	CreatedBy              string
	Version                int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// SupplyItem línea esperada de un suministro.
// Quantity esperado; QuantityReceived acumulado por recepciones; Shortfall faltante aceptado al cerrar.
type SupplyItem struct {
	ID               string
	SupplyID         string
	ProductID        string
	Quantity         int64
	QuantityReceived int64
	Shortfall        int64
	Receipts         []SupplyReceipt
}

// SupplyReceipt evento de recepción ya registrado sobre una línea.
type SupplyReceipt struct {
	ID         string
	Quantity   int64
	ActorID    string
	ReceivedAt time.Time
}

// SupplyDiscrepancy faltante aceptado explícitamente; nunca se descarta en silencio.
type SupplyDiscrepancy struct {
	ID        string
	SupplyID  string
	ItemID    string
	ProductID string
	Expected  int64
	Received  int64
	Shortfall int64
	Reason    string
	ActorID   string
	CreatedAt time.Time
}

// Remaining cantidad que aún puede recibirse en la línea.
func (it SupplyItem) Remaining() int64 {
	return it.Quantity - it.QuantityReceived - it.Shortfall
}

// Complete indica recepción exacta de lo esperado.
func (it SupplyItem) Complete() bool {
	return it.QuantityReceived == it.Quantity
}

// Receipt busca una recepción por id.
func (it SupplyItem) Receipt(receiptID string) (SupplyReceipt, bool) {
	for _, r := range it.Receipts {
		if r.ID == receiptID {
			return r, true
		}
	}
	return SupplyReceipt{}, false
}

// Transition aplica el cambio de estado si la tabla lo permite.
func (s *Supply) Transition(to SupplyStatus, now time.Time) error {
	if err := supplyTransitions.check("supply", s.Status, to); err != nil {
		return err
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

// Item devuelve el índice de la línea con ese id, o -1.
func (s *Supply) Item(itemID string) int {
	for i := range s.Items {
		if s.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// AllReceived indica que todas las líneas llegaron completas.
func (s *Supply) AllReceived() bool {
	if len(s.Items) == 0 {
		return false
	}
	for _, it := range s.Items {
		if !it.Complete() {
			return false
		}
	}
	return true
}

// TotalQuantity cantidad esperada total del suministro.
func (s *Supply) TotalQuantity() int64 {
	var n int64
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}
