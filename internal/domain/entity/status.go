package entity

import "github.com/jhoicas/fbs-core/internal/domain"

// transitions es la tabla explícita de aristas permitidas de una máquina de estados.
// Cualquier par (from, to) ausente se rechaza.
type transitions[S ~string] map[S][]S

func (t transitions[S]) allows(from, to S) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (t transitions[S]) check(entityName string, from, to S) error {
	if !t.allows(from, to) {
		return &domain.TransitionError{Entity: entityName, From: string(from), To: string(to)}
	}
	return nil
}

// terminal indica si el estado no tiene aristas de salida.
func (t transitions[S]) terminal(s S) bool {
	return len(t[s]) == 0
}

// OrderStatus estado de un pedido.
type OrderStatus string

const (
	OrderNew         OrderStatus = "new"
	OrderProcessing  OrderStatus = "processing"
	OrderReadyToShip OrderStatus = "ready_to_ship"
	OrderShipped     OrderStatus = "shipped"
	OrderDelivered   OrderStatus = "delivered"
	OrderCancelled   OrderStatus = "cancelled"
	OrderReturned    OrderStatus = "returned"
)

var orderTransitions = transitions[OrderStatus]{
	OrderNew:         {OrderProcessing, OrderCancelled},
	OrderProcessing:  {OrderReadyToShip, OrderCancelled},
	OrderReadyToShip: {OrderShipped, OrderCancelled},
	OrderShipped:     {OrderDelivered, OrderReturned},
	OrderDelivered:   {OrderReturned},
	OrderCancelled:   {},
	OrderReturned:    {},
}

// Valid indica si el valor pertenece al conjunto de estados.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransition indica si la arista s -> to está en la tabla.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	return orderTransitions.allows(s, to)
}

// SupplyStatus estado de un suministro.
type SupplyStatus string

const (
	SupplyDraft     SupplyStatus = "draft"
	SupplyPending   SupplyStatus = "pending"
	SupplyApproved  SupplyStatus = "approved"
	SupplyInTransit SupplyStatus = "in_transit"
	SupplyReceived  SupplyStatus = "received"
	SupplyCancelled SupplyStatus = "cancelled"
)

var supplyTransitions = transitions[SupplyStatus]{
	SupplyDraft:     {SupplyPending, SupplyCancelled},
	SupplyPending:   {SupplyApproved, SupplyCancelled},
	SupplyApproved:  {SupplyInTransit, SupplyCancelled},
	SupplyInTransit: {SupplyReceived, SupplyCancelled},
	SupplyReceived:  {},
	SupplyCancelled: {},
}

func (s SupplyStatus) Valid() bool {
	_, ok := supplyTransitions[s]
	return ok
}

func (s SupplyStatus) CanTransition(to SupplyStatus) bool {
	return supplyTransitions.allows(s, to)
}

// Terminal indica si el suministro ya no admite cambios.
func (s SupplyStatus) Terminal() bool {
	return supplyTransitions.terminal(s)
}

// ShipmentStatus estado de un envío.
type ShipmentStatus string

const (
	ShipmentDraft     ShipmentStatus = "draft"
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentApproved  ShipmentStatus = "approved"
	ShipmentShipped   ShipmentStatus = "shipped"
	ShipmentDelivered ShipmentStatus = "delivered"
	ShipmentCancelled ShipmentStatus = "cancelled"
)

var shipmentTransitions = transitions[ShipmentStatus]{
	ShipmentDraft:     {ShipmentPending, ShipmentCancelled},
	ShipmentPending:   {ShipmentApproved, ShipmentCancelled},
	ShipmentApproved:  {ShipmentShipped, ShipmentCancelled},
	ShipmentShipped:   {ShipmentDelivered},
	ShipmentDelivered: {},
	ShipmentCancelled: {},
}

func (s ShipmentStatus) Valid() bool {
	_, ok := shipmentTransitions[s]
	return ok
}

func (s ShipmentStatus) CanTransition(to ShipmentStatus) bool {
	return shipmentTransitions.allows(s, to)
}

// InventoryStatus estado de una toma de inventario.
type InventoryStatus string

const (
	InventoryDraft      InventoryStatus = "draft"
	InventoryInProgress InventoryStatus = "in_progress"
	InventoryCompleted  InventoryStatus = "completed"
	InventoryCancelled  InventoryStatus = "cancelled"
)

var inventoryTransitions = transitions[InventoryStatus]{
	InventoryDraft:      {InventoryInProgress, InventoryCancelled},
	InventoryInProgress: {InventoryCompleted, InventoryCancelled},
	InventoryCompleted:  {},
	InventoryCancelled:  {},
}

func (s InventoryStatus) Valid() bool {
	_, ok := inventoryTransitions[s]
	return ok
}

func (s InventoryStatus) CanTransition(to InventoryStatus) bool {
	return inventoryTransitions.allows(s, to)
}
