package dto

import "time"

// StockEntryResponse salida de una entrada del ledger.
type StockEntryResponse struct {
	StorageUnitID string    `json:"storage_unit_id"`
	ProductID     string    `json:"product_id"`
	Available     int64     `json:"available"`
	Reserved      int64     `json:"reserved"`
	InTransit     int64     `json:"in_transit"`
	Total         int64     `json:"total"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StockMovementResponse salida de un movimiento.
type StockMovementResponse struct {
	ID             string    `json:"id"`
	StorageUnitID  string    `json:"storage_unit_id"`
	ProductID      string    `json:"product_id"`
	Cause          string    `json:"cause"`
	Reason         string    `json:"reason,omitempty"`
	DeltaAvailable int64     `json:"delta_available"`
	DeltaReserved  int64     `json:"delta_reserved"`
	DeltaInTransit int64     `json:"delta_in_transit"`
	Reference      string    `json:"reference,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// LedgerAdjustRequest ajuste manual de available (delta con signo).
type LedgerAdjustRequest struct {
	StorageUnitID  string `json:"storage_unit_id" validate:"required"`
	ProductID      string `json:"product_id" validate:"required"`
	Delta          int64  `json:"delta" validate:"required"`
	Reason         string `json:"reason" validate:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// LedgerReceiveRequest recepción externa (saldo inicial o ingreso no planificado).
type LedgerReceiveRequest struct {
	StorageUnitID  string `json:"storage_unit_id" validate:"required"`
	ProductID      string `json:"product_id" validate:"required"`
	Quantity       int64  `json:"quantity" validate:"required,min=1"`
	Reference      string `json:"reference,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// LedgerMutationResponse resultado de una operación del ledger.
type LedgerMutationResponse struct {
	Applied  bool                   `json:"applied"`
	Entry    StockEntryResponse     `json:"entry"`
	Movement *StockMovementResponse `json:"movement,omitempty"`
}
