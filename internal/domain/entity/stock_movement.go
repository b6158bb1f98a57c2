package entity

import "time"

// MovementCause operación del ledger que originó el movimiento.
type MovementCause string

const (
	CauseReserve         MovementCause = "reserve"
	CauseRelease         MovementCause = "release"
	CauseCommitInTransit MovementCause = "commit_in_transit"
	CauseCancelInTransit MovementCause = "cancel_in_transit"
	CauseReceive         MovementCause = "receive"
	CauseShip            MovementCause = "ship"
	CauseAdjust          MovementCause = "adjust"
)

// Razones conocidas de ajuste.
const (
	ReasonAuditCorrection = "audit_correction"
	ReasonOpeningBalance  = "opening_balance"
)

// StockMovement registro inmutable de un cambio en una StockEntry (delta por bucket).
// Plegar todos los movimientos de una clave reconstruye la entrada.
type StockMovement struct {
	ID             string
	StorageUnitID  string
	ProductID      string
	Cause          MovementCause
	Reason         string
	DeltaAvailable int64
	DeltaReserved  int64
	DeltaInTransit int64
	Reference      string // pedido, suministro, envío o inventario de origen
	IdempotencyKey string // vacío si la operación no es idempotente
	ActorID        string
	CreatedAt      time.Time
}

// DeltaTotal variación de la cantidad física total.
func (m StockMovement) DeltaTotal() int64 {
	return m.DeltaAvailable + m.DeltaReserved + m.DeltaInTransit
}
