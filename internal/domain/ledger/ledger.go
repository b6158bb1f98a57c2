// Package ledger contiene la aritmética pura de buckets del ledger de stock:
// precondiciones por operación, aplicación de deltas y reconstrucción por plegado de movimientos.
package ledger

import (
	"fmt"

	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// Op operación del ledger sobre una StockEntry.
type Op string

const (
	OpReserve          Op = "reserve"
	OpRelease          Op = "release"
	OpCommitInTransit  Op = "commit_in_transit"
	OpCancelInTransit  Op = "cancel_in_transit"
	OpReceiveInTransit Op = "receive_in_transit"
	OpReceiveExternal  Op = "receive_external"
	OpShip             Op = "ship"
	OpAdjust           Op = "adjust"
)

// Cause causa registrada en el movimiento.
func (op Op) Cause() entity.MovementCause {
	switch op {
	case OpReserve:
		return entity.CauseReserve
	case OpRelease:
		return entity.CauseRelease
	case OpCommitInTransit:
		return entity.CauseCommitInTransit
	case OpCancelInTransit:
		return entity.CauseCancelInTransit
	case OpReceiveInTransit, OpReceiveExternal:
		return entity.CauseReceive
	case OpShip:
		return entity.CauseShip
	default:
		return entity.CauseAdjust
	}
}

// Delta variación por bucket.
type Delta struct {
	Available int64
	Reserved  int64
	InTransit int64
}

// IsZero indica si el delta no cambia nada.
func (d Delta) IsZero() bool {
	return d.Available == 0 && d.Reserved == 0 && d.InTransit == 0
}

// Plan valida la precondición de op sobre e y devuelve el delta a aplicar.
// qty es la cantidad de la operación; en OpAdjust es el delta con signo sobre available.
func Plan(e entity.StockEntry, op Op, qty int64) (Delta, error) {
	if op == OpAdjust {
		if qty == 0 {
			return Delta{}, fmt.Errorf("%w: ajuste en cero", domain.ErrInvalidInput)
		}
		if e.Available+qty < 0 {
			return Delta{}, fmt.Errorf("%w: disponible %d, ajuste %d", domain.ErrNegativeQuantity, e.Available, qty)
		}
		return Delta{Available: qty}, nil
	}
	if qty <= 0 {
		return Delta{}, fmt.Errorf("%w: cantidad %d", domain.ErrInvalidInput, qty)
	}
	switch op {
	case OpReserve:
		if e.Available < qty {
			return Delta{}, insufficient("disponible", e.Available, qty)
		}
		return Delta{Available: -qty, Reserved: qty}, nil
	case OpRelease:
		if e.Reserved < qty {
			return Delta{}, insufficient("reservado", e.Reserved, qty)
		}
		return Delta{Available: qty, Reserved: -qty}, nil
	case OpCommitInTransit:
		return Delta{InTransit: qty}, nil
	case OpCancelInTransit:
		if e.InTransit < qty {
			return Delta{}, insufficient("en tránsito", e.InTransit, qty)
		}
		return Delta{InTransit: -qty}, nil
	case OpReceiveInTransit:
		if e.InTransit < qty {
			return Delta{}, insufficient("en tránsito", e.InTransit, qty)
		}
		return Delta{Available: qty, InTransit: -qty}, nil
	case OpReceiveExternal:
		return Delta{Available: qty}, nil
	case OpShip:
		if e.Reserved < qty {
			return Delta{}, insufficient("reservado", e.Reserved, qty)
		}
		return Delta{Reserved: -qty}, nil
	}
	return Delta{}, fmt.Errorf("%w: operación %q", domain.ErrInvalidInput, op)
}

func insufficient(bucket string, have, want int64) error {
	return fmt.Errorf("%w: %s %d, solicitado %d", domain.ErrInsufficientStock, bucket, have, want)
}

// Apply devuelve e con el delta aplicado. Falla con ErrNegativeQuantity si algún bucket queda negativo.
func Apply(e entity.StockEntry, d Delta) (entity.StockEntry, error) {
	e.Available += d.Available
	e.Reserved += d.Reserved
	e.InTransit += d.InTransit
	if !e.NonNegative() {
		return e, fmt.Errorf("%w: available=%d reserved=%d in_transit=%d",
			domain.ErrNegativeQuantity, e.Available, e.Reserved, e.InTransit)
	}
	return e, nil
}

// DeltaOf extrae el delta de un movimiento.
func DeltaOf(m entity.StockMovement) Delta {
	return Delta{Available: m.DeltaAvailable, Reserved: m.DeltaReserved, InTransit: m.DeltaInTransit}
}

// Fold reconstruye la entrada (unit, product) plegando los movimientos en orden.
// Los movimientos de otras claves se ignoran. Un prefijo que deje buckets negativos
// indica un log corrupto y devuelve ErrNegativeQuantity.
func Fold(unitID, productID string, movements []entity.StockMovement) (entity.StockEntry, error) {
	e := entity.StockEntry{StorageUnitID: unitID, ProductID: productID}
	for _, m := range movements {
		if m.StorageUnitID != unitID || m.ProductID != productID {
			continue
		}
		next, err := Apply(e, DeltaOf(m))
		if err != nil {
			return e, fmt.Errorf("movimiento %s: %w", m.ID, err)
		}
		e = next
		e.Version++
		e.UpdatedAt = m.CreatedAt
	}
	return e, nil
}

// Equal compara los buckets de dos entradas.
func Equal(a, b entity.StockEntry) bool {
	return a.Available == b.Available && a.Reserved == b.Reserved && a.InTransit == b.InTransit
}
