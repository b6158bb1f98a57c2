package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Ledger.
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrNegativeQuantity  = errors.New("la operación dejaría una cantidad negativa")
	ErrLedgerMismatch    = errors.New("el stock no coincide con el historial de movimientos")

	// Máquinas de estado y documentos.
	ErrInvalidTransition = errors.New("transición de estado no permitida")
	ErrCapacityExceeded  = errors.New("capacidad de la ubicación excedida")
	ErrOverReceipt       = errors.New("la cantidad recibida supera la pendiente")
	ErrIncompleteAudit   = errors.New("inventario con ítems sin contar")
	ErrConcurrentUpdate  = errors.New("el documento fue modificado concurrentemente")

	// Catálogo y ubicaciones.
	ErrCycle      = errors.New("la jerarquía de ubicaciones formaría un ciclo")
	ErrReferenced = errors.New("el recurso está referenciado por el ledger")

	// Marketplaces.
	ErrDuplicateExternalID = errors.New("identificador externo duplicado")
	ErrStaleEvent          = errors.New("evento más antiguo que la última sincronización")
	ErrUnknownListing      = errors.New("producto sin publicación en el marketplace")
)

// TransitionError describe un cambio de estado rechazado por la tabla de transiciones.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: transición %s -> %s no permitida", e.Entity, e.From, e.To)
}

// Unwrap permite errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Actor identifica quién ejecuta una operación y sobre qué empresa.
type Actor struct {
	UserID    string
	CompanyID string
}
