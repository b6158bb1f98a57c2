package entity

import "time"

// Inventory toma de inventario (conteo cíclico) sobre una bodega.
type Inventory struct {
	ID              string
	CompanyID       string
	WarehouseID     string
	Name            string
	Status          InventoryStatus
	IncludeReserved bool // expected incluye lo reservado
	StartDate       *time.Time
	EndDate         *time.Time
	Comment         string
	Closing         bool // Complete en curso: ya no admite conteos
	Items           []InventoryItem
	CreatedBy       string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InventoryItem compara lo esperado (foto del ledger al iniciar) con lo contado.
type InventoryItem struct {
	ID                string
	InventoryID       string
	StorageUnitID     string
	ProductID         string
	ExpectedQuantity  int64
	ActualQuantity    *int64
	IsChecked         bool
	DiscrepancyReason string
	IsApplied         bool
	CheckedAt         *time.Time
}

// HasDiscrepancy se calcula, nunca se asigna.
func (it InventoryItem) HasDiscrepancy() bool {
	return it.ActualQuantity != nil && *it.ActualQuantity != it.ExpectedQuantity
}

// Difference actual - expected (0 si aún no se contó).
func (it InventoryItem) Difference() int64 {
	if it.ActualQuantity == nil {
		return 0
	}
	return *it.ActualQuantity - it.ExpectedQuantity
}

// Transition aplica el cambio de estado si la tabla lo permite.
func (inv *Inventory) Transition(to InventoryStatus, now time.Time) error {
	if err := inventoryTransitions.check("inventory", inv.Status, to); err != nil {
		return err
	}
	inv.Status = to
	inv.UpdatedAt = now
	return nil
}

// Item devuelve el índice de la línea con ese id, o -1.
func (inv *Inventory) Item(itemID string) int {
	for i := range inv.Items {
		if inv.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// Unchecked cantidad de líneas sin conteo.
func (inv *Inventory) Unchecked() int {
	n := 0
	for _, it := range inv.Items {
		if !it.IsChecked {
			n++
		}
	}
	return n
}

// Discrepancies cantidad de líneas con diferencia.
func (inv *Inventory) Discrepancies() int {
	n := 0
	for _, it := range inv.Items {
		if it.HasDiscrepancy() {
			n++
		}
	}
	return n
}
