package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

var movementHeader = []interface{}{
	"fecha",
	"ubicación",
	"producto",
	"causa",
	"motivo",
	"Δ disponible",
	"Δ reservado",
	"Δ en tránsito",
	"referencia",
	"actor",
	"clave",
}

// XLSXExporter implementa ports.MovementExporter con excelize.
type XLSXExporter struct{}

// NewXLSXExporter construye el exportador.
func NewXLSXExporter() *XLSXExporter { return &XLSXExporter{} }

// ExportMovements escribe una fila por movimiento, en el orden recibido.
func (e *XLSXExporter) ExportMovements(movements []*entity.StockMovement) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &movementHeader); err != nil {
		return nil, fmt.Errorf("xlsx: encabezado: %w", err)
	}

	for i, m := range movements {
		values := []interface{}{
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			m.StorageUnitID,
			m.ProductID,
			string(m.Cause),
			m.Reason,
			m.DeltaAvailable,
			m.DeltaReserved,
			m.DeltaInTransit,
			m.Reference,
			m.ActorID,
			m.IdempotencyKey,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("xlsx: celda: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("xlsx: fila %d: %w", i+2, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("xlsx: escribir: %w", err)
	}
	return buf.Bytes(), nil
}
