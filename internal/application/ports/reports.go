package ports

import (
	"context"
	"time"

	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// ReportHandle referencia opaca a un reporte almacenado.
type ReportHandle struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReportStore almacena un reporte y devuelve su handle.
type ReportStore interface {
	Save(ctx context.Context, name, contentType string, content []byte) (ReportHandle, error)
	Open(ctx context.Context, name string) ([]byte, error)
}

// AuditReportData datos de una toma de inventario listos para renderizar.
type AuditReportData struct {
	Inventory     *entity.Inventory
	WarehouseName string
	ProductNames  map[string]string // productID -> nombre
	UnitCodes     map[string]string // storageUnitID -> código
	GeneratedAt   time.Time
}

// AuditReportRenderer genera el documento de discrepancias de una toma de inventario.
type AuditReportRenderer interface {
	RenderAudit(data AuditReportData) ([]byte, error)
}

// MovementExporter exporta movimientos del ledger a una planilla.
type MovementExporter interface {
	ExportMovements(movements []*entity.StockMovement) ([]byte, error)
}
