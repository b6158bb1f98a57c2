package ledger

import (
	"context"
	"fmt"

	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportUseCase exporta el historial de movimientos a una planilla y la guarda en el ReportStore.
type ExportUseCase struct {
	ledger   *Service
	exporter ports.MovementExporter
	store    ports.ReportStore
}

// NewExportUseCase construye el caso de uso.
func NewExportUseCase(ledger *Service, exporter ports.MovementExporter, store ports.ReportStore) *ExportUseCase {
	return &ExportUseCase{ledger: ledger, exporter: exporter, store: store}
}

// Export genera la planilla de los movimientos que cumplen el filtro.
func (uc *ExportUseCase) Export(ctx context.Context, f repository.MovementFilter) (ports.ReportHandle, error) {
	if f.Limit <= 0 || f.Limit > 10000 {
		f.Limit = 10000
	}
	movs, err := uc.ledger.movRepo.List(ctx, f)
	if err != nil {
		return ports.ReportHandle{}, err
	}
	content, err := uc.exporter.ExportMovements(movs)
	if err != nil {
		return ports.ReportHandle{}, fmt.Errorf("exportar movimientos: %w", err)
	}
	name := fmt.Sprintf("movements/%s.xlsx", uc.ledger.now().UTC().Format("20060102T150405.000000000"))
	return uc.store.Save(ctx, name, xlsxContentType, content)
}
