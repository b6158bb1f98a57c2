// Package report genera y guarda los documentos del núcleo: el PDF de discrepancias de una
// toma de inventario y la planilla de movimientos del ledger.
//
// Layout del PDF (A4):
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Toma de inventario + bodega │ Estado + fechas      │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: líneas / contadas / con diferencia / aplicadas     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Ubicación | Producto | Esperado | Contado | Dif.     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: fecha de generación                                 │
//	└─────────────────────────────────────────────────────────────┘
package report

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 180, Green: 30, Blue: 30}
)

// ── Renderer ──────────────────────────────────────────────────────────────────

// PDFRenderer implementa ports.AuditReportRenderer usando Maroto v2.
type PDFRenderer struct{}

// NewPDFRenderer construye el renderer.
func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

// RenderAudit genera el PDF y devuelve sus bytes.
func (r *PDFRenderer) RenderAudit(data ports.AuditReportData) ([]byte, error) {
	inv := data.Inventory
	if inv == nil {
		return nil, fmt.Errorf("pdf: inventario vacío")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Toma de inventario "+inv.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(data))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range itemRows(data) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow(data))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(data ports.AuditReportData) core.Row {
	inv := data.Inventory
	dates := "Inicio: " + formatDate(inv.StartDate)
	if inv.EndDate != nil {
		dates += "   Cierre: " + formatDate(inv.EndDate)
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New(inv.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Bodega: "+nonEmpty(data.WarehouseName, inv.WarehouseID), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("TOMA DE INVENTARIO", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(string(inv.Status), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New(dates, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func summaryRow(inv *entity.Inventory) core.Row {
	applied := 0
	for _, it := range inv.Items {
		if it.IsApplied {
			applied++
		}
	}
	reserved := "solo disponible"
	if inv.IncludeReserved {
		reserved = "disponible + reservado"
	}
	return row.New(12).Add(
		col.New(12).Add(
			text.New("RESUMEN", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Líneas: %d   |   Contadas: %d   |   Con diferencia: %d   |   Ajustadas: %d   |   Esperado: %s",
				len(inv.Items),
				len(inv.Items)-inv.Unchecked(),
				inv.Discrepancies(),
				applied,
				reserved,
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Ubicación", 2, align.Left),
		h("Producto", 4, align.Left),
		h("Esperado", 2, align.Right),
		h("Contado", 2, align.Right),
		h("Dif.", 2, align.Right),
	)
}

// itemRows una fila por línea; primero las que tienen diferencia.
func itemRows(data ports.AuditReportData) []core.Row {
	items := append([]entity.InventoryItem(nil), data.Inventory.Items...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].HasDiscrepancy() && !items[j].HasDiscrepancy()
	})
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		counted := "-"
		if it.ActualQuantity != nil {
			counted = strconv.FormatInt(*it.ActualQuantity, 10)
		}
		diffProps := props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1}
		if it.HasDiscrepancy() {
			diffProps.Style = fontstyle.Bold
			diffProps.Color = colorAlert
		}
		result = append(result, row.New(7).Add(
			col.New(2).Add(text.New(
				nonEmpty(data.UnitCodes[it.StorageUnitID], it.StorageUnitID),
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(4).Add(text.New(
				nonEmpty(data.ProductNames[it.ProductID], it.ProductID),
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				strconv.FormatInt(it.ExpectedQuantity, 10),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				counted,
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(signed(it.Difference()), diffProps)),
		))
	}
	return result
}

func footerRow(data ports.AuditReportData) core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New("Generado el "+data.GeneratedAt.Format("02/01/2006 15:04")+
			". Las diferencias aplicadas figuran en el ledger con motivo "+entity.ReasonAuditCorrection+".",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	))
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02/01/2006")
}

func signed(n int64) string {
	if n > 0 {
		return "+" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
