package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fbs-core/internal/application/audit"
	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// InventoryHandler tomas de inventario (conteo físico contra el ledger).
type InventoryHandler struct {
	audits  *audit.Service
	reports ports.ReportStore
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(audits *audit.Service, reports ports.ReportStore) *InventoryHandler {
	return &InventoryHandler{audits: audits, reports: reports}
}

// Create godoc
// @Summary      Planificar toma de inventario
// @Description  Con start=true toma la foto del ledger en el mismo paso.
// @Tags         inventories
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.StartAuditRequest  true  "Toma"
// @Success      201   {object}  dto.InventoryResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventories [post]
func (h *InventoryHandler) Create(c *fiber.Ctx) error {
	var in dto.StartAuditRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.WarehouseID == "" {
		return badRequest(c, "warehouse_id es requerido")
	}
	inv, err := h.audits.Plan(c.UserContext(), actor(c), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toInventory(inv))
}

func (h *InventoryHandler) GetByID(c *fiber.Ctx) error {
	return h.run(c, h.audits.Get)
}

func (h *InventoryHandler) Start(c *fiber.Ctx) error {
	return h.run(c, h.audits.Start)
}

// Count registra el conteo de una línea.
func (h *InventoryHandler) Count(c *fiber.Ctx) error {
	var in dto.SubmitCountRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.Quantity < 0 {
		return badRequest(c, "quantity no puede ser negativa")
	}
	inv, err := h.audits.SubmitCount(c.UserContext(), actor(c), c.Params("itemId"), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toInventory(inv))
}

// Finding agrega mercadería encontrada que el ledger no registraba.
func (h *InventoryHandler) Finding(c *fiber.Ctx) error {
	var in dto.AddFindingRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.StorageUnitID == "" || in.ProductID == "" {
		return badRequest(c, "storage_unit_id y product_id son requeridos")
	}
	return h.run(c, func(ctx context.Context, a domain.Actor, id string) (*entity.Inventory, error) {
		return h.audits.AddFinding(ctx, a, id, in)
	})
}

// Complete aplica los ajustes de las discrepancias al ledger.
func (h *InventoryHandler) Complete(c *fiber.Ctx) error {
	return h.run(c, h.audits.Complete)
}

func (h *InventoryHandler) Cancel(c *fiber.Ctx) error {
	return h.run(c, h.audits.Cancel)
}

// Report genera y descarga el PDF de discrepancias.
func (h *InventoryHandler) Report(c *fiber.Ctx) error {
	handle, err := h.audits.Report(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return sendReport(c, h.reports, handle, "inventario-"+c.Params("id")+".pdf")
}

func (h *InventoryHandler) run(c *fiber.Ctx, fn func(context.Context, domain.Actor, string) (*entity.Inventory, error)) error {
	inv, err := fn(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toInventory(inv))
}

// sendReport descarga un reporte recién guardado como adjunto.
func sendReport(c *fiber.Ctx, store ports.ReportStore, handle ports.ReportHandle, filename string) error {
	content, err := store.Open(c.UserContext(), handle.Name)
	if err != nil {
		return errorResponse(c, err)
	}
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, handle.ContentType)
	c.Set("X-Report-Name", handle.Name)
	return c.Send(content)
}
