package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/supply"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// SupplyHandler suministros hacia el fulfillment.
type SupplyHandler struct {
	supplies *supply.Service
}

// NewSupplyHandler construye el handler.
func NewSupplyHandler(supplies *supply.Service) *SupplyHandler {
	return &SupplyHandler{supplies: supplies}
}

// Create godoc
// @Summary      Crear suministro en borrador
// @Tags         supplies
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSupplyRequest  true  "Suministro"
// @Success      201   {object}  dto.SupplyResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/supplies [post]
func (h *SupplyHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateSupplyRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.DestinationWarehouseID == "" || in.StorageUnitID == "" || len(in.Items) == 0 {
		return badRequest(c, "destination_warehouse_id, storage_unit_id e items son requeridos")
	}
	s, err := h.supplies.Create(c.UserContext(), actor(c), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toSupply(s))
}

// List suministros de la empresa.
func (h *SupplyHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return badRequest(c, "paginación inválida")
	}
	page = page.Normalize(20, 100)
	list, err := h.supplies.List(c.UserContext(), actor(c), page.Limit, page.Offset)
	if err != nil {
		return errorResponse(c, err)
	}
	out := make([]dto.SupplyResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSupply(s))
	}
	return c.JSON(out)
}

func (h *SupplyHandler) GetByID(c *fiber.Ctx) error {
	return h.run(c, h.supplies.Get)
}

func (h *SupplyHandler) Submit(c *fiber.Ctx) error {
	return h.run(c, h.supplies.Submit)
}

// Approve valida la capacidad de la ubicación destino.
func (h *SupplyHandler) Approve(c *fiber.Ctx) error {
	return h.run(c, h.supplies.Approve)
}

// Dispatch registra la mercadería en tránsito.
func (h *SupplyHandler) Dispatch(c *fiber.Ctx) error {
	return h.run(c, h.supplies.Dispatch)
}

func (h *SupplyHandler) Cancel(c *fiber.Ctx) error {
	return h.run(c, h.supplies.Cancel)
}

// Close cierra un suministro en tránsito con faltantes y registra las discrepancias.
func (h *SupplyHandler) Close(c *fiber.Ctx) error {
	var in dto.CloseSupplyRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.Reason == "" {
		return badRequest(c, "reason es requerido")
	}
	return h.run(c, func(ctx context.Context, a domain.Actor, id string) (*entity.Supply, error) {
		return h.supplies.ForceClose(ctx, a, id, in.Reason)
	})
}

// Receive godoc
// @Summary      Recibir cantidad de una línea
// @Tags         supplies
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        itemId  path  string  true  "ID de la línea"
// @Param        body    body  dto.ReceiveSupplyItemRequest  true  "Recepción"
// @Success      200     {object}  dto.SupplyResponse
// @Failure      422     {object}  dto.ErrorResponse
// @Router       /api/supplies/items/{itemId}/receive [post]
func (h *SupplyHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiveSupplyItemRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.Quantity <= 0 {
		return badRequest(c, "quantity debe ser mayor a cero")
	}
	s, err := h.supplies.Receive(c.UserContext(), actor(c), c.Params("itemId"), in.Quantity, in.ReceiptID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toSupply(s))
}

func (h *SupplyHandler) run(c *fiber.Ctx, fn func(context.Context, domain.Actor, string) (*entity.Supply, error)) error {
	s, err := fn(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toSupply(s))
}
