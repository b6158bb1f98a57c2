package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/shipment"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// ShipmentHandler consolidación de pedidos en envíos.
type ShipmentHandler struct {
	shipments *shipment.Service
}

// NewShipmentHandler construye el handler.
func NewShipmentHandler(shipments *shipment.Service) *ShipmentHandler {
	return &ShipmentHandler{shipments: shipments}
}

// Create godoc
// @Summary      Crear envío en borrador
// @Tags         shipments
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateShipmentRequest  true  "Envío"
// @Success      201   {object}  dto.ShipmentResponse
// @Router       /api/shipments [post]
func (h *ShipmentHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateShipmentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.WarehouseID == "" {
		return badRequest(c, "warehouse_id es requerido")
	}
	sh, err := h.shipments.Create(c.UserContext(), actor(c), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return h.respond(c.Status(fiber.StatusCreated), sh)
}

func (h *ShipmentHandler) GetByID(c *fiber.Ctx) error {
	return h.run(c, h.shipments.Get)
}

// AddOrder vincula un pedido listo para enviar.
func (h *ShipmentHandler) AddOrder(c *fiber.Ctx) error {
	var in dto.AddShipmentOrderRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.OrderID == "" {
		return badRequest(c, "order_id es requerido")
	}
	return h.run(c, func(ctx context.Context, a domain.Actor, id string) (*entity.Shipment, error) {
		return h.shipments.AddOrder(ctx, a, id, in.OrderID)
	})
}

func (h *ShipmentHandler) RemoveOrder(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	return h.run(c, func(ctx context.Context, a domain.Actor, id string) (*entity.Shipment, error) {
		return h.shipments.RemoveOrder(ctx, a, id, orderID)
	})
}

func (h *ShipmentHandler) Submit(c *fiber.Ctx) error {
	return h.run(c, h.shipments.Submit)
}

func (h *ShipmentHandler) Approve(c *fiber.Ctx) error {
	return h.run(c, h.shipments.Approve)
}

// Ship descuenta del ledger la reserva de cada pedido vinculado. Reintentable.
func (h *ShipmentHandler) Ship(c *fiber.Ctx) error {
	return h.run(c, h.shipments.Ship)
}

func (h *ShipmentHandler) Deliver(c *fiber.Ctx) error {
	return h.run(c, h.shipments.MarkDelivered)
}

func (h *ShipmentHandler) Cancel(c *fiber.Ctx) error {
	return h.run(c, h.shipments.Cancel)
}

func (h *ShipmentHandler) run(c *fiber.Ctx, fn func(context.Context, domain.Actor, string) (*entity.Shipment, error)) error {
	sh, err := fn(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return h.respond(c, sh)
}

func (h *ShipmentHandler) respond(c *fiber.Ctx, sh *entity.Shipment) error {
	links, err := h.shipments.Links(c.UserContext(), sh.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toShipment(sh, links))
}
