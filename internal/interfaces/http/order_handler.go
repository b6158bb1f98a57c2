package http

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fbs-core/internal/application/reservation"
	"github.com/jhoicas/fbs-core/internal/domain"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
)

// OrderHandler ciclo de vida de pedidos: reserva, cancelación y estados posteriores al envío.
type OrderHandler struct {
	orders *reservation.Manager
}

// NewOrderHandler construye el handler.
func NewOrderHandler(orders *reservation.Manager) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// GetByID pedido de la empresa del token.
func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	o, err := h.owned(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toOrder(o))
}

// Process godoc
// @Summary      Reservar el stock de un pedido
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del pedido"
// @Success      200  {object}  dto.OrderResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/process [post]
func (h *OrderHandler) Process(c *fiber.Ctx) error {
	return h.run(c, func(ctx context.Context, id string) (*entity.Order, error) {
		return h.orders.ProcessOrder(ctx, id, GetUserID(c))
	})
}

// Cancel libera las reservas vigentes y cancela el pedido.
func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	return h.run(c, func(ctx context.Context, id string) (*entity.Order, error) {
		return h.orders.CancelOrder(ctx, id, GetUserID(c))
	})
}

func (h *OrderHandler) Ready(c *fiber.Ctx) error {
	return h.run(c, h.orders.MarkReadyToShip)
}

func (h *OrderHandler) Deliver(c *fiber.Ctx) error {
	return h.run(c, h.orders.MarkDelivered)
}

func (h *OrderHandler) Return(c *fiber.Ctx) error {
	return h.run(c, h.orders.MarkReturned)
}

func (h *OrderHandler) run(c *fiber.Ctx, fn func(context.Context, string) (*entity.Order, error)) error {
	ctx := c.UserContext()
	id := c.Params("id")
	if _, err := h.owned(ctx, actor(c), id); err != nil {
		return errorResponse(c, err)
	}
	o, err := fn(ctx, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toOrder(o))
}

func (h *OrderHandler) owned(ctx context.Context, a domain.Actor, id string) (*entity.Order, error) {
	o, err := h.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil || o.CompanyID != a.CompanyID {
		return nil, fmt.Errorf("pedido %s: %w", id, domain.ErrNotFound)
	}
	return o, nil
}
