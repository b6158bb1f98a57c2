package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/marketplace"
)

// MarketplaceHandler webhooks de pedidos y publicaciones de los marketplaces.
// La entrega puede repetirse o llegar desordenada; el reconciliador lo resuelve.
type MarketplaceHandler struct {
	reconciler *marketplace.Reconciler
}

// NewMarketplaceHandler construye el handler.
func NewMarketplaceHandler(reconciler *marketplace.Reconciler) *MarketplaceHandler {
	return &MarketplaceHandler{reconciler: reconciler}
}

// IngestOrder godoc
// @Summary      Webhook de pedido
// @Tags         marketplaces
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string          true  "ID del marketplace"
// @Param        body  body  dto.OrderEvent  true  "Evento"
// @Success      200   {object}  dto.IngestResponse
// @Success      201   {object}  dto.IngestResponse
// @Failure      422   {object}  dto.IngestResponse
// @Router       /api/marketplaces/{id}/orders [post]
func (h *MarketplaceHandler) IngestOrder(c *fiber.Ctx) error {
	var ev dto.OrderEvent
	if err := c.BodyParser(&ev); err != nil {
		return badBody(c)
	}
	id := c.Params("id")
	if err := h.reconciler.Authorize(c.UserContext(), actor(c), id); err != nil {
		return errorResponse(c, err)
	}
	res, err := h.reconciler.IngestOrder(c.UserContext(), id, ev)
	if err != nil {
		return errorResponse(c, err)
	}
	out := dto.IngestResponse{Outcome: string(res.Outcome), Reason: res.Reason}
	if res.Order != nil {
		out.OrderID = res.Order.ID
	}
	return c.Status(ingestStatus(res.Outcome)).JSON(out)
}

// IngestListing webhook de publicación.
func (h *MarketplaceHandler) IngestListing(c *fiber.Ctx) error {
	var ev dto.ListingEvent
	if err := c.BodyParser(&ev); err != nil {
		return badBody(c)
	}
	id := c.Params("id")
	if err := h.reconciler.Authorize(c.UserContext(), actor(c), id); err != nil {
		return errorResponse(c, err)
	}
	outcome, err := h.reconciler.IngestListing(c.UserContext(), id, ev)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(ingestStatus(outcome)).JSON(dto.IngestResponse{Outcome: string(outcome)})
}

func ingestStatus(o marketplace.Outcome) int {
	switch o {
	case marketplace.OutcomeCreated:
		return fiber.StatusCreated
	case marketplace.OutcomeRejected:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusOK
	}
}
