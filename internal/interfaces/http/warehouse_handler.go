package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fbs-core/internal/application/catalog"
	"github.com/jhoicas/fbs-core/internal/application/dto"
)

// WarehouseHandler bodegas y su árbol de ubicaciones (protegido).
type WarehouseHandler struct {
	uc *catalog.WarehouseUseCase
}

// NewWarehouseHandler construye el handler.
func NewWarehouseHandler(uc *catalog.WarehouseUseCase) *WarehouseHandler {
	return &WarehouseHandler{uc: uc}
}

// Create godoc
// @Summary      Crear bodega
// @Tags         warehouses
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateWarehouseRequest  true  "Datos de la bodega"
// @Success      201   {object}  dto.WarehouseResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/warehouses [post]
func (h *WarehouseHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateWarehouseRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.Name == "" {
		return badRequest(c, "name es requerido")
	}
	out, err := h.uc.Create(c.UserContext(), actor(c), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List bodegas de la empresa.
func (h *WarehouseHandler) List(c *fiber.Ctx) error {
	out, err := h.uc.List(c.UserContext(), actor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(out)
}

// GetByID bodega por ID.
func (h *WarehouseHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(out)
}

// ListUnits ubicaciones de la bodega en preorden (padre antes que hijos).
func (h *WarehouseHandler) ListUnits(c *fiber.Ctx) error {
	out, err := h.uc.ListUnits(c.UserContext(), actor(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(out)
}

// CreateUnit godoc
// @Summary      Crear ubicación
// @Tags         storage-units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateStorageUnitRequest  true  "Ubicación"
// @Success      201   {object}  dto.StorageUnitResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/storage-units [post]
func (h *WarehouseHandler) CreateUnit(c *fiber.Ctx) error {
	var in dto.CreateStorageUnitRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.WarehouseID == "" || in.Code == "" {
		return badRequest(c, "warehouse_id y code son requeridos")
	}
	out, err := h.uc.CreateUnit(c.UserContext(), actor(c), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// MoveUnit cambia el padre de una ubicación; parent_id vacío la deja en la raíz.
func (h *WarehouseHandler) MoveUnit(c *fiber.Ctx) error {
	var in dto.MoveStorageUnitRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.MoveUnit(c.UserContext(), actor(c), c.Params("id"), in)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(out)
}
