package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/fbs-core/internal/application/catalog"
	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/application/ledger"
	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain/entity"
	"github.com/jhoicas/fbs-core/internal/domain/repository"
)

// LedgerHandler consultas y operaciones manuales del ledger. Toda ruta valida que la
// ubicación pertenezca a la empresa del token; las escrituras validan también el producto.
type LedgerHandler struct {
	ledger     *ledger.Service
	export     *ledger.ExportUseCase
	reports    ports.ReportStore
	warehouses *catalog.WarehouseUseCase
	products   *catalog.ProductUseCase
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(
	l *ledger.Service,
	export *ledger.ExportUseCase,
	reports ports.ReportStore,
	warehouses *catalog.WarehouseUseCase,
	products *catalog.ProductUseCase,
) *LedgerHandler {
	return &LedgerHandler{ledger: l, export: export, reports: reports, warehouses: warehouses, products: products}
}

// Snapshot godoc
// @Summary      Saldo de una ubicación y producto
// @Tags         ledger
// @Security     Bearer
// @Produce      json
// @Param        unit     path  string  true  "ID de la ubicación"
// @Param        product  path  string  true  "ID del producto"
// @Success      200  {object}  dto.StockEntryResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/ledger/{unit}/{product} [get]
func (h *LedgerHandler) Snapshot(c *fiber.Ctx) error {
	unitID, productID := c.Params("unit"), c.Params("product")
	if err := h.warehouses.AuthorizeUnit(c.UserContext(), actor(c), unitID); err != nil {
		return errorResponse(c, err)
	}
	e, err := h.ledger.Snapshot(c.UserContext(), unitID, productID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toEntry(e))
}

// Movements historial de una entrada, más recientes primero.
func (h *LedgerHandler) Movements(c *fiber.Ctx) error {
	unitID := c.Params("unit")
	if err := h.warehouses.AuthorizeUnit(c.UserContext(), actor(c), unitID); err != nil {
		return errorResponse(c, err)
	}
	f, err := movementFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	f.StorageUnitID = unitID
	f.ProductID = c.Params("product")
	list, err := h.ledger.History(c.UserContext(), f)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toMovements(list))
}

// Verify reconstruye la entrada desde su historial y la compara con la guardada.
func (h *LedgerHandler) Verify(c *fiber.Ctx) error {
	unitID, productID := c.Params("unit"), c.Params("product")
	if err := h.warehouses.AuthorizeUnit(c.UserContext(), actor(c), unitID); err != nil {
		return errorResponse(c, err)
	}
	e, err := h.ledger.Verify(c.UserContext(), unitID, productID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toEntry(e))
}

// History movimientos filtrados de una ubicación (storage_unit_id es obligatorio).
func (h *LedgerHandler) History(c *fiber.Ctx) error {
	f, ok, err := h.scopedFilter(c)
	if !ok {
		return err
	}
	list, err := h.ledger.History(c.UserContext(), f)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toMovements(list))
}

// Export godoc
// @Summary      Exportar movimientos a Excel
// @Tags         ledger
// @Security     Bearer
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        storage_unit_id  query  string  true   "Ubicación"
// @Param        product_id       query  string  false  "Producto"
// @Success      200
// @Router       /api/ledger/movements/export [get]
func (h *LedgerHandler) Export(c *fiber.Ctx) error {
	f, ok, err := h.scopedFilter(c)
	if !ok {
		return err
	}
	handle, err := h.export.Export(c.UserContext(), f)
	if err != nil {
		return errorResponse(c, err)
	}
	return sendReport(c, h.reports, handle, "movimientos.xlsx")
}

// Adjust godoc
// @Summary      Ajuste manual de disponible
// @Tags         ledger
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LedgerAdjustRequest  true  "Ajuste"
// @Success      200   {object}  dto.LedgerMutationResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/ledger/adjust [post]
func (h *LedgerHandler) Adjust(c *fiber.Ctx) error {
	var in dto.LedgerAdjustRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.StorageUnitID == "" || in.ProductID == "" || in.Delta == 0 || in.Reason == "" {
		return badRequest(c, "storage_unit_id, product_id, delta y reason son requeridos")
	}
	if err := h.authorizeWrite(c, in.StorageUnitID, in.ProductID); err != nil {
		return errorResponse(c, err)
	}
	res, err := h.ledger.Adjust(c.UserContext(), ledger.Mutation{
		UnitID:         in.StorageUnitID,
		ProductID:      in.ProductID,
		Quantity:       in.Delta,
		Reason:         in.Reason,
		ActorID:        GetUserID(c),
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toMutation(res))
}

// Receive recepción externa (saldo inicial o ingreso no planificado).
func (h *LedgerHandler) Receive(c *fiber.Ctx) error {
	var in dto.LedgerReceiveRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.StorageUnitID == "" || in.ProductID == "" || in.Quantity <= 0 {
		return badRequest(c, "storage_unit_id, product_id y quantity > 0 son requeridos")
	}
	if err := h.authorizeWrite(c, in.StorageUnitID, in.ProductID); err != nil {
		return errorResponse(c, err)
	}
	res, err := h.ledger.Receive(c.UserContext(), ledger.SourceExternal, ledger.Mutation{
		UnitID:         in.StorageUnitID,
		ProductID:      in.ProductID,
		Quantity:       in.Quantity,
		Reason:         entity.ReasonOpeningBalance,
		Reference:      in.Reference,
		ActorID:        GetUserID(c),
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(toMutation(res))
}

func (h *LedgerHandler) authorizeWrite(c *fiber.Ctx, unitID, productID string) error {
	if err := h.warehouses.AuthorizeUnit(c.UserContext(), actor(c), unitID); err != nil {
		return err
	}
	return h.products.AuthorizeProduct(c.UserContext(), actor(c), productID)
}

// scopedFilter arma el filtro desde la query y autoriza la ubicación. Si ok es false,
// la respuesta de error ya fue escrita y err es el resultado a devolver.
func (h *LedgerHandler) scopedFilter(c *fiber.Ctx) (repository.MovementFilter, bool, error) {
	f, err := movementFilter(c)
	if err != nil {
		return f, false, badRequest(c, err.Error())
	}
	if f.StorageUnitID == "" {
		return f, false, badRequest(c, "storage_unit_id es requerido")
	}
	if err := h.warehouses.AuthorizeUnit(c.UserContext(), actor(c), f.StorageUnitID); err != nil {
		return f, false, errorResponse(c, err)
	}
	return f, true, nil
}

func movementFilter(c *fiber.Ctx) (repository.MovementFilter, error) {
	f := repository.MovementFilter{
		StorageUnitID: c.Query("storage_unit_id"),
		ProductID:     c.Query("product_id"),
		Reference:     c.Query("reference"),
		Cause:         entity.MovementCause(c.Query("cause")),
		Limit:         clamp(c.QueryInt("limit", 100), 1, 1000),
		Offset:        max(c.QueryInt("offset", 0), 0),
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, key+" debe ser RFC3339")
		}
		*dst = &t
	}
	return f, nil
}

func toMutation(res ledger.Result) dto.LedgerMutationResponse {
	out := dto.LedgerMutationResponse{Applied: res.Applied, Entry: toEntry(res.Entry)}
	if res.Movement != nil {
		m := toMovement(res.Movement)
		out.Movement = &m
	}
	return out
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
