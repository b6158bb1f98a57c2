package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/fbs-core/internal/application/dto"
	"github.com/jhoicas/fbs-core/internal/domain"
)

// errorStatus tabla de errores de dominio a (status HTTP, código). El orden importa:
// el primer errors.Is que coincide gana.
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrDuplicateExternalID, fiber.StatusConflict, "DUPLICATE_EXTERNAL_ID"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{domain.ErrConcurrentUpdate, fiber.StatusConflict, "CONCURRENT_UPDATE"},
	{domain.ErrReferenced, fiber.StatusConflict, "REFERENCED"},
	{domain.ErrCycle, fiber.StatusConflict, "CYCLE"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrInsufficientStock, fiber.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"},
	{domain.ErrNegativeQuantity, fiber.StatusUnprocessableEntity, "NEGATIVE_QUANTITY"},
	{domain.ErrInvalidTransition, fiber.StatusUnprocessableEntity, "INVALID_TRANSITION"},
	{domain.ErrCapacityExceeded, fiber.StatusUnprocessableEntity, "CAPACITY_EXCEEDED"},
	{domain.ErrOverReceipt, fiber.StatusUnprocessableEntity, "OVER_RECEIPT"},
	{domain.ErrIncompleteAudit, fiber.StatusUnprocessableEntity, "INCOMPLETE_AUDIT"},
	{domain.ErrUnknownListing, fiber.StatusUnprocessableEntity, "UNKNOWN_LISTING"},
	{domain.ErrStaleEvent, fiber.StatusAccepted, "STALE_EVENT"},
}

// errorResponse traduce err a la respuesta JSON. Lo no clasificado es 500 y se registra;
// LedgerMismatch además indica un bug en el ledger.
func errorResponse(c *fiber.Ctx, err error) error {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return c.Status(e.status).JSON(dto.ErrorResponse{Code: e.code, Message: err.Error()})
		}
	}
	ev := log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path())
	if errors.Is(err, domain.ErrLedgerMismatch) {
		ev.Bool("invariant_violation", true).Msg("ledger inconsistente")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "LEDGER_MISMATCH", Message: err.Error()})
	}
	ev.Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: msg})
}
