package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"filepanel/internal/backend"
	"filepanel/internal/filter"
	"filepanel/internal/http/middleware"
	"filepanel/internal/panel"
	"filepanel/internal/service"
	"filepanel/internal/storage"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a standardized JSON error response. message must be safe to show.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: middleware.RequestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	})
}

// writeDomainError translates service and panel errors without leaking internals.
func writeDomainError(c *fiber.Ctx, err error) error {
	var (
		fetchErr *service.FetchError
		mutErr   *service.MutationError
	)

	switch {
	case errors.Is(err, service.ErrIDRequired), errors.Is(err, service.ErrInvalidID):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid file id")
	case errors.Is(err, service.ErrLocatorRequired):
		return writeError(c, fiber.StatusBadRequest, "LOCATOR_REQUIRED", "locator is required")
	case errors.Is(err, service.ErrFilenameRequired):
		return writeError(c, fiber.StatusBadRequest, "FILENAME_REQUIRED", "filename is required")
	case errors.Is(err, filter.ErrUnknownField):
		return writeError(c, fiber.StatusBadRequest, "UNKNOWN_FIELD", "unknown filter field")
	case errors.Is(err, service.ErrObjectStoreDisabled),
		errors.Is(err, storage.ErrNotLocator),
		errors.Is(err, storage.ErrForeignBucket),
		errors.Is(err, backend.ErrEmptyLocator),
		errors.Is(err, backend.ErrBadLocator):
		return writeError(c, fiber.StatusBadRequest, "INVALID_LOCATOR", "locator cannot be served")
	case errors.Is(err, panel.ErrPanelNotFound):
		return writeError(c, fiber.StatusNotFound, "PANEL_NOT_FOUND", "panel not found")
	case errors.Is(err, panel.ErrUnknownFile), errors.Is(err, backend.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
	case errors.Is(err, panel.ErrInFlight):
		return writeError(c, fiber.StatusConflict, "IN_FLIGHT", "operation already in progress for this file")
	case errors.Is(err, panel.ErrSuperseded):
		return writeError(c, fiber.StatusConflict, "SUPERSEDED", "superseded by a newer apply")
	case errors.As(err, &fetchErr):
		return writeError(c, fiber.StatusBadGateway, "BACKEND_UNAVAILABLE", "failed to load files")
	case errors.As(err, &mutErr):
		return writeError(c, fiber.StatusBadGateway, "BACKEND_ERROR", mutErr.Op+" failed")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
