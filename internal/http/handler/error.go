package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"storyapi/internal/errs"
	"storyapi/internal/http/middleware"
	"storyapi/internal/logging"
	"storyapi/internal/playback"
	"storyapi/internal/upload"
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

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "VALIDATION_ERROR", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeDomainError maps a service, store or playback error onto a status and code.
// Only validation messages are passed through to the client.
func writeDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, playback.ErrGroupNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "story group not found")
	case errors.Is(err, playback.ErrNotPlaying):
		return writeError(c, fiber.StatusConflict, "NOT_PLAYING", "no playback session is open")
	case errors.Is(err, upload.ErrBusy):
		return writeError(c, fiber.StatusConflict, "UPLOAD_IN_PROGRESS", "an upload is already in progress")
	case errors.Is(err, upload.ErrNoFile):
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	}

	switch errs.KindOf(err) {
	case errs.KindValidation:
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
	case errs.KindUpload:
		logging.FromContext(c.UserContext()).Error("media_upload_failed", "error", err.Error())
		return writeError(c, fiber.StatusBadGateway, "UPLOAD_FAILED", "media upload failed")
	case errs.KindNetwork:
		logging.FromContext(c.UserContext()).Error("dependency_unreachable", "error", err.Error())
		return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
	case errs.KindPersistence:
		logging.FromContext(c.UserContext()).Error("persistence_failed", "error", err.Error())
		return writeError(c, fiber.StatusInternalServerError, "PERSISTENCE_ERROR", "internal server error")
	default:
		logging.FromContext(c.UserContext()).Error("unhandled_error", "error", err.Error())
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

func validationMessage(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return "invalid request"
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if errs.KindOf(err) != errs.KindUnknown {
			return writeDomainError(c, err)
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "missing "+middleware.ViewerHeader+" header")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		case fiber.StatusTooManyRequests:
			return writeError(c, status, "TOO_MANY_REQUESTS", "rate limit exceeded")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
