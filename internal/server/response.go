package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
)

// ErrorResponse is the structured error payload for every failed request.
// When the operation produced a ledger record, the record rides along so the
// caller can see the terminal status and correlation id.
type ErrorResponse struct {
	Code        string              `json:"code"`
	Title       string              `json:"title"`
	Message     string              `json:"message"`
	Transaction *transaction.Record `json:"transaction,omitempty"`
}

// OK sends a 200 response with the given body.
func OK(c *fiber.Ctx, body any) error {
	return c.Status(http.StatusOK).JSON(body)
}

// BadRequest sends a 400 with a structured error body.
func BadRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
		Code:    code,
		Title:   "Invalid Request",
		Message: message,
	})
}

// OperationError maps a classified operation error onto the HTTP surface. The
// record, when present, is attached to the payload.
func OperationError(c *fiber.Ctx, rec transaction.Record, err error) error {
	var attached *transaction.Record
	if rec.ID != "" {
		attached = &rec
	}

	return c.Status(statusForError(err)).JSON(ErrorResponse{
		Code:        errorCode(err),
		Title:       errorTitle(err),
		Message:     err.Error(),
		Transaction: attached,
	})
}

func statusForError(err error) int {
	switch transaction.KindOf(err) {
	case transaction.KindValidation:
		return http.StatusBadRequest
	case transaction.KindBusiness:
		if transaction.CodeOf(err) == transaction.CodeAccountNotFound {
			return http.StatusNotFound
		}

		return http.StatusUnprocessableEntity
	case transaction.KindUnavailable:
		return http.StatusServiceUnavailable
	case transaction.KindCompensation:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func errorCode(err error) string {
	if code := transaction.CodeOf(err); code != "" {
		return string(code)
	}

	return "INTERNAL_ERROR"
}

func errorTitle(err error) string {
	switch transaction.KindOf(err) {
	case transaction.KindValidation:
		return "Invalid Request"
	case transaction.KindBusiness:
		return "Operation Rejected"
	case transaction.KindUnavailable:
		return "Service Unavailable"
	case transaction.KindCompensation:
		return "Manual Reconciliation Required"
	default:
		return "Upstream Failure"
	}
}
