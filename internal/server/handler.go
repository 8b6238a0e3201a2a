package server

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

// Service is the orchestrator surface the handlers depend on.
type Service interface {
	Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (transaction.Record, error)
	Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (transaction.Record, error)
	Transfer(ctx context.Context, source, destination string, amount decimal.Decimal) (transaction.Record, error)
	ListTransactions(ctx context.Context, accountNumber string) ([]transaction.Record, error)
}

// Handler holds the HTTP handlers for the transaction surface.
type Handler struct {
	service Service
	logger  log.Logger
}

// NewHandler builds the handler set.
func NewHandler(service Service, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNop()
	}

	return &Handler{service: service, logger: logger}
}

type transactionRequest struct {
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
}

func (r transactionRequest) validate() (string, bool) {
	if strings.TrimSpace(r.AccountNumber) == "" {
		return "accountNumber is required", false
	}

	if !r.Amount.IsPositive() {
		return "amount must be greater than zero", false
	}

	return "", true
}

type transferRequest struct {
	SourceAccount      string          `json:"sourceAccount"`
	DestinationAccount string          `json:"destinationAccount"`
	Amount             decimal.Decimal `json:"amount"`
}

func (r transferRequest) validate() (string, bool) {
	if strings.TrimSpace(r.SourceAccount) == "" {
		return "sourceAccount is required", false
	}

	if strings.TrimSpace(r.DestinationAccount) == "" {
		return "destinationAccount is required", false
	}

	if !r.Amount.IsPositive() {
		return "amount must be greater than zero", false
	}

	return "", true
}

// Deposit handles POST /api/transactions/deposit.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "MALFORMED_BODY", "request body is not valid JSON")
	}

	if msg, ok := req.validate(); !ok {
		return BadRequest(c, "INVALID_REQUEST", msg)
	}

	h.logger.Infof("received deposit request for account %s", req.AccountNumber)

	rec, err := h.service.Deposit(c.UserContext(), req.AccountNumber, req.Amount)
	if err != nil {
		return OperationError(c, rec, err)
	}

	return OK(c, rec)
}

// Withdraw handles POST /api/transactions/withdraw.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req transactionRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "MALFORMED_BODY", "request body is not valid JSON")
	}

	if msg, ok := req.validate(); !ok {
		return BadRequest(c, "INVALID_REQUEST", msg)
	}

	h.logger.Infof("received withdraw request for account %s", req.AccountNumber)

	rec, err := h.service.Withdraw(c.UserContext(), req.AccountNumber, req.Amount)
	if err != nil {
		return OperationError(c, rec, err)
	}

	return OK(c, rec)
}

// Transfer handles POST /api/transactions/transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return BadRequest(c, "MALFORMED_BODY", "request body is not valid JSON")
	}

	if msg, ok := req.validate(); !ok {
		return BadRequest(c, "INVALID_REQUEST", msg)
	}

	h.logger.Infof("received transfer request from %s to %s", req.SourceAccount, req.DestinationAccount)

	rec, err := h.service.Transfer(c.UserContext(), req.SourceAccount, req.DestinationAccount, req.Amount)
	if err != nil {
		return OperationError(c, rec, err)
	}

	return OK(c, rec)
}

// ListTransactions handles GET /api/transactions/account/:accountNumber.
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	accountNumber := c.Params("accountNumber")
	if strings.TrimSpace(accountNumber) == "" {
		return BadRequest(c, "INVALID_REQUEST", "accountNumber is required")
	}

	records, err := h.service.ListTransactions(c.UserContext(), accountNumber)
	if err != nil {
		return OperationError(c, transaction.Record{}, err)
	}

	return OK(c, records)
}

// Health handles GET /health.
func (h *Handler) Health(c *fiber.Ctx) error {
	return OK(c, fiber.Map{"status": "ok"})
}
