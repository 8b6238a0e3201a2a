// Package accounts is the breaker-gated client for the account balance
// authority. It owns the business/infrastructure error classification: only
// infrastructure failures (timeouts, connection errors, unexpected responses)
// count against the breaker; authority-side business rejections pass through
// without tripping it.
package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jettyvasavi/banking-system-phase2/internal/breaker"
	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

// ServiceName identifies the remote dependency on the breaker and in logs.
const ServiceName = "accountService"

const defaultTimeout = 5 * time.Second

// errorBodyLimit bounds how much of an error response body is read for
// diagnostics.
const errorBodyLimit = 4 << 10

// Status is the account lifecycle state reported by the authority.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Snapshot is the authority's view of one account at read time.
type Snapshot struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Status        Status          `json:"status"`
}

// Client reads and mutates balances on the account authority.
type Client interface {
	GetAccount(ctx context.Context, accountNumber string) (Snapshot, error)
	AdjustBalance(ctx context.Context, accountNumber string, delta decimal.Decimal) error
}

// Config holds the HTTP client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker breaker.Config
	Logger  log.Logger
}

func (cfg Config) validate() error {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("accounts: base url cannot be empty")
	}

	return nil
}

// HTTPClient is the production Client implementation. Every call goes through
// the injected breaker; the HTTP client carries a hard timeout so a hanging
// authority surfaces as a breaker failure instead of a stuck operation.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
	breaker *breaker.Breaker
	logger  log.Logger
}

// NewHTTPClient builds a breaker-gated client for the authority at BaseURL.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		breaker: breaker.New(ServiceName, cfg.Breaker, logger),
		logger:  logger,
	}, nil
}

// callOutcome carries business rejections past the breaker so they never
// count as failures.
type callOutcome struct {
	snapshot Snapshot
	bizErr   error
}

// GetAccount fetches the account snapshot through the breaker.
func (c *HTTPClient) GetAccount(ctx context.Context, accountNumber string) (Snapshot, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetchAccount(ctx, accountNumber)
	})
	if err != nil {
		return Snapshot{}, c.classifyDispatchError("get account", err)
	}

	outcome := result.(callOutcome)
	if outcome.bizErr != nil {
		return Snapshot{}, outcome.bizErr
	}

	return outcome.snapshot, nil
}

// AdjustBalance applies a signed delta to the account balance through the
// breaker.
func (c *HTTPClient) AdjustBalance(ctx context.Context, accountNumber string, delta decimal.Decimal) error {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.putBalance(ctx, accountNumber, delta)
	})
	if err != nil {
		return c.classifyDispatchError("adjust balance", err)
	}

	outcome := result.(callOutcome)
	if outcome.bizErr != nil {
		return outcome.bizErr
	}

	return nil
}

// BreakerState exposes the breaker state for health reporting.
func (c *HTTPClient) BreakerState() breaker.State {
	return c.breaker.State()
}

// classifyDispatchError is the explicit fallback branch: a breaker rejection
// becomes an UNAVAILABLE error, anything else is an infrastructure fault.
func (c *HTTPClient) classifyDispatchError(op string, err error) error {
	if errors.Is(err, breaker.ErrOpen) {
		c.logger.Warnf("accounts: %s rejected, account service circuit is open", op)

		return transaction.NewError(transaction.KindUnavailable, transaction.CodeCircuitOpen,
			"account service is currently unavailable", err)
	}

	return transaction.NewError(transaction.KindInfrastructure, transaction.CodeRemoteFailure,
		fmt.Sprintf("account service %s failed", op), err)
}

func (c *HTTPClient) fetchAccount(ctx context.Context, accountNumber string) (callOutcome, error) {
	url := fmt.Sprintf("%s/api/accounts/%s", c.baseURL, accountNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return callOutcome{}, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return callOutcome{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var snapshot Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
			return callOutcome{}, fmt.Errorf("decode account response: %w", err)
		}

		return callOutcome{snapshot: snapshot}, nil

	case resp.StatusCode == http.StatusNotFound:
		return callOutcome{bizErr: transaction.NewError(transaction.KindBusiness, transaction.CodeAccountNotFound,
			fmt.Sprintf("account %s not found", accountNumber), nil)}, nil

	case isBusinessRejection(resp.StatusCode):
		return callOutcome{bizErr: businessRejection(resp)}, nil

	default:
		return callOutcome{}, unexpectedStatus(resp)
	}
}

func (c *HTTPClient) putBalance(ctx context.Context, accountNumber string, delta decimal.Decimal) (callOutcome, error) {
	url := fmt.Sprintf("%s/api/accounts/%s/balance", c.baseURL, accountNumber)

	// json.Number keeps the delta numeric on the wire without float rounding.
	body, err := json.Marshal(balanceRequest{Amount: json.Number(delta.String())})
	if err != nil {
		return callOutcome{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return callOutcome{}, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return callOutcome{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return callOutcome{}, nil

	case resp.StatusCode == http.StatusNotFound:
		return callOutcome{bizErr: transaction.NewError(transaction.KindBusiness, transaction.CodeAccountNotFound,
			fmt.Sprintf("account %s not found", accountNumber), nil)}, nil

	case isBusinessRejection(resp.StatusCode):
		return callOutcome{bizErr: businessRejection(resp)}, nil

	default:
		return callOutcome{}, unexpectedStatus(resp)
	}
}

type balanceRequest struct {
	Amount json.Number `json:"amount"`
}

// isBusinessRejection covers the statuses the authority uses to refuse a
// mutation that would violate its own invariants.
func isBusinessRejection(status int) bool {
	return status == http.StatusBadRequest ||
		status == http.StatusConflict ||
		status == http.StatusUnprocessableEntity
}

func businessRejection(resp *http.Response) error {
	return transaction.NewError(transaction.KindBusiness, transaction.CodeBalanceRejected,
		fmt.Sprintf("account service rejected the operation: %s", readErrorBody(resp)), nil)
}

func unexpectedStatus(resp *http.Response) error {
	return fmt.Errorf("account service returned %d: %s", resp.StatusCode, readErrorBody(resp))
}

func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return resp.Status
	}

	return string(bytes.TrimSpace(body))
}
