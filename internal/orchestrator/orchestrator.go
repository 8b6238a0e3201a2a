// Package orchestrator sequences money-movement operations against the
// remote account authority. Each operation issues its remote calls through
// the breaker-gated client, writes exactly one ledger record carrying the
// terminal status before returning, and fires a best-effort notification on
// success. A transfer whose credit fails after the debit succeeded is
// compensated with a reversing credit; a failed reversal is surfaced as
// requiring manual reconciliation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jettyvasavi/banking-system-phase2/internal/accounts"
	"github.com/jettyvasavi/banking-system-phase2/internal/ledger"
	"github.com/jettyvasavi/banking-system-phase2/internal/notification"
	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

const notifyTimeout = 5 * time.Second

// Orchestrator coordinates deposits, withdrawals, and transfers.
type Orchestrator struct {
	ledger   ledger.Store
	accounts accounts.Client
	notifier notification.Notifier
	logger   log.Logger
}

// New wires an orchestrator. Ledger and accounts are required; notifier and
// logger fall back to no-ops.
func New(store ledger.Store, client accounts.Client, notifier notification.Notifier, logger log.Logger) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("orchestrator: ledger store is required")
	}

	if client == nil {
		return nil, errors.New("orchestrator: account client is required")
	}

	if notifier == nil {
		notifier = notification.NewNop()
	}

	if logger == nil {
		logger = log.NewNop()
	}

	return &Orchestrator{ledger: store, accounts: client, notifier: notifier, logger: logger}, nil
}

// Deposit credits the account with amount.
func (o *Orchestrator) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (transaction.Record, error) {
	if err := transaction.ValidateAmount(amount); err != nil {
		return transaction.Record{}, err
	}

	// Cancellation is only honored before the mutating call is dispatched.
	if err := ctx.Err(); err != nil {
		return transaction.Record{}, err
	}

	o.logger.Infof("processing deposit of %s for account %s", amount, accountNumber)

	if err := o.accounts.AdjustBalance(ctx, accountNumber, amount); err != nil {
		rec := transaction.NewDepositRecord(accountNumber, amount, failureStatus(err))
		return o.recordFailure(ctx, rec, err)
	}

	rec := transaction.NewDepositRecord(accountNumber, amount, transaction.StatusSuccess)
	if err := o.appendRecord(ctx, rec); err != nil {
		return transaction.Record{}, err
	}

	o.fireNotification(fmt.Sprintf("Deposit of %s to account %s successful.", amount, accountNumber))

	return rec, nil
}

// Withdraw debits the account by amount after checking status and balance.
func (o *Orchestrator) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (transaction.Record, error) {
	if err := transaction.ValidateAmount(amount); err != nil {
		return transaction.Record{}, err
	}

	o.logger.Infof("processing withdrawal of %s for account %s", amount, accountNumber)

	snapshot, err := o.accounts.GetAccount(ctx, accountNumber)
	if err == nil {
		err = checkWithdrawable(snapshot, amount)
	}

	if err != nil {
		rec := transaction.NewWithdrawRecord(accountNumber, amount, failureStatus(err))
		return o.recordFailure(ctx, rec, err)
	}

	if err := ctx.Err(); err != nil {
		return transaction.Record{}, err
	}

	if err := o.accounts.AdjustBalance(ctx, accountNumber, amount.Neg()); err != nil {
		rec := transaction.NewWithdrawRecord(accountNumber, amount, failureStatus(err))
		return o.recordFailure(ctx, rec, err)
	}

	rec := transaction.NewWithdrawRecord(accountNumber, amount, transaction.StatusSuccess)
	if err := o.appendRecord(ctx, rec); err != nil {
		return transaction.Record{}, err
	}

	o.fireNotification(fmt.Sprintf("Withdrawal of %s from account %s successful.", amount, accountNumber))

	return rec, nil
}

// Transfer moves amount from source to destination. The debit and credit are
// independent remote calls; a failed credit after a successful debit triggers
// a reversing credit to the source.
func (o *Orchestrator) Transfer(ctx context.Context, source, destination string, amount decimal.Decimal) (transaction.Record, error) {
	if err := transaction.ValidateAmount(amount); err != nil {
		return transaction.Record{}, err
	}

	if source == destination {
		err := transaction.NewError(transaction.KindBusiness, transaction.CodeInvalidAccountPair,
			"source and destination accounts cannot be the same", nil)
		rec := transaction.NewTransferRecord(source, destination, amount, transaction.StatusFailed)

		return o.recordFailure(ctx, rec, err)
	}

	o.logger.Infof("processing transfer of %s from %s to %s", amount, source, destination)

	if err := o.checkTransferPreconditions(ctx, source, destination, amount); err != nil {
		rec := transaction.NewTransferRecord(source, destination, amount, failureStatus(err))
		return o.recordFailure(ctx, rec, err)
	}

	if err := ctx.Err(); err != nil {
		return transaction.Record{}, err
	}

	if err := o.accounts.AdjustBalance(ctx, source, amount.Neg()); err != nil {
		// Nothing has moved yet.
		rec := transaction.NewTransferRecord(source, destination, amount, failureStatus(err))
		return o.recordFailure(ctx, rec, err)
	}

	// The debit is applied: the transfer must run to a terminal status even
	// if the caller goes away.
	detached := context.WithoutCancel(ctx)

	if err := o.accounts.AdjustBalance(detached, destination, amount); err != nil {
		return o.compensate(detached, source, destination, amount, err)
	}

	rec := transaction.NewTransferRecord(source, destination, amount, transaction.StatusSuccess)
	if err := o.appendRecord(detached, rec); err != nil {
		return transaction.Record{}, err
	}

	o.fireNotification(fmt.Sprintf("Transfer of %s from %s to %s successful.", amount, source, destination))

	return rec, nil
}

// ListTransactions returns the ledger records touching the account, in
// creation order.
func (o *Orchestrator) ListTransactions(ctx context.Context, accountNumber string) ([]transaction.Record, error) {
	records, err := o.ledger.FindByAccount(ctx, accountNumber)
	if err != nil {
		return nil, transaction.NewError(transaction.KindInfrastructure, transaction.CodeLedgerFailure,
			"could not read transaction history", err)
	}

	return records, nil
}

func (o *Orchestrator) checkTransferPreconditions(ctx context.Context, source, destination string, amount decimal.Decimal) error {
	src, err := o.accounts.GetAccount(ctx, source)
	if err != nil {
		return err
	}

	if err := checkWithdrawable(src, amount); err != nil {
		return err
	}

	dst, err := o.accounts.GetAccount(ctx, destination)
	if err != nil {
		return err
	}

	if dst.Status == accounts.StatusInactive {
		return transaction.NewError(transaction.KindBusiness, transaction.CodeAccountInactive,
			fmt.Sprintf("destination account %s is inactive", destination), nil)
	}

	return nil
}

// compensate reverses a debit whose matching credit failed. creditErr is the
// failure that triggered the reversal and stays the caller-visible error when
// the reversal succeeds.
func (o *Orchestrator) compensate(ctx context.Context, source, destination string, amount decimal.Decimal, creditErr error) (transaction.Record, error) {
	o.logger.Warnf("transfer credit to %s failed, reversing debit on %s: %v", destination, source, creditErr)

	if reverseErr := o.accounts.AdjustBalance(ctx, source, amount); reverseErr != nil {
		o.logger.Errorf("transfer compensation failed for %s: %v", source, reverseErr)

		rec := transaction.NewTransferRecord(source, destination, amount, transaction.StatusCompensationFailed)
		err := transaction.NewError(transaction.KindCompensation, transaction.CodeCompensationFailed,
			fmt.Sprintf("transfer failed and the reversing credit to %s also failed: manual reconciliation required", source),
			errors.Join(creditErr, reverseErr))

		return o.recordFailure(ctx, rec, err)
	}

	o.logger.Infof("transfer compensated: debit on %s reversed", source)

	rec := transaction.NewTransferRecord(source, destination, amount, transaction.StatusCompensated)

	return o.recordFailure(ctx, rec, creditErr)
}

// recordFailure persists the terminal record for a non-success outcome and
// returns it alongside the classified error. The ledger write runs detached
// from caller cancellation; if it fails, the original error is still
// surfaced and the write failure is logged.
func (o *Orchestrator) recordFailure(ctx context.Context, rec transaction.Record, opErr error) (transaction.Record, error) {
	if err := o.appendRecord(ctx, rec); err != nil {
		o.logger.Errorf("failed to persist %s record %s: %v", rec.Status, rec.CorrelationID, err)
	}

	return rec, opErr
}

func (o *Orchestrator) appendRecord(ctx context.Context, rec transaction.Record) error {
	if _, err := o.ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
		return transaction.NewError(transaction.KindInfrastructure, transaction.CodeLedgerFailure,
			fmt.Sprintf("could not persist transaction record %s", rec.CorrelationID), err)
	}

	return nil
}

func (o *Orchestrator) fireNotification(message string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := o.notifier.Notify(ctx, message); err != nil {
			o.logger.Warnf("notification delivery failed: %v", err)
		}
	}()
}

// checkWithdrawable enforces the business preconditions for debiting an
// account: it must be active and hold at least the requested amount.
func checkWithdrawable(snapshot accounts.Snapshot, amount decimal.Decimal) error {
	if snapshot.Status == accounts.StatusInactive {
		return transaction.NewError(transaction.KindBusiness, transaction.CodeAccountInactive,
			fmt.Sprintf("account %s is inactive", snapshot.AccountNumber), nil)
	}

	if snapshot.Balance.LessThan(amount) {
		return transaction.NewError(transaction.KindBusiness, transaction.CodeInsufficientFunds,
			fmt.Sprintf("insufficient funds: available %s", snapshot.Balance), nil)
	}

	return nil
}

// failureStatus maps a classified error to the record status for the attempt.
func failureStatus(err error) transaction.Status {
	if transaction.IsUnavailable(err) {
		return transaction.StatusServiceUnavailable
	}

	return transaction.StatusFailed
}
