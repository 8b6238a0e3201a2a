package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jettyvasavi/banking-system-phase2/internal/accounts"
	"github.com/jettyvasavi/banking-system-phase2/internal/ledger"
	"github.com/jettyvasavi/banking-system-phase2/internal/transaction"
	"github.com/jettyvasavi/banking-system-phase2/pkg/log"
)

type adjustCall struct {
	account string
	delta   decimal.Decimal
}

// fakeAccounts scripts the account authority. Adjust errors are consumed as a
// per-account queue so a transfer can fail its credit but accept the
// compensating call.
type fakeAccounts struct {
	mu          sync.Mutex
	snapshots   map[string]accounts.Snapshot
	getErr      map[string]error
	adjustErrs  map[string][]error
	getCalls    []string
	adjustCalls []adjustCall
	onAdjust    func(call adjustCall)
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		snapshots:  make(map[string]accounts.Snapshot),
		getErr:     make(map[string]error),
		adjustErrs: make(map[string][]error),
	}
}

func (f *fakeAccounts) setAccount(number, balance string, status accounts.Status) {
	f.snapshots[number] = accounts.Snapshot{
		AccountNumber: number,
		Balance:       decimal.RequireFromString(balance),
		Status:        status,
	}
}

func (f *fakeAccounts) queueAdjustErr(account string, errs ...error) {
	f.adjustErrs[account] = append(f.adjustErrs[account], errs...)
}

func (f *fakeAccounts) GetAccount(_ context.Context, accountNumber string) (accounts.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls = append(f.getCalls, accountNumber)

	if err := f.getErr[accountNumber]; err != nil {
		return accounts.Snapshot{}, err
	}

	snapshot, ok := f.snapshots[accountNumber]
	if !ok {
		return accounts.Snapshot{}, transaction.NewError(transaction.KindBusiness,
			transaction.CodeAccountNotFound, "account not found", nil)
	}

	return snapshot, nil
}

func (f *fakeAccounts) AdjustBalance(_ context.Context, accountNumber string, delta decimal.Decimal) error {
	f.mu.Lock()

	call := adjustCall{account: accountNumber, delta: delta}
	f.adjustCalls = append(f.adjustCalls, call)

	var err error
	if queue := f.adjustErrs[accountNumber]; len(queue) > 0 {
		err = queue[0]
		f.adjustErrs[accountNumber] = queue[1:]
	}

	hook := f.onAdjust
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	return err
}

func (f *fakeAccounts) calls() []adjustCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]adjustCall, len(f.adjustCalls))
	copy(out, f.adjustCalls)

	return out
}

// recordingNotifier captures notification messages.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.messages = append(n.messages, message)

	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.messages)
}

func infraErr() error {
	return transaction.NewError(transaction.KindInfrastructure, transaction.CodeRemoteFailure,
		"account service call failed", errors.New("connection reset"))
}

func unavailableErr() error {
	return transaction.NewError(transaction.KindUnavailable, transaction.CodeCircuitOpen,
		"account service is currently unavailable", nil)
}

func newTestOrchestrator(t *testing.T, fa *fakeAccounts) (*Orchestrator, *ledger.Memory, *recordingNotifier) {
	t.Helper()

	store := ledger.NewMemory()
	notifier := &recordingNotifier{}

	orch, err := New(store, fa, notifier, log.NewNop())
	require.NoError(t, err)

	return orch, store, notifier
}

func mustFind(t *testing.T, store *ledger.Memory, account string) []transaction.Record {
	t.Helper()

	records, err := store.FindByAccount(context.Background(), account)
	require.NoError(t, err)

	return records
}

func TestDepositSuccess(t *testing.T) {
	fa := newFakeAccounts()
	orch, store, notifier := newTestOrchestrator(t, fa)
	amount := decimal.RequireFromString("150.25")

	rec, err := orch.Deposit(context.Background(), "A1", amount)
	require.NoError(t, err)

	assert.Equal(t, transaction.KindDeposit, rec.Kind)
	assert.Equal(t, "A1", rec.DestinationAccount)
	assert.True(t, amount.Equal(rec.Amount))
	assert.Equal(t, transaction.StatusSuccess, rec.Status)

	calls := fa.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "A1", calls[0].account)
	assert.True(t, amount.Equal(calls[0].delta))

	records := mustFind(t, store, "A1")
	require.Len(t, records, 1)
	assert.Equal(t, rec.CorrelationID, records[0].CorrelationID)

	assert.Eventually(t, func() bool { return notifier.count() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	fa := newFakeAccounts()
	orch, store, _ := newTestOrchestrator(t, fa)

	_, err := orch.Deposit(context.Background(), "A1", decimal.Zero)
	require.Error(t, err)
	assert.Equal(t, transaction.KindValidation, transaction.KindOf(err))

	assert.Empty(t, fa.calls())
	assert.Zero(t, store.Len())
}

func TestDepositInfrastructureFailureWritesFailedRecord(t *testing.T) {
	fa := newFakeAccounts()
	fa.queueAdjustErr("A1", infraErr())
	orch, store, notifier := newTestOrchestrator(t, fa)

	rec, err := orch.Deposit(context.Background(), "A1", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.True(t, transaction.IsInfrastructure(err))
	assert.Equal(t, transaction.StatusFailed, rec.Status)

	records := mustFind(t, store, "A1")
	require.Len(t, records, 1)
	assert.Equal(t, transaction.StatusFailed, records[0].Status)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, notifier.count(), "no notification on failure")
}

func TestDepositCircuitOpenYieldsServiceUnavailable(t *testing.T) {
	fa := newFakeAccounts()
	fa.queueAdjustErr("A1", unavailableErr())
	orch, store, _ := newTestOrchestrator(t, fa)

	rec, err := orch.Deposit(context.Background(), "A1", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.True(t, transaction.IsUnavailable(err))
	assert.Equal(t, transaction.StatusServiceUnavailable, rec.Status)

	records := mustFind(t, store, "A1")
	require.Len(t, records, 1)
	assert.Equal(t, transaction.StatusServiceUnavailable, records[0].Status)
}

func TestDepositCancelledBeforeDispatchHasNoSideEffects(t *testing.T) {
	fa := newFakeAccounts()
	orch, store, _ := newTestOrchestrator(t, fa)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Deposit(ctx, "A1", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fa.calls())
	assert.Zero(t, store.Len())
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000.0", accounts.StatusActive)
	orch, store, _ := newTestOrchestrator(t, fa)

	rec, err := orch.Withdraw(context.Background(), "A1", decimal.NewFromInt(5000))
	require.Error(t, err)
	assert.True(t, transaction.IsBusiness(err))
	assert.Equal(t, transaction.CodeInsufficientFunds, transaction.CodeOf(err))
	assert.Equal(t, transaction.StatusFailed, rec.Status)

	assert.Empty(t, fa.calls(), "no balance mutation may be attempted")

	records := mustFind(t, store, "A1")
	require.Len(t, records, 1)
	assert.Equal(t, transaction.StatusFailed, records[0].Status)
}

func TestWithdrawInactiveAccount(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000", accounts.StatusInactive)
	orch, _, _ := newTestOrchestrator(t, fa)

	_, err := orch.Withdraw(context.Background(), "A1", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.True(t, transaction.IsBusiness(err))
	assert.Equal(t, transaction.CodeAccountInactive, transaction.CodeOf(err))
	assert.Empty(t, fa.calls())
}

func TestWithdrawSuccessDebitsAccount(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "500", accounts.StatusActive)
	orch, store, _ := newTestOrchestrator(t, fa)
	amount := decimal.NewFromInt(200)

	rec, err := orch.Withdraw(context.Background(), "A1", amount)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccess, rec.Status)
	assert.Equal(t, "A1", rec.SourceAccount)
	assert.Empty(t, rec.DestinationAccount)

	calls := fa.calls()
	require.Len(t, calls, 1)
	assert.True(t, amount.Neg().Equal(calls[0].delta))

	assert.Equal(t, 1, store.Len())
}

func TestTransferSameAccountNeverCallsRemote(t *testing.T) {
	fa := newFakeAccounts()
	orch, store, _ := newTestOrchestrator(t, fa)

	rec, err := orch.Transfer(context.Background(), "A1", "A1", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.True(t, transaction.IsBusiness(err))
	assert.Equal(t, transaction.CodeInvalidAccountPair, transaction.CodeOf(err))
	assert.Equal(t, transaction.StatusFailed, rec.Status)

	f := fa.calls()
	assert.Empty(t, f)
	assert.Empty(t, fa.getCalls)
	assert.Equal(t, 1, store.Len())
}

func TestTransferSuccess(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000", accounts.StatusActive)
	fa.setAccount("A2", "0", accounts.StatusActive)
	orch, store, notifier := newTestOrchestrator(t, fa)
	amount := decimal.NewFromInt(100)

	rec, err := orch.Transfer(context.Background(), "A1", "A2", amount)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccess, rec.Status)
	assert.Equal(t, "A1", rec.SourceAccount)
	assert.Equal(t, "A2", rec.DestinationAccount)

	calls := fa.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "A1", calls[0].account)
	assert.True(t, amount.Neg().Equal(calls[0].delta))
	assert.Equal(t, "A2", calls[1].account)
	assert.True(t, amount.Equal(calls[1].delta))

	// One record, visible from both sides.
	assert.Equal(t, 1, store.Len())
	assert.Len(t, mustFind(t, store, "A1"), 1)
	assert.Len(t, mustFind(t, store, "A2"), 1)

	assert.Eventually(t, func() bool { return notifier.count() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestTransferInsufficientSourceBalance(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "50", accounts.StatusActive)
	fa.setAccount("A2", "0", accounts.StatusActive)
	orch, store, _ := newTestOrchestrator(t, fa)

	rec, err := orch.Transfer(context.Background(), "A1", "A2", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.Equal(t, transaction.CodeInsufficientFunds, transaction.CodeOf(err))
	assert.Equal(t, transaction.StatusFailed, rec.Status)
	assert.Empty(t, fa.calls())
	assert.Equal(t, 1, store.Len())
}

func TestTransferInactiveDestination(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000", accounts.StatusActive)
	fa.setAccount("A2", "0", accounts.StatusInactive)
	orch, _, _ := newTestOrchestrator(t, fa)

	_, err := orch.Transfer(context.Background(), "A1", "A2", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.Equal(t, transaction.CodeAccountInactive, transaction.CodeOf(err))
	assert.Empty(t, fa.calls())
}

func TestTransferDebitFailureNeedsNoCompensation(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000", accounts.StatusActive)
	fa.setAccount("A2", "0", accounts.StatusActive)
	fa.queueAdjustErr("A1", infraErr())
	orch, store, _ := newTestOrchestrator(t, fa)

	rec, err := orch.Transfer(context.Background(), "A1", "A2", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.True(t, transaction.IsInfrastructure(err))
	assert.Equal(t, transaction.StatusFailed, rec.Status)

	// Only the failed debit was attempted.
	calls := fa.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "A1", calls[0].account)
	assert.Equal(t, 1, store.Len())
}

func TestTransferCreditFailureIsCompensated(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000", accounts.StatusActive)
	fa.setAccount("A2", "0", accounts.StatusActive)
	fa.queueAdjustErr("A2", infraErr())
	orch, store, _ := newTestOrchestrator(t, fa)
	amount := decimal.NewFromInt(100)

	rec, err := orch.Transfer(context.Background(), "A1", "A2", amount)
	require.Error(t, err)
	assert.True(t, transaction.IsInfrastructure(err), "original credit failure is surfaced")
	assert.Equal(t, transaction.StatusCompensated, rec.Status)

	// Debit, failed credit, then exactly one reversing credit to the source.
	calls := fa.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "A1", calls[0].account)
	assert.True(t, amount.Neg().Equal(calls[0].delta))
	assert.Equal(t, "A2", calls[1].account)
	assert.Equal(t, "A1", calls[2].account)
	assert.True(t, amount.Equal(calls[2].delta))

	records := mustFind(t, store, "A1")
	require.Len(t, records, 1)
	assert.Equal(t, transaction.StatusCompensated, records[0].Status)
}

func TestTransferCompensationFailureRequiresReconciliation(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000", accounts.StatusActive)
	fa.setAccount("A2", "0", accounts.StatusActive)
	fa.queueAdjustErr("A2", infraErr())
	fa.queueAdjustErr("A1", infraErr())
	orch, store, _ := newTestOrchestrator(t, fa)

	rec, err := orch.Transfer(context.Background(), "A1", "A2", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.True(t, transaction.IsCompensationFailure(err))
	assert.Contains(t, err.Error(), "manual reconciliation")
	assert.Equal(t, transaction.StatusCompensationFailed, rec.Status)

	records := mustFind(t, store, "A1")
	require.Len(t, records, 1)
	assert.Equal(t, transaction.StatusCompensationFailed, records[0].Status)
}

func TestTransferCircuitOpenOnCompensationIsCompensationFailed(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000", accounts.StatusActive)
	fa.setAccount("A2", "0", accounts.StatusActive)
	fa.queueAdjustErr("A2", unavailableErr())
	fa.queueAdjustErr("A1", unavailableErr())
	orch, _, _ := newTestOrchestrator(t, fa)

	rec, err := orch.Transfer(context.Background(), "A1", "A2", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.True(t, transaction.IsCompensationFailure(err))
	assert.Equal(t, transaction.StatusCompensationFailed, rec.Status)
}

func TestTransferCircuitOpenBetweenDebitAndCreditStillCompensates(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000", accounts.StatusActive)
	fa.setAccount("A2", "0", accounts.StatusActive)
	fa.queueAdjustErr("A2", unavailableErr())
	orch, _, _ := newTestOrchestrator(t, fa)

	rec, err := orch.Transfer(context.Background(), "A1", "A2", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.True(t, transaction.IsUnavailable(err))
	assert.Equal(t, transaction.StatusCompensated, rec.Status)
	assert.Len(t, fa.calls(), 3)
}

func TestTransferRunsToTerminalStatusAfterDebitDespiteCancellation(t *testing.T) {
	fa := newFakeAccounts()
	fa.setAccount("A1", "1000", accounts.StatusActive)
	fa.setAccount("A2", "0", accounts.StatusActive)
	orch, store, _ := newTestOrchestrator(t, fa)

	ctx, cancel := context.WithCancel(context.Background())
	fa.onAdjust = func(call adjustCall) {
		if call.account == "A1" {
			cancel() // caller goes away right after the debit
		}
	}

	rec, err := orch.Transfer(ctx, "A1", "A2", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccess, rec.Status)
	assert.Len(t, fa.calls(), 2)
	assert.Equal(t, 1, store.Len())
}

// failingStore wraps the memory ledger and fails every append.
type failingStore struct{ err error }

func (s *failingStore) Append(context.Context, transaction.Record) (string, error) {
	return "", s.err
}

func (s *failingStore) FindByAccount(context.Context, string) ([]transaction.Record, error) {
	return nil, s.err
}

func TestDepositLedgerWriteFailureDegradesSuccess(t *testing.T) {
	fa := newFakeAccounts()
	notifier := &recordingNotifier{}

	orch, err := New(&failingStore{err: errors.New("disk full")}, fa, notifier, log.NewNop())
	require.NoError(t, err)

	_, err = orch.Deposit(context.Background(), "A1", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.True(t, transaction.IsInfrastructure(err))
	assert.Equal(t, transaction.CodeLedgerFailure, transaction.CodeOf(err))
}

func TestNotificationFailureDoesNotAffectOutcome(t *testing.T) {
	fa := newFakeAccounts()
	store := ledger.NewMemory()
	notifier := &recordingNotifier{err: errors.New("broker down")}

	orch, err := New(store, fa, notifier, log.NewNop())
	require.NoError(t, err)

	rec, err := orch.Deposit(context.Background(), "A1", decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccess, rec.Status)

	assert.Eventually(t, func() bool { return notifier.count() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestListTransactions(t *testing.T) {
	fa := newFakeAccounts()
	orch, _, _ := newTestOrchestrator(t, fa)

	_, err := orch.Deposit(context.Background(), "A1", decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = orch.Deposit(context.Background(), "A1", decimal.NewFromInt(20))
	require.NoError(t, err)

	records, err := orch.ListTransactions(context.Background(), "A1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.True(t, decimal.NewFromInt(10).Equal(records[0].Amount))
	assert.True(t, decimal.NewFromInt(20).Equal(records[1].Amount))
}

func TestNewRequiresDependencies(t *testing.T) {
	fa := newFakeAccounts()

	_, err := New(nil, fa, nil, nil)
	assert.Error(t, err)

	_, err = New(ledger.NewMemory(), nil, nil, nil)
	assert.Error(t, err)
}
