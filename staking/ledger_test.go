package staking

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronoeffector/orchestrator/core"
)

func TestDepositAccumulates(t *testing.T) {
	ledger := NewLedger()

	require.NoError(t, ledger.Deposit("agent-1", 100))
	require.NoError(t, ledger.Deposit("agent-1", 50))

	balance, err := ledger.Balance("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 150.0, balance)
}

func TestDepositRejectsNonPositiveAmounts(t *testing.T) {
	ledger := NewLedger()

	assert.ErrorIs(t, ledger.Deposit("agent-1", 0), core.ErrInvalidAmount)
	assert.ErrorIs(t, ledger.Deposit("agent-1", -10), core.ErrInvalidAmount)

	_, err := ledger.Balance("agent-1")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestWithdrawPartialAndFull(t *testing.T) {
	ledger := NewLedger()
	require.NoError(t, ledger.Deposit("agent-1", 150))

	require.NoError(t, ledger.Withdraw("agent-1", 50))
	balance, err := ledger.Balance("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, balance)

	// Full withdrawal removes the ledger entry.
	require.NoError(t, ledger.Withdraw("agent-1", 100))
	_, err = ledger.Balance("agent-1")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestWithdrawErrors(t *testing.T) {
	ledger := NewLedger()
	require.NoError(t, ledger.Deposit("agent-1", 20))

	assert.ErrorIs(t, ledger.Withdraw("missing", 10), core.ErrAgentNotFound)
	assert.ErrorIs(t, ledger.Withdraw("agent-1", 30), core.ErrInsufficientBalance)
	assert.ErrorIs(t, ledger.Withdraw("agent-1", -5), core.ErrInvalidAmount)

	// Failed withdrawals leave the balance untouched.
	balance, err := ledger.Balance("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, balance)
}

func TestFractionalDepositsWithdrawToEmpty(t *testing.T) {
	ledger := NewLedger()

	// 0.1 is not exactly representable; three deposits leave the balance a
	// hair off 0.3. Withdrawing 0.3 must still empty the entry.
	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.Deposit("agent-1", 0.1))
	}
	require.NoError(t, ledger.Withdraw("agent-1", 0.3))

	_, err := ledger.Balance("agent-1")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestFractionalWithdrawalsEmptyTheEntry(t *testing.T) {
	ledger := NewLedger()
	require.NoError(t, ledger.Deposit("agent-1", 0.3))

	for i := 0; i < 3; i++ {
		require.NoError(t, ledger.Withdraw("agent-1", 0.1))
	}

	_, err := ledger.Balance("agent-1")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestRequireBalance(t *testing.T) {
	ledger := NewLedger()
	require.NoError(t, ledger.Deposit("agent-1", 99))

	called := false
	err := ledger.RequireBalance("agent-1", 100, func() { called = true })
	assert.ErrorIs(t, err, core.ErrInsufficientStake)
	assert.False(t, called)

	require.NoError(t, ledger.Deposit("agent-1", 1))
	require.NoError(t, ledger.RequireBalance("agent-1", 100, func() { called = true }))
	assert.True(t, called)
}

func TestConcurrentDeposits(t *testing.T) {
	ledger := NewLedger()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ledger.Deposit("agent-1", 1)
		}()
	}
	wg.Wait()

	balance, err := ledger.Balance("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, balance)
}
