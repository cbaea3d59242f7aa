package staking

import (
	"log"
	"sync"

	"github.com/chronoeffector/orchestrator/core"
)

// Ledger tracks staked balances per agent id. It is the only authority the
// registry consults before letting an agent go active. Entries are created
// on first deposit and removed when a withdrawal empties them.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]float64
}

// balanceEpsilon absorbs float accumulation error, so withdrawing the sum
// of fractional deposits still counts as a full withdrawal.
const balanceEpsilon = 1e-9

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]float64),
	}
}

// Deposit adds amount to the agent's staked balance.
func (l *Ledger) Deposit(agentID string, amount float64) error {
	if amount <= 0 {
		return core.ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[agentID] += amount
	log.Printf("Stake deposit: agent %s now holds %.2f", agentID, l.balances[agentID])
	return nil
}

// Withdraw removes amount from the agent's staked balance. Withdrawing the
// full balance deletes the ledger entry.
func (l *Ledger) Withdraw(agentID string, amount float64) error {
	if amount <= 0 {
		return core.ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, exists := l.balances[agentID]
	if !exists {
		return core.ErrAgentNotFound
	}
	if amount > balance+balanceEpsilon {
		return core.ErrInsufficientBalance
	}

	remaining := balance - amount
	if remaining <= balanceEpsilon {
		remaining = 0
		delete(l.balances, agentID)
	} else {
		l.balances[agentID] = remaining
	}
	log.Printf("Stake withdrawal: agent %s now holds %.2f", agentID, remaining)
	return nil
}

// Balance returns the current staked amount for the agent.
func (l *Ledger) Balance(agentID string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, exists := l.balances[agentID]
	if !exists {
		return 0, core.ErrAgentNotFound
	}
	return balance, nil
}

// RequireBalance runs fn while holding the ledger lock, after confirming
// the agent's balance is at least min. Activation uses this so that the
// balance check and the state transition form one critical section: a
// concurrent withdrawal cannot slip in between them.
func (l *Ledger) RequireBalance(agentID string, min float64, fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[agentID] < min {
		return core.ErrInsufficientStake
	}
	fn()
	return nil
}
