package memory

import (
	"context"
	"sync"
)

// Ledger is an in-memory credit ledger for tests and single-process
// development. The guard only reads it; writes exist so tests can stage
// transaction histories and balances.
type Ledger struct {
	mu       sync.RWMutex
	entries  map[string][]int64
	balances map[string]int64

	// Err makes every read fail, for exercising the guard's fail-open path.
	Err error
}

func New() *Ledger {
	return &Ledger{
		entries:  make(map[string][]int64),
		balances: make(map[string]int64),
	}
}

// AddTransaction appends a signed ledger entry for a user.
func (l *Ledger) AddTransaction(userID string, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[userID] = append(l.entries[userID], amount)
}

// SetBalance sets a user's running balance.
func (l *Ledger) SetBalance(userID string, balance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] = balance
}

func (l *Ledger) SumTransactions(ctx context.Context, userID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.Err != nil {
		return 0, l.Err
	}
	var sum int64
	for _, amount := range l.entries[userID] {
		sum += amount
	}
	return sum, nil
}

func (l *Ledger) GetBalance(ctx context.Context, userID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.Err != nil {
		return 0, l.Err
	}
	return l.balances[userID], nil
}
