package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger reads the credit ledger from PostgreSQL. The balance guard only ever
// reads; all writes (and the transactional locking that prevents true double
// spends) belong to the billing service that owns these tables.
//
// Expected schema:
//
//	credit_transactions(user_id TEXT, amount BIGINT, ...)
//	user_balances(user_id TEXT PRIMARY KEY, balance BIGINT, ...)
type Ledger struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) SumTransactions(ctx context.Context, userID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1`
	var sum int64
	if err := l.pool.QueryRow(ctx, q, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum credit transactions: %w", err)
	}
	return sum, nil
}

func (l *Ledger) GetBalance(ctx context.Context, userID string) (int64, error) {
	const q = `SELECT balance FROM user_balances WHERE user_id = $1`
	var balance int64
	err := l.pool.QueryRow(ctx, q, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		// No balance row yet means a zero balance, not an infrastructure failure.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read user balance: %w", err)
	}
	return balance, nil
}
