package database

import "github.com/jackc/pgx/v5/pgxpool"

// Holdings answers balance and class queries and runs class management
// against the same tables the engine uses.
type Holdings struct {
	*Ledger
	*Registry
}

// NewHoldings creates Holdings on pool.
func NewHoldings(pool *pgxpool.Pool) *Holdings {
	return &Holdings{Ledger: NewLedger(pool), Registry: NewRegistry(pool)}
}
