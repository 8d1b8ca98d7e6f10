package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/escrow-market/internal/ledger"
	"github.com/rickgao/escrow-market/internal/model"
)

// checkViolation is the SQLSTATE for a failed CHECK constraint.
const checkViolation = "23514"

// Ledger keeps balances in the balances table. It implements market.Ledger
// and reports the same errors as ledger.Memory.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a ledger on pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Balance returns the balance of account. Missing accounts hold zero.
func (l *Ledger) Balance(ctx context.Context, account model.AccountID) (model.Amount, error) {
	var s string
	err := l.pool.QueryRow(ctx, `SELECT amount::text FROM balances WHERE account = $1::uuid`, account.String()).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return parseNumeric("amount", s)
}

// TotalSupply returns the sum of all balances.
func (l *Ledger) TotalSupply(ctx context.Context) (model.Amount, error) {
	var s string
	if err := l.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::text FROM balances`).Scan(&s); err != nil {
		return 0, fmt.Errorf("query supply: %w", err)
	}
	return parseNumeric("supply", s)
}

// Transfer moves amount from src to dst in one database transaction.
func (l *Ledger) Transfer(ctx context.Context, src, dst model.AccountID, amount model.Amount) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := debit(ctx, tx, src, amount); err != nil {
		return err
	}
	if err := credit(ctx, tx, dst, amount); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

// SeedBalance sets the genesis balance of account. Accounts that already
// have a row are left alone, so restarts do not mint twice.
func (l *Ledger) SeedBalance(ctx context.Context, account model.AccountID, amount model.Amount) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO balances (account, amount) VALUES ($1::uuid, $2::numeric)
		ON CONFLICT (account) DO NOTHING`,
		account.String(), numeric(amount),
	)
	if err != nil {
		return fmt.Errorf("seed balance: %w", err)
	}
	return nil
}

func debit(ctx context.Context, tx pgx.Tx, account model.AccountID, amount model.Amount) error {
	if amount == 0 {
		return nil
	}
	tag, err := tx.Exec(ctx, `
		UPDATE balances SET amount = amount - $2::numeric
		WHERE account = $1::uuid AND amount >= $2::numeric`,
		account.String(), numeric(amount),
	)
	if err != nil {
		return fmt.Errorf("debit %s: %w", account, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrInsufficientBalance
	}
	return nil
}

func credit(ctx context.Context, tx pgx.Tx, account model.AccountID, amount model.Amount) error {
	if amount == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO balances (account, amount) VALUES ($1::uuid, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET amount = balances.amount + EXCLUDED.amount`,
		account.String(), numeric(amount),
	)
	if err != nil {
		return fmt.Errorf("credit %s: %w", account, mapBalanceError(err))
	}
	return nil
}

// mapBalanceError turns a range check failure into ledger.ErrBalanceOverflow.
func mapBalanceError(err error) error {
	if isCheckViolation(err) {
		return ledger.ErrBalanceOverflow
	}
	return err
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == checkViolation
}
