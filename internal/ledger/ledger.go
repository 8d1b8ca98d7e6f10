// Package ledger provides an in-memory fungible balance ledger.
//
// It is the reference implementation of the marketplace's Ledger capability:
// balances are overflow-checked, transfers are atomic, and value is only
// created by Mint during genesis loading.
package ledger

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/rickgao/escrow-market/internal/model"
)

// Errors
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Memory is a thread-safe in-memory ledger.
type Memory struct {
	mu       sync.RWMutex
	balances map[model.AccountID]model.Amount
	supply   model.Amount
}

// NewMemory creates an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[model.AccountID]model.Amount),
	}
}

// Balance returns the balance of account.
func (m *Memory) Balance(account model.AccountID) model.Amount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account]
}

// TotalSupply returns the sum of all balances.
func (m *Memory) TotalSupply() model.Amount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supply
}

// Transfer moves amount from src to dst. Either both balances change or
// neither does.
func (m *Memory) Transfer(_ context.Context, src, dst model.AccountID, amount model.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[src] < amount {
		return ErrInsufficientBalance
	}
	if src == dst {
		return nil
	}
	if m.balances[dst] > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}

	m.balances[src] -= amount
	m.balances[dst] += amount
	return nil
}

// Mint credits account with newly created value.
func (m *Memory) Mint(account model.AccountID, amount model.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.supply > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	// balance <= supply, so the supply check covers the balance too.
	m.supply += amount
	m.balances[account] += amount
	return nil
}

// SeedBalance mints amount to account during genesis loading.
func (m *Memory) SeedBalance(_ context.Context, account model.AccountID, amount model.Amount) error {
	return m.Mint(account, amount)
}
