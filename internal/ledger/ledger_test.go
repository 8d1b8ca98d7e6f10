package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/rickgao/escrow-market/internal/model"
)

func TestMemory_Transfer(t *testing.T) {
	ctx := context.Background()
	alice := model.NewAccountID()
	bob := model.NewAccountID()

	l := NewMemory()
	if err := l.Mint(alice, 100); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if err := l.Transfer(ctx, alice, bob, 40); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if got := l.Balance(alice); got != 60 {
		t.Errorf("Balance(alice) = %d, want 60", got)
	}
	if got := l.Balance(bob); got != 40 {
		t.Errorf("Balance(bob) = %d, want 40", got)
	}
	if got := l.TotalSupply(); got != 100 {
		t.Errorf("TotalSupply() = %d, want 100", got)
	}
}

func TestMemory_TransferInsufficient(t *testing.T) {
	ctx := context.Background()
	alice := model.NewAccountID()
	bob := model.NewAccountID()

	l := NewMemory()
	l.Mint(alice, 10)

	err := l.Transfer(ctx, alice, bob, 11)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Transfer error = %v, want ErrInsufficientBalance", err)
	}
	if l.Balance(alice) != 10 || l.Balance(bob) != 0 {
		t.Errorf("balances changed on failed transfer: alice=%d bob=%d", l.Balance(alice), l.Balance(bob))
	}
}

func TestMemory_TransferZeroAndSelf(t *testing.T) {
	ctx := context.Background()
	alice := model.NewAccountID()
	bob := model.NewAccountID()

	l := NewMemory()
	l.Mint(alice, 5)

	if err := l.Transfer(ctx, bob, alice, 0); err != nil {
		t.Errorf("zero transfer from empty account failed: %v", err)
	}
	if err := l.Transfer(ctx, alice, alice, 5); err != nil {
		t.Errorf("self transfer failed: %v", err)
	}
	if err := l.Transfer(ctx, alice, alice, 6); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("self transfer above balance error = %v, want ErrInsufficientBalance", err)
	}
	if l.Balance(alice) != 5 {
		t.Errorf("Balance(alice) = %d, want 5", l.Balance(alice))
	}
}

func TestMemory_MintOverflow(t *testing.T) {
	alice := model.NewAccountID()
	bob := model.NewAccountID()

	l := NewMemory()
	if err := l.Mint(alice, math.MaxUint64); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := l.Mint(bob, 1); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("Mint error = %v, want ErrBalanceOverflow", err)
	}
	if l.Balance(bob) != 0 {
		t.Errorf("Balance(bob) = %d, want 0", l.Balance(bob))
	}
}
