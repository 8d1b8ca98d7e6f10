package market

import (
	"context"
	"time"

	"github.com/rickgao/escrow-market/internal/model"
)

// Ledger moves fungible value between accounts.
type Ledger interface {
	// Transfer moves amount from src to dst atomically. It fails without
	// effect when src holds less than amount.
	Transfer(ctx context.Context, src, dst model.AccountID, amount model.Amount) error
}

// Registry tracks custody of non-fungible assets.
type Registry interface {
	// Transfer moves asset from src to dst. It fails without effect when src
	// does not hold asset.
	Transfer(ctx context.Context, src, dst model.AccountID, asset model.AssetID) error

	// IsOwnerOf reports whether account currently holds asset.
	IsOwnerOf(ctx context.Context, account model.AccountID, asset model.AssetID) (bool, error)
}

// Clock supplies the current time. The engine reads it once per operation.
type Clock interface {
	Now() model.Timestamp
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current Unix time in seconds.
func (SystemClock) Now() model.Timestamp {
	return model.Timestamp(time.Now().Unix())
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() model.Timestamp

// Now calls f.
func (f ClockFunc) Now() model.Timestamp {
	return f()
}

// EventSink receives one Event per successful operation.
type EventSink interface {
	Publish(ev Event)
}

type discardSink struct{}

func (discardSink) Publish(Event) {}

// CustodianAccount returns the escrow account for a custodian id. The same
// id always yields the same account.
func CustodianAccount(id string) model.AccountID {
	return model.DeriveAccountID("modl" + id)
}
