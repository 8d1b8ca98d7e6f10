package market

import (
	"github.com/google/uuid"

	"github.com/rickgao/escrow-market/internal/model"
)

// EventKind names a marketplace event.
type EventKind string

const (
	EventOpened       EventKind = "opened"
	EventBid          EventKind = "bid"
	EventCanceled     EventKind = "canceled"
	EventClosed       EventKind = "closed"
	EventOffered      EventKind = "offered"
	EventRentCanceled EventKind = "rent_canceled"
	EventRented       EventKind = "rented"
	EventRepaid       EventKind = "repaid"
	EventLiquidated   EventKind = "liquidated"
)

// EventKinds lists every kind in lifecycle order.
var EventKinds = []EventKind{
	EventOpened, EventBid, EventCanceled, EventClosed,
	EventOffered, EventRentCanceled, EventRented, EventRepaid, EventLiquidated,
}

// ParseEventKind validates s as an event kind.
func ParseEventKind(s string) (EventKind, bool) {
	for _, k := range EventKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Event records one successful engine operation.
//
// Account is the caller. Amount and Counterparty depend on Kind:
//   - opened: base price
//   - bid: bid price, previous winner (the seller on the first bid)
//   - closed: final price, seller
//   - offered: rent price
//   - rented: rent price, leaser
//   - repaid: returned collateral, leaser
//   - liquidated: seized collateral, renter
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Kind         EventKind       `json:"kind"`
	Account      model.AccountID `json:"account"`
	Asset        model.AssetID   `json:"asset"`
	Amount       model.Amount    `json:"amount"`
	Counterparty model.AccountID `json:"counterparty,omitzero"`
	Timestamp    model.Timestamp `json:"timestamp"`
}
