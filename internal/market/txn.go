package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/escrow-market/internal/model"
)

// undoStep reverses one applied capability call.
type undoStep struct {
	desc string
	fn   func(ctx context.Context) error
}

// txn journals capability calls made by one operation so they can be
// reversed if a later step fails.
type txn struct {
	op     string
	logger *slog.Logger
	steps  []undoStep
}

func newTxn(op string, logger *slog.Logger) *txn {
	return &txn{op: op, logger: logger}
}

// transferFunds moves amount and journals the reverse transfer.
func (t *txn) transferFunds(ctx context.Context, l Ledger, src, dst model.AccountID, amount model.Amount) error {
	if err := l.Transfer(ctx, src, dst, amount); err != nil {
		return fmt.Errorf("transfer %d from %s to %s: %w", amount, src, dst, err)
	}
	t.steps = append(t.steps, undoStep{
		desc: fmt.Sprintf("return %d from %s to %s", amount, dst, src),
		fn: func(ctx context.Context) error {
			return l.Transfer(ctx, dst, src, amount)
		},
	})
	return nil
}

// transferAsset moves asset and journals the reverse transfer.
func (t *txn) transferAsset(ctx context.Context, r Registry, src, dst model.AccountID, asset model.AssetID) error {
	if err := r.Transfer(ctx, src, dst, asset); err != nil {
		return fmt.Errorf("transfer asset %s from %s to %s: %w", asset, src, dst, err)
	}
	t.steps = append(t.steps, undoStep{
		desc: fmt.Sprintf("return asset %s from %s to %s", asset, dst, src),
		fn: func(ctx context.Context) error {
			return r.Transfer(ctx, dst, src, asset)
		},
	})
	return nil
}

// rollback applies journaled steps in reverse and returns cause. Undo runs
// on a context detached from cancellation. If any step fails the result
// joins cause with ErrRollbackFailed and the step errors.
func (t *txn) rollback(ctx context.Context, cause error) error {
	ctx = context.WithoutCancel(ctx)

	errs := []error{cause}
	for i := len(t.steps) - 1; i >= 0; i-- {
		step := t.steps[i]
		if err := step.fn(ctx); err != nil {
			t.logger.Error("rollback step failed",
				"op", t.op,
				"step", step.desc,
				"cause", cause,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.desc, err))
		}
	}
	t.steps = nil

	if len(errs) == 1 {
		t.logger.Debug("operation rolled back", "op", t.op, "cause", cause)
		return cause
	}
	return errors.Join(append([]error{errs[0], ErrRollbackFailed}, errs[1:]...)...)
}
