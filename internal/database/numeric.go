package database

import (
	"fmt"
	"strconv"

	"github.com/rickgao/escrow-market/internal/model"
)

// numeric encodes v for a $n::numeric parameter.
func numeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// parseNumeric decodes a NUMERIC(20,0) column read as ::text.
func parseNumeric(column, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", column, err)
	}
	return v, nil
}

// nullableAccount encodes a zero account as SQL NULL.
func nullableAccount(a model.AccountID) *string {
	if a.IsZero() {
		return nil
	}
	s := a.String()
	return &s
}

// parseNullableAccount decodes a UUID column read as ::text, NULL meaning
// the zero account.
func parseNullableAccount(column string, s *string) (model.AccountID, error) {
	if s == nil {
		return model.ZeroAccount, nil
	}
	return parseAccount(column, *s)
}

func parseAccount(column, s string) (model.AccountID, error) {
	a, err := model.ParseAccountID(s)
	if err != nil {
		return model.ZeroAccount, fmt.Errorf("decode %s: %w", column, err)
	}
	return a, nil
}
