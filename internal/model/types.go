package model

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Amount is a quantity of the fungible ledger's currency.
type Amount = uint64

// Timestamp is seconds since Unix epoch as read from the clock capability.
type Timestamp = uint64

// ClassID identifies an asset class in the ownership registry.
type ClassID = uint64

// TokenID identifies a token within its class.
type TokenID = uint64

// AccountID is an opaque account identifier.
type AccountID uuid.UUID

// ZeroAccount is the zero AccountID. It never owns anything.
var ZeroAccount AccountID

// accountNamespace scopes derived account ids.
var accountNamespace = uuid.MustParse("6f1d2b1e-8c4a-4f57-9a35-2d8e7c1b0a94")

// NewAccountID returns a random account id.
func NewAccountID() AccountID {
	return AccountID(uuid.New())
}

// DeriveAccountID returns the deterministic account id for name.
// The same name always yields the same account.
func DeriveAccountID(name string) AccountID {
	return AccountID(uuid.NewSHA1(accountNamespace, []byte(name)))
}

// ParseAccountID parses the canonical text form of an account id.
func ParseAccountID(s string) (AccountID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ZeroAccount, fmt.Errorf("parse account id %q: %w", s, err)
	}
	return AccountID(u), nil
}

// MustParseAccountID is ParseAccountID that panics on error. Intended for
// constants and tests.
func MustParseAccountID(s string) AccountID {
	a, err := ParseAccountID(s)
	if err != nil {
		panic(err)
	}
	return a
}

// ResolveAccountID parses s as an account id, or derives one from s when it
// is not in canonical form. Config files and the CLI use names like "alice".
func ResolveAccountID(s string) AccountID {
	if a, err := ParseAccountID(s); err == nil {
		return a
	}
	return DeriveAccountID(s)
}

func (a AccountID) String() string {
	return uuid.UUID(a).String()
}

// IsZero reports whether a is the zero account.
func (a AccountID) IsZero() bool {
	return a == ZeroAccount
}

// MarshalText implements encoding.TextMarshaler.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// AssetID identifies one non-fungible unit.
type AssetID struct {
	Class ClassID `json:"class_id"`
	Token TokenID `json:"token_id"`
}

// String returns "class/token".
func (a AssetID) String() string {
	return strconv.FormatUint(a.Class, 10) + "/" + strconv.FormatUint(a.Token, 10)
}

// ParseAssetID parses the "class/token" form produced by AssetID.String.
func ParseAssetID(s string) (AssetID, error) {
	classStr, tokenStr, ok := strings.Cut(s, "/")
	if !ok {
		return AssetID{}, fmt.Errorf("parse asset id %q: missing separator", s)
	}
	class, err := strconv.ParseUint(classStr, 10, 64)
	if err != nil {
		return AssetID{}, fmt.Errorf("parse asset class %q: %w", classStr, err)
	}
	token, err := strconv.ParseUint(tokenStr, 10, 64)
	if err != nil {
		return AssetID{}, fmt.Errorf("parse asset token %q: %w", tokenStr, err)
	}
	return AssetID{Class: class, Token: token}, nil
}

// CompareAssets orders assets by class, then token.
func CompareAssets(a, b AssetID) int {
	if c := cmp.Compare(a.Class, b.Class); c != 0 {
		return c
	}
	return cmp.Compare(a.Token, b.Token)
}
