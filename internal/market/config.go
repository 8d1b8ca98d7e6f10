package market

import (
	"fmt"

	"github.com/rickgao/escrow-market/internal/model"
)

// DefaultCustodianID is the custodian id used when none is configured.
const DefaultCustodianID = "py/nftmk"

// Range is an inclusive [Min, Max] bound.
type Range struct {
	Min uint64 `yaml:"min"`
	Max uint64 `yaml:"max"`
}

// Contains reports whether Min <= v <= Max.
func (r Range) Contains(v uint64) bool {
	return r.Min <= v && v <= r.Max
}

// Validate checks that the range is not empty.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("min %d exceeds max %d", r.Min, r.Max)
	}
	return nil
}

// Limits bounds listing parameters.
type Limits struct {
	BasePrice    Range `yaml:"base_price"`
	BidDuration  Range `yaml:"bid_duration"`
	RentPrice    Range `yaml:"rent_price"`
	RentDuration Range `yaml:"rent_duration"`
	Collateral   Range `yaml:"collateral"`
}

// DefaultLimits returns the bounds marketd ships with.
func DefaultLimits() Limits {
	return Limits{
		BasePrice:    Range{Min: 1, Max: 1_000_000_000_000},
		BidDuration:  Range{Min: 60, Max: 30 * 24 * 3600},
		RentPrice:    Range{Min: 1, Max: 1_000_000_000_000},
		RentDuration: Range{Min: 60, Max: 365 * 24 * 3600},
		Collateral:   Range{Min: 1, Max: 1_000_000_000_000},
	}
}

// Validate checks every range.
func (l Limits) Validate() error {
	checks := []struct {
		name string
		r    Range
	}{
		{"base_price", l.BasePrice},
		{"bid_duration", l.BidDuration},
		{"rent_price", l.RentPrice},
		{"rent_duration", l.RentDuration},
		{"collateral", l.Collateral},
	}
	for _, c := range checks {
		if err := c.r.Validate(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// Config holds engine configuration.
type Config struct {
	CustodianID string
	Limits      Limits
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CustodianID: DefaultCustodianID,
		Limits:      DefaultLimits(),
	}
}

// Custodian returns the escrow account for the configured custodian id.
func (c Config) Custodian() model.AccountID {
	return CustodianAccount(c.CustodianID)
}
