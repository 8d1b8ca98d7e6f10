package writer

import "time"

// WriterConfig holds configuration for batch writers.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxPending    int // Oldest unwritten rows are dropped beyond this
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
		MaxPending:    50000,
	}
}

// WriterMetrics tracks writer statistics.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64 // Rows discarded because MaxPending was exceeded
}

// eventRow is one market_events row with every numeric column rendered as
// decimal text and nullable columns as pointers.
type eventRow struct {
	ID           string
	Kind         string
	Account      string
	ClassID      string
	TokenID      string
	Amount       string
	Counterparty *string
	Timestamp    string
}
