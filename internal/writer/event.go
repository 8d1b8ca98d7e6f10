package writer

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/escrow-market/internal/market"
	"github.com/rickgao/escrow-market/internal/router"
)

const insertEvent = `
	INSERT INTO market_events (id, kind, account, class_id, token_id, amount, counterparty, ts)
	VALUES ($1::uuid, $2, $3::uuid, $4::numeric, $5::numeric, $6::numeric, $7::uuid, $8::numeric)
	ON CONFLICT (id) DO NOTHING`

// EventWriter consumes market events from the router journal and writes
// them to the market_events table.
type EventWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *router.GrowableBuffer[market.Event]
	db    *pgxpool.Pool

	batch       []eventRow
	batchMu     sync.Mutex
	failing     bool // Last flush failed; only the ticker retries
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewEventWriter creates a new EventWriter.
func NewEventWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[market.Event],
	db *pgxpool.Pool,
	logger *slog.Logger,
) *EventWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	if cfg.MaxPending < cfg.BatchSize {
		cfg.MaxPending = max(DefaultWriterConfig().MaxPending, cfg.BatchSize)
	}
	return &EventWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger.With("component", "event_writer"),
		batch:  make([]eventRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *EventWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("event writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
		"max_pending", w.cfg.MaxPending,
	)
	return nil
}

// Stop shuts down the writer. Events still queued in the input buffer are
// drained and flushed before it returns.
func (w *EventWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping event writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("event writer stopped")
	case <-ctx.Done():
		w.logger.Warn("event writer stop timed out")
		return ctx.Err()
	}

	for {
		ev, ok := w.input.TryReceive()
		if !ok {
			break
		}
		w.append(w.transform(ev))
	}
	w.flushCtx(ctx)

	return nil
}

// Stats returns current metrics.
func (w *EventWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// Pending returns the number of events batched but not yet flushed.
func (w *EventWriter) Pending() int {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return len(w.batch)
}

func (w *EventWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			ev, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.handleEvent(ev)
		}
	}
}

func (w *EventWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flushCtx(w.ctx)
		}
	}
}

func (w *EventWriter) handleEvent(ev market.Event) {
	if w.append(w.transform(ev)) {
		w.flushCtx(w.ctx)
	}
}

// append adds a row and reports whether a size-triggered flush is due.
// While the database is failing, rows accumulate up to MaxPending and
// only the flush ticker retries.
func (w *EventWriter) append(row eventRow) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	w.trimLocked()
	return !w.failing && len(w.batch) >= w.cfg.BatchSize
}

// trimLocked drops the oldest rows beyond MaxPending and returns how many
// went. Callers hold batchMu.
func (w *EventWriter) trimLocked() int {
	over := len(w.batch) - w.cfg.MaxPending
	if over <= 0 {
		return 0
	}
	w.batch = append(w.batch[:0:0], w.batch[over:]...)
	w.metrics.Dropped += int64(over)
	return over
}

// transform converts a market.Event to an eventRow.
func (w *EventWriter) transform(ev market.Event) eventRow {
	row := eventRow{
		ID:        ev.ID.String(),
		Kind:      string(ev.Kind),
		Account:   ev.Account.String(),
		ClassID:   strconv.FormatUint(ev.Asset.Class, 10),
		TokenID:   strconv.FormatUint(ev.Asset.Token, 10),
		Amount:    strconv.FormatUint(ev.Amount, 10),
		Timestamp: strconv.FormatUint(ev.Timestamp, 10),
	}
	if !ev.Counterparty.IsZero() {
		s := ev.Counterparty.String()
		row.Counterparty = &s
	}
	return row
}

// flushCtx writes the current batch to the database. A failed batch is
// put back in front of the queue so the next flush retries it.
func (w *EventWriter) flushCtx(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]eventRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if w.db == nil {
		w.requeue(batch)
		return
	}

	start := time.Now()
	conflicts, err := w.batchInsert(context.WithoutCancel(ctx), batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		w.requeue(batch)
		return
	}

	w.batchMu.Lock()
	w.failing = false
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// requeue puts unwritten rows back in front of the queue and marks the
// writer as failing.
func (w *EventWriter) requeue(rows []eventRow) {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.failing = true
	w.batch = append(rows, w.batch...)
	if dropped := w.trimLocked(); dropped > 0 {
		w.logger.Warn("event journal backlog full, dropped oldest events",
			"dropped", dropped,
			"max_pending", w.cfg.MaxPending,
		)
	}
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *EventWriter) batchInsert(ctx context.Context, rows []eventRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertEvent,
			r.ID, r.Kind, r.Account, r.ClassID, r.TokenID, r.Amount, r.Counterparty, r.Timestamp)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
