package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	tomb "gopkg.in/tomb.v2"
)

// DefaultChunkSize matches matching_engine.cpp's CHUNK_SIZE.
const DefaultChunkSize = 10000

// ChunkWriter buffers order/transaction/position rows and flushes each
// buffer once it reaches ChunkSize, the same batching shape as
// appendOrdersChunk/appendTransactionsChunk/appendPositionsChunk.
// Flush failures never propagate back into the matching core: the
// circuit breaker degrades to dropping flushes rather than blocking.
type ChunkWriter struct {
	client    StoreClient
	chunkSize int

	mu           sync.Mutex
	orders       []OrderRow
	transactions []TransactionRow
	positions    map[positionRowKey]PositionRow

	breaker *gobreaker.CircuitBreaker

	t   *tomb.Tomb
	tick chan struct{}
	log  zerolog.Logger
}

type positionRowKey struct {
	AccountID uint64
	SymbolID  uint32
}

// NewChunkWriter builds a writer flushing through client at chunkSize
// boundaries, supervised by t (the caller's tomb, so shutdown cancels
// the async flush loop along with the rest of the process).
func NewChunkWriter(t *tomb.Tomb, client StoreClient, chunkSize int) *ChunkWriter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	w := &ChunkWriter{
		client:    client,
		chunkSize: chunkSize,
		positions: make(map[positionRowKey]PositionRow),
		t:         t,
		tick:      make(chan struct{}, 1),
		log:       log.With().Str("component", "chunk_writer").Logger(),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "store-flush",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     10 * time.Second,
		}),
	}
	t.Go(w.run)
	return w
}

// AddOrder buffers a new/updated order row, flushing if the chunk is full.
func (w *ChunkWriter) AddOrder(row OrderRow) {
	w.mu.Lock()
	w.orders = append(w.orders, row)
	full := len(w.orders) >= w.chunkSize
	w.mu.Unlock()
	if full {
		w.signal()
	}
}

// AddTransaction buffers a fill row, flushing if the chunk is full.
func (w *ChunkWriter) AddTransaction(row TransactionRow) {
	w.mu.Lock()
	w.transactions = append(w.transactions, row)
	full := len(w.transactions) >= w.chunkSize
	w.mu.Unlock()
	if full {
		w.signal()
	}
}

// UpsertPosition replaces the buffered row for a position's (account,
// symbol) key; positions are upserted by identity, not appended, so
// the buffer size is bounded by distinct open positions, not events.
func (w *ChunkWriter) UpsertPosition(row PositionRow) {
	w.mu.Lock()
	w.positions[positionRowKey{row.AccountID, row.SymbolID}] = row
	full := len(w.positions) >= w.chunkSize
	w.mu.Unlock()
	if full {
		w.signal()
	}
}

func (w *ChunkWriter) signal() {
	select {
	case w.tick <- struct{}{}:
	default:
	}
}

func (w *ChunkWriter) run() error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.t.Dying():
			return nil
		case <-w.tick:
			w.flush()
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *ChunkWriter) flush() {
	w.mu.Lock()
	orders := w.orders
	transactions := w.transactions
	var positions []PositionRow
	if len(w.positions) > 0 {
		positions = make([]PositionRow, 0, len(w.positions))
		for _, p := range w.positions {
			positions = append(positions, p)
		}
	}
	w.orders = nil
	w.transactions = nil
	w.positions = make(map[positionRowKey]PositionRow)
	w.mu.Unlock()

	ctx := context.Background()
	if len(orders) > 0 {
		w.guardedFlush(func() error { return w.client.InsertOrders(ctx, orders) }, "orders", len(orders))
	}
	if len(transactions) > 0 {
		w.guardedFlush(func() error { return w.client.InsertTransactions(ctx, transactions) }, "transactions", len(transactions))
	}
	if len(positions) > 0 {
		w.guardedFlush(func() error { return w.client.UpsertPositions(ctx, positions) }, "positions", len(positions))
	}
}

func (w *ChunkWriter) guardedFlush(fn func() error, table string, n int) {
	_, err := w.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if err != nil {
		w.log.Error().Err(err).Str("table", table).Int("rows", n).Msg("dropped chunk flush")
	}
}

// Close drains every non-empty buffer synchronously on the caller's
// goroutine instead of waiting for the async loop, as a best-effort
// final flush on shutdown; each flush still goes through the breaker.
func (w *ChunkWriter) Close() {
	w.flush()
}
