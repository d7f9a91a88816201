package store

import "context"

// StoreClient is the external sink the batched writer flushes chunks
// to. Implementations own their own connection/retry semantics; the
// writer only guarantees chunk boundaries and backpressure via the
// circuit breaker wrapping these calls.
type StoreClient interface {
	InsertOrders(ctx context.Context, rows []OrderRow) error
	InsertTransactions(ctx context.Context, rows []TransactionRow) error
	UpsertPositions(ctx context.Context, rows []PositionRow) error
}
