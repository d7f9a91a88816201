package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

type fakeClient struct {
	mu           sync.Mutex
	orders       [][]OrderRow
	transactions [][]TransactionRow
	positions    [][]PositionRow
	failOrders   bool
}

func (f *fakeClient) InsertOrders(_ context.Context, rows []OrderRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOrders {
		return errors.New("store unavailable")
	}
	f.orders = append(f.orders, rows)
	return nil
}

func (f *fakeClient) InsertTransactions(_ context.Context, rows []TransactionRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = append(f.transactions, rows)
	return nil
}

func (f *fakeClient) UpsertPositions(_ context.Context, rows []PositionRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = append(f.positions, rows)
	return nil
}

func (f *fakeClient) orderBatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeClient) positionBatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.positions)
}

func newTestWriter(t *testing.T, client StoreClient, chunkSize int) (*ChunkWriter, *tomb.Tomb) {
	t.Helper()
	var tb tomb.Tomb
	w := NewChunkWriter(&tb, client, chunkSize)
	t.Cleanup(func() {
		tb.Kill(nil)
		_ = tb.Wait()
	})
	return w, &tb
}

func TestChunkWriter_FlushesOnChunkBoundary(t *testing.T) {
	client := &fakeClient{}
	w, _ := newTestWriter(t, client, 3)

	w.AddOrder(OrderRow{OrderID: 1})
	w.AddOrder(OrderRow{OrderID: 2})
	assert.Equal(t, 0, client.orderBatchCount(), "a partial chunk must not flush early")

	w.AddOrder(OrderRow{OrderID: 3})
	require.Eventually(t, func() bool {
		return client.orderBatchCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestChunkWriter_FlushesOnTimer(t *testing.T) {
	client := &fakeClient{}
	w, _ := newTestWriter(t, client, 10000)

	w.AddOrder(OrderRow{OrderID: 1})
	require.Eventually(t, func() bool {
		return client.orderBatchCount() == 1
	}, 2*time.Second, 10*time.Millisecond, "the 1s ticker must flush an under-sized chunk")
}

func TestChunkWriter_UpsertPositionKeyedByAccountAndSymbol(t *testing.T) {
	client := &fakeClient{}
	w, _ := newTestWriter(t, client, 10000)

	w.UpsertPosition(PositionRow{AccountID: 1, SymbolID: 1, Quantity: 5})
	w.UpsertPosition(PositionRow{AccountID: 1, SymbolID: 1, Quantity: 9})
	w.UpsertPosition(PositionRow{AccountID: 2, SymbolID: 1, Quantity: 1})

	w.Close()
	require.Eventually(t, func() bool {
		return client.positionBatchCount() >= 1
	}, time.Second, 5*time.Millisecond)

	client.mu.Lock()
	defer client.mu.Unlock()
	var last []PositionRow
	for _, batch := range client.positions {
		if len(batch) > 0 {
			last = batch
		}
	}
	require.Len(t, last, 2, "same-key upserts must collapse into one row")
}

func TestChunkWriter_BreakerDropsOnPersistentFailure(t *testing.T) {
	client := &fakeClient{failOrders: true}
	w, _ := newTestWriter(t, client, 1)

	assert.NotPanics(t, func() {
		w.AddOrder(OrderRow{OrderID: 1})
		time.Sleep(50 * time.Millisecond)
		w.AddOrder(OrderRow{OrderID: 2})
		time.Sleep(50 * time.Millisecond)
	}, "a wedged store must degrade to dropped flushes, never block or crash the writer")
}
