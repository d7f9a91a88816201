package store

import (
	"time"

	"fenrir/internal/matching"
)

// Adapter feeds a ChunkWriter from the matching core's event stream,
// mirroring matching_engine.cpp's onExecuteOrder/onAddOrder kdb+ row
// appends. Timestamps are stamped at call time (now), never derived
// from engine state.
type Adapter struct {
	matching.NullHandler

	writer *ChunkWriter
	now    func() time.Time
}

// NewAdapter builds an Adapter over an existing writer. now defaults
// to time.Now when nil (tests may supply a fixed clock).
func NewAdapter(writer *ChunkWriter, now func() time.Time) *Adapter {
	if now == nil {
		now = time.Now
	}
	return &Adapter{writer: writer, now: now}
}

func (a *Adapter) OnAddOrder(o *matching.OrderNode) {
	a.writer.AddOrder(a.orderRow(o))
}

func (a *Adapter) OnUpdateOrder(o *matching.OrderNode) {
	a.writer.AddOrder(a.orderRow(o))
}

func (a *Adapter) OnDeleteOrder(o *matching.OrderNode) {
	a.writer.AddOrder(a.orderRow(o))
}

func (a *Adapter) OnExecuteOrder(o *matching.OrderNode, price matching.Price, quantity matching.Quantity) {
	a.writer.AddTransaction(TransactionRow{
		Time:      a.now(),
		OrderID:   o.ID,
		SymbolID:  o.SymbolID,
		AccountID: o.AccountID,
		Side:      uint8(o.Side),
		Price:     uint64(price),
		Quantity:  uint64(quantity),
	})
}

func (a *Adapter) orderRow(o *matching.OrderNode) OrderRow {
	return OrderRow{
		Time:        a.now(),
		OrderID:     o.ID,
		SymbolID:    o.SymbolID,
		AccountID:   o.AccountID,
		Side:        uint8(o.Side),
		Type:        uint8(o.Type),
		TimeInForce: uint8(o.TimeInForce),
		Price:       uint64(o.Price),
		StopPrice:   uint64(o.StopPrice),
		Quantity:    uint64(o.LeavesQuantity),
		Status:      uint8(o.Status),
	}
}
