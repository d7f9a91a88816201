package risk

import (
	"time"

	"fenrir/internal/matching"
)

// Adapter wires a PositionEngine into the matching core's MarketHandler
// stream without the core ever depending on the risk package: it is one
// leaf of a matching.FanOutHandler, folding OnExecuteOrder and the level/
// order-book update callbacks straight into position and mark-price
// bookkeeping.
type Adapter struct {
	matching.NullHandler

	engine *PositionEngine

	// SymbolLookup resolves a symbol id to its descriptor; required for
	// both the PnL formulas (linear vs inverse, multiplier, divisor) and
	// mark-price's inverse branch.
	SymbolLookup func(id uint32) (matching.Symbol, bool)

	// IndexPrice supplies the exogenous index price OnMarkPrice needs;
	// index-price discovery itself is out of scope.
	IndexPrice func(symbolID uint32) matching.Price

	// OnPosition, if set, is invoked with a snapshot of every position
	// touched by an execution or a mark-price tick, letting a caller
	// (e.g. the batched writer) mirror it out without this package
	// depending on store.
	OnPosition func(Position)

	// Now supplies the timestamp driving funding accrual; defaults to
	// time.Now, overridable in tests for deterministic Δt.
	Now func() time.Time
}

// NewAdapter builds an Adapter over an existing engine.
func NewAdapter(engine *PositionEngine, symbolLookup func(uint32) (matching.Symbol, bool), indexPrice func(uint32) matching.Price) *Adapter {
	return &Adapter{engine: engine, SymbolLookup: symbolLookup, IndexPrice: indexPrice, Now: time.Now}
}

// OnExecuteOrder folds one fill leg into the order's account position.
func (a *Adapter) OnExecuteOrder(order *matching.OrderNode, price matching.Price, quantity matching.Quantity) {
	symbol, ok := a.SymbolLookup(order.SymbolID)
	if !ok {
		return
	}
	p := a.engine.OnExecute(order.AccountID, order.Side, price, quantity, symbol)
	if a.OnPosition != nil {
		a.OnPosition(*p)
	}
}

// OnUpdateOrderBook passes every book update to OnMarkPrice, which
// recomputes mark price/funding subject to its clockInterval throttle.
func (a *Adapter) OnUpdateOrderBook(book *matching.OrderBook, top bool) {
	a.recomputeMark(book)
}

// OnAddLevel/OnUpdateLevel/OnDeleteLevel only recompute when the
// touched level was top-of-book — a change deeper in the book can't
// move the mark price.
func (a *Adapter) OnAddLevel(book *matching.OrderBook, level *matching.Level, top bool) {
	if top {
		a.recomputeMark(book)
	}
}

func (a *Adapter) OnUpdateLevel(book *matching.OrderBook, level *matching.Level, top bool) {
	if top {
		a.recomputeMark(book)
	}
}

func (a *Adapter) OnDeleteLevel(book *matching.OrderBook, level *matching.Level, top bool) {
	if top {
		a.recomputeMark(book)
	}
}

func (a *Adapter) recomputeMark(book *matching.OrderBook) {
	symbol, ok := a.SymbolLookup(book.SymbolID)
	if !ok {
		return
	}
	index := matching.Price(0)
	if a.IndexPrice != nil {
		index = a.IndexPrice(book.SymbolID)
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	if _, recomputed := a.engine.OnMarkPrice(book, symbol, index, now()); recomputed && a.OnPosition != nil {
		for key := range a.engine.positions {
			if key.SymbolID == symbol.ID {
				a.OnPosition(*a.engine.positions[key])
			}
		}
	}
}
