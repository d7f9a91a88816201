package matching

import (
	"github.com/tidwall/btree"
)

// Levels is a price-ordered map from price to Level, generalizing the
// teacher's single bids/asks btree.BTreeG[*PriceLevel] pair to the six
// side-books a full implementation needs (resting bid/ask plus the four
// stop/trailing park-then-activate queues).
type Levels = btree.BTreeG[*Level]

func newLevels(less func(a, b *Level) bool) *Levels {
	return btree.NewBTreeG(less)
}

func priceLess(price Price) *Level {
	return &Level{Price: price}
}

// OrderBook holds every resting and parked order for one symbol. Bids and
// asks are ordered so that the "best" entry is always the tree's minimum
// in its own orientation (bids compare greatest-first, asks least-first).
type OrderBook struct {
	SymbolID uint32

	Bids *Levels // resting buy limit orders, best = highest price
	Asks *Levels // resting sell limit orders, best = lowest price

	StopBids *Levels // parked buy stops, ascending (closest trigger first)
	StopAsks *Levels // parked sell stops, descending (closest trigger first)

	TrailingBids *Levels // parked buy trailing stops, ascending
	TrailingAsks *Levels // parked sell trailing stops, descending

	LastTradedPrice Price
	lastBestBid     Price
	lastBestAsk     Price
	haveBestBid     bool
	haveBestAsk     bool

	matchingEnabled bool
}

// NewOrderBook builds an empty book for a symbol.
func NewOrderBook(symbolID uint32) *OrderBook {
	return &OrderBook{
		SymbolID: symbolID,
		Bids:     newLevels(func(a, b *Level) bool { return a.Price > b.Price }),
		Asks:     newLevels(func(a, b *Level) bool { return a.Price < b.Price }),
		StopBids: newLevels(func(a, b *Level) bool { return a.Price < b.Price }),
		StopAsks: newLevels(func(a, b *Level) bool { return a.Price > b.Price }),
		// Trailing books are keyed by current (recomputed) stop price and
		// walk in the same direction as their stop-book counterparts.
		TrailingBids: newLevels(func(a, b *Level) bool { return a.Price < b.Price }),
		TrailingAsks: newLevels(func(a, b *Level) bool { return a.Price > b.Price }),
	}
}

// levelsFor returns the resting side-book for a regular limit/market order.
func (ob *OrderBook) levelsFor(side Side) *Levels {
	if side == Buy {
		return ob.Bids
	}
	return ob.Asks
}

// stopLevelsFor returns the parked side-book for stop-family orders.
func (ob *OrderBook) stopLevelsFor(side Side, trailing bool) *Levels {
	switch {
	case trailing && side == Buy:
		return ob.TrailingBids
	case trailing && side == Sell:
		return ob.TrailingAsks
	case side == Buy:
		return ob.StopBids
	default:
		return ob.StopAsks
	}
}

// BestBid returns the highest resting bid level, if any.
func (ob *OrderBook) BestBid() (*Level, bool) {
	return ob.Bids.Min()
}

// BestAsk returns the lowest resting ask level, if any.
func (ob *OrderBook) BestAsk() (*Level, bool) {
	return ob.Asks.Min()
}

// BestBidPrice/BestAskPrice are convenience zero-value-safe accessors.
func (ob *OrderBook) BestBidPrice() (Price, bool) {
	if l, ok := ob.BestBid(); ok {
		return l.Price, true
	}
	return 0, false
}

func (ob *OrderBook) BestAskPrice() (Price, bool) {
	if l, ok := ob.BestAsk(); ok {
		return l.Price, true
	}
	return 0, false
}

// Crossed reports whether the resting book is in an illegal crossed
// state (best bid >= best ask). The kernel may transiently cross while
// matching; this must be false whenever a public operation returns.
func (ob *OrderBook) Crossed() bool {
	bid, bok := ob.BestBidPrice()
	ask, aok := ob.BestAskPrice()
	return bok && aok && bid >= ask
}

// levelFor fetches or lazily creates the level at price on tree t.
func levelFor(t *Levels, price Price) *Level {
	if lvl, ok := t.Get(priceLess(price)); ok {
		return lvl
	}
	lvl := NewLevel(price)
	t.Set(lvl)
	return lvl
}

// dropIfEmpty removes a level from its tree once it holds no orders,
// enforcing the "no empty level is observable" invariant.
func dropIfEmpty(t *Levels, lvl *Level) {
	if lvl.Empty() {
		t.Delete(lvl)
	}
}

// treeFor resolves which tree an already-admitted order node lives
// on, covering both the matchable and parked side-books.
func (ob *OrderBook) treeFor(o *OrderNode) *Levels {
	if o.Type.IsStop() {
		return ob.stopLevelsFor(o.Side, o.Type.IsTrailing())
	}
	return ob.levelsFor(o.Side)
}

// AddResting appends a limit order (or an activated stop converted to a
// limit) onto its level, creating the level if necessary.
func (ob *OrderBook) AddResting(o *OrderNode) *Level {
	lvl := levelFor(ob.levelsFor(o.Side), o.Price)
	lvl.Append(o)
	return lvl
}

// AddParked appends a stop/trailing-stop order to its park queue, keyed
// by trigger price (or, for trailing variants, the live recomputed stop).
func (ob *OrderBook) AddParked(o *OrderNode) *Level {
	key := o.StopPrice
	lvl := levelFor(ob.stopLevelsFor(o.Side, o.Type.IsTrailing()), key)
	lvl.Append(o)
	return lvl
}

// RemoveFromLevel removes an order from whichever level it currently
// occupies (resting or parked) and drops the level if now empty.
func (ob *OrderBook) RemoveFromLevel(o *OrderNode, lvl *Level) {
	visible, hidden := o.VisibleQuantity(), o.HiddenQuantity()
	lvl.RemoveOrder(o, visible, hidden)
	dropIfEmpty(ob.treeFor(o), lvl)
}
