package matching

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MarketManager is the single entry point for symbol/book/order
// administration, generalizing the market_manager.go reference shape
// (symbols/orderBooks/orders/matching/handler) onto the six-tree
// OrderBook and the full order-type/TIF surface.
type MarketManager struct {
	symbols *SymbolRegistry
	books   map[uint32]*OrderBook
	orders  map[uint64]*OrderNode

	matching bool
	handler  MarketHandler
	metrics  Metrics

	sequence uint64
	log      zerolog.Logger
}

// Metrics is the subset of instrumentation the manager drives; a nil
// interface value (the zero MarketManager) means metrics are skipped.
type Metrics interface {
	OrderAdded()
	OrderRejected()
	Executed(qty Quantity)
}

// NewMarketManager builds a manager with matching enabled and a
// NullHandler sink; wire a real handler with SetHandler before use.
func NewMarketManager() *MarketManager {
	return &MarketManager{
		symbols:  NewSymbolRegistry(),
		books:    make(map[uint32]*OrderBook),
		orders:   make(map[uint64]*OrderNode),
		matching: true,
		handler:  NullHandler{},
		log:      log.With().Str("component", "market_manager").Logger(),
	}
}

// SetHandler installs the event sink driven by every mutating call.
func (m *MarketManager) SetHandler(h MarketHandler) {
	if h == nil {
		h = NullHandler{}
	}
	m.handler = h
}

// SetMetrics installs an optional metrics sink.
func (m *MarketManager) SetMetrics(mc Metrics) {
	m.metrics = mc
}

// LookupSymbol exposes the registry to downstream consumers (risk,
// store adapters) that need a symbol's multiplier/divisor/type without
// reaching into manager internals.
func (m *MarketManager) LookupSymbol(id uint32) (Symbol, bool) {
	return m.symbols.Get(id)
}

func (m *MarketManager) bumpAdded() {
	if m.metrics != nil {
		m.metrics.OrderAdded()
	}
}

func (m *MarketManager) bumpRejected() {
	if m.metrics != nil {
		m.metrics.OrderRejected()
	}
}

func (m *MarketManager) bumpExecuted(q Quantity) {
	if m.metrics != nil {
		m.metrics.Executed(q)
	}
}

// EnableMatching/DisableMatching gate whether AddOrder runs the kernel;
// while disabled, admitted orders still rest/park but never cross.
func (m *MarketManager) EnableMatching() { m.matching = true }

func (m *MarketManager) DisableMatching() { m.matching = false }

// AddSymbol registers a new tradable instrument.
func (m *MarketManager) AddSymbol(s Symbol) ErrorCode {
	if code := m.symbols.Add(s); !code.Ok() {
		return code
	}
	m.handler.OnAddSymbol(s)
	return ErrorOK
}

// DeleteSymbol removes a symbol, refusing while its book still exists.
func (m *MarketManager) DeleteSymbol(id uint32) ErrorCode {
	if _, hasBook := m.books[id]; hasBook {
		return ErrorSymbolHasBook
	}
	s, ok := m.symbols.Get(id)
	if !ok {
		return ErrorSymbolNotFound
	}
	if code := m.symbols.Delete(id); !code.Ok() {
		return code
	}
	m.handler.OnDeleteSymbol(s)
	return ErrorOK
}

// AddOrderBook creates an empty book for an already-registered symbol.
func (m *MarketManager) AddOrderBook(symbolID uint32) ErrorCode {
	if _, ok := m.symbols.Get(symbolID); !ok {
		return ErrorSymbolNotFound
	}
	if _, exists := m.books[symbolID]; exists {
		return ErrorOrderBookDuplicate
	}
	ob := NewOrderBook(symbolID)
	m.books[symbolID] = ob
	m.handler.OnAddOrderBook(ob)
	return ErrorOK
}

// DeleteOrderBook removes a symbol's book; callers are responsible for
// having already cancelled every resting/parked order on it.
func (m *MarketManager) DeleteOrderBook(symbolID uint32) ErrorCode {
	ob, ok := m.books[symbolID]
	if !ok {
		return ErrorOrderBookNotFound
	}
	delete(m.books, symbolID)
	m.handler.OnDeleteOrderBook(ob)
	return ErrorOK
}

func (m *MarketManager) nextSequence() uint64 {
	m.sequence++
	return m.sequence
}

// validateOrder rejects structurally impossible requests before they
// ever touch a book, per §7's OrderParametersInvalid/OrderTypeInvalid/
// OrderTifInvalid taxonomy.
func validateOrder(o Order) ErrorCode {
	if o.Quantity == 0 {
		return ErrorOrderParametersInvalid
	}
	if o.MaxVisibleQuantity > o.Quantity {
		return ErrorOrderParametersInvalid
	}
	switch o.Type {
	case Market:
		if o.TimeInForce == AON {
			return ErrorOrderTypeInvalid
		}
	case Limit:
		if o.Price == 0 {
			return ErrorOrderParametersInvalid
		}
	case Stop:
		if o.StopPrice == 0 {
			return ErrorOrderParametersInvalid
		}
		if o.TimeInForce == AON {
			return ErrorOrderTypeInvalid
		}
	case TrailingStop:
		// StopPrice is derived from the current best opposite price on
		// admission (see AddOrder); the caller only supplies distance/step.
		if o.TimeInForce == AON {
			return ErrorOrderTypeInvalid
		}
	case StopLimit:
		if o.StopPrice == 0 || o.Price == 0 {
			return ErrorOrderParametersInvalid
		}
	case TrailingStopLimit:
		if o.Price == 0 {
			return ErrorOrderParametersInvalid
		}
	default:
		return ErrorOrderTypeInvalid
	}
	if o.Type.IsTrailing() && o.TrailingDistance == 0 {
		return ErrorOrderParametersInvalid
	}
	return ErrorOK
}

// AddOrder admits a new order, validating it, checking for a duplicate
// id, and either parking it (stop family, not yet triggered), or
// running it through the kernel and applying its time-in-force policy.
func (m *MarketManager) AddOrder(o Order) ErrorCode {
	if code := validateOrder(o); !code.Ok() {
		m.bumpRejected()
		return code
	}
	if _, exists := m.orders[o.ID]; exists {
		m.bumpRejected()
		return ErrorOrderDuplicate
	}
	ob, ok := m.books[o.SymbolID]
	if !ok {
		m.bumpRejected()
		return ErrorOrderBookNotFound
	}

	node := NewOrderNode(o, m.nextSequence())
	m.orders[o.ID] = node
	m.bumpAdded()

	if node.Type.IsTrailing() && node.StopPrice == 0 {
		// Caller supplied only distance/step; derive the initial stop with
		// nextTrailingStop from the activation reference price: the last
		// traded price, or the opposite best price before any trade.
		if ref, have := ob.referencePrice(node.Side); have {
			node.StopPrice = nextTrailingStop(node.Side, ref, node.TrailingDistance, 0, node.TrailingStep)
		}
	}

	if node.Type.IsStop() {
		ref, have := ob.referencePrice(node.Side)
		if have && triggered(node.Side, node.StopPrice, ref) {
			m.activate(ob, node)
			if !m.matching {
				return ErrorMatchingDisabled
			}
			return ErrorOK
		} else {
			lvl := ob.AddParked(node)
			m.handler.OnAddOrder(node)
			m.handler.OnAddLevel(ob, lvl, false)
			return ErrorOK
		}
	} else {
		m.handler.OnAddOrder(node)
	}

	if !m.matching {
		m.restGTC(ob, node)
		return ErrorMatchingDisabled
	}

	m.run(ob, node)
	return ErrorOK
}

// activate converts a triggered stop/trailing-stop into its underlying
// order type and feeds it back through the kernel as a brand-new taker.
func (m *MarketManager) activate(ob *OrderBook, node *OrderNode) {
	switch node.Type {
	case Stop, TrailingStop:
		node.Type = Market
	case StopLimit, TrailingStopLimit:
		node.Type = Limit
	}
	m.handler.OnAddOrder(node)
	if !m.matching {
		m.restGTC(ob, node)
		return
	}
	m.run(ob, node)
}

// run executes one taker admission end to end: kernel sweep, TIF
// disposition, and the top-of-book activation cascade it may unlock.
func (m *MarketManager) run(ob *OrderBook, taker *OrderNode) {
	switch taker.TimeInForce {
	case FOK:
		if !feasible(ob, taker) {
			m.cancel(ob, taker)
			return
		}
		m.commit(ob, taker)
	case AON:
		if !feasible(ob, taker) {
			m.restGTC(ob, taker)
			return
		}
		m.commit(ob, taker)
	default: // GTC, IOC
		m.commit(ob, taker)
		if taker.LeavesQuantity > 0 {
			// A market order has no price to rest at; its remainder is
			// always cancelled regardless of the requested TIF.
			if taker.TimeInForce == IOC || taker.Type == Market {
				m.cancel(ob, taker)
			} else {
				m.restGTC(ob, taker)
			}
		}
	}
	m.handler.OnUpdateOrderBook(ob, true)
	m.afterTopOfBookChange(ob)
}

// commit runs the real (non-dry-run) sweep and publishes every fill.
func (m *MarketManager) commit(ob *OrderBook, taker *OrderNode) {
	_, events := sweep(ob, taker, false)
	for _, ev := range events {
		applyFill(taker, ev.Qty)
		ob.LastTradedPrice = ev.Price
		m.bumpExecuted(ev.Qty)

		m.handler.OnExecuteOrder(ev.Maker, ev.Price, ev.Qty)
		m.handler.OnExecuteOrder(taker, ev.Price, ev.Qty)
		if ev.Maker.LeavesQuantity == 0 {
			ev.Maker.Status = StatusFilled
			delete(m.orders, ev.Maker.ID)
			m.handler.OnDeleteOrder(ev.Maker)
		} else {
			m.handler.OnUpdateOrder(ev.Maker)
		}
	}
	if taker.LeavesQuantity == 0 {
		taker.Status = StatusFilled
		delete(m.orders, taker.ID)
		m.handler.OnDeleteOrder(taker)
	}
}

// restGTC places a taker's remainder onto the resting book.
func (m *MarketManager) restGTC(ob *OrderBook, o *OrderNode) {
	if o.LeavesQuantity == 0 {
		return
	}
	lvl := ob.AddResting(o)
	m.handler.OnUpdateOrder(o)
	m.handler.OnUpdateLevel(ob, lvl, true)
}

// cancel removes a taker's unfilled remainder without resting it (IOC,
// or a FOK that could not be fully satisfied).
func (m *MarketManager) cancel(ob *OrderBook, o *OrderNode) {
	o.Status = StatusCancelled
	delete(m.orders, o.ID)
	m.handler.OnDeleteOrder(o)
}

// afterTopOfBookChange re-keys trailing stops and activates anything
// that has now crossed its trigger, looping until the book is quiet:
// one activation can move the inside market enough to trigger another.
func (m *MarketManager) afterTopOfBookChange(ob *OrderBook) {
	for {
		ob.RecomputeTrailing()
		activated := ob.PopActivatable()
		if len(activated) == 0 {
			return
		}
		for _, node := range activated {
			m.activate(ob, node)
		}
	}
}

// DeleteOrder cancels a resting or parked order outright.
func (m *MarketManager) DeleteOrder(orderID uint64) ErrorCode {
	node, ok := m.orders[orderID]
	if !ok {
		return ErrorOrderNotFound
	}
	ob, ok := m.books[node.SymbolID]
	if !ok {
		return ErrorOrderBookNotFound
	}
	lvl := m.findLevel(ob, node)
	if lvl != nil {
		ob.RemoveFromLevel(node, lvl)
	}
	node.Status = StatusCancelled
	delete(m.orders, orderID)
	m.handler.OnDeleteOrder(node)
	m.afterTopOfBookChange(ob)
	return ErrorOK
}

// findLevel locates the level an admitted order currently occupies.
func (m *MarketManager) findLevel(ob *OrderBook, o *OrderNode) *Level {
	key := o.Price
	t := ob.treeFor(o)
	if o.Type.IsStop() {
		key = o.StopPrice
	}
	if lvl, ok := t.Get(priceLess(key)); ok {
		return lvl
	}
	return nil
}

// ReduceOrder shrinks a resting order's leaves quantity in place,
// keeping its price-time priority (it keeps its place in its level's queue).
func (m *MarketManager) ReduceOrder(orderID uint64, by Quantity) ErrorCode {
	node, ok := m.orders[orderID]
	if !ok {
		return ErrorOrderNotFound
	}
	if by == 0 || by > node.LeavesQuantity {
		return ErrorOrderParametersInvalid
	}
	ob := m.books[node.SymbolID]
	lvl := m.findLevel(ob, node)
	visible, hidden := node.VisibleQuantity(), node.HiddenQuantity()
	node.LeavesQuantity -= by
	if node.LeavesQuantity == 0 {
		if lvl != nil {
			lvl.Refresh(-int64(visible), -int64(hidden))
			ob.RemoveFromLevel(node, lvl)
		}
		node.Status = StatusCancelled
		delete(m.orders, orderID)
		m.handler.OnDeleteOrder(node)
		m.afterTopOfBookChange(ob)
		return ErrorOK
	}
	if lvl != nil {
		newVisible, newHidden := node.VisibleQuantity(), node.HiddenQuantity()
		lvl.Refresh(int64(newVisible)-int64(visible), int64(newHidden)-int64(hidden))
	}
	m.handler.OnUpdateOrder(node)
	return ErrorOK
}

// MitigateOrder adjusts a resting order's leaves quantity up or down
// without losing its place in the queue (unlike ModifyOrder, which
// re-prices and therefore re-queues).
func (m *MarketManager) MitigateOrder(orderID uint64, newQuantity Quantity) ErrorCode {
	node, ok := m.orders[orderID]
	if !ok {
		return ErrorOrderNotFound
	}
	if newQuantity == 0 {
		return ErrorOrderParametersInvalid
	}
	executed := node.ExecutedQuantity
	if newQuantity < executed {
		return ErrorOrderParametersInvalid
	}
	ob := m.books[node.SymbolID]
	lvl := m.findLevel(ob, node)
	visible, hidden := node.VisibleQuantity(), node.HiddenQuantity()
	node.Quantity = newQuantity
	node.LeavesQuantity = newQuantity - executed
	if lvl != nil {
		newVisible, newHidden := node.VisibleQuantity(), node.HiddenQuantity()
		lvl.Refresh(int64(newVisible)-int64(visible), int64(newHidden)-int64(hidden))
	}
	m.handler.OnUpdateOrder(node)
	return ErrorOK
}

// ModifyOrder changes price and/or quantity, re-entering the order at
// the back of its new level (it forfeits time priority, standard
// modify-loses-priority semantics).
func (m *MarketManager) ModifyOrder(orderID uint64, newPrice Price, newQuantity Quantity) ErrorCode {
	node, ok := m.orders[orderID]
	if !ok {
		return ErrorOrderNotFound
	}
	if newQuantity == 0 || newPrice == 0 {
		return ErrorOrderParametersInvalid
	}
	ob, ok := m.books[node.SymbolID]
	if !ok {
		return ErrorOrderBookNotFound
	}
	if lvl := m.findLevel(ob, node); lvl != nil {
		ob.RemoveFromLevel(node, lvl)
	}
	node.Price = newPrice
	node.Quantity = newQuantity
	node.ExecutedQuantity = 0
	node.LeavesQuantity = newQuantity
	node.Status = StatusNew
	node.sequence = m.nextSequence()
	m.handler.OnUpdateOrder(node)

	if !m.matching {
		m.restGTC(ob, node)
		return ErrorMatchingDisabled
	}
	m.run(ob, node)
	return ErrorOK
}

// ReplaceOrder cancels orderID and admits a brand new order in its
// place under a new id.
func (m *MarketManager) ReplaceOrder(orderID uint64, replacement Order) ErrorCode {
	if code := m.DeleteOrder(orderID); !code.Ok() {
		return code
	}
	return m.AddOrder(replacement)
}
