package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, symbolID uint32) *MarketManager {
	t.Helper()
	m := NewMarketManager()
	require.True(t, m.AddSymbol(Symbol{ID: symbolID, Name: "TEST", Type: VanillaPerp, Multiplier: 1, QuantityDivisor: 1}).Ok())
	require.True(t, m.AddOrderBook(symbolID).Ok())
	return m
}

func limitOrder(id uint64, symbolID uint32, side Side, price, qty uint64) Order {
	return Order{ID: id, SymbolID: symbolID, Side: side, Type: Limit, TimeInForce: GTC, Price: Price(price), Quantity: Quantity(qty)}
}

// S1: a resting limit order book with no crossing orders stays resting.
func TestAddOrder_RestsWhenNotCrossing(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 100)).Ok())
	require.True(t, m.AddOrder(limitOrder(2, 1, Sell, 101, 100)).Ok())

	ob := m.books[1]
	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, Price(99), bid.Price)
	assert.Equal(t, Quantity(100), bid.TotalVisible)

	ask, ok := ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Price(101), ask.Price)
}

// S2: an incoming GTC limit order partially fills and rests its remainder.
func TestAddOrder_PartialFillRestsRemainder(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 50)).Ok())
	require.True(t, m.AddOrder(limitOrder(2, 1, Buy, 100, 80)).Ok())

	ob := m.books[1]
	_, askExists := ob.BestAsk()
	assert.False(t, askExists, "the sole ask should be fully consumed")

	taker, ok := m.orders[2]
	require.True(t, ok)
	assert.Equal(t, Quantity(30), taker.LeavesQuantity)
	assert.Equal(t, StatusPartiallyFilled, taker.Status)

	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, Price(100), bid.Price)
	assert.Equal(t, Quantity(30), bid.TotalVisible)
}

// S3: IOC never rests; any unfilled remainder is cancelled outright.
func TestAddOrder_IOCCancelsRemainder(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 10)).Ok())

	ioc := limitOrder(2, 1, Buy, 100, 50)
	ioc.TimeInForce = IOC
	require.True(t, m.AddOrder(ioc).Ok())

	_, exists := m.orders[2]
	assert.False(t, exists, "IOC remainder must not rest")
	_, bidExists := m.books[1].BestBid()
	assert.False(t, bidExists)
}

// S4: FOK is rejected in full (no partial match) when liquidity is insufficient.
func TestAddOrder_FOKRejectsWhenInfeasible(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 10)).Ok())

	fok := limitOrder(2, 1, Buy, 100, 50)
	fok.TimeInForce = FOK
	require.True(t, m.AddOrder(fok).Ok())

	maker, ok := m.orders[1]
	require.True(t, ok, "the resting maker must be untouched by a failed FOK")
	assert.Equal(t, Quantity(10), maker.LeavesQuantity)
	_, takerExists := m.orders[2]
	assert.False(t, takerExists)
}

// FOK fills completely and in full when liquidity suffices.
func TestAddOrder_FOKFillsWhenFeasible(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 30)).Ok())
	require.True(t, m.AddOrder(limitOrder(2, 1, Sell, 100, 30)).Ok())

	fok := limitOrder(3, 1, Buy, 100, 50)
	fok.TimeInForce = FOK
	require.True(t, m.AddOrder(fok).Ok())

	_, takerExists := m.orders[3]
	assert.False(t, takerExists, "a fully filled FOK leaves nothing resting")
	ob := m.books[1]
	ask, ok := ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Quantity(10), ask.TotalVisible)
}

// AON rests in full when the incoming quantity cannot be entirely
// satisfied, rather than cancelling like FOK.
func TestAddOrder_AONRestsWhenInfeasible(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 10)).Ok())

	aon := limitOrder(2, 1, Buy, 100, 50)
	aon.TimeInForce = AON
	require.True(t, m.AddOrder(aon).Ok())

	taker, ok := m.orders[2]
	require.True(t, ok, "an infeasible AON taker must rest, not cancel")
	assert.Equal(t, Quantity(50), taker.LeavesQuantity)
}

// A resting AON maker is skipped (not removed) by a taker too small to
// absorb it whole, and the taker continues matching further down book.
func TestSweep_AONMakerSkipAndResume(t *testing.T) {
	m := newManager(t, 1)
	aonMaker := limitOrder(1, 1, Sell, 100, 40)
	aonMaker.TimeInForce = AON
	require.True(t, m.AddOrder(aonMaker).Ok())
	require.True(t, m.AddOrder(limitOrder(2, 1, Sell, 100, 10)).Ok())

	require.True(t, m.AddOrder(limitOrder(3, 1, Buy, 100, 10)).Ok())

	maker1, ok := m.orders[1]
	require.True(t, ok, "the AON maker must still be resting, untouched")
	assert.Equal(t, Quantity(40), maker1.LeavesQuantity)

	_, maker2Exists := m.orders[2]
	assert.False(t, maker2Exists, "the non-AON maker behind it should have been taken instead")
}

// Iceberg orders only ever expose MaxVisibleQuantity, replenishing from
// hidden reserve as the visible slice is consumed.
func TestSweep_IcebergReplenishesVisible(t *testing.T) {
	m := newManager(t, 1)
	iceberg := limitOrder(1, 1, Sell, 100, 100)
	iceberg.MaxVisibleQuantity = 20
	require.True(t, m.AddOrder(iceberg).Ok())

	ob := m.books[1]
	ask, ok := ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Quantity(20), ask.TotalVisible)
	assert.Equal(t, Quantity(80), ask.TotalHidden)

	require.True(t, m.AddOrder(limitOrder(2, 1, Buy, 100, 15)).Ok())

	ask, ok = ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Quantity(20), ask.TotalVisible, "visible slice replenishes back to max")
	assert.Equal(t, Quantity(65), ask.TotalHidden)
}

// A market order crosses the book regardless of price, matching at
// whatever is resting, and never itself rests.
func TestAddOrder_MarketSweepsAndNeverRests(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 10)).Ok())
	require.True(t, m.AddOrder(limitOrder(2, 1, Sell, 101, 10)).Ok())

	mkt := Order{ID: 3, SymbolID: 1, Side: Buy, Type: Market, TimeInForce: GTC, Quantity: 15}
	require.True(t, m.AddOrder(mkt).Ok())

	ob := m.books[1]
	ask, ok := ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, Price(101), ask.Price)
	assert.Equal(t, Quantity(5), ask.TotalVisible)
	_, takerExists := m.orders[3]
	assert.False(t, takerExists)
}

// A buy stop parked above the market activates once the reference
// price trades up through its trigger, converting to a market order.
func TestStopOrder_ActivatesOnTrigger(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 101, 10)).Ok())
	require.True(t, m.AddOrder(limitOrder(2, 1, Sell, 110, 10)).Ok())

	stop := Order{ID: 3, SymbolID: 1, Side: Buy, Type: Stop, TimeInForce: GTC, StopPrice: 108, Quantity: 20}
	require.True(t, m.AddOrder(stop).Ok())
	node, ok := m.orders[3]
	require.True(t, ok)
	assert.Equal(t, Stop, node.Type, "best ask (101) has not yet reached the 108 trigger")

	buy := limitOrder(4, 1, Buy, 110, 20)
	require.True(t, m.AddOrder(buy).Ok())
	assert.Equal(t, Price(110), m.books[1].LastTradedPrice)

	assert.Empty(t, m.books[1].StopBids.Items(), "the triggered stop must leave the park queue")
	if node, ok := m.orders[3]; ok {
		assert.Equal(t, Market, node.Type, "an activated stop converts in place")
	}
}

// DeleteOrder removes a resting order cleanly, leaving no empty levels.
func TestDeleteOrder_RemovesLevelWhenEmpty(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 10)).Ok())
	require.True(t, m.DeleteOrder(1).Ok())

	_, exists := m.books[1].BestBid()
	assert.False(t, exists)
	assert.Equal(t, ErrorOrderNotFound, m.DeleteOrder(1))
}

func TestAddOrder_RejectsDuplicateID(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 10)).Ok())
	assert.Equal(t, ErrorOrderDuplicate, m.AddOrder(limitOrder(1, 1, Buy, 98, 5)))
}

func TestAddOrder_RejectsZeroQuantity(t *testing.T) {
	m := newManager(t, 1)
	assert.Equal(t, ErrorOrderParametersInvalid, m.AddOrder(limitOrder(1, 1, Buy, 99, 0)))
}

func TestAddOrder_RejectsMarketAON(t *testing.T) {
	m := newManager(t, 1)
	o := Order{ID: 1, SymbolID: 1, Side: Buy, Type: Market, TimeInForce: AON, Quantity: 10}
	assert.Equal(t, ErrorOrderTypeInvalid, m.AddOrder(o))
}
