package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduceOrder_ShrinksLeavesKeepingPriority(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 100)).Ok())

	require.True(t, m.ReduceOrder(1, 40).Ok())
	node := m.orders[1]
	assert.Equal(t, Quantity(60), node.LeavesQuantity)

	bid, ok := m.books[1].BestBid()
	require.True(t, ok)
	assert.Equal(t, Quantity(60), bid.TotalVisible)
}

func TestReduceOrder_ToZeroCancelsOrder(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 100)).Ok())

	require.True(t, m.ReduceOrder(1, 100).Ok())
	_, exists := m.orders[1]
	assert.False(t, exists)
	_, bidExists := m.books[1].BestBid()
	assert.False(t, bidExists)
}

func TestReduceOrder_RejectsExceedingLeaves(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 100)).Ok())
	assert.Equal(t, ErrorOrderParametersInvalid, m.ReduceOrder(1, 200))
}

func TestMitigateOrder_ChangesQuantityInPlace(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 100)).Ok())

	require.True(t, m.MitigateOrder(1, 150).Ok())
	node := m.orders[1]
	assert.Equal(t, Quantity(150), node.Quantity)
	assert.Equal(t, Quantity(150), node.LeavesQuantity)

	bid, ok := m.books[1].BestBid()
	require.True(t, ok)
	assert.Equal(t, Quantity(150), bid.TotalVisible)
}

func TestMitigateOrder_RejectsBelowExecuted(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 50)).Ok())
	require.True(t, m.AddOrder(limitOrder(2, 1, Buy, 100, 20)).Ok())

	assert.Equal(t, ErrorOrderParametersInvalid, m.MitigateOrder(1, 10))
}

func TestModifyOrder_RepricesAndLosesPriority(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 10)).Ok())
	require.True(t, m.AddOrder(limitOrder(2, 1, Buy, 99, 10)).Ok())

	require.True(t, m.ModifyOrder(1, 99, 30).Ok())
	node := m.orders[1]
	assert.Equal(t, Quantity(30), node.Quantity)
	assert.Equal(t, Quantity(30), node.LeavesQuantity)
	assert.Equal(t, StatusNew, node.Status)

	require.True(t, m.AddOrder(limitOrder(3, 1, Sell, 99, 10)).Ok())
	_, secondStillResting := m.orders[2]
	assert.False(t, secondStillResting, "order 2 kept priority and should be hit first")
}

func TestModifyOrder_CanCrossAndFillImmediately(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 10)).Ok())
	require.True(t, m.AddOrder(limitOrder(2, 1, Buy, 90, 10)).Ok())

	require.True(t, m.ModifyOrder(2, 100, 10).Ok())
	_, buyerExists := m.orders[2]
	assert.False(t, buyerExists, "repricing to cross should fill the order")
	_, sellerExists := m.orders[1]
	assert.False(t, sellerExists)
}

func TestModifyOrder_RejectsZeroPrice(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 10)).Ok())
	assert.Equal(t, ErrorOrderParametersInvalid, m.ModifyOrder(1, 0, 10))
}

func TestReplaceOrder_CancelsThenAdmitsNewID(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 99, 10)).Ok())

	replacement := limitOrder(2, 1, Buy, 98, 15)
	require.True(t, m.ReplaceOrder(1, replacement).Ok())

	_, oldExists := m.orders[1]
	assert.False(t, oldExists)
	node, newExists := m.orders[2]
	require.True(t, newExists)
	assert.Equal(t, Price(98), node.Price)
}

func TestReplaceOrder_FailsWhenOriginalMissing(t *testing.T) {
	m := newManager(t, 1)
	assert.Equal(t, ErrorOrderNotFound, m.ReplaceOrder(99, limitOrder(1, 1, Buy, 98, 15)))
}

func TestDisableMatching_NewOrdersRestWithoutMatching(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 10)).Ok())

	m.DisableMatching()
	code := m.AddOrder(limitOrder(2, 1, Buy, 100, 10))
	assert.Equal(t, ErrorMatchingDisabled, code)
	assert.True(t, code.Ok(), "MatchingDisabled is informational, not a failure")

	_, stillResting := m.orders[1]
	assert.True(t, stillResting, "a crossing order must not match while matching is disabled")
	node, ok := m.orders[2]
	require.True(t, ok)
	assert.Equal(t, Quantity(10), node.LeavesQuantity)
}

func TestEnableMatching_ResumesNormalCrossing(t *testing.T) {
	m := newManager(t, 1)
	m.DisableMatching()
	require.True(t, m.AddOrder(limitOrder(1, 1, Sell, 100, 10)).Ok())

	m.EnableMatching()
	require.True(t, m.AddOrder(limitOrder(2, 1, Buy, 100, 10)).Ok())

	_, sellerExists := m.orders[1]
	assert.False(t, sellerExists)
	_, buyerExists := m.orders[2]
	assert.False(t, buyerExists)
}

// S5: AddOrder{Sell,TrailingStop,distance=5,step=1,qty=1} while best_bid=100
// derives its initial stop from the book instead of requiring the caller to
// supply one.
func TestAddOrder_TrailingStopDerivesInitialStopFromTopOfBook(t *testing.T) {
	m := newManager(t, 1)
	require.True(t, m.AddOrder(limitOrder(1, 1, Buy, 100, 10)).Ok())

	code := m.AddOrder(Order{
		ID:               2,
		SymbolID:         1,
		Side:             Sell,
		Type:             TrailingStop,
		TimeInForce:      GTC,
		TrailingDistance: 5,
		TrailingStep:     1,
		Quantity:         1,
	})
	require.True(t, code.Ok())

	node, ok := m.orders[2]
	require.True(t, ok)
	assert.Equal(t, Price(95), node.StopPrice)

	bid, stillResting := m.books[1].BestBid()
	require.True(t, stillResting, "a correctly seeded trailing stop must park, not self-trigger and match on admission")
	assert.Equal(t, Quantity(10), bid.TotalVisible)
}
