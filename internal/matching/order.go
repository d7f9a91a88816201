package matching

import "fmt"

// Order is the immutable-looking request shape accepted by AddOrder; the
// engine copies its mutable fields into an OrderNode on admission.
type Order struct {
	ID                 uint64
	SymbolID           uint32
	Side               Side
	Type               OrderType
	TimeInForce        TimeInForce
	Price              Price
	StopPrice          Price
	Quantity           Quantity
	MaxVisibleQuantity Quantity // 0 => not an iceberg
	Slippage           uint64   // absolute ticks, 0 => unbounded
	TrailingDistance   uint64   // absolute, signed meaning is side-dependent
	TrailingStep       uint64
	AccountID          uint64
}

// OrderNode is the mutable, book-resident representation of an order.
// Price levels and the market manager's id index both reference an
// OrderNode by pointer; the node is the single owner of its mutable state
// (an arena-of-one, in the spirit of the index-based arenas called for by
// the design notes, simplified because Go's GC makes pointer arenas safe).
type OrderNode struct {
	Order

	ExecutedQuantity Quantity
	LeavesQuantity   Quantity
	Status           OrderStatus

	// sequence is the monotonically increasing admission number. Ties
	// within a price level are broken by the level's FIFO order; the
	// matcher does not read sequence.
	sequence uint64
}

// NewOrderNode constructs a resting/parked order node from an admitted request.
func NewOrderNode(o Order, sequence uint64) *OrderNode {
	return &OrderNode{
		Order:            o,
		ExecutedQuantity: 0,
		LeavesQuantity:   o.Quantity,
		Status:           StatusNew,
		sequence:         sequence,
	}
}

// IsBuy is a short-hand used throughout the book/kernel for side branches.
func (n *OrderNode) IsBuy() bool { return n.Side == Buy }

// IsIceberg reports whether the order hides part of its quantity.
func (n *OrderNode) IsIceberg() bool { return n.MaxVisibleQuantity > 0 }

// IsAON reports whether the order must be filled in full or not at all while resting.
func (n *OrderNode) IsAON() bool { return n.TimeInForce == AON }

// VisibleQuantity returns the quantity matchable by incoming orders right now.
func (n *OrderNode) VisibleQuantity() Quantity {
	if !n.IsIceberg() {
		return n.LeavesQuantity
	}
	return MinU64(n.LeavesQuantity, n.MaxVisibleQuantity)
}

// HiddenQuantity returns the quantity an iceberg order still has in reserve.
func (n *OrderNode) HiddenQuantity() Quantity {
	return n.LeavesQuantity - n.VisibleQuantity()
}

func (n *OrderNode) String() string {
	return fmt.Sprintf(
		"Order(Id=%d; Symbol=%d; Side=%s; Type=%s; Tif=%s; Price=%d; Stop=%d; Leaves=%d/%d; Status=%s)",
		n.ID, n.SymbolID, n.Side, n.Type, n.TimeInForce, n.Price, n.StopPrice, n.LeavesQuantity, n.Quantity, n.Status,
	)
}

// Fill describes one half of a match: the order whose leaves/executed
// quantities changed, at what price, for how much.
type Fill struct {
	Order    *OrderNode
	Price    Price
	Quantity Quantity
}
