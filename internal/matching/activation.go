package matching

// referencePrice resolves the activation reference price for a given
// stop side per §4.4: last traded price, falling back to best ask for
// buy stops and best bid for sell stops when nothing has traded yet.
func (ob *OrderBook) referencePrice(side Side) (Price, bool) {
	if ob.LastTradedPrice != 0 {
		return ob.LastTradedPrice, true
	}
	if side == Buy {
		return ob.BestAskPrice()
	}
	return ob.BestBidPrice()
}

// triggered reports whether a parked stop at stopPrice should activate
// given the current reference price on its side.
func triggered(side Side, stopPrice, reference Price) bool {
	if side == Buy {
		return reference >= stopPrice
	}
	return reference <= stopPrice
}

// PopActivatable drains and returns every stop/trailing-stop order whose
// trigger condition is currently satisfied, removing them from their park
// queues. Trailing books must have already been recomputed by the caller
// via RecomputeTrailing so their keys reflect the live stop price.
func (ob *OrderBook) PopActivatable() []*OrderNode {
	var activated []*OrderNode
	activated = append(activated, ob.drainSide(ob.StopBids, Buy)...)
	activated = append(activated, ob.drainSide(ob.StopAsks, Sell)...)
	activated = append(activated, ob.drainSide(ob.TrailingBids, Buy)...)
	activated = append(activated, ob.drainSide(ob.TrailingAsks, Sell)...)
	return activated
}

func (ob *OrderBook) drainSide(t *Levels, side Side) []*OrderNode {
	ref, ok := ob.referencePrice(side)
	if !ok {
		return nil
	}
	var out []*OrderNode
	var emptied []*Level
	t.Scan(func(lvl *Level) bool {
		if !triggered(side, lvl.Price, ref) {
			// Ascending/descending order of the tree guarantees once we
			// hit an untriggered level, none further out will trigger.
			return false
		}
		out = append(out, lvl.Orders...)
		lvl.Orders = nil
		lvl.TotalVisible, lvl.TotalHidden = 0, 0
		emptied = append(emptied, lvl)
		return true
	})
	for _, lvl := range emptied {
		t.Delete(lvl)
	}
	return out
}

// RecomputeTrailing re-keys every parked trailing-stop order on both
// sides from the current best opposite-side price, applying the
// distance/step rule of §4.4. It must run before PopActivatable so that
// a trailing stop which has just caught up to its activation boundary is
// seen as triggered in the same top-of-book update.
func (ob *OrderBook) RecomputeTrailing() {
	if bestAsk, ok := ob.BestAskPrice(); ok {
		ob.recomputeTrailingSide(ob.TrailingBids, Buy, bestAsk)
	}
	if bestBid, ok := ob.BestBidPrice(); ok {
		ob.recomputeTrailingSide(ob.TrailingAsks, Sell, bestBid)
	}
}

// recomputeTrailingSide re-keys every order in t. A buy trailing stop's
// new stop is opposite + distance, only adopted when it has moved down
// (non-increasing, Testable Property 9) by more than `step`; sell is the
// mirror image, moving up only.
func (ob *OrderBook) recomputeTrailingSide(t *Levels, side Side, opposite Price) {
	orders := t.Items()
	if len(orders) == 0 {
		return
	}
	for _, lvl := range orders {
		pending := append([]*OrderNode(nil), lvl.Orders...)
		t.Delete(lvl)
		for _, o := range pending {
			newStop := nextTrailingStop(side, opposite, o.TrailingDistance, o.StopPrice, o.TrailingStep)
			o.StopPrice = newStop
			dest := levelFor(t, newStop)
			dest.Append(o)
		}
	}
}

// nextTrailingStop implements the monotonic trailing update: a buy
// trailing stop only ever moves down, a sell trailing stop only ever
// moves up, and only once the move exceeds the quantization step.
func nextTrailingStop(side Side, opposite Price, distance uint64, current Price, step uint64) Price {
	var candidate Price
	if side == Buy {
		candidate = opposite + distance
		if current != 0 && current <= candidate {
			return current // would widen the stop; trailing stops never widen
		}
	} else {
		if opposite <= distance {
			candidate = 0
		} else {
			candidate = opposite - distance
		}
		if current != 0 && current >= candidate {
			return current
		}
	}
	if current != 0 && AbsDiff(current, candidate) <= step {
		return current
	}
	return candidate
}
