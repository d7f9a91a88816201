package matching

// MatchEvent records one trade leg against a resting/parked counter order,
// produced while sweeping the book for an incoming (taker) order.
type MatchEvent struct {
	Maker *OrderNode
	Price Price
	Qty   Quantity
}

// crosses reports whether a level at lvlPrice can still trade against the
// taker given its own limit (if any) and, for market orders, its
// slippage bound computed from the first touched level.
func crosses(taker *OrderNode, lvlPrice Price, firstTouched Price, haveFirstTouched bool) bool {
	isLimitBound := taker.Type == Limit || taker.Type == StopLimit || taker.Type == TrailingStopLimit
	if isLimitBound {
		if taker.Side == Buy {
			return lvlPrice <= taker.Price
		}
		return lvlPrice >= taker.Price
	}

	// Market-family: no price limit beyond an optional slippage bound
	// measured from the first level actually touched.
	if taker.Slippage == 0 || !haveFirstTouched {
		return true
	}
	if taker.Side == Buy {
		return lvlPrice <= firstTouched+taker.Slippage
	}
	if firstTouched < taker.Slippage {
		return true // floor at zero, nothing is out of bound
	}
	return lvlPrice >= firstTouched-taker.Slippage
}

// sweep walks the opposite side-book for taker, matching price-time with
// AON skip-and-resume, up to taker's remaining leaves or the book/price
// bound. When dryRun is true no state is mutated (book, orders, or
// levels); the function only reports what it would have matched. This
// single routine backs both the FOK/AON feasibility pre-check and the
// real execution path, keeping the two from drifting apart.
func sweep(ob *OrderBook, taker *OrderNode, dryRun bool) (matched Quantity, events []MatchEvent) {
	opposite := ob.levelsFor(oppositeSide(taker.Side))
	remaining := taker.LeavesQuantity
	var firstTouched Price
	haveFirstTouched := false
	var prev *Level

	for remaining > 0 {
		// Resume after the level just swept instead of re-reading the best
		// level: a dry run removes nothing, so the best level would
		// otherwise be counted again.
		var lvl *Level
		ok := false
		if prev == nil {
			lvl, ok = bestOf(opposite)
		} else {
			opposite.Ascend(prev, func(item *Level) bool {
				if item.Price == prev.Price {
					return true
				}
				lvl, ok = item, true
				return false
			})
		}
		if !ok {
			break
		}
		prev = lvl
		if !haveFirstTouched {
			firstTouched = lvl.Price
			haveFirstTouched = true
		}
		if !crosses(taker, lvl.Price, firstTouched, haveFirstTouched) {
			break
		}

		consumed, levelEvents, levelDone := sweepLevel(lvl, taker, remaining, dryRun)
		events = append(events, levelEvents...)
		matched += consumed
		remaining -= consumed

		if !dryRun {
			dropIfEmpty(opposite, lvl)
		}
		if consumed == 0 {
			// Nothing at this level could be taken (every resting order
			// here is an AON too large for our remaining quantity).
			// remaining never grows, so a second pass would block
			// identically; stop instead of spinning on the same level.
			break
		}
		if !levelDone {
			// The level still has resting quantity we could not take
			// (an AON we couldn't satisfy, or incoming is exhausted);
			// nothing more can happen at this price this sweep.
			break
		}
	}
	return matched, events
}

// sweepLevel matches the taker against one level front-to-back, applying
// the AON skip-and-resume tie-break: a resting AON order is only taken
// when the taker's currently remaining quantity can absorb it whole.
// levelDone reports whether the level was fully drained of everything it
// could offer this taker (false means we stopped early because the front
// of the level could not be satisfied, e.g. an unsatisfiable AON).
func sweepLevel(lvl *Level, taker *OrderNode, remaining Quantity, dryRun bool) (consumed Quantity, events []MatchEvent, levelDone bool) {
	i := 0
	for i < len(lvl.Orders) && remaining > 0 {
		maker := lvl.Orders[i]
		visible := maker.VisibleQuantity()
		hidden := maker.HiddenQuantity()

		var qty Quantity
		if maker.IsAON() {
			if maker.LeavesQuantity > remaining {
				// Cannot fully consume this AON order right now; it
				// keeps resting, we try the next order at this price.
				i++
				continue
			}
			qty = maker.LeavesQuantity
		} else {
			qty = MinU64(visible, remaining)
			if qty == 0 {
				break
			}
		}

		events = append(events, MatchEvent{Maker: maker, Price: lvl.Price, Qty: qty})
		consumed += qty
		remaining -= qty

		if dryRun {
			i++
			continue
		}

		applyFill(maker, qty)
		if maker.LeavesQuantity == 0 {
			lvl.Remove(i)
			lvl.Refresh(-int64(visible), -int64(hidden))
			continue // don't advance i, slice shifted left
		}
		// Partial fill against an iceberg: replenish the visible slice
		// from hidden reserve, or shrink visible if no hidden remains.
		newVisible, newHidden := maker.VisibleQuantity(), maker.HiddenQuantity()
		lvl.Refresh(int64(newVisible)-int64(visible), int64(newHidden)-int64(hidden))
		i++
	}
	return consumed, events, i >= len(lvl.Orders) || remaining == 0
}

// applyFill updates a resting order's executed/leaves bookkeeping for one
// matched quantity. Status transitions are finalized by the caller, which
// knows whether the order is being deleted from the book.
func applyFill(o *OrderNode, qty Quantity) {
	o.ExecutedQuantity += qty
	o.LeavesQuantity -= qty
	if o.LeavesQuantity == 0 {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
}

func oppositeSide(s Side) Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// bestOf returns the best level on a side-book. Both bid and ask trees are
// oriented so that Min() is always "best" for that side.
func bestOf(t *Levels) (*Level, bool) {
	return t.Min()
}

// feasible reports whether a full-quantity sweep (FOK pre-check, or an
// AON taker's own all-or-none requirement) can be satisfied right now.
func feasible(ob *OrderBook, taker *OrderNode) bool {
	matched, _ := sweep(ob, taker, true)
	return matched == taker.LeavesQuantity
}
