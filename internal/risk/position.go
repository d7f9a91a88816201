// Package risk maintains per-account, per-symbol positions and their
// PnL/funding accounting downstream of the matching core's event
// stream.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"fenrir/internal/matching"
)

// Side is a position's net exposure direction, distinct from an
// order's buy/sell direction.
type Side uint8

const (
	Long Side = iota
	Short
)

func (s Side) String() string {
	if s == Long {
		return "LONG"
	}
	return "SHORT"
}

// Position is one account's net exposure in one symbol.
type Position struct {
	ID            uint64
	SymbolID      uint32
	AccountID     uint64
	Side          Side
	AvgEntryPrice float64
	Quantity      uint64

	MarkPrice  matching.Price
	IndexPrice matching.Price

	Z       float64 // risk coefficient, |funding rate| scaled by price
	C       float64 // risk coefficient, funding rate squared scaled by price^2
	Funding float64 // accumulated funding payment

	// LastFundingTime is when Funding was last accrued. Zero means no
	// funding has accrued yet, so OnMarkPrice skips accrual on the
	// position's first tick rather than integrating over an undefined Δt.
	LastFundingTime time.Time

	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

func (p *Position) String() string {
	return fmt.Sprintf(
		"Position(Id=%d; Symbol=%d; Account=%d; Side=%s; AvgEntryPrice=%.8f; Quantity=%d; Realized=%s; Unrealized=%s)",
		p.ID, p.SymbolID, p.AccountID, p.Side, p.AvgEntryPrice, p.Quantity, p.RealizedPnL, p.UnrealizedPnL,
	)
}

type positionKey struct {
	AccountID uint64
	SymbolID  uint32
}

// PositionEngine is the §4.8 downstream consumer: it never mutates the
// matching core and is driven purely by the MarketHandler callbacks a
// caller wires it into (via an Adapter, see handler.go).
type PositionEngine struct {
	positions map[positionKey]*Position
	nextID    uint64

	clockInterval uint64
	tick          uint64
}

// NewPositionEngine creates an engine. startingID seeds the monotonic
// position id counter (e.g. from a prior run's row count), and
// clockInterval throttles mark-price/funding recomputation to once
// every clockInterval calls to OnMarkPrice (0 disables throttling).
func NewPositionEngine(startingID uint64, clockInterval uint64) *PositionEngine {
	return &PositionEngine{
		positions:     make(map[positionKey]*Position),
		nextID:        startingID,
		clockInterval: clockInterval,
	}
}

// Get returns a snapshot of the current position, if any, for an account/symbol.
func (e *PositionEngine) Get(accountID uint64, symbolID uint32) (Position, bool) {
	p, ok := e.positions[positionKey{accountID, symbolID}]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

func (e *PositionEngine) getOrCreate(accountID uint64, symbolID uint32) *Position {
	key := positionKey{accountID, symbolID}
	p, ok := e.positions[key]
	if !ok {
		e.nextID++
		p = &Position{ID: e.nextID, SymbolID: symbolID, AccountID: accountID, Side: Long}
		e.positions[key] = p
	}
	return p
}

// pnlResult is CalculatePnL's three-value return (realized, unrealized,
// new average entry price), a struct in place of the original's heap-
// allocated double[3].
type pnlResult struct {
	Realized      float64
	Unrealized    float64
	AvgEntryPrice float64
}

// calculatePnL computes realized/unrealized PnL and the new average
// entry price for both the linear (vanilla) and inverse contract
// formulas.
func calculatePnL(p *Position, side matching.Side, price matching.Price, quantity matching.Quantity, symbol matching.Symbol) pnlResult {
	q := signedQuantity(side == matching.Buy, quantity)
	qPos := signedQuantity(p.Side == Long, p.Quantity)
	div := float64(symbol.QuantityDivisor)
	mult := float64(symbol.Multiplier)
	priceF := float64(price)

	var realized, unrealized, avgEntryPrice float64

	if symbol.IsInverse() {
		entryPrice := p.AvgEntryPrice
		if entryPrice == 0 {
			// A brand-new position has no average entry price yet; 0 would
			// divide qPos/entryPrice into NaN since qPos is also 0 here.
			// Substitute the sentinel 1 so the first fill's avg price
			// collapses to the expected qPos==0 case instead of corrupting
			// the position permanently.
			entryPrice = 1
		}
		tmp := qPos/entryPrice + q/priceF
		if qPos+q != 0 && tmp != 0 {
			avgEntryPrice = (qPos + q) / div / tmp * mult
		} else {
			avgEntryPrice = 1 // sentinel: keeps the divisions below finite
		}
		unrealized = (qPos + q) / div * (mult/avgEntryPrice - mult/priceF)
		switch {
		case (qPos+q)*qPos < 0:
			realized = qPos / div * (mult/p.AvgEntryPrice - mult/priceF)
		case qPos*q < 0:
			realized = -q / div * (mult/p.AvgEntryPrice - mult/priceF)
		default:
			realized = 0
		}
	} else {
		tmp := qPos + q
		if tmp != 0 {
			avgEntryPrice = (qPos*p.AvgEntryPrice + q*priceF) / tmp
		} else {
			avgEntryPrice = 1 // sentinel for a flat position
		}
		unrealized = (qPos + q) / div * (priceF - avgEntryPrice) / mult
		switch {
		case (qPos+q)*qPos < 0:
			realized = qPos / div * (priceF - p.AvgEntryPrice) / mult
		case qPos*q < 0:
			realized = -q / div * (priceF - p.AvgEntryPrice) / mult
		default:
			realized = 0
		}
	}

	return pnlResult{Realized: realized, Unrealized: unrealized, AvgEntryPrice: avgEntryPrice}
}

func signedQuantity(positiveSide bool, q uint64) float64 {
	if positiveSide {
		return float64(q)
	}
	return -float64(q)
}

// OnExecute folds one fill into the account's position (§4.8), the Go
// transliteration of Position::OrderExecuted: recompute PnL, roll the
// average entry price, flip side on a crossing fill, never touching
// price/quantity when the fill is degenerate.
func (e *PositionEngine) OnExecute(accountID uint64, side matching.Side, price matching.Price, quantity matching.Quantity, symbol matching.Symbol) *Position {
	if quantity == 0 || price == 0 {
		return e.getOrCreate(accountID, symbol.ID)
	}
	p := e.getOrCreate(accountID, symbol.ID)

	pnl := calculatePnL(p, side, price, quantity, symbol)

	q := signedQuantity(side == matching.Buy, quantity)
	qPos := signedQuantity(p.Side == Long, p.Quantity)
	qAll := q + qPos

	p.RealizedPnL = p.RealizedPnL.Add(decimal.NewFromFloat(pnl.Realized))
	p.UnrealizedPnL = decimal.NewFromFloat(pnl.Unrealized)
	p.AvgEntryPrice = pnl.AvgEntryPrice
	p.Quantity = uint64(math.Abs(qAll))
	if qAll >= 0 {
		p.Side = Long
	} else {
		p.Side = Short
	}
	return p
}

// OnMarkPrice recomputes the mark price, funding rate, and risk
// coefficients Z/C for every open position in a symbol, throttled by
// clockInterval. indexPrice is an exogenous input; index-price discovery
// itself is out of scope. now drives the funding accrual's elapsed-time
// term and is stamped onto each touched position as LastFundingTime.
// Returns the computed mark price and whether this call actually
// recomputed (false while throttled).
func (e *PositionEngine) OnMarkPrice(book *matching.OrderBook, symbol matching.Symbol, indexPrice matching.Price, now time.Time) (matching.Price, bool) {
	e.tick++
	if e.clockInterval > 0 && e.tick < e.clockInterval {
		return 0, false
	}
	e.tick = 0

	mark, ok := markPrice(book)
	if !ok {
		return 0, false
	}

	isInverse := symbol.IsInverse()
	z, c := fundingCoefficient(mark, indexPrice, isInverse)
	div := float64(symbol.QuantityDivisor)

	for key, p := range e.positions {
		if key.SymbolID != symbol.ID {
			continue
		}
		p.MarkPrice = mark
		p.IndexPrice = indexPrice
		p.Z = z
		p.C = c

		// funding += q_signed/divisor * C/Z * Δt_ms/60000, accrued only
		// once a prior tick has established a baseline timestamp.
		if !p.LastFundingTime.IsZero() && z != 0 {
			qSigned := signedQuantity(p.Side == Long, p.Quantity)
			deltaMs := float64(now.Sub(p.LastFundingTime).Milliseconds())
			p.Funding += qSigned / div * (c / z) * (deltaMs / 60000)
		}
		p.LastFundingTime = now
	}
	return mark, true
}

// markPrice is the midpoint of best bid/ask, or 0 ("no mark") when the
// book is one-sided or empty.
func markPrice(book *matching.OrderBook) (matching.Price, bool) {
	bid, bok := book.BestBidPrice()
	ask, aok := book.BestAskPrice()
	if !bok || !aok {
		return 0, false
	}
	return matching.Price(math.Round(float64(bid+ask) / 2.0)), true
}

// fundingRate: vanilla contracts pay the long side when mark trades
// above index; inverse contracts invert the sign since PnL there is
// already denominated in the base asset.
func fundingRate(mark, index matching.Price, isInverse bool) float64 {
	if index == 0 {
		return 0
	}
	if !isInverse {
		return (float64(mark) - float64(index)) / float64(index)
	}
	if mark == 0 {
		return 0
	}
	return (float64(index) - float64(mark)) / float64(mark)
}

// fundingCoefficient: risk exposure scaled by price (vanilla) or by
// 1/price (inverse).
func fundingCoefficient(mark, index matching.Price, isInverse bool) (z, c float64) {
	fr := fundingRate(mark, index, isInverse)
	riskZ := math.Abs(fr)
	riskC := fr * fr
	if !isInverse {
		riskZ *= float64(mark)
		riskC *= float64(mark) * float64(mark)
	} else if index != 0 {
		riskZ /= float64(index)
		riskC /= float64(index) * float64(index)
	}
	return riskZ, riskC
}
