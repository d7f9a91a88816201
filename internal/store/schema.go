// Package store batches matching-core events for an external tabular
// sink, grounded on matching_engine.cpp's appendOrdersChunk/
// appendTransactionsChunk/appendPositionsChunk kdb+ writer.
package store

import "time"

// OrderRow is one row of the external orders table (§6 schema).
type OrderRow struct {
	Time        time.Time
	OrderID     uint64
	SymbolID    uint32
	AccountID   uint64
	Side        uint8
	Type        uint8
	TimeInForce uint8
	Price       uint64
	StopPrice   uint64
	Quantity    uint64
	Status      uint8
}

// TransactionRow is one row of the external transactions (fills) table.
type TransactionRow struct {
	Time      time.Time
	OrderID   uint64
	SymbolID  uint32
	AccountID uint64
	Side      uint8
	Price     uint64
	Quantity  uint64
}

// PositionRow is one row of the external positions table, upserted
// keyed by (AccountID, SymbolID) rather than appended.
type PositionRow struct {
	Time          time.Time
	PositionID    uint64
	SymbolID      uint32
	AccountID     uint64
	Side          uint8
	AvgEntryPrice float64
	Quantity      uint64
	MarkPrice     uint64
	IndexPrice    uint64
	RiskZ         float64
	RiskC         float64
	Funding       float64
	RealizedPnL   float64
	UnrealizedPnL float64
}
