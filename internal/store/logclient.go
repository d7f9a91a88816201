package store

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogClient is a StoreClient that logs chunk flushes instead of
// writing them anywhere durable; the default for cmd/gateway until a
// real external store (kdb+, timescale, whatever a deployment picks)
// is wired behind the same interface.
type LogClient struct {
	log zerolog.Logger
}

// NewLogClient builds a LogClient.
func NewLogClient() *LogClient {
	return &LogClient{log: log.With().Str("component", "store_log_client").Logger()}
}

func (c *LogClient) InsertOrders(_ context.Context, rows []OrderRow) error {
	c.log.Info().Int("rows", len(rows)).Msg("flush orders")
	return nil
}

func (c *LogClient) InsertTransactions(_ context.Context, rows []TransactionRow) error {
	c.log.Info().Int("rows", len(rows)).Msg("flush transactions")
	return nil
}

func (c *LogClient) UpsertPositions(_ context.Context, rows []PositionRow) error {
	c.log.Info().Int("rows", len(rows)).Msg("flush positions")
	return nil
}
