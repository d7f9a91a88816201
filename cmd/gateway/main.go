package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/config"
	"fenrir/internal/matching"
	"fenrir/internal/metrics"
	"fenrir/internal/risk"
	"fenrir/internal/store"
	"fenrir/internal/wire"
)

// Exit codes per the external interface: 0 success/graceful shutdown,
// 1 store connection failure, 2 fatal engine error.
const (
	exitOK           = 0
	exitStoreFailure = 1
	exitEngineFatal  = 2
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed loading configuration")
	}

	storeClient, err := newStoreClient()
	if err != nil {
		log.Error().Err(err).Msg("failed connecting to external store")
		os.Exit(exitStoreFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reg := prometheus.NewRegistry()
	collectors := metrics.New(reg)

	manager := matching.NewMarketManager()
	manager.SetMetrics(collectors)

	t, _ := tomb.WithContext(ctx)
	writer := store.NewChunkWriter(t, storeClient, cfg.ChunkSize)
	storeAdapter := store.NewAdapter(writer, nil)

	positionEngine := risk.NewPositionEngine(0, cfg.ClockInterval)
	riskAdapter := risk.NewAdapter(positionEngine, manager.LookupSymbol, nil)
	riskAdapter.OnPosition = func(p risk.Position) {
		writer.UpsertPosition(store.PositionRow{
			PositionID:    p.ID,
			SymbolID:      p.SymbolID,
			AccountID:     p.AccountID,
			Side:          uint8(p.Side),
			AvgEntryPrice: p.AvgEntryPrice,
			Quantity:      p.Quantity,
			MarkPrice:     uint64(p.MarkPrice),
			IndexPrice:    uint64(p.IndexPrice),
			RiskZ:         p.Z,
			RiskC:         p.C,
			Funding:       p.Funding,
			RealizedPnL:   mustFloat(p.RealizedPnL),
			UnrealizedPnL: mustFloat(p.UnrealizedPnL),
		})
	}

	manager.SetHandler(matching.NewFanOutHandler(storeAdapter, riskAdapter))

	wireServer := wire.New(cfg.ListenAddr, cfg.ListenPort, manager)
	t.Go(func() error { return wireServer.Run(ctx) })

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	t.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	log.Info().Str("listen", cfg.ListenAddr).Int("port", cfg.ListenPort).Msg("gateway running")
	<-ctx.Done()

	wireServer.Shutdown()
	_ = metricsServer.Shutdown(context.Background())
	writer.Close()

	// The tomb is killed with context.Canceled when the signal context
	// ends; that is the graceful path, not an engine failure.
	if err := t.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("fatal engine error")
		os.Exit(exitEngineFatal)
	}
	os.Exit(exitOK)
}

func mustFloat(d interface{ InexactFloat64() float64 }) float64 {
	return d.InexactFloat64()
}

// newStoreClient returns the external store sink for this deployment.
// Swap in a real client (kdb+, timescale, whatever the operator picks)
// behind the same store.StoreClient interface; nothing else changes.
func newStoreClient() (store.StoreClient, error) {
	return store.NewLogClient(), nil
}
