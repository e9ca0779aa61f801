package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/streams"
	"github.com/xraph/streams/analytics"
	audithook "github.com/xraph/streams/audit_hook"
	"github.com/xraph/streams/fee"
	"github.com/xraph/streams/httpapi"
	"github.com/xraph/streams/mirror"
	"github.com/xraph/streams/observability"
	"github.com/xraph/streams/reconcile"
	"github.com/xraph/streams/types"
	tokens "github.com/xraph/streams/token/memory"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an engine behind the read-only HTTP API",
		Long: `Start an engine backed by the configured store and an in-memory
token ledger, schedule registry reconciliation and serve preview, fee and
totals endpoints. --store selects memory, sqlite:<path> or postgres:<dsn>.
With --snapshot, previews are answered from a snapshot file instead of the
engine's store.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: config http_addr)")
	cmd.Flags().String("store", "", "Store backend (default: config store)")
	cmd.Flags().String("snapshot", "", "Serve previews from this snapshot file")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if st, _ := cmd.Flags().GetString("store"); st != "" {
		cfg.Store = st
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	snapshot, _ := cmd.Flags().GetString("snapshot")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, snapshot)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "network", cfg.Network, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// app is the wired serve process.
type app struct {
	engine    *streams.Engine
	scheduler *reconcile.Scheduler
	handler   http.Handler
	logger    *slog.Logger
}

func newApp(ctx context.Context, cfg *Config, logger *slog.Logger, snapshot string) (*app, error) {
	schedule, err := fee.ScheduleByName(cfg.FeeSchedule)
	if err != nil {
		return nil, err
	}

	nominated := make([]types.AssetID, 0, len(cfg.NominatedAssets))
	for _, a := range cfg.NominatedAssets {
		nominated = append(nominated, types.AssetID(a))
	}

	factory := observability.NewPrometheusFactory(nil)
	audit := audithook.New(audithook.RecorderFunc(func(_ context.Context, ev *audithook.AuditEvent) error {
		logger.Info("audit",
			"action", ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"outcome", ev.Outcome,
		)
		return nil
	}), audithook.WithLogger(logger))

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	opts := []streams.Option{
		streams.WithLogger(logger),
		streams.WithNetwork(streams.NetworkConfig{
			Name:            cfg.Network,
			FeeSchedule:     schedule,
			Escrow:          types.Address(cfg.Escrow),
			Treasury:        types.Address(cfg.Treasury),
			NominatedAssets: nominated,
		}),
		streams.WithEventConfig(cfg.EventBatchSize, cfg.FlushInterval),
		streams.WithPlugin(observability.NewMetricsExtension(factory)),
		streams.WithPlugin(audit),
	}
	if cfg.AMQPURL != "" {
		pub := analytics.Connect(cfg.AMQPURL, logger)
		opts = append(opts, streams.WithPlugin(analytics.New(pub, analytics.WithLogger(logger))))
	}

	eng := streams.New(st, tokens.New(), opts...)
	if err := eng.Start(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	rec := reconcile.New(st, reconcile.WithPlugins(eng.Plugins()), reconcile.WithLogger(logger))
	sched := reconcile.NewScheduler(rec, []string{cfg.Network}, cfg.ReconcileSchedule, logger)
	if err := sched.Start(); err != nil {
		_ = eng.Stop()
		return nil, err
	}

	var src mirror.Source = mirror.NewStoreSource(st)
	if snapshot != "" {
		fs, err := mirror.LoadFile(snapshot)
		if err != nil {
			<-sched.Stop().Done()
			_ = eng.Stop()
			return nil, err
		}
		src = fs
	}

	h := httpapi.NewHandler(mirror.New(src, schedule), st,
		httpapi.WithNetwork(cfg.Network),
		httpapi.WithClock(eng.Now),
		httpapi.WithPing(st.Ping),
		httpapi.WithLogger(logger),
		httpapi.WithMetrics(factory.Registry()),
	)

	return &app{
		engine:    eng,
		scheduler: sched,
		handler:   httpapi.NewRouter(h),
		logger:    logger,
	}, nil
}

func (a *app) close() {
	<-a.scheduler.Stop().Done()
	if err := a.engine.Stop(); err != nil {
		a.logger.Error("engine stop", "error", err)
	}
}
