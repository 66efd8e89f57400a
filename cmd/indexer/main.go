package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hypercertsIndexer/internal/chain"
	"hypercertsIndexer/internal/config"
	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/indexer"
	"hypercertsIndexer/internal/logger"
	"hypercertsIndexer/internal/metadata"
	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/payload"
	"hypercertsIndexer/internal/queue"
	"hypercertsIndexer/internal/reconcile"
	"hypercertsIndexer/internal/storage"
	"hypercertsIndexer/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Hypercerts event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the indexer",
		RunE:  runIndexer,
	}

	runCmd.Flags().StringSlice("chain-ids", nil, "chain ids to index (comma-separated)")
	runCmd.Flags().StringToString("rpc-urls", nil, "rpc url per chain (chain_id=url, comma-separated)")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per window")
	runCmd.Flags().Uint64("log-range-limit", 0, "max blocks per log request, 0 fetches a window at once")
	runCmd.Flags().Duration("poll-interval", 15*time.Second, "wait between passes once caught up")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Int("queue-concurrency", 8, "request queue workers")
	runCmd.Flags().Int("queue-size", 256, "request queue buffer")
	runCmd.Flags().Float64("queue-rps", 10, "request queue rate ceiling per second, 0 disables")
	runCmd.Flags().Int("queue-burst", 10, "request queue burst")
	runCmd.Flags().StringSlice("ipfs-gateways", nil, "IPFS gateway base URLs, tried in order")
	runCmd.Flags().Duration("http-timeout", 30*time.Second, "payload fetch timeout")
	runCmd.Flags().Duration("reconcile-interval", time.Minute, "allow-list reconcile interval")
	runCmd.Flags().Int("reconcile-batch", 50, "allow lists per reconcile pass")
	runCmd.Flags().Bool("reconcile-retry-invalid", false, "retry allow lists marked invalid")
	runCmd.Flags().Duration("metadata-interval", time.Minute, "claim metadata sync interval")
	runCmd.Flags().Int("metadata-batch", 50, "claims per metadata pass")
	runCmd.Flags().StringSlice("eas-schema-uids", nil, "indexed EAS schemas (chain_id=uid, comma-separated)")
	runCmd.Flags().String("raw-logs", "", "optional JSONL path receiving every fetched log")
	runCmd.Flags().String("metrics-addr", ":9090", "metrics listen address, empty disables")
	runCmd.Flags().String("sentry-dsn", "", "Sentry DSN")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one allow-list and metadata pass",
		RunE:  runReconcile,
	}
	reconcileCmd.Flags().AddFlagSet(runCmd.Flags())

	root.AddCommand(reconcileCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and register contracts",
		RunE:  runMigrate,
	}

	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().StringSlice("contracts", nil, "minter contracts (chain_id=address@start_block, comma-separated)")
	migrateCmd.Flags().StringToString("eas-start-block", nil, "index EAS from this block (chain_id=block, comma-separated)")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(migrateCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode and validate raw logs offline",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/decoded_events.jsonl", "output decoded events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().Uint64("chain-id", 0, "chain id for records that carry none")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	root.AddCommand(&cobra.Command{
		Use:   "token <id>",
		Short: "Split a token id into claim id and fraction index",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// services are the long-lived collaborators of run and reconcile.
type services struct {
	log      *logger.Logger
	store    *postgres.Store
	queue    *queue.Queue
	resolver *payload.Resolver
	clients  map[uint64]*chain.Client
}

func newServices(ctx context.Context, cfg config.Config) (*services, error) {
	log, err := logger.New(logger.Config{
		Level:     cfg.LogLevel,
		SentryDSN: cfg.SentryDSN,
		Tags:      map[string]string{"service": "hypercerts-indexer"},
	})
	if err != nil {
		return nil, err
	}
	s := &services{log: log, clients: make(map[uint64]*chain.Client)}

	s.store, err = postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s.queue, err = queue.New(queue.Config{
		Concurrency:   cfg.QueueConcurrency,
		QueueSize:     cfg.QueueSize,
		RatePerSecond: cfg.QueueRPS,
		Burst:         cfg.QueueBurst,
	}, log.Logger)
	if err != nil {
		s.close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	s.resolver = payload.NewResolver(
		payload.NewIPFSFetcher(httpClient, cfg.IPFSGateways, log.Logger),
		payload.NewHTTPSFetcher(httpClient, payload.RetryConfig{}, log.Logger),
		log.Logger,
	)

	for _, id := range cfg.ChainIDs {
		client, err := chain.NewClient(ctx, cfg.RPCURLs[id], id)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connect rpc for chain %d: %w", id, err)
		}
		s.clients[id] = client
	}
	return s, nil
}

func (s *services) close() {
	for _, client := range s.clients {
		client.Close()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	s.log.Close()
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.close()
	log := svc.log.Logger

	decoder, err := events.NewDecoder()
	if err != nil {
		return err
	}
	var sink storage.LogSink
	if cfg.RawLogs != "" {
		sink = storage.NewJsonlStorage(cfg.RawLogs)
	}

	deps := make(map[uint64]indexer.Deps, len(cfg.ChainIDs))
	var pairings []indexer.Pairing
	for _, id := range cfg.ChainIDs {
		client := svc.clients[id]
		if err := syncSchemas(ctx, client, svc, id, cfg.SchemaUIDs[id]); err != nil {
			return err
		}
		chainPairings, err := indexer.LoadPairings(ctx, svc.store, id)
		if err != nil {
			return err
		}
		if len(chainPairings) == 0 {
			log.Warn("no contracts registered for chain, run migrate with --contracts", zap.Uint64("chain_id", id))
		}
		pairings = append(pairings, chainPairings...)
		deps[id] = indexer.Deps{
			Source:   client,
			Cursors:  svc.store,
			Decoder:  decoder,
			Registry: indexer.NewRegistry(svc.store, client, log),
			Queue:    svc.queue,
			Sink:     sink,
		}
	}

	runCfg := indexer.RunConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		LogRangeLimit: cfg.LogRangeLimit,
	}
	reconciler := reconcile.New(svc.store, svc.resolver, svc.queue, reconcile.Config{
		BatchSize:    cfg.ReconcileBatch,
		RetryInvalid: cfg.ReconcileRetryInvalid,
	}, log)
	metadataFetcher := metadata.NewMetadataFetcher(svc.store, svc.resolver, svc.queue, log)

	tasks := []indexer.Task{
		{Name: "reconcile", Run: func(ctx context.Context) error {
			return reconciler.Run(ctx, cfg.ReconcileInterval)
		}},
		{Name: "metadata", Run: func(ctx context.Context) error {
			return metadataFetcher.Run(ctx, cfg.MetadataInterval, cfg.MetadataBatch)
		}},
	}
	if cfg.MetricsAddr != "" {
		tasks = append(tasks, indexer.Task{Name: "metrics", Run: func(ctx context.Context) error {
			return serveMetrics(ctx, cfg.MetricsAddr, log)
		}})
	}

	supervisor := indexer.NewSupervisor(func(p indexer.Pairing) *indexer.Runner {
		return indexer.NewRunner(runCfg, p, deps[p.ChainID], log)
	}, log, tasks...)

	log.Info("indexer start",
		zap.Uint64s("chain_ids", cfg.ChainIDs),
		zap.Int("pairings", len(pairings)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("queue_concurrency", cfg.QueueConcurrency),
		zap.String("raw_logs", cfg.RawLogs),
	)

	handle, err := supervisor.Start(ctx, pairings)
	if err != nil {
		return err
	}
	return handle.Wait()
}

// syncSchemas registers the configured schemas of a chain. Registry read
// failures are logged; the affected schemas are retried on the next start.
func syncSchemas(ctx context.Context, client *chain.Client, svc *services, chainID uint64, uids []string) error {
	if len(uids) == 0 {
		return nil
	}
	schemas, err := metadata.NewSchemaFetcher(client, svc.store, svc.queue, svc.log.Logger).Sync(ctx, chainID, uids)
	if err != nil {
		var cfgErr *model.ConfigurationError
		if errors.As(err, &cfgErr) {
			return err
		}
		svc.log.Warn("schema sync incomplete", zap.Uint64("chain_id", chainID), zap.Error(err))
	}
	svc.log.Info("schemas registered", zap.Uint64("chain_id", chainID), zap.Int("schemas", len(schemas)))
	return nil
}

func serveMetrics(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	}
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.close()
	log := svc.log.Logger

	for _, id := range cfg.ChainIDs {
		if err := syncSchemas(ctx, svc.clients[id], svc, id, cfg.SchemaUIDs[id]); err != nil {
			return err
		}
	}

	synced, err := metadata.NewMetadataFetcher(svc.store, svc.resolver, svc.queue, log).Sync(ctx, cfg.MetadataBatch)
	if err != nil {
		return err
	}
	report, err := reconcile.New(svc.store, svc.resolver, svc.queue, reconcile.Config{
		BatchSize:    cfg.ReconcileBatch,
		RetryInvalid: cfg.ReconcileRetryInvalid,
	}, log).Reconcile(ctx)
	if err != nil {
		return err
	}

	log.Info("reconcile complete",
		zap.Int("metadata_stored", synced.Stored),
		zap.Int("metadata_invalid", synced.Invalid),
		zap.Int("allowlists_parsed", report.Parsed),
		zap.Int("allowlists_invalid", report.Invalid),
		zap.Int("allowlists_fetch_failed", report.FetchFailed),
		zap.Int("allowlists_store_failed", report.StoreFailed),
	)
	return nil
}
