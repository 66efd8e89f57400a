package indexer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/metrics"
	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/parser"
	"hypercertsIndexer/internal/queue"
	"hypercertsIndexer/internal/storage"
)

// RunConfig holds runtime settings shared by all pairing loops.
type RunConfig struct {
	BatchSize    uint64
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// LogRangeLimit caps the blocks per FilterLogs call; zero fetches a
	// window in one call.
	LogRangeLimit uint64
}

// LogSource reads logs and block data from a chain.
type LogSource interface {
	HeadSource
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Pairing is one (contract, event) loop. Attested pairings carry the
// schemas whose attestations are indexed.
type Pairing struct {
	model.ContractEvent
	Schemas []model.AttestationSchema
}

// Deps are the collaborators shared by every Runner.
type Deps struct {
	Source   LogSource
	Cursors  CursorStore
	Decoder  *events.Decoder
	Registry *parser.Registry
	Queue    *queue.Queue
	// Sink receives every fetched raw log when set.
	Sink storage.LogSink
}

// Pass summarizes one ingestion window.
type Pass struct {
	Window   BlockRange
	Fetched  int
	Report   parser.BatchReport
	Advanced bool
	// CaughtUp is false when the window stopped short of the head.
	CaughtUp bool
}

// Runner ingests one pairing: it fetches a window of logs, processes them
// in block order and advances the cursor.
type Runner struct {
	cfg     RunConfig
	pairing Pairing
	deps    Deps
	tracker *Tracker
	logger  *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, pairing Pairing, deps Deps, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		pairing: pairing,
		deps:    deps,
		tracker: NewTracker(deps.Cursors, queuedHead{source: deps.Source, queue: deps.Queue}),
		logger: logger.With(
			zap.Uint64("chain_id", pairing.ChainID),
			zap.String("contract", pairing.ContractAddress.Hex()),
			zap.String("event", pairing.EventName),
		),
	}
}

// Run executes passes until ctx is done. A failed pass is logged and the
// loop continues after the poll interval.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}
	chainLabel := strconv.FormatUint(r.pairing.ChainID, 10)

	for {
		started := time.Now()
		pass, err := r.RunOnce(ctx)
		metrics.WindowLatency.WithLabelValues(chainLabel, r.pairing.EventName).Observe(time.Since(started).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.WindowErrors.WithLabelValues(chainLabel, r.pairing.EventName).Inc()
			r.logger.Warn("ingestion pass failed", zap.Error(err))
		}

		if err == nil && pass.Advanced && !pass.CaughtUp {
			continue
		}
		timer := time.NewTimer(r.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (r *Runner) validate() error {
	if r.deps.Source == nil {
		return fmt.Errorf("log source is nil")
	}
	if r.deps.Cursors == nil {
		return fmt.Errorf("cursor store is nil")
	}
	if r.deps.Decoder == nil || r.deps.Registry == nil {
		return fmt.Errorf("decoder and registry are required")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be greater than zero")
	}
	return nil
}

// RunOnce processes the next window. The cursor advances to the window end
// only when no log failed for a transient reason.
func (r *Runner) RunOnce(ctx context.Context) (Pass, error) {
	var pass Pass

	topics, ok, err := r.topics()
	if err != nil || !ok {
		return pass, err
	}

	var (
		window BlockRange
		found  bool
	)
	err = r.retry(ctx, "next window", func(ctx context.Context) error {
		var err error
		window, found, err = r.tracker.NextWindow(ctx, r.pairing.ContractID, r.pairing.EventID, r.pairing.StartBlock, r.cfg.BatchSize)
		return err
	})
	if err != nil {
		return pass, err
	}
	if !found {
		pass.CaughtUp = true
		return pass, nil
	}
	pass.Window = window

	logs, err := r.fetch(ctx, window, topics)
	if err != nil {
		return pass, err
	}
	sortLogs(logs)
	pass.Fetched = len(logs)

	items, records, err := r.prepare(ctx, logs, &pass.Report)
	if err != nil {
		return pass, err
	}
	if r.deps.Sink != nil {
		if err := r.deps.Sink.PutLogBatch(records); err != nil {
			return pass, fmt.Errorf("store raw logs: %w", err)
		}
	}

	batch := r.deps.Registry.ProcessBatch(ctx, items, r.exec)
	pass.Report.Succeeded += batch.Succeeded
	pass.Report.Failed += batch.Failed
	pass.Report.StorageFailed += batch.StorageFailed
	pass.Report.EnrichFailed += batch.EnrichFailed
	pass.Report.Records += batch.Records
	pass.Report.Failures = append(pass.Report.Failures, batch.Failures...)

	if pass.Report.Retryable() {
		r.logger.Warn("cursor held",
			zap.Uint64("from", window.From),
			zap.Uint64("to", window.To),
			zap.Int("storage_failed", pass.Report.StorageFailed),
			zap.Int("enrich_failed", pass.Report.EnrichFailed),
		)
		return pass, nil
	}

	if err := r.tracker.Advance(ctx, r.pairing.ContractID, r.pairing.EventID, window.To); err != nil {
		return pass, err
	}
	pass.Advanced = true
	metrics.CursorBlock.WithLabelValues(
		strconv.FormatUint(r.pairing.ChainID, 10), r.pairing.ContractAddress.Hex(), r.pairing.EventName,
	).Set(float64(window.To))

	pass.CaughtUp = window.To-window.From < r.cfg.BatchSize

	r.logger.Info("window complete",
		zap.Uint64("from", window.From),
		zap.Uint64("to", window.To),
		zap.Int("logs", pass.Fetched),
		zap.Int("stored", pass.Report.Succeeded),
		zap.Int("failed", pass.Report.Failed),
	)
	return pass, nil
}

// fetch reads the logs of window, split into LogRangeLimit chunks. Each
// chunk is retried on its own.
func (r *Runner) fetch(ctx context.Context, window BlockRange, topics [][]common.Hash) ([]types.Log, error) {
	chunks := []BlockRange{window}
	if r.cfg.LogRangeLimit > 0 {
		var err error
		chunks, err = SplitRange(window.From, window.To, r.cfg.LogRangeLimit)
		if err != nil {
			return nil, err
		}
	}

	var logs []types.Log
	for _, chunk := range chunks {
		r.logger.Debug("fetch logs", zap.Uint64("from", chunk.From), zap.Uint64("to", chunk.To))
		var part []types.Log
		err := r.retry(ctx, "filter logs", func(ctx context.Context) error {
			var err error
			part, err = queue.Do(ctx, r.deps.Queue, func(ctx context.Context) ([]types.Log, error) {
				return r.deps.Source.FilterLogs(ctx, chunk.From, chunk.To, []common.Address{r.pairing.ContractAddress}, topics)
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", chunk.From, chunk.To, err)
		}
		logs = append(logs, part...)
	}
	return logs, nil
}

// queuedHead reads the chain head through the request queue.
type queuedHead struct {
	source HeadSource
	queue  *queue.Queue
}

func (h queuedHead) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return queue.Do(ctx, h.queue, h.source.LatestBlockNumber)
}

// exec runs one log's processing as a queue task. A task the queue could
// not run counts as a storage failure so the window is retried.
func (r *Runner) exec(ctx context.Context, fn func(context.Context) parser.Outcome) parser.Outcome {
	out, err := queue.Do(ctx, r.deps.Queue, func(ctx context.Context) (parser.Outcome, error) {
		return fn(ctx), nil
	})
	if err != nil {
		return parser.Outcome{Stage: parser.StageStore, Err: model.WrapStorage("queue", err)}
	}
	return out
}

func (r *Runner) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Warn(op+" failed", zap.Error(err))
		}
		return err
	})
}

// topics builds the log filter. Attested logs are narrowed to the indexed
// schemas; ok is false when there are none.
func (r *Runner) topics() ([][]common.Hash, bool, error) {
	topic0, ok := r.deps.Decoder.Topic0(r.pairing.EventName)
	if !ok {
		return nil, false, fmt.Errorf("event %s has no known signature", r.pairing.EventName)
	}
	if r.pairing.EventName != events.EventAttested {
		return [][]common.Hash{{topic0}}, true, nil
	}
	if len(r.pairing.Schemas) == 0 {
		r.logger.Debug("no supported schemas; skipping attestations")
		return nil, false, nil
	}
	uids := make([]common.Hash, 0, len(r.pairing.Schemas))
	for _, sch := range r.pairing.Schemas {
		uids = append(uids, common.HexToHash(sch.UID))
	}
	return [][]common.Hash{{topic0}, nil, nil, uids}, true, nil
}

// prepare decodes logs and builds their parser contexts. Logs that cannot
// be decoded are reported as validation failures.
func (r *Runner) prepare(ctx context.Context, logs []types.Log, report *parser.BatchReport) ([]parser.Item, []model.LogRecord, error) {
	items := make([]parser.Item, 0, len(logs))
	records := make([]model.LogRecord, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		var ts uint64
		err := r.retry(ctx, "block timestamp", func(ctx context.Context) error {
			var err error
			ts, err = queue.Do(ctx, r.deps.Queue, func(ctx context.Context) (uint64, error) {
				return r.deps.Source.BlockTimestamp(ctx, log.BlockNumber)
			})
			return err
		})
		if err != nil {
			return nil, nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}
		records = append(records, model.NewLogRecord(r.pairing.ChainID, log, ts))

		raw, err := r.deps.Decoder.Decode(r.pairing.ChainID, log)
		if err != nil {
			raw = model.RawLog{
				ChainID:         r.pairing.ChainID,
				ContractAddress: log.Address,
				EventName:       r.pairing.EventName,
				BlockNumber:     log.BlockNumber,
				BlockHash:       log.BlockHash,
				TxHash:          log.TxHash,
				LogIndex:        log.Index,
			}
			report.Add(raw, parser.Outcome{Stage: parser.StageValidate, Err: model.NewValidationError(r.pairing.EventName, "", "%v", err)})
			r.logger.Warn("log not decoded",
				zap.Uint64("block", log.BlockNumber),
				zap.String("tx", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Error(err),
			)
			continue
		}
		items = append(items, parser.Item{Log: raw, Context: r.context(log, ts)})
	}
	return items, records, nil
}

func (r *Runner) context(log types.Log, ts uint64) model.ParserContext {
	pctx := model.ParserContext{
		EventName:       r.pairing.EventName,
		ChainID:         r.pairing.ChainID,
		EventID:         r.pairing.EventID,
		ContractID:      r.pairing.ContractID,
		ContractAddress: r.pairing.ContractAddress,
		Block: model.Block{
			Number:    log.BlockNumber,
			Hash:      log.BlockHash.Hex(),
			Timestamp: ts,
		},
	}
	if r.pairing.EventName == events.EventAttested && len(log.Topics) > 3 {
		for i := range r.pairing.Schemas {
			if strings.EqualFold(r.pairing.Schemas[i].UID, log.Topics[3].Hex()) {
				sch := r.pairing.Schemas[i]
				pctx.Schema = &sch
				break
			}
		}
	}
	return pctx
}

func sortLogs(logs []types.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
}
