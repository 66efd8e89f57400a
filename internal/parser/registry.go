package parser

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"hypercertsIndexer/internal/metrics"
	"hypercertsIndexer/internal/model"
)

// Item is a log with the context it is processed under.
type Item struct {
	Log     model.RawLog
	Context model.ParserContext
}

// Failure describes one log that was not stored.
type Failure struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint   `json:"log_index"`
	Event       string `json:"event"`
	Stage       Stage  `json:"stage"`
	Reason      string `json:"reason"`
}

// BatchReport summarizes a processed batch.
type BatchReport struct {
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	StorageFailed int       `json:"storage_failed"`
	EnrichFailed  int       `json:"enrich_failed"`
	Records       int       `json:"records"`
	Failures      []Failure `json:"failures,omitempty"`
}

// Add folds a log outcome into the report.
func (r *BatchReport) Add(log model.RawLog, outcome Outcome) {
	if outcome.Stored() {
		r.Succeeded++
		r.Records += outcome.Records
		return
	}
	r.Failed++
	switch outcome.Stage {
	case StageStore:
		r.StorageFailed++
	case StageEnrich:
		r.EnrichFailed++
	}
	r.Failures = append(r.Failures, Failure{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    log.LogIndex,
		Event:       log.EventName,
		Stage:       outcome.Stage,
		Reason:      outcome.Err.Error(),
	})
}

// Retryable reports whether a log failed for a transient reason, so the
// window it came from must be processed again.
func (r BatchReport) Retryable() bool {
	return r.StorageFailed > 0 || r.EnrichFailed > 0
}

// ExecFunc runs a log's processing, e.g. through the request queue.
type ExecFunc func(ctx context.Context, fn func(context.Context) Outcome) Outcome

// Registry dispatches logs to the processor registered for their event.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Processor
	logger     *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{processors: make(map[string]Processor), logger: logger}
}

// Register binds a processor to an event name, replacing any previous one.
func (r *Registry) Register(event string, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[event] = p
}

// Process processes one log. Unknown events fail validation.
func (r *Registry) Process(ctx context.Context, log model.RawLog, pctx model.ParserContext) Outcome {
	r.mu.RLock()
	p, ok := r.processors[log.EventName]
	r.mu.RUnlock()
	if !ok {
		return failed(StageValidate, model.NewValidationError(log.EventName, "", "no processor registered"))
	}
	return p.Process(ctx, log, pctx)
}

// ProcessBatch processes items in order, one at a time. exec may be nil.
func (r *Registry) ProcessBatch(ctx context.Context, items []Item, exec ExecFunc) BatchReport {
	var report BatchReport
	for _, item := range items {
		item := item
		run := func(ctx context.Context) Outcome {
			return r.Process(ctx, item.Log, item.Context)
		}
		var outcome Outcome
		if exec != nil {
			outcome = exec(ctx, run)
		} else {
			outcome = run(ctx)
		}
		report.Add(item.Log, outcome)
		r.observe(item.Log, outcome)
	}
	return report
}

func (r *Registry) observe(log model.RawLog, outcome Outcome) {
	status := "stored"
	if !outcome.Stored() {
		status = fmt.Sprintf("failed_%s", outcome.Stage)
	}
	metrics.LogsProcessed.WithLabelValues(strconv.FormatUint(log.ChainID, 10), log.EventName, status).Inc()
	if outcome.Stored() {
		return
	}
	r.logger.Warn("log not stored",
		zap.Uint64("chain_id", log.ChainID),
		zap.String("contract", log.ContractAddress.Hex()),
		zap.String("event", log.EventName),
		zap.Uint64("block", log.BlockNumber),
		zap.String("tx", log.TxHash.Hex()),
		zap.Uint("log_index", log.LogIndex),
		zap.String("stage", string(outcome.Stage)),
		zap.Error(outcome.Err),
	)
}
