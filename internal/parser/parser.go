// Package parser binds event validators to storage routines and reports
// per-log outcomes for a batch of logs.
package parser

import (
	"context"
	"fmt"

	"hypercertsIndexer/internal/model"
)

// Stage names the pipeline step a log failed in.
type Stage string

const (
	StageEnrich   Stage = "enrich"
	StageValidate Stage = "validate"
	StageStore    Stage = "store"
)

// Outcome is the result of processing one log. A zero Stage means the log
// was stored.
type Outcome struct {
	Records int
	Stage   Stage
	Err     error
}

// Stored reports whether the log completed every stage.
func (o Outcome) Stored() bool { return o.Err == nil }

func stored(records int) Outcome { return Outcome{Records: records} }

func failed(stage Stage, err error) Outcome { return Outcome{Stage: stage, Err: err} }

// Processor processes a single decoded log.
type Processor interface {
	Process(ctx context.Context, log model.RawLog, pctx model.ParserContext) Outcome
}

// EnrichFunc performs the I/O some events need before validation and
// returns the log with the extra parameters added.
type EnrichFunc func(ctx context.Context, log model.RawLog, pctx model.ParserContext) (model.RawLog, error)

// ValidateFunc is a pure event validator.
type ValidateFunc[R any] func(log model.RawLog, pctx model.ParserContext) ([]R, error)

// StoreFunc persists validated records.
type StoreFunc[R any] func(ctx context.Context, records []R, pctx model.ParserContext) error

// Binder pairs a validator with the storage routine for its records.
type Binder[R any] struct {
	Enrich   EnrichFunc
	Validate ValidateFunc[R]
	Store    StoreFunc[R]
}

// Process runs enrich, validate and store in order. It never returns an
// error; failures are reported in the Outcome.
func (b Binder[R]) Process(ctx context.Context, log model.RawLog, pctx model.ParserContext) Outcome {
	if b.Validate == nil || b.Store == nil {
		return failed(StageValidate, fmt.Errorf("binder for %s is incomplete", log.EventName))
	}
	if b.Enrich != nil {
		enriched, err := b.Enrich(ctx, log, pctx)
		if err != nil {
			return failed(StageEnrich, err)
		}
		log = enriched
	}

	records, err := b.Validate(log, pctx)
	if err != nil {
		return failed(StageValidate, err)
	}
	if len(records) == 0 {
		return stored(0)
	}
	if err := b.Store(ctx, records, pctx); err != nil {
		return failed(StageStore, model.WrapStorage(pctx.EventName, err))
	}
	return stored(len(records))
}
