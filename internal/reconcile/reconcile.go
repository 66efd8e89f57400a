// Package reconcile expands off-chain allow lists into per-holder records.
//
// Each allow list moves through fetch, validate, expand and commit. A row
// leaves the unparsed set only once its records and parsed flag are both
// committed, so a pass that stops halfway is finished by the next one.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hypercertsIndexer/internal/merkle"
	"hypercertsIndexer/internal/metrics"
	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/payload"
	"hypercertsIndexer/internal/queue"
)

// Store is the persistence the reconciler needs.
type Store interface {
	UnparsedAllowLists(ctx context.Context, limit int, retryInvalid bool) ([]model.UnparsedAllowList, error)
	SaveAllowListData(ctx context.Context, dataID uuid.UUID, root string, data []byte) error
	MarkAllowListInvalid(ctx context.Context, dataID uuid.UUID) error
	InsertAllowListRecords(ctx context.Context, listID uuid.UUID, records []model.AllowListRecord) error
	MarkAllowListParsed(ctx context.Context, listID, dataID uuid.UUID) error
}

// Config controls one reconciliation pass.
type Config struct {
	BatchSize    int
	RetryInvalid bool
}

// Outcome labels for a reconciled row.
const (
	OutcomeParsed      = "parsed"
	OutcomeNoPayload   = "no_payload"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeInvalid     = "invalid"
	OutcomeStoreFailed = "store_failed"
)

// Report counts row outcomes of one pass.
type Report struct {
	Parsed      int
	NoPayload   int
	FetchFailed int
	Invalid     int
	StoreFailed int
}

func (r *Report) add(outcome string) {
	switch outcome {
	case OutcomeParsed:
		r.Parsed++
	case OutcomeNoPayload:
		r.NoPayload++
	case OutcomeFetchFailed:
		r.FetchFailed++
	case OutcomeInvalid:
		r.Invalid++
	case OutcomeStoreFailed:
		r.StoreFailed++
	}
}

// Total returns the number of rows handled.
func (r Report) Total() int {
	return r.Parsed + r.NoPayload + r.FetchFailed + r.Invalid + r.StoreFailed
}

// Reconciler discovers unparsed allow lists and expands them.
type Reconciler struct {
	store   Store
	fetcher payload.Fetcher
	queue   *queue.Queue
	cfg     Config
	logger  *zap.Logger
}

// New builds a Reconciler. Fetches go through q when it is not nil.
func New(store Store, fetcher payload.Fetcher, q *queue.Queue, cfg Config, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Reconciler{store: store, fetcher: fetcher, queue: q, cfg: cfg, logger: logger}
}

// Run reconciles every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("reconcile interval must be greater than zero")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Reconcile(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("reconcile pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Reconcile runs one pass. Per-row failures are counted in the report;
// only a failed discovery query is returned as an error.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	var report Report
	rows, err := r.store.UnparsedAllowLists(ctx, r.cfg.BatchSize, r.cfg.RetryInvalid)
	if err != nil {
		return report, fmt.Errorf("discover allow lists: %w", err)
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		outcome, err := r.reconcileOne(ctx, row)
		report.add(outcome)
		metrics.AllowListsReconciled.WithLabelValues(outcome).Inc()
		if err != nil {
			r.logger.Warn("allow list not parsed",
				zap.String("uri", row.Data.URI),
				zap.String("list_id", row.ListID.String()),
				zap.String("outcome", outcome),
				zap.Error(err),
			)
		}
	}

	if len(rows) > 0 {
		r.logger.Info("reconcile pass complete",
			zap.Int("parsed", report.Parsed),
			zap.Int("no_payload", report.NoPayload),
			zap.Int("fetch_failed", report.FetchFailed),
			zap.Int("invalid", report.Invalid),
			zap.Int("store_failed", report.StoreFailed),
		)
	}
	return report, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, row model.UnparsedAllowList) (string, error) {
	body := row.Data.Data
	if len(body) == 0 {
		if payload.IsNoPayload(row.Data.URI) {
			return OutcomeNoPayload, nil
		}
		fetched, err := queue.Do(ctx, r.queue, func(ctx context.Context) ([]byte, error) {
			return r.fetcher.Fetch(ctx, row.Data.URI)
		})
		if err != nil {
			return OutcomeFetchFailed, err
		}
		if fetched == nil {
			return OutcomeNoPayload, nil
		}
		body = fetched
	}

	tree, records, err := r.validate(row, body)
	if err != nil {
		if storeErr := r.store.MarkAllowListInvalid(ctx, row.Data.ID); storeErr != nil {
			return OutcomeStoreFailed, errors.Join(err, storeErr)
		}
		return OutcomeInvalid, err
	}

	if len(row.Data.Data) == 0 || row.Data.Root == "" {
		// Stored in object form whichever form was fetched.
		canonical, err := json.Marshal(tree.Dump())
		if err != nil {
			return OutcomeStoreFailed, err
		}
		if err := r.store.SaveAllowListData(ctx, row.Data.ID, tree.Root().Hex(), canonical); err != nil {
			return OutcomeStoreFailed, err
		}
	}

	if err := r.store.InsertAllowListRecords(ctx, row.ListID, records); err != nil {
		return OutcomeStoreFailed, err
	}
	if err := r.store.MarkAllowListParsed(ctx, row.ListID, row.Data.ID); err != nil {
		return OutcomeStoreFailed, err
	}
	return OutcomeParsed, nil
}

// validate parses body as a Merkle tree, checks it against the known root
// and expands its leaves.
func (r *Reconciler) validate(row model.UnparsedAllowList, body []byte) (*merkle.Tree, []model.AllowListRecord, error) {
	tree, err := merkle.ParseEither(body)
	if err == nil {
		err = tree.VerifyRoot(row.Data.Root)
	}
	var records []model.AllowListRecord
	if err == nil {
		records, err = expand(tree)
	}
	if err != nil {
		return nil, nil, &model.TreeError{URI: row.Data.URI, Err: err}
	}
	return tree, records, nil
}

func expand(tree *merkle.Tree) ([]model.AllowListRecord, error) {
	entries, err := tree.Entries()
	if err != nil {
		return nil, err
	}
	records := make([]model.AllowListRecord, 0, len(entries))
	for _, e := range entries {
		proof := make([]string, len(e.Proof))
		for i, p := range e.Proof {
			proof[i] = p.Hex()
		}
		records = append(records, model.AllowListRecord{
			UserAddress: e.Address.Hex(),
			Units:       e.Units,
			Entry:       e.Index,
			Leaf:        e.Leaf.Hex(),
			Proof:       proof,
		})
	}
	return records, nil
}
