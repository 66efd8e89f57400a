package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hypercertsIndexer/internal/metrics"
	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/payload"
	"hypercertsIndexer/internal/queue"
)

// Store is the persistence the metadata fetcher needs.
type Store interface {
	ClaimsPendingMetadata(ctx context.Context, limit int) ([]model.ClaimRef, error)
	SaveClaimMetadata(ctx context.Context, claimID uuid.UUID, m model.ClaimMetadata, allowListURI string) error
	LinkAllowListURI(ctx context.Context, claimID uuid.UUID, uri string) error
}

// SyncReport counts claim outcomes of one pass.
type SyncReport struct {
	Stored      int
	Linked      int
	NoPayload   int
	FetchFailed int
	Invalid     int
	StoreFailed int
}

// MetadataFetcher stores metadata for claims that have none yet and links
// allow lists referenced by it. A claim stays pending until both are
// committed.
type MetadataFetcher struct {
	store   Store
	fetcher payload.Fetcher
	queue   *queue.Queue
	logger  *zap.Logger
}

func NewMetadataFetcher(store Store, fetcher payload.Fetcher, q *queue.Queue, logger *zap.Logger) *MetadataFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataFetcher{store: store, fetcher: fetcher, queue: q, logger: logger}
}

// Run syncs every interval until ctx is done.
func (f *MetadataFetcher) Run(ctx context.Context, interval time.Duration, limit int) error {
	if interval <= 0 {
		return fmt.Errorf("metadata interval must be greater than zero")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := f.Sync(ctx, limit); err != nil && ctx.Err() == nil {
			f.logger.Warn("metadata sync failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sync handles up to limit claims. Per-claim failures are counted; only a
// failed discovery query is returned.
func (f *MetadataFetcher) Sync(ctx context.Context, limit int) (SyncReport, error) {
	var report SyncReport
	refs, err := f.store.ClaimsPendingMetadata(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("discover claims: %w", err)
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		outcome, err := f.syncOne(ctx, ref)
		metrics.MetadataSynced.WithLabelValues(outcome).Inc()
		switch outcome {
		case "stored":
			report.Stored++
		case "linked":
			report.Linked++
		case "no_payload":
			report.NoPayload++
		case "fetch_failed":
			report.FetchFailed++
		case "invalid":
			report.Invalid++
		case "store_failed":
			report.StoreFailed++
		}
		if err != nil {
			f.logger.Warn("claim metadata not stored",
				zap.String("uri", ref.URI),
				zap.String("claim_id", ref.ID.String()),
				zap.String("outcome", outcome),
				zap.Error(err),
			)
		}
	}
	return report, nil
}

func (f *MetadataFetcher) syncOne(ctx context.Context, ref model.ClaimRef) (string, error) {
	// Metadata already stored, only the allow-list link is missing.
	if ref.AllowListURI != "" {
		if payload.IsNoPayload(ref.AllowListURI) {
			return "no_payload", nil
		}
		if err := f.store.LinkAllowListURI(ctx, ref.ID, strings.TrimSpace(ref.AllowListURI)); err != nil {
			return "store_failed", err
		}
		return "linked", nil
	}

	body, err := queue.Do(ctx, f.queue, func(ctx context.Context) ([]byte, error) {
		return f.fetcher.Fetch(ctx, ref.URI)
	})
	if err != nil {
		return "fetch_failed", err
	}
	if body == nil {
		return "no_payload", nil
	}

	m, err := ValidateMetadata(ref.URI, body)
	if err != nil {
		return "invalid", err
	}
	var link string
	if !payload.IsNoPayload(m.AllowListURI) {
		link = strings.TrimSpace(m.AllowListURI)
	}
	if err := f.store.SaveClaimMetadata(ctx, ref.ID, m, link); err != nil {
		return "store_failed", err
	}
	return "stored", nil
}
