package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hypercertsIndexer/internal/chain"
	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/queue"
)

// SchemaReader reads schema registry entries.
type SchemaReader interface {
	GetSchema(ctx context.Context, registry common.Address, uid common.Hash) (chain.SchemaRecord, error)
}

// SchemaStore persists supported schemas.
type SchemaStore interface {
	UpsertSchema(ctx context.Context, sch model.AttestationSchema) (uuid.UUID, error)
}

// SchemaFetcher registers the EAS schemas whose attestations are indexed.
type SchemaFetcher struct {
	reader SchemaReader
	store  SchemaStore
	queue  *queue.Queue
	logger *zap.Logger
}

func NewSchemaFetcher(reader SchemaReader, store SchemaStore, q *queue.Queue, logger *zap.Logger) *SchemaFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaFetcher{reader: reader, store: store, queue: q, logger: logger}
}

// Sync reads each schema uid from the chain's registry and upserts it.
// Every uid is attempted; failures are joined into the returned error.
func (f *SchemaFetcher) Sync(ctx context.Context, chainID uint64, uids []string) ([]model.AttestationSchema, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	c, err := chain.Lookup(chainID)
	if err != nil {
		return nil, err
	}
	if !c.HasEAS() {
		return nil, &model.ConfigurationError{Key: "eas-schema-uids", Reason: fmt.Sprintf("chain %d has no EAS deployment", chainID)}
	}

	var (
		out  []model.AttestationSchema
		errs []error
	)
	for _, raw := range uids {
		sch, err := f.syncOne(ctx, c, raw)
		if err != nil {
			f.logger.Warn("schema not registered", zap.Uint64("chain_id", chainID), zap.String("uid", raw), zap.Error(err))
			errs = append(errs, fmt.Errorf("schema %s: %w", raw, err))
			continue
		}
		out = append(out, sch)
	}
	return out, errors.Join(errs...)
}

func (f *SchemaFetcher) syncOne(ctx context.Context, c chain.Chain, raw string) (model.AttestationSchema, error) {
	b, err := hexutil.Decode(raw)
	if err != nil || len(b) != common.HashLength {
		return model.AttestationSchema{}, &model.ConfigurationError{Key: "eas-schema-uids", Reason: fmt.Sprintf("invalid uid %q", raw)}
	}
	uid := common.BytesToHash(b)

	rec, err := queue.Do(ctx, f.queue, func(ctx context.Context) (chain.SchemaRecord, error) {
		return f.reader.GetSchema(ctx, c.SchemaRegistry, uid)
	})
	if err != nil {
		return model.AttestationSchema{}, err
	}
	if common.Hash(rec.Uid) != uid {
		return model.AttestationSchema{}, fmt.Errorf("not found in registry %s", c.SchemaRegistry.Hex())
	}
	if _, err := events.ParseSchema(rec.Schema); err != nil {
		return model.AttestationSchema{}, model.NewValidationError("schema", "schema", "%v", err)
	}

	sch := model.AttestationSchema{
		ChainID:   c.ID,
		UID:       uid.Hex(),
		Schema:    rec.Schema,
		Resolver:  rec.Resolver.Hex(),
		Revocable: rec.Revocable,
	}
	id, err := f.store.UpsertSchema(ctx, sch)
	if err != nil {
		return model.AttestationSchema{}, err
	}
	sch.ID = id
	return sch, nil
}
