package indexer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"hypercertsIndexer/internal/chain"
	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/model"
	"hypercertsIndexer/internal/parser"
	"hypercertsIndexer/internal/token"
)

// RecordStore persists validated event records.
type RecordStore interface {
	StoreClaims(ctx context.Context, claims []model.ClaimStored) error
	StoreTransfers(ctx context.Context, chainID uint64, transfers []model.TokenTransfer, fractions []model.Fraction) error
	UpsertFractions(ctx context.Context, fractions []model.Fraction) error
	StoreAllowlistCreated(ctx context.Context, created []model.AllowlistCreated) error
	MarkLeavesClaimed(ctx context.Context, claimed []model.LeafClaimed) error
	StoreAttestations(ctx context.Context, attestations []model.AttestationData) error
}

// ChainReader serves the contract reads some events need.
type ChainReader interface {
	UnitsOf(ctx context.Context, contract common.Address, tokenID *big.Int, block uint64) (*big.Int, error)
	GetAttestation(ctx context.Context, eas common.Address, uid common.Hash) (chain.Attestation, error)
}

// NewRegistry binds every indexed event to its validator and store.
func NewRegistry(store RecordStore, reader ChainReader, logger *zap.Logger) *parser.Registry {
	b := binders{store: store, reader: reader}
	r := parser.NewRegistry(logger)

	r.Register(events.EventClaimStored, parser.Binder[model.ClaimStored]{
		Validate: events.ValidateClaimStored,
		Store: func(ctx context.Context, records []model.ClaimStored, _ model.ParserContext) error {
			return store.StoreClaims(ctx, records)
		},
	})
	r.Register(events.EventTransferSingle, parser.Binder[model.TokenTransfer]{
		Validate: events.ValidateTransferSingle,
		Store:    b.storeTransfers,
	})
	r.Register(events.EventTransferBatch, parser.Binder[model.TokenTransfer]{
		Validate: events.ValidateTransferBatch,
		Store:    b.storeTransfers,
	})
	r.Register(events.EventValueTransfer, parser.Binder[model.ValueTransfer]{
		Validate: events.ValidateValueTransfer,
		Store:    b.storeValueTransfers,
	})
	r.Register(events.EventBatchValueTransfer, parser.Binder[model.ValueTransfer]{
		Validate: events.ValidateBatchValueTransfer,
		Store:    b.storeValueTransfers,
	})
	r.Register(events.EventLeafClaimed, parser.Binder[model.LeafClaimed]{
		Validate: events.ValidateLeafClaimed,
		Store: func(ctx context.Context, records []model.LeafClaimed, _ model.ParserContext) error {
			return store.MarkLeavesClaimed(ctx, records)
		},
	})
	r.Register(events.EventAllowlistCreated, parser.Binder[model.AllowlistCreated]{
		Validate: events.ValidateAllowlistCreated,
		Store: func(ctx context.Context, records []model.AllowlistCreated, _ model.ParserContext) error {
			return store.StoreAllowlistCreated(ctx, records)
		},
	})
	r.Register(events.EventAttested, parser.Binder[model.AttestationData]{
		Enrich:   b.enrichAttested,
		Validate: events.ValidateAttested,
		Store: func(ctx context.Context, records []model.AttestationData, _ model.ParserContext) error {
			return store.StoreAttestations(ctx, records)
		},
	})
	return r
}

type binders struct {
	store  RecordStore
	reader ChainReader
}

// storeTransfers records transfers together with the state of every
// fraction they touched, read at the log's block.
func (b binders) storeTransfers(ctx context.Context, records []model.TokenTransfer, pctx model.ParserContext) error {
	fractions := make([]model.Fraction, 0, len(records))
	for _, t := range records {
		if t.IsClaim {
			continue
		}
		units, err := b.reader.UnitsOf(ctx, pctx.ContractAddress, t.TokenID, t.BlockNumber)
		if err != nil {
			return fmt.Errorf("units of %s: %w", t.TokenID, err)
		}
		fractions = append(fractions, model.Fraction{
			ContractsID: t.ContractsID,
			ClaimID:     t.ClaimID,
			TokenID:     t.TokenID,
			Owner:       t.To,
			Units:       units,
			BlockNumber: t.BlockNumber,
		})
	}
	return b.store.StoreTransfers(ctx, pctx.ChainID, records, fractions)
}

// storeValueTransfers refreshes the units of both fractions of each
// transfer. Owners are left as stored.
func (b binders) storeValueTransfers(ctx context.Context, records []model.ValueTransfer, pctx model.ParserContext) error {
	var fractions []model.Fraction
	for _, v := range records {
		for _, id := range []*big.Int{v.FromTokenID, v.ToTokenID} {
			if !token.IsFraction(id) {
				continue
			}
			units, err := b.reader.UnitsOf(ctx, pctx.ContractAddress, id, v.BlockNumber)
			if err != nil {
				return fmt.Errorf("units of %s: %w", id, err)
			}
			fractions = append(fractions, model.Fraction{
				ContractsID: v.ContractsID,
				ClaimID:     v.ClaimID,
				TokenID:     id,
				Units:       units,
				BlockNumber: v.BlockNumber,
			})
		}
	}
	return b.store.UpsertFractions(ctx, fractions)
}

// enrichAttested reads the attestation an Attested log refers to from the
// EAS contract that emitted it. A log without a usable uid is passed on
// unchanged and rejected by validation.
func (b binders) enrichAttested(ctx context.Context, log model.RawLog, pctx model.ParserContext) (model.RawLog, error) {
	uid, err := events.AttestationUID(log)
	if err != nil {
		return log, nil
	}
	att, err := b.reader.GetAttestation(ctx, pctx.ContractAddress, uid)
	if err != nil {
		return log, fmt.Errorf("get attestation %s: %w", uid.Hex(), err)
	}

	params := make(map[string]interface{}, len(log.Params)+1)
	for k, v := range log.Params {
		params[k] = v
	}
	params[events.AttestationParam] = att.Params()
	log.Params = params
	return log, nil
}
