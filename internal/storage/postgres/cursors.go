package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hypercertsIndexer/internal/model"
)

// ContractEvents lists the (contract, event) pairings seeded for a chain.
func (s *Store) ContractEvents(ctx context.Context, chainID uint64) ([]model.ContractEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.chain_id, c.contract_address, c.start_block, e.id, e.name,
		       COALESCE(ce.last_block_indexed, 0)
		FROM contract_events ce
		JOIN contracts c ON c.id = ce.contract_id
		JOIN events e ON e.id = ce.event_id
		WHERE c.chain_id = $1
		ORDER BY c.contract_address, e.name
	`, int64(chainID))
	if err != nil {
		return nil, model.WrapStorage("contract events", err)
	}
	defer rows.Close()

	var out []model.ContractEvent
	for rows.Next() {
		var (
			ce         model.ContractEvent
			chain      int64
			address    string
			startBlock int64
			last       int64
		)
		if err := rows.Scan(&ce.ContractID, &chain, &address, &startBlock, &ce.EventID, &ce.EventName, &last); err != nil {
			return nil, model.WrapStorage("contract events", err)
		}
		ce.ChainID = uint64(chain)
		ce.ContractAddress = common.HexToAddress(address)
		ce.StartBlock = uint64(startBlock)
		ce.LastBlockIndexed = uint64(last)
		out = append(out, ce)
	}
	return out, model.WrapStorage("contract events", rows.Err())
}

// LastBlock returns the cursor for a pairing.
func (s *Store) LastBlock(ctx context.Context, contractID, eventID uuid.UUID) (uint64, bool, error) {
	var last *int64
	row := s.pool.QueryRow(ctx, `
		SELECT last_block_indexed FROM contract_events WHERE contract_id = $1 AND event_id = $2
	`, contractID, eventID)
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, model.WrapStorage("load cursor", err)
	}
	if last == nil {
		return 0, false, nil
	}
	return uint64(*last), true, nil
}

// UpsertCursor records block as processed. The stored cursor never moves
// backwards.
func (s *Store) UpsertCursor(ctx context.Context, contractID, eventID uuid.UUID, block uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO contract_events (contract_id, event_id, last_block_indexed, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (contract_id, event_id) DO UPDATE
		SET last_block_indexed = GREATEST(COALESCE(contract_events.last_block_indexed, 0), EXCLUDED.last_block_indexed),
		    updated_at = now()
	`, contractID, eventID, int64(block))
	return model.WrapStorage("upsert cursor", err)
}

// Seed registers contracts, the known events and their pairings.
func (s *Store) Seed(ctx context.Context, seeds []model.ContractSeed, eventABIs map[string]string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		eventIDs := make(map[string]uuid.UUID, len(eventABIs))
		for name, sig := range eventABIs {
			var id uuid.UUID
			err := tx.QueryRow(ctx, `
				INSERT INTO events (id, name, abi) VALUES ($1, $2, $3)
				ON CONFLICT (name) DO UPDATE SET abi = EXCLUDED.abi
				RETURNING id
			`, uuid.New(), name, sig).Scan(&id)
			if err != nil {
				return model.WrapStorage("seed event", err)
			}
			eventIDs[name] = id
		}

		for _, seed := range seeds {
			if !common.IsHexAddress(seed.Address) {
				return fmt.Errorf("seed: invalid address %q", seed.Address)
			}
			var contractID uuid.UUID
			err := tx.QueryRow(ctx, `
				INSERT INTO contracts (id, chain_id, contract_address, start_block) VALUES ($1, $2, $3, $4)
				ON CONFLICT (chain_id, contract_address) DO UPDATE SET start_block = EXCLUDED.start_block
				RETURNING id
			`, uuid.New(), int64(seed.ChainID), common.HexToAddress(seed.Address).Hex(), int64(seed.StartBlock)).Scan(&contractID)
			if err != nil {
				return model.WrapStorage("seed contract", err)
			}
			for _, name := range seed.Events {
				eventID, ok := eventIDs[name]
				if !ok {
					return fmt.Errorf("seed: unknown event %q", name)
				}
				if _, err := tx.Exec(ctx, `
					INSERT INTO contract_events (contract_id, event_id) VALUES ($1, $2)
					ON CONFLICT (contract_id, event_id) DO NOTHING
				`, contractID, eventID); err != nil {
					return model.WrapStorage("seed contract event", err)
				}
			}
		}
		return nil
	})
}
