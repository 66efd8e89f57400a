package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hypercertsIndexer/internal/model"
)

// ensureClaimCTE inserts a placeholder claim row ($1 id, $2 contracts_id,
// $3 token_id) when the claim has not been stored yet, and yields its id.
const ensureClaimCTE = `
	WITH claim AS (
		INSERT INTO claims (id, contracts_id, token_id) VALUES ($1, $2, $3)
		ON CONFLICT (contracts_id, token_id) DO UPDATE SET updated_at = claims.updated_at
		RETURNING id
	)`

// StoreClaims upserts claims keyed by (contracts_id, token_id).
func (s *Store) StoreClaims(ctx context.Context, claims []model.ClaimStored) error {
	if len(claims) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range claims {
		batch.Queue(`
			INSERT INTO claims (id, contracts_id, token_id, uri, units, creation_block, creation_tx, creation_ts, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (contracts_id, token_id) DO UPDATE SET
				uri = EXCLUDED.uri,
				units = EXCLUDED.units,
				creation_block = EXCLUDED.creation_block,
				creation_tx = EXCLUDED.creation_tx,
				creation_ts = EXCLUDED.creation_ts,
				updated_at = now()
		`,
			uuid.New(),
			c.ContractsID,
			numeric(c.ClaimID),
			c.URI,
			numeric(c.TotalUnits),
			int64(c.BlockNumber),
			c.TxHash,
			int64(c.BlockTimestamp),
		)
	}
	return model.WrapStorage("store claims", sendBatch(ctx, s.pool, batch))
}

// StoreTransfers records transfers and the fraction states they produce in
// one transaction.
func (s *Store) StoreTransfers(ctx context.Context, chainID uint64, transfers []model.TokenTransfer, fractions []model.Fraction) error {
	if len(transfers) == 0 && len(fractions) == 0 {
		return nil
	}
	return model.WrapStorage("store transfers", s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, t := range transfers {
			batch.Queue(`
				INSERT INTO transfers (
					id, chain_id, contracts_id, tx_hash, log_index, batch_index, token_id, claim_id, is_claim,
					operator, from_address, to_address, value, block_number, block_timestamp
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
				ON CONFLICT (chain_id, tx_hash, log_index, batch_index) DO NOTHING
			`,
				uuid.New(),
				int64(chainID),
				t.ContractsID,
				t.TxHash,
				int64(t.LogIndex),
				t.BatchIndex,
				numeric(t.TokenID),
				numeric(t.ClaimID),
				t.IsClaim,
				t.Operator,
				t.From,
				t.To,
				numeric(t.Value),
				int64(t.BlockNumber),
				int64(t.BlockTimestamp),
			)
		}
		queueFractions(batch, fractions)
		return sendBatch(ctx, tx, batch)
	}))
}

// UpsertFractions stores fraction states. Older blocks never overwrite
// newer state.
func (s *Store) UpsertFractions(ctx context.Context, fractions []model.Fraction) error {
	if len(fractions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	queueFractions(batch, fractions)
	return model.WrapStorage("upsert fractions", sendBatch(ctx, s.pool, batch))
}

func queueFractions(batch *pgx.Batch, fractions []model.Fraction) {
	for _, f := range fractions {
		batch.Queue(ensureClaimCTE+`
			INSERT INTO fractions (id, claims_id, token_id, owner_address, units, last_update_block, updated_at)
			SELECT $4, claim.id, $5, NULLIF($6, ''), $7, $8, now() FROM claim
			ON CONFLICT (claims_id, token_id) DO UPDATE SET
				owner_address = COALESCE(EXCLUDED.owner_address, fractions.owner_address),
				units = COALESCE(EXCLUDED.units, fractions.units),
				last_update_block = EXCLUDED.last_update_block,
				updated_at = now()
			WHERE fractions.last_update_block <= EXCLUDED.last_update_block
		`,
			uuid.New(),
			f.ContractsID,
			numeric(f.ClaimID),
			uuid.New(),
			numeric(f.TokenID),
			f.Owner,
			numeric(f.Units),
			int64(f.BlockNumber),
		)
	}
}

// StoreAllowlistCreated binds claims to their on-chain allow-list roots.
func (s *Store) StoreAllowlistCreated(ctx context.Context, created []model.AllowlistCreated) error {
	if len(created) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range created {
		batch.Queue(ensureClaimCTE+`
			INSERT INTO hypercert_allow_lists (id, claims_id, root, updated_at)
			SELECT $4, claim.id, $5, now() FROM claim
			ON CONFLICT (claims_id) DO UPDATE SET root = EXCLUDED.root, updated_at = now()
		`,
			uuid.New(),
			a.ContractsID,
			numeric(a.ClaimID),
			uuid.New(),
			a.Root,
		)
	}
	return model.WrapStorage("store allowlist created", sendBatch(ctx, s.pool, batch))
}

// MarkLeavesClaimed flags redeemed allow-list records.
func (s *Store) MarkLeavesClaimed(ctx context.Context, claimed []model.LeafClaimed) error {
	if len(claimed) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range claimed {
		batch.Queue(`
			UPDATE hypercert_allow_list_records r SET claimed = true
			FROM hypercert_allow_lists hal
			JOIN claims c ON c.id = hal.claims_id
			WHERE r.hypercert_allow_lists_id = hal.id
			  AND c.contracts_id = $1 AND c.token_id = $2 AND r.leaf = $3
		`, l.ContractsID, numeric(l.ClaimID), l.Leaf)
	}
	return model.WrapStorage("mark leaves claimed", sendBatch(ctx, s.pool, batch))
}

// StoreAttestations upserts attestations keyed by (schema, uid).
func (s *Store) StoreAttestations(ctx context.Context, attestations []model.AttestationData) error {
	if len(attestations) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range attestations {
		a := a
		data, err := json.Marshal(a.Data)
		if err != nil {
			return fmt.Errorf("marshal attestation data: %w", err)
		}
		var contract *string
		if a.ContractAddress != "" {
			contract = &a.ContractAddress
		}
		batch.Queue(`
			INSERT INTO attestations (
				id, supported_schemas_id, uid, attester, recipient, ref_uid, time, expiration_time,
				revocation_time, revocable, raw_data, data, chain_id, contract_address, token_id,
				block_number, block_timestamp, tx_hash
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (supported_schemas_id, uid) DO UPDATE SET
				revocation_time = EXCLUDED.revocation_time,
				data = EXCLUDED.data,
				chain_id = EXCLUDED.chain_id,
				contract_address = EXCLUDED.contract_address,
				token_id = EXCLUDED.token_id
		`,
			uuid.New(),
			a.SupportedSchemaID,
			a.UID,
			a.Attester,
			a.Recipient,
			a.RefUID,
			int64(a.Time),
			int64(a.ExpirationTime),
			int64(a.RevocationTime),
			a.Revocable,
			a.RawData,
			data,
			numeric(a.ClaimChainID),
			contract,
			numeric(a.TokenID),
			int64(a.BlockNumber),
			int64(a.BlockTimestamp),
			a.TxHash,
		)
	}
	return model.WrapStorage("store attestations", sendBatch(ctx, s.pool, batch))
}

// SupportedSchemas lists the EAS schemas indexed on a chain.
func (s *Store) SupportedSchemas(ctx context.Context, chainID uint64) ([]model.AttestationSchema, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chain_id, uid, schema, resolver, revocable FROM supported_schemas WHERE chain_id = $1
	`, int64(chainID))
	if err != nil {
		return nil, model.WrapStorage("supported schemas", err)
	}
	defer rows.Close()

	var out []model.AttestationSchema
	for rows.Next() {
		var (
			sch   model.AttestationSchema
			chain int64
		)
		if err := rows.Scan(&sch.ID, &chain, &sch.UID, &sch.Schema, &sch.Resolver, &sch.Revocable); err != nil {
			return nil, model.WrapStorage("supported schemas", err)
		}
		sch.ChainID = uint64(chain)
		out = append(out, sch)
	}
	return out, model.WrapStorage("supported schemas", rows.Err())
}

// UpsertSchema stores a schema registry entry and returns its row id.
func (s *Store) UpsertSchema(ctx context.Context, sch model.AttestationSchema) (uuid.UUID, error) {
	id := sch.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	var out uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO supported_schemas (id, chain_id, uid, schema, resolver, revocable, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (chain_id, uid) DO UPDATE SET
			schema = EXCLUDED.schema,
			resolver = EXCLUDED.resolver,
			revocable = EXCLUDED.revocable,
			updated_at = now()
		RETURNING id
	`, id, int64(sch.ChainID), sch.UID, sch.Schema, sch.Resolver, sch.Revocable).Scan(&out)
	if err != nil {
		return uuid.Nil, model.WrapStorage("upsert schema", err)
	}
	return out, nil
}
