package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hypercertsIndexer/internal/model"
)

// LinkAllowListURI creates the allow-list data row for uri and links it to
// the claim.
func (s *Store) LinkAllowListURI(ctx context.Context, claimID uuid.UUID, uri string) error {
	return model.WrapStorage("link allow list", s.inTx(ctx, func(tx pgx.Tx) error {
		return linkAllowList(ctx, tx, claimID, uri)
	}))
}

func linkAllowList(ctx context.Context, tx pgx.Tx, claimID uuid.UUID, uri string) error {
	var dataID uuid.UUID
	if err := tx.QueryRow(ctx, `
		INSERT INTO allow_list_data (id, uri, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (uri) DO UPDATE SET uri = EXCLUDED.uri
		RETURNING id
	`, uuid.New(), uri).Scan(&dataID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO hypercert_allow_lists (id, claims_id, allow_list_data_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (claims_id) DO UPDATE SET allow_list_data_id = EXCLUDED.allow_list_data_id, updated_at = now()
	`, uuid.New(), claimID, dataID)
	return err
}

// UnparsedAllowLists returns claim allow lists with linked data whose
// records are not committed. Rows marked invalid are skipped unless
// retryInvalid is set.
func (s *Store) UnparsedAllowLists(ctx context.Context, limit int, retryInvalid bool) ([]model.UnparsedAllowList, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT hal.id, hal.claims_id, ald.id, ald.uri, COALESCE(hal.root, ald.root, ''),
		       ald.data, ald.parsed, ald.valid
		FROM hypercert_allow_lists hal
		JOIN allow_list_data ald ON ald.id = hal.allow_list_data_id
		WHERE hal.parsed = false AND ($2 OR ald.valid IS DISTINCT FROM false)
		ORDER BY hal.updated_at
		LIMIT $1
	`, limit, retryInvalid)
	if err != nil {
		return nil, model.WrapStorage("unparsed allow lists", err)
	}
	defer rows.Close()

	var out []model.UnparsedAllowList
	for rows.Next() {
		var u model.UnparsedAllowList
		if err := rows.Scan(
			&u.ListID, &u.ClaimID, &u.Data.ID, &u.Data.URI, &u.Data.Root,
			&u.Data.Data, &u.Data.Parsed, &u.Data.Valid,
		); err != nil {
			return nil, model.WrapStorage("unparsed allow lists", err)
		}
		out = append(out, u)
	}
	return out, model.WrapStorage("unparsed allow lists", rows.Err())
}

// SaveAllowListData backfills the fetched payload and the tree root.
func (s *Store) SaveAllowListData(ctx context.Context, dataID uuid.UUID, root string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE allow_list_data SET data = $2, root = COALESCE(NULLIF($3, ''), root), updated_at = now()
		WHERE id = $1
	`, dataID, data, root)
	return model.WrapStorage("save allow list data", err)
}

// MarkAllowListInvalid flags a payload that is not a valid tree.
func (s *Store) MarkAllowListInvalid(ctx context.Context, dataID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE allow_list_data SET valid = false, updated_at = now() WHERE id = $1
	`, dataID)
	return model.WrapStorage("mark allow list invalid", err)
}

// InsertAllowListRecords inserts expanded records in one transaction.
// Records already present for the same leaf are left untouched.
func (s *Store) InsertAllowListRecords(ctx context.Context, listID uuid.UUID, records []model.AllowListRecord) error {
	if len(records) == 0 {
		return nil
	}
	return model.WrapStorage("insert allow list records", s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(`
				INSERT INTO hypercert_allow_list_records (
					id, hypercert_allow_lists_id, user_address, units, entry, leaf, proof, claimed
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (hypercert_allow_lists_id, leaf) DO NOTHING
			`, uuid.New(), listID, r.UserAddress, numeric(r.Units), r.Entry, r.Leaf, r.Proof, r.Claimed)
		}
		return sendBatch(ctx, tx, batch)
	}))
}

// MarkAllowListParsed sets the parsed flags once records are committed.
func (s *Store) MarkAllowListParsed(ctx context.Context, listID, dataID uuid.UUID) error {
	return model.WrapStorage("mark allow list parsed", s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE hypercert_allow_lists SET parsed = true, updated_at = now() WHERE id = $1
		`, listID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE allow_list_data SET parsed = true, valid = true, updated_at = now() WHERE id = $1
		`, dataID)
		return err
	}))
}
