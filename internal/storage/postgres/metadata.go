package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hypercertsIndexer/internal/model"
)

// ClaimsPendingMetadata returns claims whose URI has no metadata row, and
// claims whose stored metadata names an allow list not yet linked to them.
// The latter come back with AllowListURI set.
func (s *Store) ClaimsPendingMetadata(ctx context.Context, limit int) ([]model.ClaimRef, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.contracts_id, c.uri, COALESCE(m.allow_list_uri, '')
		FROM claims c
		LEFT JOIN metadata m ON m.uri = c.uri
		LEFT JOIN hypercert_allow_lists hal ON hal.claims_id = c.id
		WHERE c.uri IS NOT NULL AND c.uri <> '' AND lower(c.uri) <> 'ipfs://null'
		  AND (
			m.id IS NULL
			OR (
				COALESCE(btrim(m.allow_list_uri), '') <> ''
				AND lower(btrim(m.allow_list_uri)) <> 'ipfs://null'
				AND hal.allow_list_data_id IS NULL
			)
		  )
		ORDER BY c.creation_block NULLS LAST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, model.WrapStorage("claims pending metadata", err)
	}
	defer rows.Close()

	var out []model.ClaimRef
	for rows.Next() {
		var ref model.ClaimRef
		if err := rows.Scan(&ref.ID, &ref.ContractsID, &ref.URI, &ref.AllowListURI); err != nil {
			return nil, model.WrapStorage("claims pending metadata", err)
		}
		out = append(out, ref)
	}
	return out, model.WrapStorage("claims pending metadata", rows.Err())
}

// SaveClaimMetadata stores validated metadata keyed by URI and, when
// allowListURI is set, links that allow list to the claim. Both land in
// one transaction.
func (s *Store) SaveClaimMetadata(ctx context.Context, claimID uuid.UUID, m model.ClaimMetadata, allowListURI string) error {
	return model.WrapStorage("save claim metadata", s.inTx(ctx, func(tx pgx.Tx) error {
		if err := upsertMetadata(ctx, tx, m); err != nil {
			return err
		}
		if allowListURI == "" {
			return nil
		}
		return linkAllowList(ctx, tx, claimID, allowListURI)
	}))
}

func upsertMetadata(ctx context.Context, tx pgx.Tx, m model.ClaimMetadata) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO metadata (
			id, uri, name, description, image, external_url, allow_list_uri, work_scope, impact_scope,
			contributors, rights, work_timeframe, impact_timeframe, properties, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14, now())
		ON CONFLICT (uri) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			image = EXCLUDED.image,
			external_url = EXCLUDED.external_url,
			allow_list_uri = EXCLUDED.allow_list_uri,
			work_scope = EXCLUDED.work_scope,
			impact_scope = EXCLUDED.impact_scope,
			contributors = EXCLUDED.contributors,
			rights = EXCLUDED.rights,
			work_timeframe = EXCLUDED.work_timeframe,
			impact_timeframe = EXCLUDED.impact_timeframe,
			properties = EXCLUDED.properties,
			updated_at = now()
	`,
		uuid.New(),
		m.URI,
		m.Name,
		m.Description,
		m.Image,
		nullable(m.ExternalURL),
		nullable(m.AllowListURI),
		m.WorkScope,
		m.ImpactScope,
		m.Contributors,
		m.Rights,
		m.WorkTimeframe,
		m.ImpactTimeframe,
		m.Canonical,
	)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
