//go:build integration

package postgres

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"hypercertsIndexer/internal/model"
)

const minter = "0x822F17A9A5EeCFd66dBAFf7946a8071C265D1d07"

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("hypercerts_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
	return s
}

func seedMinter(t *testing.T, s *Store) model.ContractEvent {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Seed(ctx, []model.ContractSeed{{
		ChainID: 10, Address: minter, StartBlock: 100, Events: []string{"ClaimStored", "TransferSingle"},
	}}, map[string]string{"ClaimStored": "{}", "TransferSingle": "{}"}))

	pairings, err := s.ContractEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pairings, 2)
	return pairings[0]
}

func TestCursorNeverMovesBackwards(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	ce := seedMinter(t, s)

	_, ok, err := s.LastBlock(ctx, ce.ContractID, ce.EventID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.UpsertCursor(ctx, ce.ContractID, ce.EventID, 500))
	require.NoError(t, s.UpsertCursor(ctx, ce.ContractID, ce.EventID, 300))

	last, ok, err := s.LastBlock(ctx, ce.ContractID, ce.EventID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(500), last)
}

func TestFractionBeforeClaimCreatesPlaceholder(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	ce := seedMinter(t, s)

	claimID := new(big.Int).Lsh(big.NewInt(1), 128)
	tokenID := new(big.Int).Add(claimID, big.NewInt(1))

	require.NoError(t, s.UpsertFractions(ctx, []model.Fraction{{
		ContractsID: ce.ContractID, ClaimID: claimID, TokenID: tokenID,
		Owner: "0x0000000000000000000000000000000000000001", Units: big.NewInt(40), BlockNumber: 200,
	}}))
	// Stale state is ignored.
	require.NoError(t, s.UpsertFractions(ctx, []model.Fraction{{
		ContractsID: ce.ContractID, ClaimID: claimID, TokenID: tokenID, Units: big.NewInt(1), BlockNumber: 150,
	}}))
	require.NoError(t, s.StoreClaims(ctx, []model.ClaimStored{{
		ContractsID: ce.ContractID, ClaimID: claimID, URI: "ipfs://cid", TotalUnits: big.NewInt(100), BlockNumber: 120,
	}}))

	var claims int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT count(*) FROM claims`).Scan(&claims))
	assert.Equal(t, 1, claims)

	var units string
	var owner string
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT units::text, owner_address FROM fractions`).Scan(&units, &owner))
	assert.Equal(t, "40", units)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", owner)

	refs, err := s.ClaimsPendingMetadata(ctx, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "ipfs://cid", refs[0].URI)
}

func TestTransfersAreIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	ce := seedMinter(t, s)

	tr := model.TokenTransfer{
		ContractsID: ce.ContractID, Operator: minter, From: minter, To: minter,
		TokenID: big.NewInt(5), ClaimID: big.NewInt(0), Value: big.NewInt(1),
		BlockNumber: 1, TxHash: "0xabc", LogIndex: 3,
	}
	require.NoError(t, s.StoreTransfers(ctx, 10, []model.TokenTransfer{tr}, nil))
	require.NoError(t, s.StoreTransfers(ctx, 10, []model.TokenTransfer{tr}, nil))

	var n int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT count(*) FROM transfers`).Scan(&n))
	assert.Equal(t, 1, n)

	// A TransferBatch may repeat an id; each position is its own row.
	first, second := tr, tr
	first.TxHash, second.TxHash = "0xbatch", "0xbatch"
	second.BatchIndex = 1
	batch := []model.TokenTransfer{first, second}
	require.NoError(t, s.StoreTransfers(ctx, 10, batch, nil))
	require.NoError(t, s.StoreTransfers(ctx, 10, batch, nil))

	require.NoError(t, s.pool.QueryRow(ctx,
		`SELECT count(*) FROM transfers WHERE tx_hash = '0xbatch' AND token_id = 5`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestAllowListLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	ce := seedMinter(t, s)

	claimID := new(big.Int).Lsh(big.NewInt(2), 128)
	require.NoError(t, s.StoreClaims(ctx, []model.ClaimStored{{
		ContractsID: ce.ContractID, ClaimID: claimID, URI: "ipfs://meta", TotalUnits: big.NewInt(10),
	}}))
	require.NoError(t, s.StoreAllowlistCreated(ctx, []model.AllowlistCreated{{
		ContractsID: ce.ContractID, ClaimID: claimID, Root: "0xroot",
	}}))

	var claimRow uuid.UUID
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT id FROM claims`).Scan(&claimRow))
	require.NoError(t, s.LinkAllowListURI(ctx, claimRow, "ipfs://list"))

	pending, err := s.UnparsedAllowLists(ctx, 10, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "0xroot", pending[0].Data.Root)

	require.NoError(t, s.MarkAllowListInvalid(ctx, pending[0].Data.ID))
	skipped, err := s.UnparsedAllowLists(ctx, 10, false)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	retried, err := s.UnparsedAllowLists(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, retried, 1)

	records := []model.AllowListRecord{
		{UserAddress: minter, Units: big.NewInt(5), Entry: 0, Leaf: "0xleaf0", Proof: []string{"0xp"}},
		{UserAddress: minter, Units: big.NewInt(5), Entry: 1, Leaf: "0xleaf1", Proof: []string{"0xq"}},
	}
	listID := pending[0].ListID
	require.NoError(t, s.InsertAllowListRecords(ctx, listID, records))
	require.NoError(t, s.InsertAllowListRecords(ctx, listID, records))
	require.NoError(t, s.MarkAllowListParsed(ctx, listID, pending[0].Data.ID))

	require.NoError(t, s.MarkLeavesClaimed(ctx, []model.LeafClaimed{{
		ContractsID: ce.ContractID, ClaimID: claimID, Leaf: "0xleaf1",
	}}))

	var total, claimed int
	require.NoError(t, s.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE claimed) FROM hypercert_allow_list_records`,
	).Scan(&total, &claimed))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, claimed)

	done, err := s.UnparsedAllowLists(ctx, 10, true)
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestSchemasAndAttestations(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	sch := model.AttestationSchema{ChainID: 10, UID: "0x01", Schema: "uint256 chain_id", Resolver: minter}
	id, err := s.UpsertSchema(ctx, sch)
	require.NoError(t, err)
	again, err := s.UpsertSchema(ctx, sch)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	schemas, err := s.SupportedSchemas(ctx, 10)
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	att := model.AttestationData{
		SupportedSchemaID: id, UID: "0xaa", SchemaUID: "0x01", Attester: minter, Recipient: minter,
		Data: map[string]interface{}{"chain_id": "10"}, ClaimChainID: big.NewInt(10), TxHash: "0x1",
	}
	require.NoError(t, s.StoreAttestations(ctx, []model.AttestationData{att}))
	att.RevocationTime = 99
	require.NoError(t, s.StoreAttestations(ctx, []model.AttestationData{att}))

	var n int
	var revoked int64
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT count(*), max(revocation_time) FROM attestations`).Scan(&n, &revoked))
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(99), revoked)
}

func TestSaveClaimMetadata(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	ce := seedMinter(t, s)

	require.NoError(t, s.StoreClaims(ctx, []model.ClaimStored{
		{ContractsID: ce.ContractID, ClaimID: big.NewInt(1 << 10), URI: "ipfs://meta", TotalUnits: big.NewInt(1)},
		{ContractsID: ce.ContractID, ClaimID: big.NewInt(2 << 10), URI: "ipfs://meta", TotalUnits: big.NewInt(1)},
	}))
	var first, second uuid.UUID
	require.NoError(t, s.pool.QueryRow(ctx,
		`SELECT id FROM claims ORDER BY token_id LIMIT 1`).Scan(&first))
	require.NoError(t, s.pool.QueryRow(ctx,
		`SELECT id FROM claims ORDER BY token_id DESC LIMIT 1`).Scan(&second))

	m := model.ClaimMetadata{
		URI: "ipfs://meta", Name: "n", Description: "d", Image: "data:image/png;base64,AA==",
		AllowListURI: "ipfs://list",
		WorkScope:    []string{"a"}, WorkTimeframe: []int64{1, 2}, Canonical: []byte(`{"name":"n"}`),
	}
	require.NoError(t, s.SaveClaimMetadata(ctx, first, m, m.AllowListURI))
	m.Name = "renamed"
	require.NoError(t, s.SaveClaimMetadata(ctx, first, m, m.AllowListURI))

	var name string
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT name FROM metadata WHERE uri = $1`, m.URI).Scan(&name))
	assert.Equal(t, "renamed", name)

	// The second claim shares the document but has no link yet.
	refs, err := s.ClaimsPendingMetadata(ctx, 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, second, refs[0].ID)
	assert.Equal(t, "ipfs://list", refs[0].AllowListURI)

	require.NoError(t, s.LinkAllowListURI(ctx, second, refs[0].AllowListURI))
	refs, err = s.ClaimsPendingMetadata(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, refs)

	var lists int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT count(*) FROM allow_list_data`).Scan(&lists))
	assert.Equal(t, 1, lists)
}

func TestSaveClaimMetadataRollsBack(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	m := model.ClaimMetadata{
		URI: "ipfs://orphan", Name: "n", Description: "d", Image: "i", Canonical: []byte(`{}`),
	}
	// No claim row with this id, so the link violates its foreign key.
	err := s.SaveClaimMetadata(ctx, uuid.New(), m, "ipfs://list")
	var se *model.StorageError
	require.ErrorAs(t, err, &se)

	var n int
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT count(*) FROM metadata`).Scan(&n))
	assert.Equal(t, 0, n)
}
