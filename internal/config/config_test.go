package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/model"
)

const schemaUID = "0x48e3e1be1e08084b408a7035ac889f2a840b440bbf10758d14fb722831a200c3"

func setRunEnv(t *testing.T) {
	t.Helper()
	t.Setenv("INDEXER_CHAIN_IDS", "10,11155111")
	t.Setenv("INDEXER_RPC_URLS", "10=http://op.local,11155111=http://sepolia.local")
	t.Setenv("INDEXER_PG_DSN", "postgres://indexer@localhost/indexer")
}

func TestLoadFromEnv(t *testing.T) {
	setRunEnv(t)
	t.Setenv("INDEXER_POLL_INTERVAL", "3s")
	t.Setenv("INDEXER_EAS_SCHEMA_UIDS", "11155111="+schemaUID)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, []uint64{10, 11155111}, cfg.ChainIDs)
	assert.Equal(t, "http://sepolia.local", cfg.RPCURLs[11155111])
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, uint64(2000), cfg.BatchSize)
	assert.Equal(t, []string{"https://ipfs.io", "https://w3s.link"}, cfg.IPFSGateways)
	assert.Equal(t, []string{schemaUID}, cfg.SchemaUIDs[11155111])
	assert.Empty(t, cfg.RawLogs)
}

func TestLoadRejectsMissingSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		key  string
	}{
		{name: "no chains", env: map[string]string{"INDEXER_CHAIN_IDS": ""}, key: "chain-ids"},
		{name: "unsupported chain", env: map[string]string{"INDEXER_CHAIN_IDS": "1"}, key: "chain-ids"},
		{name: "missing rpc", env: map[string]string{"INDEXER_RPC_URLS": "10=http://op.local"}, key: "rpc-urls"},
		{name: "missing dsn", env: map[string]string{"INDEXER_PG_DSN": ""}, key: "pg-dsn"},
		{name: "bad schema uid", env: map[string]string{"INDEXER_EAS_SCHEMA_UIDS": "10=0x1234"}, key: "eas-schema-uids"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRunEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load("", nil)
			var cfgErr *model.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.key, cfgErr.Key)
		})
	}
}

func TestParseContractSeeds(t *testing.T) {
	seeds, err := ParseContractSeeds([]string{
		"10=0x822f17a9a5eecfd66dbaff7946a8071c265d1d07@107000000",
		" ",
		"11155111=0xa16dfb32eb140a6f3f2ac68f41dad8c7e83c4941",
	})
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	assert.Equal(t, uint64(10), seeds[0].ChainID)
	assert.Equal(t, common.HexToAddress("0x822f17a9a5eecfd66dbaff7946a8071c265d1d07").Hex(), seeds[0].Address)
	assert.Equal(t, uint64(107000000), seeds[0].StartBlock)
	assert.Equal(t, events.MinterEvents, seeds[0].Events)
	assert.Zero(t, seeds[1].StartBlock)

	for _, bad := range []string{
		"0x822f17a9a5eecfd66dbaff7946a8071c265d1d07",
		"10=not-an-address",
		"10=0x822f17a9a5eecfd66dbaff7946a8071c265d1d07@latest",
		"1=0x822f17a9a5eecfd66dbaff7946a8071c265d1d07",
	} {
		_, err := ParseContractSeeds([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestEASSeeds(t *testing.T) {
	seeds, err := EASSeeds(map[uint64]uint64{10: 100, 8453: 200})
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, uint64(10), seeds[0].ChainID)
	assert.Equal(t, "0x4200000000000000000000000000000000000021", seeds[0].Address)
	assert.Equal(t, []string{events.EventAttested}, seeds[1].Events)

	_, err = EASSeeds(map[uint64]uint64{314: 1})
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "eas-start-block", cfgErr.Key)
}

func TestLoadMigrate(t *testing.T) {
	t.Setenv("INDEXER_PG_DSN", "postgres://indexer@localhost/indexer")
	t.Setenv("INDEXER_CONTRACTS", "10=0x822f17a9a5eecfd66dbaff7946a8071c265d1d07@107000000")
	t.Setenv("INDEXER_EAS_START_BLOCK", "10=110000000")

	cfg, err := LoadMigrate("", nil)
	require.NoError(t, err)
	require.Len(t, cfg.Seeds, 2)
	assert.Equal(t, []string{events.EventAttested}, cfg.Seeds[1].Events)
}

func TestLoadDecodeRequiresInput(t *testing.T) {
	_, err := LoadDecode("", nil)
	require.Error(t, err)

	t.Setenv("INDEXER_IN", "./logs.jsonl")
	cfg, err := LoadDecode("", nil)
	require.NoError(t, err)
	assert.Equal(t, "./data/decode_errors.jsonl", cfg.Errors)
}
