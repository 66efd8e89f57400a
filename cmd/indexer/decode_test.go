package main

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypercertsIndexer/internal/events"
	"hypercertsIndexer/internal/model"
)

type memWriter struct {
	values []interface{}
}

func (w *memWriter) Write(value interface{}) error {
	w.values = append(w.values, value)
	return nil
}

func recordLine(t *testing.T, chainID uint64, log types.Log) string {
	t.Helper()
	line, err := json.Marshal(model.NewLogRecord(chainID, log, 1700000000))
	require.NoError(t, err)
	return string(line)
}

func TestDecodeStream(t *testing.T) {
	parsed, err := events.EventsABI()
	require.NoError(t, err)
	minter := common.HexToAddress("0x822f17a9a5eecfd66dbaff7946a8071c265d1d07")

	claim := parsed.Events[events.EventClaimStored]
	claimData, err := claim.Inputs.NonIndexed().Pack("ipfs://bafyclaim", big.NewInt(100))
	require.NoError(t, err)
	claimID := new(big.Int).Lsh(big.NewInt(1), 128)

	attested := parsed.Events[events.EventAttested]
	attestedData, err := attested.Inputs.NonIndexed().Pack([32]byte{1})
	require.NoError(t, err)

	lines := []string{
		recordLine(t, 0, types.Log{
			Address:     minter,
			Topics:      []common.Hash{claim.ID, common.BigToHash(claimID)},
			Data:        claimData,
			BlockNumber: 10,
			Index:       1,
		}),
		"",
		recordLine(t, 10, types.Log{
			Address: minter,
			Topics:  []common.Hash{common.HexToHash("0xdeadbeef")},
		}),
		recordLine(t, 10, types.Log{
			Address: minter,
			Topics:  []common.Hash{attested.ID, {}, {}, {}},
			Data:    attestedData,
		}),
		`{"chain_id": "not a number"}`,
		recordLine(t, 10, types.Log{
			Address: minter,
			Topics:  []common.Hash{claim.ID},
		}),
	}

	decoder, err := events.NewDecoder()
	require.NoError(t, err)
	out, errOut := &memWriter{}, &memWriter{}

	stats, err := decodeStream(context.Background(), strings.NewReader(strings.Join(lines, "\n")), decoder, 10, out, errOut)
	require.NoError(t, err)

	assert.Equal(t, decodeStats{Total: 5, Decoded: 1, Skipped: 1, Failed: 3}, stats)

	require.Len(t, out.values, 1)
	ev := out.values[0].(decodedEvent)
	assert.Equal(t, uint64(10), ev.ChainID)
	assert.Equal(t, events.EventClaimStored, ev.EventName)
	claims := ev.Records.([]model.ClaimStored)
	require.Len(t, claims, 1)
	assert.Equal(t, "ipfs://bafyclaim", claims[0].URI)
	assert.Equal(t, uint64(1700000000), claims[0].BlockTimestamp)

	require.Len(t, errOut.values, 3)
	stages := make([]string, 0, len(errOut.values))
	for _, v := range errOut.values {
		stages = append(stages, v.(model.DecodeError).Stage)
	}
	assert.Equal(t, []string{"enrich", "parse", "decode"}, stages)
	assert.Equal(t, events.EventAttested, errOut.values[0].(model.DecodeError).Event)
}

func TestDecodeStreamStopsOnCancel(t *testing.T) {
	decoder, err := events.NewDecoder()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = decodeStream(ctx, strings.NewReader("{}\n"), decoder, 10, &memWriter{}, &memWriter{})
	assert.ErrorIs(t, err, context.Canceled)
}
