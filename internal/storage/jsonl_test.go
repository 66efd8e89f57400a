package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypercertsIndexer/internal/model"
)

func readLines(t *testing.T, path string) []model.LogRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []model.LogRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r model.LogRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.jsonl")
	s := NewJsonlStorage(path)

	require.NoError(t, s.PutLogBatch([]model.LogRecord{{ChainID: 10, BlockNumber: 1}}))
	require.NoError(t, s.PutLogBatch(nil))
	require.NoError(t, s.PutLogBatch([]model.LogRecord{{ChainID: 10, BlockNumber: 2}, {ChainID: 10, BlockNumber: 3}}))

	got := readLines(t, path)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(3), got[2].BlockNumber)
}

func TestJsonlStorageConcurrentBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.jsonl")
	s := NewJsonlStorage(path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.PutLogBatch([]model.LogRecord{{BlockNumber: uint64(i)}, {BlockNumber: uint64(i)}}))
		}(i)
	}
	wg.Wait()

	assert.Len(t, readLines(t, path), 16)
}

func TestWriterTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("stale\n"), 0o644))

	w, err := NewWriter(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(model.LogRecord{ChainID: 1}))
	require.NoError(t, w.Close())

	got := readLines(t, path)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ChainID)
}
