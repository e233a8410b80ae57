package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/solsync/solsync/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(sig string, ts time.Time, slot uint64) solana.Record {
	return solana.Record{
		Timestamp:    ts,
		Signature:    sig,
		Slot:         slot,
		Success:      true,
		Fee:          5000,
		BalanceDelta: 1234,
	}
}

func TestDatasetStore_WriteLoadPartition(t *testing.T) {
	s := NewDatasetStore(t.TempDir(), testLogger())

	ts := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	records := []solana.Record{
		testRecord("sigA", ts, 100),
		{
			Timestamp:    ts.Add(time.Hour),
			Signature:    "sigB",
			Slot:         101,
			Success:      false,
			Fee:          5000,
			BalanceDelta: -42,
		},
	}

	require.NoError(t, s.WriteBatch("2024-01-05", records))

	got, err := s.LoadPartition("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestDatasetStore_LoadMissingPartition(t *testing.T) {
	s := NewDatasetStore(t.TempDir(), testLogger())

	got, err := s.LoadPartition("2024-01-05")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDatasetStore_WriteBatchOverwrites(t *testing.T) {
	s := NewDatasetStore(t.TempDir(), testLogger())
	ts := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.WriteBatch("2024-01-05", []solana.Record{testRecord("sigA", ts, 1)}))
	require.NoError(t, s.WriteBatch("2024-01-05", []solana.Record{testRecord("sigB", ts, 2)}))

	got, err := s.LoadPartition("2024-01-05")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sigB", got[0].Signature)
}

func TestDatasetStore_LoadAllConcatenatesWithoutDedupe(t *testing.T) {
	s := NewDatasetStore(t.TempDir(), testLogger())
	ts := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.WriteBatch("2024-01-05", []solana.Record{testRecord("sigA", ts, 1)}))
	require.NoError(t, s.WriteBatch("2024-01-06", []solana.Record{
		testRecord("sigA", ts, 1),
		testRecord("sigB", ts.Add(24*time.Hour), 2),
	}))

	got, err := s.LoadAll()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestDatasetStore_LoadAllMissingDir(t *testing.T) {
	s := NewDatasetStore(filepath.Join(t.TempDir(), "nope"), testLogger())

	got, err := s.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDatasetStore_MergeAll(t *testing.T) {
	dir := t.TempDir()
	s := NewDatasetStore(dir, testLogger())
	ts := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.WriteBatch("2024-01-05", []solana.Record{
		testRecord("sigA", ts, 1),
		testRecord("sigB", ts.Add(time.Hour), 2),
	}))
	require.NoError(t, s.WriteBatch("2024-01-06", []solana.Record{
		testRecord("sigB", ts.Add(time.Hour), 2),
		testRecord("sigC", ts.Add(26*time.Hour), 3),
	}))

	merged, err := s.MergeAll()
	require.NoError(t, err)

	require.Len(t, merged, 3)
	assert.Equal(t, "sigC", merged[0].Signature)
	assert.Equal(t, "sigB", merged[1].Signature)
	assert.Equal(t, "sigA", merged[2].Signature)

	// The merged view is materialized and readable on its own.
	fromDisk, err := s.LoadMerged()
	require.NoError(t, err)
	assert.Equal(t, merged, fromDisk)

	_, err = os.Stat(filepath.Join(dir, "processed", "transactions.csv"))
	assert.NoError(t, err)
}

func TestDatasetStore_LoadMergedMissing(t *testing.T) {
	s := NewDatasetStore(t.TempDir(), testLogger())

	got, err := s.LoadMerged()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMerge_LastWinsAndSortOrder(t *testing.T) {
	ts := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	first := testRecord("sigA", ts, 1)
	updated := first
	updated.BalanceDelta = 999

	merged := Merge([]solana.Record{
		first,
		testRecord("sigB", ts.Add(time.Hour), 2),
		updated,
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "sigB", merged[0].Signature)
	assert.Equal(t, "sigA", merged[1].Signature)
	assert.Equal(t, int64(999), merged[1].BalanceDelta)
}

func TestMerge_TiesBrokenBySlot(t *testing.T) {
	ts := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	merged := Merge([]solana.Record{
		testRecord("sigLow", ts, 10),
		testRecord("sigHigh", ts, 20),
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "sigHigh", merged[0].Signature)
	assert.Equal(t, "sigLow", merged[1].Signature)
}

func TestDatasetStore_RejectsMalformedPartition(t *testing.T) {
	dir := t.TempDir()
	s := NewDatasetStore(dir, testLogger())

	rawDir := filepath.Join(dir, "raw")
	require.NoError(t, os.MkdirAll(rawDir, 0o755))
	bad := "timestamp,signature,slot,success,fee,balance_delta\nnot-a-time,sigA,1,true,5000,0\n"
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "txns_2024-01-05.csv"), []byte(bad), 0o644))

	_, err := s.LoadPartition("2024-01-05")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timestamp")
}
