package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/solsync/solsync/service/solana"
)

const (
	rawDirName       = "raw"
	processedDirName = "processed"
	mergedFileName   = "transactions.csv"
)

var csvHeader = []string{"timestamp", "signature", "slot", "success", "fee", "balance_delta"}

// DatasetStore persists transaction records as one CSV partition per
// calendar date under <dataDir>/raw, and materializes a merged,
// deduplicated view under <dataDir>/processed. Partitions are written
// whole: WriteBatch overwrites the partition for a date with exactly the
// given records, so callers pre-merge when updating an existing date.
type DatasetStore struct {
	rawDir       string
	processedDir string
	logger       *slog.Logger
}

// NewDatasetStore creates a dataset store rooted at dataDir.
func NewDatasetStore(dataDir string, logger *slog.Logger) *DatasetStore {
	return &DatasetStore{
		rawDir:       filepath.Join(dataDir, rawDirName),
		processedDir: filepath.Join(dataDir, processedDirName),
		logger:       logger,
	}
}

func partitionFileName(date string) string {
	return "txns_" + date + ".csv"
}

// LoadAll reads every partition and concatenates the records without
// deduplicating. Dedupe is the caller's concern at merge time, which
// keeps this operation cheap.
func (s *DatasetStore) LoadAll() ([]solana.Record, error) {
	entries, err := os.ReadDir(s.rawDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read raw dataset directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var all []solana.Record
	for _, name := range names {
		records, err := readRecordsCSV(filepath.Join(s.rawDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read partition %s: %w", name, err)
		}
		all = append(all, records...)
	}
	return all, nil
}

// LoadPartition reads the partition for one calendar date. A missing
// partition yields an empty slice.
func (s *DatasetStore) LoadPartition(date string) ([]solana.Record, error) {
	records, err := readRecordsCSV(filepath.Join(s.rawDir, partitionFileName(date)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read partition for %s: %w", date, err)
	}
	return records, nil
}

// WriteBatch overwrites the partition for date with exactly the given
// records.
func (s *DatasetStore) WriteBatch(date string, records []solana.Record) error {
	if err := os.MkdirAll(s.rawDir, 0o755); err != nil {
		return fmt.Errorf("failed to create raw dataset directory: %w", err)
	}
	path := filepath.Join(s.rawDir, partitionFileName(date))
	if err := writeRecordsCSV(path, records); err != nil {
		return fmt.Errorf("failed to write partition for %s: %w", date, err)
	}
	s.logger.Debug("wrote dataset partition", "date", date, "records", len(records))
	return nil
}

// MergeAll loads every partition, deduplicates by signature (last seen
// wins; records are immutable once finalized so any copy is as good as
// another), sorts by timestamp descending, writes the merged view to the
// processed directory, and returns it.
func (s *DatasetStore) MergeAll() ([]solana.Record, error) {
	all, err := s.LoadAll()
	if err != nil {
		return nil, err
	}

	merged := Merge(all)

	if err := os.MkdirAll(s.processedDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create processed dataset directory: %w", err)
	}
	path := filepath.Join(s.processedDir, mergedFileName)
	if err := writeRecordsCSV(path, merged); err != nil {
		return nil, fmt.Errorf("failed to write merged view: %w", err)
	}

	s.logger.Debug("materialized merged dataset view",
		"partitions_records", len(all),
		"merged_records", len(merged),
	)
	return merged, nil
}

// LoadMerged reads the previously materialized merged view. A missing
// view yields an empty slice.
func (s *DatasetStore) LoadMerged() ([]solana.Record, error) {
	records, err := readRecordsCSV(filepath.Join(s.processedDir, mergedFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read merged view: %w", err)
	}
	return records, nil
}

// Merge deduplicates records by signature (later occurrences win) and
// sorts the result by timestamp descending, slot descending on ties.
func Merge(records []solana.Record) []solana.Record {
	bySignature := make(map[string]solana.Record, len(records))
	for _, rec := range records {
		bySignature[rec.Signature] = rec
	}

	merged := make([]solana.Record, 0, len(bySignature))
	for _, rec := range bySignature {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].Timestamp.After(merged[j].Timestamp)
		}
		return merged[i].Slot > merged[j].Slot
	})
	return merged
}

func writeRecordsCSV(path string, records []solana.Record) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.Timestamp.UTC().Format(time.RFC3339),
			rec.Signature,
			strconv.FormatUint(rec.Slot, 10),
			strconv.FormatBool(rec.Success),
			strconv.FormatUint(rec.Fee, 10),
			strconv.FormatInt(rec.BalanceDelta, 10),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readRecordsCSV(path string) ([]solana.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]solana.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := recordFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func recordFromRow(row []string) (solana.Record, error) {
	if len(row) != len(csvHeader) {
		return solana.Record{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return solana.Record{}, fmt.Errorf("invalid timestamp %q: %w", row[0], err)
	}
	slot, err := strconv.ParseUint(row[2], 10, 64)
	if err != nil {
		return solana.Record{}, fmt.Errorf("invalid slot %q: %w", row[2], err)
	}
	success, err := strconv.ParseBool(row[3])
	if err != nil {
		return solana.Record{}, fmt.Errorf("invalid success flag %q: %w", row[3], err)
	}
	fee, err := strconv.ParseUint(row[4], 10, 64)
	if err != nil {
		return solana.Record{}, fmt.Errorf("invalid fee %q: %w", row[4], err)
	}
	delta, err := strconv.ParseInt(row[5], 10, 64)
	if err != nil {
		return solana.Record{}, fmt.Errorf("invalid balance delta %q: %w", row[5], err)
	}
	return solana.Record{
		Timestamp:    ts.UTC(),
		Signature:    row[1],
		Slot:         slot,
		Success:      success,
		Fee:          fee,
		BalanceDelta: delta,
	}, nil
}
