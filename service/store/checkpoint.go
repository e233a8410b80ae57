package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/solsync/solsync/service/solana"
)

const checkpointFileName = "checkpoint.json"

// Checkpoint marks how far synchronization has progressed: the calendar
// date of the last completed sync and the newest signature fetched at
// that point, which bounds the next incremental walk.
//
// A zero Checkpoint means "never synced" and triggers a full backfill.
type Checkpoint struct {
	LastUpdate    *string `json:"last_update"`
	LastSignature *string `json:"last_signature"`
}

// NewCheckpoint builds a checkpoint for the given sync date and newest
// signature. An empty signature is stored as null.
func NewCheckpoint(date, signature string) Checkpoint {
	cp := Checkpoint{LastUpdate: &date}
	if signature != "" {
		cp.LastSignature = &signature
	}
	return cp
}

// IsZero reports whether the checkpoint carries no prior sync state.
func (c Checkpoint) IsZero() bool {
	return c.LastUpdate == nil || *c.LastUpdate == ""
}

// DateString returns the last sync date, or "" for a zero checkpoint.
func (c Checkpoint) DateString() string {
	if c.LastUpdate == nil {
		return ""
	}
	return *c.LastUpdate
}

// Date parses the last sync date. ok is false for a zero checkpoint or
// an unparseable date; callers treat both as never-synced.
func (c Checkpoint) Date() (time.Time, bool) {
	if c.IsZero() {
		return time.Time{}, false
	}
	t, err := time.Parse(solana.DateLayout, *c.LastUpdate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Signature returns the last fetched signature, or "" when unset.
func (c Checkpoint) Signature() string {
	if c.LastSignature == nil {
		return ""
	}
	return *c.LastSignature
}

// CheckpointStore persists the sync checkpoint as a small JSON file
// under the data directory.
type CheckpointStore struct {
	path   string
	logger *slog.Logger
}

// NewCheckpointStore creates a checkpoint store rooted at dataDir.
func NewCheckpointStore(dataDir string, logger *slog.Logger) *CheckpointStore {
	return &CheckpointStore{
		path:   filepath.Join(dataDir, checkpointFileName),
		logger: logger,
	}
}

// Load reads the persisted checkpoint. It never fails: a missing or
// corrupt file is indistinguishable from "never synced" and yields a
// zero checkpoint, which the orchestrator answers with a full backfill.
// That fallback loses no data because the dataset merge dedupes by
// signature, so a backfill over already-stored history is idempotent.
func (s *CheckpointStore) Load() Checkpoint {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("checkpoint unreadable, treating as never synced",
				"path", s.path,
				"error", err,
			)
		}
		return Checkpoint{}
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		s.logger.Warn("checkpoint corrupt, treating as never synced",
			"path", s.path,
			"error", err,
		)
		return Checkpoint{}
	}
	return cp
}

// Save writes the checkpoint atomically (temp file + rename) so a crash
// mid-write cannot leave a partial file behind. Failures are logged and
// returned, but callers treat them as best-effort: the next run simply
// sees the old checkpoint and re-fetches overlapping data, which the
// merge dedupe absorbs.
func (s *CheckpointStore) Save(cp Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode checkpoint", "error", err)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Error("failed to create data directory", "path", s.path, "error", err)
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error("failed to write checkpoint", "path", tmp, "error", err)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Error("failed to replace checkpoint", "path", s.path, "error", err)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}
	return nil
}

// Reset removes the persisted checkpoint, forcing the next sync round
// into a full backfill.
func (s *CheckpointStore) Reset() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	return nil
}
