// Package checkpoint persists run progress so an interrupted run can resume
// without repeating finalized artifacts.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"draftforge/internal/artifact"
)

// KV is the durable string store the checkpoint rides on. Backends: memory,
// file, postgres, s3.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

const snapshotVersion = 1

// Snapshot is the durable resume state. It deliberately has no field for any
// credential; API keys live in the environment and are re-read on resume.
type Snapshot struct {
	Version        int                `json:"version"`
	RunID          string             `json:"run_id"`
	RunName        string             `json:"run_name"`
	Goal           string             `json:"goal"`
	GeneratorModel string             `json:"generator_model"`
	ReviewerModel  string             `json:"reviewer_model"`
	MaxCycles      int                `json:"max_cycles"`
	StageIndex     int                `json:"stage_index"`
	Artifacts      []artifact.Artifact `json:"artifacts"`
	Clarifications map[string]string  `json:"clarifications,omitempty"`
	LastError      string             `json:"last_error,omitempty"`
	SavedAt        time.Time          `json:"saved_at"`
}

// Store binds one run's checkpoint to a key in the KV medium.
type Store struct {
	kv  KV
	key string
}

func NewStore(kv KV, runID string) *Store {
	return &Store{kv: kv, key: "checkpoint/" + runID}
}

// Save writes the snapshot. Saving unchanged data after a Load is idempotent;
// the only mutated fields are Version and SavedAt, which carry no progress.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	snap.Version = snapshotVersion
	snap.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("checkpoint: save: %w", err)
	}
	return nil
}

// Load reads the snapshot back. The second return is false when no checkpoint
// exists for this run.
func (s *Store) Load(ctx context.Context) (Snapshot, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("checkpoint: load: %w", err)
	}
	if !ok {
		return Snapshot{}, false, nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("checkpoint: decode: %w", err)
	}
	return snap, true, nil
}

// Clear removes the checkpoint after a successful run completion.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("checkpoint: clear: %w", err)
	}
	return nil
}
