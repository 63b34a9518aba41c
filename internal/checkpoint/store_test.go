package checkpoint

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"draftforge/internal/artifact"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		RunID:          "run-42",
		RunName:        "gardener todo",
		Goal:           "a todo app for gardeners",
		GeneratorModel: "llama-3.3-70b",
		ReviewerModel:  "gemini-2.5-flash",
		MaxCycles:      3,
		StageIndex:     1,
		Artifacts: []artifact.Artifact{
			{Type: artifact.TypeBrief, Content: "the brief", Version: 2, Approved: true, StageIndex: 0, CreatedAt: time.Now().UTC().Truncate(time.Second)},
		},
		Clarifications: map[string]string{"concept": "hobbyists, mobile-first"},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), "run-42")

	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	got, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "run-42", got.RunID)
	require.Equal(t, "gardener todo", got.RunName)
	require.Equal(t, 1, got.StageIndex)
	require.Len(t, got.Artifacts, 1)
	require.Equal(t, sampleSnapshot().Artifacts[0].Content, got.Artifacts[0].Content)
	require.Equal(t, "hobbyists, mobile-first", got.Clarifications["concept"])
	require.Equal(t, snapshotVersion, got.Version)
}

func TestLoadThenSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), "run-42")
	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	first, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Save(ctx, first))
	second, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Only the save timestamp may differ.
	first.SavedAt = second.SavedAt
	require.Equal(t, first, second)
}

func TestSnapshotNeverCarriesCredentials(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	s := NewStore(kv, "run-42")
	require.NoError(t, s.Save(ctx, sampleSnapshot()))

	raw, ok, err := kv.Get(ctx, "checkpoint/run-42")
	require.NoError(t, err)
	require.True(t, ok)
	lower := strings.ToLower(raw)
	for _, needle := range []string{"api_key", "apikey", "secret", "token", "credential"} {
		require.NotContains(t, lower, needle)
	}
}

func TestLoadAbsent(t *testing.T) {
	s := NewStore(NewMemoryKV(), "missing")
	_, ok, err := s.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), "run-42")
	require.NoError(t, s.Save(ctx, sampleSnapshot()))
	require.NoError(t, s.Clear(ctx))
	_, ok, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// Clearing an already-absent checkpoint is not an error.
	require.NoError(t, s.Clear(ctx))
}
