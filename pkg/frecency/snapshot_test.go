package frecency

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEncodeDecodeRoundTrip(t *testing.T) {
	in := snapshot{
		total:    42.5,
		lastAged: time.Unix(0, 1700000000000000000),
		entries: []Entry{
			{ID: 1, Text: "git status", Score: 3.5, LastUsedAt: time.Unix(0, 1700000001000000000)},
			{ID: 7, Text: "docker compose up -d", Score: 1.25, LastUsedAt: time.Unix(0, 1700000002000000000)},
		},
	}

	data, err := encodeSnapshot(in)
	require.NoError(t, err)

	out, err := decodeSnapshot(bytes.NewReader(data))
	require.NoError(t, err)

	assert.InDelta(t, in.total, out.total, 1e-3)
	assert.Equal(t, in.lastAged.UnixNano(), out.lastAged.UnixNano())
	require.Len(t, out.entries, len(in.entries))
	for i, want := range in.entries {
		got := out.entries[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Text, got.Text)
		assert.InDelta(t, want.Score, got.Score, 1e-5)
		assert.Equal(t, want.LastUsedAt.UnixNano(), got.LastUsedAt.UnixNano())
	}
}

func TestStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()

	s := newTestStore(t, Options{DataDir: dir})
	s.AddCommand("git status", 2.0)
	s.AddCommand("kubectl get pods", 4.0)
	s.PerformMaintenance()

	require.FileExists(t, filepath.Join(dir, snapshotFile))

	reloaded := newTestStore(t, Options{DataDir: dir})
	require.NoError(t, reloaded.Initialize())

	require.Equal(t, s.Len(), reloaded.Len())
	assert.Equal(t, []string{"git status"}, reloaded.TopCommands("git", 5))
	assert.Equal(t, []string{"kubectl get pods"}, reloaded.TopCommands("kub", 5))

	// entry identity survives byte-for-byte (ids, text, score, timestamps)
	for id, want := range s.entries {
		got, ok := reloaded.entries[id]
		require.True(t, ok, "id %d missing after reload", id)
		assert.Equal(t, want.Text, got.Text)
		assert.InDelta(t, want.Score, got.Score, 1e-5)
		assert.Equal(t, want.LastUsedAt.UnixNano(), got.LastUsedAt.UnixNano())
	}
}

func TestNewIDsContinueAfterReload(t *testing.T) {
	dir := t.TempDir()

	s := newTestStore(t, Options{DataDir: dir})
	s.AddCommand("first command", 1.0)
	s.AddCommand("second command", 1.0)
	s.PerformMaintenance()

	reloaded := newTestStore(t, Options{DataDir: dir})
	require.NoError(t, reloaded.Initialize())
	reloaded.AddCommand("third command", 1.0)

	seen := make(map[int64]bool)
	for id := range reloaded.entries {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte("not a snapshot"), 0644))

	s := newTestStore(t, Options{DataDir: dir})
	require.NoError(t, s.Initialize())
	assert.Equal(t, 0, s.Len())
}

func TestMirrorIsSortedByFrecency(t *testing.T) {
	dir := t.TempDir()

	s := newTestStore(t, Options{DataDir: dir})
	s.AddCommand("rarely used", 1.0)
	s.AddCommand("often used", 9.0)

	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	require.NoError(t, s.writeMirror(snap))

	data, err := os.ReadFile(filepath.Join(dir, mirrorFile))
	require.NoError(t, err)

	var mirror []mirrorEntry
	require.NoError(t, json.Unmarshal(data, &mirror))
	require.Len(t, mirror, 2)
	assert.Equal(t, "often used", mirror[0].Command)
	assert.GreaterOrEqual(t, mirror[0].Frecency, mirror[1].Frecency)
}
