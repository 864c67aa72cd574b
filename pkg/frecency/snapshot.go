package frecency

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tchap/go-patricia/v2/patricia"
)

const (
	snapshotVersion = 1
	snapshotFile    = "frecency.bin"
	mirrorFile      = "frecency.json"

	// guards against a corrupt header allocating the world
	maxSnapshotEntries = 1 << 20
)

// snapshot is an immutable copy of store state, taken under the lock and
// serialized outside of it.
type snapshot struct {
	total    float64
	lastAged time.Time
	takenAt  time.Time
	entries  []Entry
}

func (s *Store) snapshotLocked() snapshot {
	snap := snapshot{
		total:    s.total,
		lastAged: s.lastAged,
		takenAt:  time.Now(),
		entries:  make([]Entry, 0, len(s.entries)),
	}
	for _, entry := range s.entries {
		snap.entries = append(snap.entries, *entry)
	}
	return snap
}

// Binary layout, little-endian:
//
//	[int32 version][float32 totalScore][int64 lastAgedUnixNano][int32 count]
//	count x [int64 id][uint16 textLen][text][float32 score][int64 lastUsedUnixNano]
func encodeSnapshot(snap snapshot) ([]byte, error) {
	var buf bytes.Buffer
	write := func(v any) error { return binary.Write(&buf, binary.LittleEndian, v) }

	if err := write(int32(snapshotVersion)); err != nil {
		return nil, err
	}
	if err := write(float32(snap.total)); err != nil {
		return nil, err
	}
	if err := write(snap.lastAged.UnixNano()); err != nil {
		return nil, err
	}
	if err := write(int32(len(snap.entries))); err != nil {
		return nil, err
	}
	for _, e := range snap.entries {
		if len(e.Text) > math.MaxUint16 {
			continue
		}
		if err := write(e.ID); err != nil {
			return nil, err
		}
		if err := write(uint16(len(e.Text))); err != nil {
			return nil, err
		}
		buf.WriteString(e.Text)
		if err := write(float32(e.Score)); err != nil {
			return nil, err
		}
		if err := write(e.LastUsedAt.UnixNano()); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(r io.Reader) (snapshot, error) {
	var snap snapshot
	read := func(v any) error { return binary.Read(r, binary.LittleEndian, v) }

	var version int32
	if err := read(&version); err != nil {
		return snap, fmt.Errorf("reading snapshot header: %w", err)
	}
	if version != snapshotVersion {
		return snap, fmt.Errorf("unsupported snapshot version %d", version)
	}

	var total float32
	if err := read(&total); err != nil {
		return snap, err
	}
	var lastAgedNano int64
	if err := read(&lastAgedNano); err != nil {
		return snap, err
	}
	var count int32
	if err := read(&count); err != nil {
		return snap, err
	}
	if count < 0 || count > maxSnapshotEntries {
		return snap, fmt.Errorf("implausible snapshot entry count %d", count)
	}

	snap.total = float64(total)
	snap.lastAged = time.Unix(0, lastAgedNano)
	snap.entries = make([]Entry, 0, count)

	for i := int32(0); i < count; i++ {
		var e Entry
		if err := read(&e.ID); err != nil {
			return snap, fmt.Errorf("entry %d: %w", i, err)
		}
		var textLen uint16
		if err := read(&textLen); err != nil {
			return snap, fmt.Errorf("entry %d: %w", i, err)
		}
		text := make([]byte, textLen)
		if _, err := io.ReadFull(r, text); err != nil {
			return snap, fmt.Errorf("entry %d text: %w", i, err)
		}
		e.Text = string(text)
		var score float32
		if err := read(&score); err != nil {
			return snap, fmt.Errorf("entry %d: %w", i, err)
		}
		e.Score = float64(score)
		var usedNano int64
		if err := read(&usedNano); err != nil {
			return snap, fmt.Errorf("entry %d: %w", i, err)
		}
		e.LastUsedAt = time.Unix(0, usedNano)
		snap.entries = append(snap.entries, e)
	}
	return snap, nil
}

// writeSnapshot persists via write-temp-then-atomic-rename so a crash
// mid-write never clobbers the live snapshot.
func (s *Store) writeSnapshot(snap snapshot) error {
	if err := os.MkdirAll(s.opts.DataDir, 0755); err != nil {
		return err
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	live := filepath.Join(s.opts.DataDir, snapshotFile)
	tmp := live + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, live); err != nil {
		os.Remove(tmp)
		return err
	}
	s.logger.Debugf("persisted %d entries to %s", len(snap.entries), live)
	return nil
}

// loadSnapshot replaces in-memory state with the on-disk snapshot.
func (s *Store) loadSnapshot() error {
	path := filepath.Join(s.opts.DataDir, snapshotFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	snap, err := decodeSnapshot(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[int64]*Entry, len(snap.entries))
	s.trie = newPrefixTrie()
	s.identity = patricia.NewTrie()
	s.total = snap.total
	s.lastAged = snap.lastAged
	s.nextID = 1
	for i := range snap.entries {
		e := snap.entries[i]
		key := strings.ToLower(e.Text)
		s.entries[e.ID] = &e
		s.trie.Insert(key, e.ID)
		s.identity.Insert(patricia.Prefix(key), e.ID)
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	s.logger.Debugf("loaded %d entries from snapshot", len(snap.entries))
	return nil
}

// mirrorEntry is the advisory human-readable form. Never read back.
type mirrorEntry struct {
	Command  string    `json:"command"`
	Rank     float64   `json:"rank"`
	LastUsed time.Time `json:"lastUsed"`
	Frecency float64   `json:"frecency"`
}

func (s *Store) writeMirror(snap snapshot) error {
	mirror := make([]mirrorEntry, 0, len(snap.entries))
	for i := range snap.entries {
		e := &snap.entries[i]
		mirror = append(mirror, mirrorEntry{
			Command:  e.Text,
			Rank:     e.Score,
			LastUsed: e.LastUsedAt,
			Frecency: frecencyAt(e, snap.takenAt),
		})
	}
	sort.Slice(mirror, func(i, j int) bool {
		return mirror[i].Frecency > mirror[j].Frecency
	})
	data, err := json.MarshalIndent(mirror, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.opts.DataDir, mirrorFile), data, 0644)
}
