// Package frecency ranks whole command strings by a blend of frequency and
// recency. It owns the prefix trie used for lookup, a patricia identity
// index for O(len) text-to-id resolution, and the snapshot persistence.
package frecency

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/logger"
	"github.com/jacksonhunter/PowerAuger-sub000/internal/utils"
)

// Entry is one ranked command.
type Entry struct {
	ID         int64
	Text       string
	Score      float64
	LastUsedAt time.Time
}

// HistoryEntry seeds the store from shell history when no snapshot exists.
// The host pre-filters history to syntactically valid lines before handing
// it over.
type HistoryEntry struct {
	Text  string
	Count int
}

// Options configures a Store. Zero values fall back to the defaults below.
type Options struct {
	DataDir      string
	Capacity     int
	ScoreCeiling float64
	ScoreFloor   float64
	DecayFactor  float64
	Interval     time.Duration
	Logger       *log.Logger
}

const (
	defaultCapacity     = 2000
	defaultScoreCeiling = 10000
	defaultScoreFloor   = 0.1
	defaultDecayFactor  = 0.75
	defaultInterval     = 5 * time.Minute

	// maintenance is scheduled every this many IncrementRank calls, on top
	// of the periodic timer.
	maintenanceEvery = 100
)

// Store is safe for concurrent use. All reads and mutations take one
// mutex; maintenance does its file I/O outside of it.
type Store struct {
	mu        sync.Mutex
	entries   map[int64]*Entry
	trie      *prefixTrie
	identity  *patricia.Trie // lowercased normalized text -> int64 id
	total     float64
	nextID    int64
	lastAged  time.Time
	mutations int

	opts   Options
	logger *log.Logger

	maintCh chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewStore creates a Store and starts its background maintenance loop.
// Call Close to stop the loop and persist a final snapshot.
func NewStore(opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.ScoreCeiling <= 0 {
		opts.ScoreCeiling = defaultScoreCeiling
	}
	if opts.ScoreFloor <= 0 {
		opts.ScoreFloor = defaultScoreFloor
	}
	if opts.DecayFactor <= 0 || opts.DecayFactor >= 1 {
		opts.DecayFactor = defaultDecayFactor
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.New("frecency")
	}

	s := &Store{
		entries:  make(map[int64]*Entry),
		trie:     newPrefixTrie(),
		identity: patricia.NewTrie(),
		nextID:   1,
		lastAged: time.Now(),
		opts:     opts,
		logger:   opts.Logger,
		maintCh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.maintenanceLoop()
	return s
}

// Initialize loads the binary snapshot when one exists. A missing or
// corrupt snapshot is not an error: the store starts empty and the caller
// may Seed it from shell history.
func (s *Store) Initialize() error {
	if s.opts.DataDir == "" {
		return nil
	}
	if err := s.loadSnapshot(); err != nil {
		s.logger.Warnf("snapshot load failed, starting empty: %v", err)
	}
	return nil
}

// Seed imports pre-validated history lines, using observed frequency as
// the initial score. Lines already present just gain score.
func (s *Store) Seed(history []HistoryEntry) {
	for _, h := range history {
		if h.Count <= 0 {
			h.Count = 1
		}
		s.AddCommand(h.Text, float64(h.Count))
	}
	s.logger.Debugf("seeded %d history entries", len(history))
}

// AddCommand records a command observation. Existing text (matched
// case-insensitively after normalization) gains initial score and a fresh
// LastUsedAt; new text becomes a new ranked entry.
func (s *Store) AddCommand(text string, initial float64) {
	if initial <= 0 {
		initial = 1
	}
	s.mu.Lock()
	s.upsertLocked(text, initial)
	s.mu.Unlock()
}

// IncrementRank is the acceptance/execution update path. Unknown commands
// are added: discovered-through-use commands earn a place. Every 100th
// call schedules asynchronous maintenance.
func (s *Store) IncrementRank(text string, amount float64) {
	if amount <= 0 {
		amount = 1
	}
	s.mu.Lock()
	s.upsertLocked(text, amount)
	s.mutations++
	schedule := s.mutations%maintenanceEvery == 0
	s.mu.Unlock()

	if schedule {
		s.ScheduleMaintenance()
	}
}

// upsertLocked is the shared mutation path. Caller holds s.mu.
func (s *Store) upsertLocked(text string, amount float64) {
	norm := utils.NormalizeCommand(text)
	if norm == "" {
		return
	}
	key := strings.ToLower(norm)

	if item := s.identity.Get(patricia.Prefix(key)); item != nil {
		id := item.(int64)
		entry := s.entries[id]
		entry.Score += amount
		entry.LastUsedAt = time.Now()
		s.total += amount
		return
	}

	id := s.nextID
	s.nextID++
	s.entries[id] = &Entry{
		ID:         id,
		Text:       norm,
		Score:      amount,
		LastUsedAt: time.Now(),
	}
	s.trie.Insert(key, id)
	s.identity.Insert(patricia.Prefix(key), id)
	s.total += amount
}

// TopCommands returns up to n command texts matching prefix, ordered by
// current frecency. Scoring applies the decay multiplier at query time;
// stored scores are never mutated on read.
func (s *Store) TopCommands(prefix string, n int) []string {
	if n <= 0 || prefix == "" {
		return nil
	}
	now := time.Now()

	// normalization collapses runs but a trailing space is significant for
	// prefix matching ("git " must not match "github")
	key := strings.ToLower(utils.NormalizeCommand(prefix))
	if key != "" && prefix != strings.TrimRight(prefix, " \t") {
		key += " "
	}

	s.mu.Lock()
	ids := s.trie.Lookup(key)
	type scored struct {
		text string
		val  float64
	}
	matches := make([]scored, 0, len(ids))
	for _, id := range ids {
		entry, ok := s.entries[id]
		if !ok {
			continue
		}
		matches = append(matches, scored{entry.Text, frecencyAt(entry, now)})
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].val != matches[j].val {
			return matches[i].val > matches[j].val
		}
		return matches[i].text < matches[j].text
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.text
	}
	return texts
}

// frecencyAt computes the query-time score: the raw rank times a bounded
// recency multiplier that approaches 3 for just-used commands and falls
// toward 0 as the command goes unused.
func frecencyAt(e *Entry, now time.Time) float64 {
	s := now.Sub(e.LastUsedAt).Seconds()
	if s < 0 {
		s = 0
	}
	return e.Score * (3.75 / (0.0001*s + 1.25))
}

// Len returns the number of ranked entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns counters for debugging and the IPC stats op.
func (s *Store) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		"entries":    len(s.entries),
		"totalScore": int(s.total),
		"capacity":   s.opts.Capacity,
		"mutations":  s.mutations,
	}
}

// ScheduleMaintenance requests an asynchronous maintenance pass. Multiple
// requests coalesce.
func (s *Store) ScheduleMaintenance() {
	select {
	case s.maintCh <- struct{}{}:
	default:
	}
}

// maintenanceLoop runs PerformMaintenance on the periodic timer and on
// demand, and is joined during Close.
func (s *Store) maintenanceLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.PerformMaintenance()
		case <-s.maintCh:
			s.PerformMaintenance()
		}
	}
}

// PerformMaintenance runs aging, then tree-shaking, then persist — in that
// fixed order, so what survives does not depend on scheduling accidents.
// Mutation happens under the lock; snapshot bytes are written outside it.
func (s *Store) PerformMaintenance() {
	s.mu.Lock()
	s.ageLocked()
	s.shakeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.opts.DataDir == "" {
		return
	}
	if err := s.writeSnapshot(snap); err != nil {
		s.logger.Errorf("snapshot persist failed: %v", err)
		return
	}
	go func() {
		if err := s.writeMirror(snap); err != nil {
			s.logger.Warnf("json mirror refresh failed: %v", err)
		}
	}()
}

// ageLocked decays every raw score once the running total crosses the
// ceiling, dropping entries that fall under the floor.
func (s *Store) ageLocked() {
	if s.total <= s.opts.ScoreCeiling {
		return
	}
	var removed int
	s.total = 0
	for id, entry := range s.entries {
		entry.Score *= s.opts.DecayFactor
		if entry.Score < s.opts.ScoreFloor {
			delete(s.entries, id)
			s.identity.Delete(patricia.Prefix(strings.ToLower(entry.Text)))
			s.trie.Remove(id)
			removed++
			continue
		}
		s.total += entry.Score
	}
	s.lastAged = time.Now()
	if removed > 0 {
		s.logger.Debugf("aging removed %d entries below score floor", removed)
	}
}

// shakeLocked enforces the entry capacity, keeping the top entries by
// current frecency and pruning the trie against the survivors.
func (s *Store) shakeLocked() {
	if len(s.entries) <= s.opts.Capacity {
		return
	}
	now := time.Now()
	all := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		all = append(all, entry)
	}
	sort.Slice(all, func(i, j int) bool {
		return frecencyAt(all[i], now) > frecencyAt(all[j], now)
	})

	for _, entry := range all[s.opts.Capacity:] {
		s.total -= entry.Score
		delete(s.entries, entry.ID)
		s.identity.Delete(patricia.Prefix(strings.ToLower(entry.Text)))
	}

	valid := make(map[int64]struct{}, len(s.entries))
	for id := range s.entries {
		valid[id] = struct{}{}
	}
	s.trie.Prune(valid)
	s.logger.Debugf("tree-shaking kept %d of %d entries", len(s.entries), len(all))
}

// Close stops the maintenance loop and persists a final snapshot.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()

	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.opts.DataDir == "" {
		return nil
	}
	if err := s.writeSnapshot(snap); err != nil {
		return err
	}
	return s.writeMirror(snap)
}
