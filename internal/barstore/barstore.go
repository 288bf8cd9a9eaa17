package barstore

import (
	"sync"

	"livechart/internal/types"
)

// Store holds the ordered bar sequence for a single series key.
//
// Bars are kept sorted ascending by time with unique timestamps. Replace
// installs a full snapshot; Merge only ever appends bars newer than the last
// stored one, so in incremental use no bar is removed or mutated.
type Store struct {
	mu          sync.RWMutex
	bars        []types.Bar
	initialized bool
}

// New creates an empty, uninitialized store
func New() *Store {
	return &Store{}
}

// Replace discards the current sequence and installs bars verbatim.
// The caller supplies bars already sorted by time.
func (s *Store) Replace(bars []types.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bars = append(make([]types.Bar, 0, len(bars)), bars...)
	s.initialized = true
}

// Merge appends the bars strictly newer than the last stored bar, keeping
// their relative order. On an uninitialized store it behaves as Replace.
// It returns the number of bars appended.
func (s *Store) Merge(newBars []types.Bar) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		s.bars = append(make([]types.Bar, 0, len(newBars)), newBars...)
		s.initialized = true
		return len(newBars)
	}

	if len(s.bars) == 0 {
		s.bars = append(s.bars, newBars...)
		return len(newBars)
	}

	lastTime := s.bars[len(s.bars)-1].Time
	added := 0
	for _, b := range newBars {
		if b.Time.After(lastTime) {
			s.bars = append(s.bars, b)
			added++
		}
	}
	return added
}

// Reset clears the sequence and the initialized flag.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bars = nil
	s.initialized = false
}

// CurrentBars returns a copy of the stored sequence.
func (s *Store) CurrentBars() []types.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Initialized reports whether a snapshot has been installed
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Len returns the number of stored bars
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

// Last returns the newest stored bar.
func (s *Store) Last() (types.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.bars) == 0 {
		return types.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}
