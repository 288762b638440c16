// Package watchlist tracks the latest recommendation per watched pair so
// scheduled refreshes can alert on changes.
package watchlist

import (
	"log"
	"sort"
	"sync"
	"time"

	"CryptoLens/internal/model"
)

// Key identifies a watched pair and timeframe.
func Key(pair model.AssetPair, tf model.Timeframe) string {
	return pair.String() + "|" + string(tf)
}

// Manager guards the watchlist state and persists every mutation.
type Manager struct {
	mu       sync.Mutex
	state    *State
	filePath string
	now      func() time.Time
}

// NewManager loads or initializes the state at filePath. An empty path keeps
// the watchlist in memory only.
func NewManager(filePath string) (*Manager, error) {
	state := &State{Entries: map[string]*Entry{}}
	if filePath != "" {
		var err error
		if state, err = LoadState(filePath); err != nil {
			return nil, err
		}
	}
	m := &Manager{state: state, filePath: filePath, now: time.Now}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Update stores the latest result for pair/tf. changed is true when an
// earlier recommendation existed and differs from the new one.
func (m *Manager) Update(pair model.AssetPair, tf model.Timeframe, r model.IndicatorResult) (changed bool, previous model.Recommendation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key(pair, tf)
	e, ok := m.state.Entries[key]
	if !ok {
		e = &Entry{Pair: pair, Timeframe: tf}
		m.state.Entries[key] = e
	} else {
		previous = e.Recommendation
		changed = previous != r.Recommendation
	}
	if changed {
		e.Changes++
	}
	e.Recommendation = r.Recommendation
	e.Trend = r.Trend
	e.Price = r.Price
	e.RSI = r.RSI
	e.UpdatedAt = m.now()

	if err := m.save(); err != nil {
		log.Printf("[ERROR] failed to save watchlist state: %v", err)
	}
	return changed, previous
}

// Get returns a copy of the entry for pair/tf.
func (m *Manager) Get(pair model.AssetPair, tf model.Timeframe) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.state.Entries[Key(pair, tf)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot returns copies of all entries ordered by key.
func (m *Manager) Snapshot() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.state.Entries))
	for k := range m.state.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, *m.state.Entries[k])
	}
	return out
}

// MarkDigest records that a digest was sent.
func (m *Manager) MarkDigest() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.LastDigestAt = m.now()
	if err := m.save(); err != nil {
		log.Printf("[ERROR] failed to save watchlist state after digest: %v", err)
	}
}

// LastDigestAt reports when the last digest went out.
func (m *Manager) LastDigestAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LastDigestAt
}

func (m *Manager) save() error {
	if m.filePath == "" {
		return nil
	}
	return SaveState(m.filePath, m.state)
}
