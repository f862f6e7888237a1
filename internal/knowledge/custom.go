package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// CustomSource is the source name reported for entries taught by admins.
const CustomSource = "自定义知识库"

// CustomEntry is a keyword entry added at runtime.
type CustomEntry struct {
	Keyword   string
	Content   string
	Author    string
	CreatedAt time.Time
}

// CustomStore holds admin-taught entries.
type CustomStore interface {
	Searcher
	// Learn inserts or replaces the entry for e.Keyword.
	Learn(ctx context.Context, e CustomEntry) error
	// Forget removes keyword, returning ErrEntryNotFound if absent.
	Forget(ctx context.Context, keyword string) error
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
}

// MemoryStore is a process-local CustomStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]CustomEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]CustomEntry)}
}

// Name implements Searcher.
func (m *MemoryStore) Name() string { return CustomSource }

// Learn implements CustomStore.
func (m *MemoryStore) Learn(_ context.Context, e CustomEntry) error {
	key := NormalizeKeyword(e.Keyword)
	if key == "" {
		return ErrEmptyKeyword
	}
	e.Keyword = key
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

// Forget implements CustomStore.
func (m *MemoryStore) Forget(_ context.Context, keyword string) error {
	key := NormalizeKeyword(keyword)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return ErrEntryNotFound
	}
	delete(m.entries, key)
	return nil
}

// Count implements CustomStore.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Search returns entries whose keyword occurs in query, longest keyword first.
func (m *MemoryStore) Search(_ context.Context, query string, limit int) ([]Entry, error) {
	q := NormalizeKeyword(query)
	if q == "" || limit < 1 {
		return nil, nil
	}
	m.mu.RLock()
	var hits []CustomEntry
	for key, e := range m.entries {
		if strings.Contains(q, key) {
			hits = append(hits, e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if len(hits[i].Keyword) != len(hits[j].Keyword) {
			return len(hits[i].Keyword) > len(hits[j].Keyword)
		}
		return hits[i].Keyword < hits[j].Keyword
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Entry, len(hits))
	for i, e := range hits {
		out[i] = CustomToEntry(e)
	}
	return out, nil
}

// NormalizeKeyword lower-cases and trims a keyword.
func NormalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CustomToEntry converts a stored entry to a search result.
func CustomToEntry(e CustomEntry) Entry {
	return Entry{Source: CustomSource, Title: e.Keyword, Content: e.Content}
}
