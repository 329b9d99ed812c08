package memorystore

import (
	"sort"
	"strings"
	"sync"

	"chartfeed/internal/datafeed"
)

// MemorySymbolStore is the in-memory symbol catalog used for search and labels.
type MemorySymbolStore struct {
	mu      sync.RWMutex
	symbols map[string]datafeed.SymbolMeta
}

var _ datafeed.SymbolCatalog = (*MemorySymbolStore)(nil)

func NewSymbolStore() *MemorySymbolStore {
	return &MemorySymbolStore{
		symbols: make(map[string]datafeed.SymbolMeta),
	}
}

// Add inserts or replaces the entry for meta.Symbol.
func (s *MemorySymbolStore) Add(meta datafeed.SymbolMeta) {
	if meta.Symbol == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols[meta.Symbol] = meta
}

// Replace swaps the whole catalog for metas. An empty batch is ignored so a
// failed load keeps the previous catalog.
func (s *MemorySymbolStore) Replace(metas []datafeed.SymbolMeta) bool {
	next := make(map[string]datafeed.SymbolMeta, len(metas))
	for _, m := range metas {
		if m.Symbol != "" {
			next[m.Symbol] = m
		}
	}
	if len(next) == 0 {
		return false
	}
	s.mu.Lock()
	s.symbols = next
	s.mu.Unlock()
	return true
}

// ReplaceWorker collects one full load from ch and swaps it in once ch is
// closed, dropping symbols the load no longer lists. done, if not nil, is
// closed afterwards.
func (s *MemorySymbolStore) ReplaceWorker(ch <-chan datafeed.SymbolMeta, done chan<- struct{}) {
	go func() {
		var batch []datafeed.SymbolMeta
		for meta := range ch {
			batch = append(batch, meta)
		}
		s.Replace(batch)
		if done != nil {
			close(done)
		}
	}()
}

// GetAll returns every symbol sorted by name.
func (s *MemorySymbolStore) GetAll() []datafeed.SymbolMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]datafeed.SymbolMeta, 0, len(s.symbols))
	for _, m := range s.symbols {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Search returns symbols whose name or description contains query,
// case-insensitively. An empty query matches everything.
func (s *MemorySymbolStore) Search(query string) []datafeed.SymbolMeta {
	q := strings.ToLower(strings.TrimSpace(query))

	var out []datafeed.SymbolMeta
	for _, m := range s.GetAll() {
		if q == "" ||
			strings.Contains(strings.ToLower(m.Symbol), q) ||
			strings.Contains(strings.ToLower(m.Description), q) {
			out = append(out, m)
		}
	}
	return out
}

func (s *MemorySymbolStore) Lookup(symbol string) (datafeed.SymbolMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.symbols[symbol]
	return m, ok
}

func (s *MemorySymbolStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}
