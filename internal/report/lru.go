package report

import (
	"container/list"
	"sync"
)

// LRUStore keeps the most recently used results in memory and delegates
// to a backing Store on a miss.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	back  Store
	order *list.List // of *RunResult, most recent at front
	items map[string]*list.Element
}

// NewLRUStore creates a cache holding up to cap results in front of back.
// A cap below 1 is treated as 1.
func NewLRUStore(cap int, back Store) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		back:  back,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save caches result and writes it through to the backing store.
func (s *LRUStore) Save(result *RunResult) error {
	s.put(result)
	return s.back.Save(result)
}

// Load returns a cached result, or loads it from the backing store and
// caches it.
func (s *LRUStore) Load(runID string) (*RunResult, error) {
	s.mu.Lock()
	if e, ok := s.items[runID]; ok {
		s.order.MoveToFront(e)
		r := e.Value.(*RunResult)
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	result, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.put(result)
	return result, nil
}

// Len returns the number of cached results.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

func (s *LRUStore) put(result *RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[result.ID]; ok {
		e.Value = result
		s.order.MoveToFront(e)
		return
	}
	s.items[result.ID] = s.order.PushFront(result)
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*RunResult).ID)
	}
}
