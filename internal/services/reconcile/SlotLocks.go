package reconcile

import "sync"

// slotLocks hands out one mutex per (symbol, side) slot key. Slots are
// created on first use and kept for the process lifetime; the universe of
// traded slots is small.
type slotLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSlotLocks() *slotLocks {
	return &slotLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the slot's mutex and returns its release func.
func (s *slotLocks) lock(key string) func() {
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
