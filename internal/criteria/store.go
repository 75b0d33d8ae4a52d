package criteria

import "sync/atomic"

// Store holds the current criteria snapshot. Readers always see a complete
// snapshot; Swap replaces it atomically.
type Store struct {
	current atomic.Pointer[Criteria]
}

// NewStore creates a store holding c, or the built-in criteria when c is nil
func NewStore(c *Criteria) *Store {
	if c == nil {
		c = Default()
	}
	s := &Store{}
	s.current.Store(c)
	return s
}

// Current returns the active snapshot
func (s *Store) Current() *Criteria {
	return s.current.Load()
}

// Swap installs c and returns the previous snapshot. A nil c is ignored.
func (s *Store) Swap(c *Criteria) *Criteria {
	if c == nil {
		return s.current.Load()
	}
	return s.current.Swap(c)
}
