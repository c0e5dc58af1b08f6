package history

import "sync"

// DefaultCapacity is how many commands are kept per user.
const DefaultCapacity = 10

// Store keeps a bounded command history per user. Users are keyed by their
// ACL attribute. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	capacity int
	rings    map[string]*Ring[string]
}

// NewStore builds an empty store. A capacity below 1 uses DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		rings:    make(map[string]*Ring[string]),
	}
}

// Push records cmd for user, dropping the user's oldest entry when full.
func (s *Store) Push(user, cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.rings[user]
	if !ok {
		ring = NewRing[string](s.capacity)
		s.rings[user] = ring
	}
	ring.Push(cmd)
}

// Entries returns the user's history oldest first.
func (s *Store) Entries(user string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.rings[user]
	if !ok {
		return nil
	}
	return ring.Items()
}

// Last returns the user's most recent entry.
func (s *Store) Last(user string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.rings[user]
	if !ok {
		return "", false
	}
	return ring.Last()
}

func (s *Store) Len(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.rings[user]
	if !ok {
		return 0
	}
	return ring.Len()
}

// Clear forgets the user's history.
func (s *Store) Clear(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rings, user)
}

// Capacity is the per user limit.
func (s *Store) Capacity() int {
	return s.capacity
}
