package news

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"
)

// RunKey is the pass-scoped identity of an item: a hash over the
// title and link concatenated exactly as-is. No separator and no
// normalization; previously persisted keys depend on this exact
// construction. Storage-level duplicate checks key on the link alone
// and are a separate notion, see storage.Store.
func RunKey(title, link string) string {
	sum := sha1.Sum([]byte(title + link))
	return hex.EncodeToString(sum[:])
}

// SeenSet tracks run identities already encountered in a pass.
// Check-and-add happens under one lock so two goroutines can never
// both claim the first sighting of a key.
type SeenSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{keys: make(map[string]struct{})}
}

// Add marks the key and reports whether this was its first sighting.
func (s *SeenSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Seen reports membership without marking.
func (s *SeenSet) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.keys[key]
	return ok
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.keys)
}
