// Package core holds the in-memory origin credential and fans changes out
// to subscribers.
package core

import "sync"

// Store holds the shared origin credential. It is never persisted.
type Store struct {
	mu          sync.RWMutex
	key         string
	subscribers map[int]chan string
	nextID      int
}

// NewStore creates a store seeded with key.
func NewStore(key string) *Store {
	return &Store{key: key, subscribers: make(map[int]chan string)}
}

// APIKey returns the current credential.
func (s *Store) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// SetAPIKey replaces the credential and notifies subscribers. Setting the
// current value again is a no-op.
func (s *Store) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == s.key {
		return
	}
	s.key = key
	for _, ch := range s.subscribers {
		// Slow subscribers only ever see the newest value.
		select {
		case <-ch:
		default:
		}
		ch <- key
	}
}

// Subscribe returns a channel receiving each new credential and a function
// releasing the subscription.
func (s *Store) Subscribe() (<-chan string, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan string, 1)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
