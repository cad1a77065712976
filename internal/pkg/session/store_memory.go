package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memoryStore keeps device tokens in process memory. It backs the
// single-node deployment mode and doubles as the test store.
type memoryStore struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Token
}

// NewMemoryStore creates an in-memory token store.
func NewMemoryStore() Store {
	return &memoryStore{byUser: make(map[string]map[string]Token)}
}

func (s *memoryStore) Put(ctx context.Context, t Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byUser[t.Username]
	if !ok {
		user = make(map[string]Token)
		s.byUser[t.Username] = user
	}
	user[t.TokenID] = t
	return nil
}

func (s *memoryStore) Get(ctx context.Context, username, tokenID string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byUser[username][tokenID]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *memoryStore) ListByUser(ctx context.Context, username string) ([]Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokens := make([]Token, 0, len(s.byUser[username]))
	for _, t := range s.byUser[username] {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].IssuedAt.After(tokens[j].IssuedAt)
	})
	return tokens, nil
}

func (s *memoryStore) Delete(ctx context.Context, username, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byUser[username]
	if !ok {
		return false, nil
	}
	if _, ok := user[tokenID]; !ok {
		return false, nil
	}
	delete(user, tokenID)
	return true, nil
}

func (s *memoryStore) DeleteAllByUser(ctx context.Context, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.byUser[username])
	delete(s.byUser, username)
	return n, nil
}

// PurgeExpired sweeps records past their expiry.
func (s *memoryStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for username, user := range s.byUser {
		for id, t := range user {
			if t.Expired(now) {
				delete(user, id)
				n++
			}
		}
		if len(user) == 0 {
			delete(s.byUser, username)
		}
	}
	return n, nil
}
