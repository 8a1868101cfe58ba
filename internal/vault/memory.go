package vault

import (
	"context"
	"sync"
	"time"

	"backup_vault/internal/model"
)

type (
	// memoryAccount wraps one account record with its own lock so
	// operations on distinct accounts don't contend. deleted is a
	// tombstone: a Reset that races an in-flight RetrieveNext marks the
	// record dead, and the retrieval observes NotFound instead of
	// mutating a dropped record.
	memoryAccount struct {
		mu      sync.Mutex
		deleted bool
		acc     model.Account
	}

	// MemoryStore is the reference Store backend: a guarded map. The map
	// lock covers membership (register/reset/count); each account's lock
	// covers its check-then-mutate retrieval sequence.
	MemoryStore struct {
		mu       sync.RWMutex
		accounts map[string]*memoryAccount
		cooldown time.Duration
		now      func() time.Time
	}
)

func NewMemoryStore(cooldown time.Duration) *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*memoryAccount),
		cooldown: cooldown,
		now:      time.Now,
	}
}

func (s *MemoryStore) Register(_ context.Context, username string, envelopes []string) error {
	if err := validateRegistration(username, envelopes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[username]; ok {
		return ErrAlreadyExists
	}

	s.accounts[username] = &memoryAccount{
		acc: model.Account{
			Username:        username,
			Envelopes:       append([]string(nil), envelopes...),
			RedeemedIndices: []int{},
			CreatedAt:       s.now(),
		},
	}
	return nil
}

func (s *MemoryStore) RetrieveNext(_ context.Context, username string) (*Retrieval, error) {
	s.mu.RLock()
	a := s.accounts[username]
	s.mu.RUnlock()

	if a == nil {
		return nil, ErrNotFound
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.deleted {
		return nil, ErrNotFound
	}

	now := s.now()
	if wait := cooldownRemaining(a.acc.LastRequest, now, s.cooldown); wait > 0 {
		return nil, &RateLimitedError{RetryAfter: wait}
	}

	idx := a.acc.NextUnredeemed()
	if idx < 0 {
		return nil, ErrExhausted
	}

	a.acc.RedeemedIndices = append(a.acc.RedeemedIndices, idx)
	a.acc.LastRequest = &now

	return &Retrieval{
		Envelope:  a.acc.Envelopes[idx],
		Remaining: a.acc.Remaining(),
		Total:     len(a.acc.Envelopes),
	}, nil
}

func (s *MemoryStore) Reset(_ context.Context, username string) error {
	s.mu.Lock()
	a := s.accounts[username]
	if a == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.accounts, username)
	s.mu.Unlock()

	a.mu.Lock()
	a.deleted = true
	a.mu.Unlock()
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.accounts)), nil
}
