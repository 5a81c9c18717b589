package cache

import (
	"context"
	"sync"
	"time"
)

// RevocationList remembers signed-out session tokens until they expire.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocationList keeps revocations in process. Entries are dropped
// lazily once their expiry has passed.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, expiry := range l.entries {
		if !expiry.After(now) {
			delete(l.entries, id)
		}
	}
	if until.After(now) {
		l.entries[tokenID] = until
	}
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.entries[tokenID]
	if !ok {
		return false, nil
	}
	if !expiry.After(l.now()) {
		delete(l.entries, tokenID)
		return false, nil
	}
	return true, nil
}
