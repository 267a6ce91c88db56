package openid

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAssociationNotFound is returned when a handle is unknown or expired.
var ErrAssociationNotFound = errors.New("association not found")

// AssociationStore persists associations keyed by handle. Implementations
// must be safe for concurrent use: the store is shared by every session on
// the provider, though each session only ever touches its own handles.
type AssociationStore interface {
	Save(ctx context.Context, a *Association) error
	Load(ctx context.Context, handle string) (*Association, error)
	Remove(ctx context.Context, handle string) error
	Close() error
}

// MemoryAssociationStore keeps associations in process memory with
// periodic expiry sweeps. Suitable for single-instance deployments.
type MemoryAssociationStore struct {
	mu     sync.RWMutex
	assocs map[string]*Association
	stopCh chan struct{}
}

// NewMemoryAssociationStore creates a store and starts its sweep goroutine.
func NewMemoryAssociationStore() *MemoryAssociationStore {
	s := &MemoryAssociationStore{
		assocs: make(map[string]*Association),
		stopCh: make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryAssociationStore) Save(ctx context.Context, a *Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assocs[a.Handle] = a
	return nil
}

func (s *MemoryAssociationStore) Load(ctx context.Context, handle string) (*Association, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assocs[handle]
	if !ok || a.Expired() {
		return nil, ErrAssociationNotFound
	}
	return a, nil
}

func (s *MemoryAssociationStore) Remove(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assocs, handle)
	return nil
}

func (s *MemoryAssociationStore) Close() error {
	close(s.stopCh)
	return nil
}

func (s *MemoryAssociationStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			for handle, a := range s.assocs {
				if a.Expired() {
					delete(s.assocs, handle)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}
