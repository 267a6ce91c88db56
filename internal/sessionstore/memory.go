package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/ParleSec/openid-provider/pkg/models"
)

// MemoryStore keeps session records in process memory with a periodic
// expiry sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.SessionRecord
	stopCh  chan struct{}
}

// NewMemoryStore creates a store and starts its sweep goroutine.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*models.SessionRecord),
		stopCh:  make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Get(ctx context.Context, token string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[token]
	if !ok || time.Now().After(rec.ExpiresAt) {
		return nil, ErrNotFound
	}
	cp := *rec
	cp.ApprovedRealms = append([]string(nil), rec.ApprovedRealms...)
	return &cp, nil
}

func (s *MemoryStore) Save(ctx context.Context, rec *models.SessionRecord) error {
	cp := *rec
	cp.ApprovedRealms = append([]string(nil), rec.ApprovedRealms...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Token] = &cp
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, token)
	return nil
}

func (s *MemoryStore) Close() error {
	close(s.stopCh)
	return nil
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for token, rec := range s.records {
				if now.After(rec.ExpiresAt) {
					delete(s.records, token)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}
