package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryPendingConnectionStore is the process-local fallback. Suitable for
// single-instance deployments and tests; in a multi-process deployment the
// callback must reach the process that served the connect redirect.
type InMemoryPendingConnectionStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]pendingRecord
}

type pendingRecord struct {
	state     string
	expiresAt time.Time
}

// NewInMemoryPendingConnectionStore creates an empty store.
func NewInMemoryPendingConnectionStore() *InMemoryPendingConnectionStore {
	return &InMemoryPendingConnectionStore{records: make(map[uuid.UUID]pendingRecord)}
}

// Put implements PendingConnectionStore.
func (s *InMemoryPendingConnectionStore) Put(_ context.Context, tenantID uuid.UUID, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tenantID] = pendingRecord{state: state, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Get implements PendingConnectionStore. Expired records count as absent and
// are removed opportunistically.
func (s *InMemoryPendingConnectionStore) Get(_ context.Context, tenantID uuid.UUID) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tenantID]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(rec.expiresAt) {
		delete(s.records, tenantID)
		return "", false, nil
	}
	return rec.state, true, nil
}

// Delete implements PendingConnectionStore.
func (s *InMemoryPendingConnectionStore) Delete(_ context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tenantID)
	return nil
}

var _ PendingConnectionStore = (*InMemoryPendingConnectionStore)(nil)
