package ledger

import (
	"context"
	"sync"

	"reward-guard-backend/internal/models"
)

// MemoryStore is an in-process ClaimStore and CooldownStore with the same
// per-key atomicity contract as the Redis implementation. Used in tests and
// single-process development runs.
type MemoryStore struct {
	mu        sync.Mutex
	claims    map[string]models.ClaimRecord
	refs      map[string]string
	cooldowns map[string]models.CooldownRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		claims:    make(map[string]models.ClaimRecord),
		refs:      make(map[string]string),
		cooldowns: make(map[string]models.CooldownRecord),
	}
}

func claimKey(subject, resource string) string {
	return subject + "|" + resource
}

func (s *MemoryStore) GetClaim(_ context.Context, subject, resource string) (*models.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.claims[claimKey(subject, resource)]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *MemoryStore) GetClaimByReference(_ context.Context, reference string) (*models.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.refs[reference]
	if !ok {
		return nil, nil
	}
	record, ok := s.claims[key]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *MemoryStore) CreateClaim(_ context.Context, record *models.ClaimRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimKey(record.Subject, record.Resource)
	if _, exists := s.claims[key]; exists {
		return false, nil
	}
	s.claims[key] = *record
	return true, nil
}

func (s *MemoryStore) CompareAndSetClaim(_ context.Context, record *models.ClaimRecord, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimKey(record.Subject, record.Resource)
	current, ok := s.claims[key]
	if !ok || current.Version != expectedVersion {
		return false, nil
	}
	s.claims[key] = *record
	if record.Reference != "" {
		s.refs[record.Reference] = key
	}
	return true, nil
}

func (s *MemoryStore) GetCooldown(_ context.Context, subject string) (*models.CooldownRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.cooldowns[subject]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *MemoryStore) PutCooldown(_ context.Context, record *models.CooldownRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cooldowns[record.Subject] = *record
	return nil
}
