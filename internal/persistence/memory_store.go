package persistence

import (
	"sync"
)

// InMemoryStore is a simple, goroutine-safe InstanceStore backed by a map.
// It is non-durable and intended for tests and single-process use.
type InMemoryStore struct {
	mu        sync.RWMutex
	instances map[string]*InstanceRecord
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		instances: make(map[string]*InstanceRecord),
	}
}

var _ InstanceStore = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveInstance(rec *InstanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instances[rec.ID] = copyRecord(rec)
	return nil
}

func (s *InMemoryStore) UpdateInstance(rec *InstanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[rec.ID]; !ok {
		return ErrInstanceNotFound
	}
	s.instances[rec.ID] = copyRecord(rec)
	return nil
}

func (s *InMemoryStore) GetInstance(id string) (*InstanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.instances[id]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return copyRecord(rec), nil
}

func (s *InMemoryStore) ListInstances(filter InstanceFilter) ([]*InstanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*InstanceRecord
	for _, rec := range s.instances {
		if filter.WorkflowName != "" && rec.Workflow != filter.WorkflowName {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

// copyRecord protects store contents from later mutation by the caller.
// Input/Output/Result payloads are treated as immutable by convention.
func copyRecord(rec *InstanceRecord) *InstanceRecord {
	cp := *rec
	if len(rec.History) > 0 {
		cp.History = make([]HistoryEvent, len(rec.History))
		copy(cp.History, rec.History)
	}
	return &cp
}
