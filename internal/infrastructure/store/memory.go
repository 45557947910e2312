package store

import (
	"context"
	"sync"
	"time"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/shared"
)

type timestamped[T any] struct {
	value    T
	storedAt time.Time
}

// MemoryStore is the in-process RecordStore, the default for tests and
// single-node runs. Records expire after the retention window; an expired
// record reads as not found.
type MemoryStore struct {
	mu           sync.RWMutex
	retention    time.Duration
	predictions  map[string]timestamped[*shared.Prediction]
	explanations map[string]timestamped[*shared.Explanation]
	snapshots    map[string]timestamped[*shared.ActivationSnapshot]
	states       map[shared.DomainType]*adaptation.State
}

// NewMemoryStore creates an in-memory store. retention <= 0 disables
// expiry.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		retention:    retention,
		predictions:  make(map[string]timestamped[*shared.Prediction]),
		explanations: make(map[string]timestamped[*shared.Explanation]),
		snapshots:    make(map[string]timestamped[*shared.ActivationSnapshot]),
		states:       make(map[shared.DomainType]*adaptation.State),
	}
}

func (s *MemoryStore) expired(storedAt time.Time) bool {
	return s.retention > 0 && time.Since(storedAt) > s.retention
}

// PutPrediction implements RecordStore.
func (s *MemoryStore) PutPrediction(_ context.Context, prediction *shared.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[prediction.TaskID] = timestamped[*shared.Prediction]{value: prediction, storedAt: time.Now()}
	return nil
}

// GetPrediction implements RecordStore.
func (s *MemoryStore) GetPrediction(_ context.Context, taskID string) (*shared.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.predictions[taskID]
	if !ok || s.expired(record.storedAt) {
		return nil, shared.ErrRecordNotFound
	}
	return record.value, nil
}

// PutExplanation implements RecordStore.
func (s *MemoryStore) PutExplanation(_ context.Context, explanation *shared.Explanation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.explanations[explanation.TaskID] = timestamped[*shared.Explanation]{value: explanation, storedAt: time.Now()}
	return nil
}

// GetExplanation implements RecordStore.
func (s *MemoryStore) GetExplanation(_ context.Context, taskID string) (*shared.Explanation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.explanations[taskID]
	if !ok || s.expired(record.storedAt) {
		return nil, shared.ErrRecordNotFound
	}
	return record.value, nil
}

// PutSnapshot implements RecordStore.
func (s *MemoryStore) PutSnapshot(_ context.Context, snapshot *shared.ActivationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.TaskID] = timestamped[*shared.ActivationSnapshot]{value: snapshot, storedAt: time.Now()}
	return nil
}

// GetSnapshot implements RecordStore.
func (s *MemoryStore) GetSnapshot(_ context.Context, taskID string) (*shared.ActivationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.snapshots[taskID]
	if !ok || s.expired(record.storedAt) {
		return nil, shared.ErrRecordNotFound
	}
	return record.value, nil
}

// PutState implements RecordStore. Only the latest version per domain is
// retained; older versions live in the feedback loop's retention ring.
func (s *MemoryStore) PutState(_ context.Context, state *adaptation.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.states[state.Domain]
	if ok && current.Version > state.Version {
		return nil
	}
	s.states[state.Domain] = state
	return nil
}

// LatestState implements RecordStore.
func (s *MemoryStore) LatestState(_ context.Context, domain shared.DomainType) (*adaptation.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[domain]
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	return state, nil
}

// Close implements RecordStore.
func (s *MemoryStore) Close() error {
	return nil
}
