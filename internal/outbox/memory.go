package outbox

import (
	"context"
	"sync"
)

// MemoryStore keeps queues in process memory. Used when redis is disabled
// and by tests; deferred items do not survive a restart with it.
type MemoryStore struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[string][][]byte)}
}

func (s *MemoryStore) Push(_ context.Context, queueKey string, raw []byte) error {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	s.mu.Lock()
	s.queues[queueKey] = append(s.queues[queueKey], cp)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Peek(_ context.Context, queueKey string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[queueKey]
	if len(q) == 0 {
		return nil, false, nil
	}
	return q[0], true, nil
}

func (s *MemoryStore) Confirm(_ context.Context, queueKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[queueKey]
	if len(q) > 0 {
		s.queues[queueKey] = q[1:]
	}
	return nil
}

func (s *MemoryStore) Len(_ context.Context, queueKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queues[queueKey])), nil
}
