package session

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/tailored-agentic-units/registry-agent/core/protocol"
)

type memoryStore struct {
	mu          sync.RWMutex
	logs        map[string][]protocol.Message
	checkpoints map[string]Checkpoint
}

// NewMemoryStore creates a Store held in process memory. Everything is lost
// when the process exits.
func NewMemoryStore() Store {
	return &memoryStore{
		logs:        make(map[string][]protocol.Message),
		checkpoints: make(map[string]Checkpoint),
	}
}

func (s *memoryStore) Append(ctx context.Context, id string, msgs ...protocol.Message) error {
	if id == "" {
		return fmt.Errorf("%w: %w", ErrStoreFailed, ErrEmptyID)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = append(s.logs[id], msgs...)
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id string) ([]protocol.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Messages are immutable values, so a shallow copy of the slice is a
	// full defensive copy.
	log := s.logs[id]
	copied := make([]protocol.Message, len(log))
	copy(copied, log)
	return copied, nil
}

func (s *memoryStore) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, id)
	delete(s.checkpoints, id)
	return nil
}

func (s *memoryStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	if cp.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrStoreFailed, ErrEmptyID)
	}

	cp.Meta = maps.Clone(cp.Meta)
	cp.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.SessionID] = cp
	return nil
}

func (s *memoryStore) LoadCheckpoint(ctx context.Context, id string) (Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, exists := s.checkpoints[id]
	if !exists {
		return Checkpoint{}, fmt.Errorf("%w: %s", ErrNoCheckpoint, id)
	}
	cp.Meta = maps.Clone(cp.Meta)
	return cp, nil
}

func (s *memoryStore) Close() error {
	return nil
}
