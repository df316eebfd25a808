// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentwire/agentwire"
)

// DefaultTTL is how long an in-memory snapshot survives after its last save.
const DefaultTTL = 24 * time.Hour

// InMemoryStore is an in-memory implementation of Store. Snapshots are lost
// when the process stops, and expire after their retention window so
// abandoned tasks do not accumulate. All operations are safe for concurrent
// use.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

type memoryEntry struct {
	task      *agentwire.Task
	expiresAt time.Time
}

var _ Store = (*InMemoryStore)(nil)

// InMemoryStoreConfig holds configuration for an InMemoryStore.
type InMemoryStoreConfig struct {
	// TTL is the snapshot retention window. Zero means DefaultTTL.
	TTL time.Duration
}

// NewInMemoryStore creates an InMemoryStore with the given configuration.
func NewInMemoryStore(config InMemoryStoreConfig) *InMemoryStore {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		tasks: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Save persists a deep copy of the task and refreshes its retention window.
func (s *InMemoryStore) Save(ctx context.Context, task *agentwire.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return NewStoreError("save", task.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = memoryEntry{
		task:      task.Clone(),
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Get retrieves a deep copy of the task snapshot.
func (s *InMemoryStore) Get(ctx context.Context, taskID string) (*agentwire.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}

	s.mu.RLock()
	entry, exists := s.tasks[taskID]
	s.mu.RUnlock()

	if !exists || s.now().After(entry.expiresAt) {
		return nil, agentwire.TaskNotFoundError{ID: taskID}
	}
	return entry.task.Clone(), nil
}

// Delete removes a task snapshot.
func (s *InMemoryStore) Delete(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[taskID]; !exists {
		return agentwire.TaskNotFoundError{ID: taskID}
	}
	delete(s.tasks, taskID)
	return nil
}

// List retrieves snapshots, optionally filtered by session id.
func (s *InMemoryStore) List(ctx context.Context, sessionID string, limit, offset int) ([]*agentwire.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var tasks []*agentwire.Task
	skipped := 0
	for _, entry := range s.tasks {
		if now.After(entry.expiresAt) {
			continue
		}
		if sessionID != "" && entry.task.SessionID != sessionID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		tasks = append(tasks, entry.task.Clone())
		if limit > 0 && len(tasks) >= limit {
			break
		}
	}
	return tasks, nil
}

// PurgeExpired removes snapshots whose retention window has passed and
// returns how many were removed.
func (s *InMemoryStore) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for taskID, entry := range s.tasks {
		if now.After(entry.expiresAt) {
			delete(s.tasks, taskID)
			purged++
		}
	}
	return purged
}

// Close releases all snapshots.
func (s *InMemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]memoryEntry)
	return nil
}
