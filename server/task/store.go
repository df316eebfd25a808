// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package task provides task snapshot persistence for the protocol server.
//
// The Store interface abstracts the storage backend so the server can be
// wired against a process-local in-memory map or a durable database; the
// server itself never touches shared storage state directly.
package task

import (
	"context"
	"fmt"

	"github.com/agentwire/agentwire"
)

// Store defines the interface for task snapshot persistence.
type Store interface {
	// Save persists a task snapshot, replacing any existing snapshot with
	// the same id and refreshing its retention window.
	Save(ctx context.Context, task *agentwire.Task) error

	// Get retrieves a task snapshot by id. Returns
	// agentwire.TaskNotFoundError if no snapshot exists.
	Get(ctx context.Context, taskID string) (*agentwire.Task, error)

	// Delete removes a task snapshot. Returns agentwire.TaskNotFoundError if
	// no snapshot exists.
	Delete(ctx context.Context, taskID string) error

	// List retrieves snapshots, optionally filtered by session id. An empty
	// sessionID matches all tasks.
	List(ctx context.Context, sessionID string, limit, offset int) ([]*agentwire.Task, error)

	// Close cleanly shuts down the storage backend.
	Close(ctx context.Context) error
}

// StoreError wraps a storage backend failure with the failed operation and
// task id.
type StoreError struct {
	Op     string
	TaskID string
	Err    error
}

// Error returns the error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("task store %s failed for task %s: %v", e.Op, e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a StoreError.
func NewStoreError(op, taskID string, err error) *StoreError {
	return &StoreError{Op: op, TaskID: taskID, Err: err}
}
