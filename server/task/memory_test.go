// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/agentwire/agentwire"
)

func newTestTask(t *testing.T, id, sessionID string) *agentwire.Task {
	t.Helper()
	task, err := agentwire.NewTask(id, sessionID, agentwire.NewTextMessage(agentwire.RoleUser, "hello"), map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	return task
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	store := NewInMemoryStore(InMemoryStoreConfig{})
	ctx := context.Background()

	task := newTestTask(t, "task-1", "session-1")
	task.ApplyArtifact(agentwire.Artifact{Index: 0, Parts: []agentwire.Part{agentwire.NewTextPart("out")}})

	if err := store.Save(ctx, task); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(task, got); diff != "" {
		t.Errorf("Round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestInMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewInMemoryStore(InMemoryStoreConfig{})
	ctx := context.Background()

	task := newTestTask(t, "task-1", "")
	if err := store.Save(ctx, task); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	first, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	first.Metadata["k"] = "mutated"

	second, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if second.Metadata["k"] != "v" {
		t.Error("Expected stored snapshot to be unaffected by caller mutation")
	}
}

func TestInMemoryStoreGetUnknown(t *testing.T) {
	store := NewInMemoryStore(InMemoryStoreConfig{})

	_, err := store.Get(context.Background(), "missing")
	var notFound agentwire.TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("Expected TaskNotFoundError, got %v", err)
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore(InMemoryStoreConfig{})
	ctx := context.Background()

	if err := store.Save(ctx, newTestTask(t, "task-1", "")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "task-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "task-1"); err == nil {
		t.Error("Expected Get after Delete to fail")
	}

	var notFound agentwire.TaskNotFoundError
	if err := store.Delete(ctx, "task-1"); !errors.As(err, &notFound) {
		t.Errorf("Expected TaskNotFoundError on double delete, got %v", err)
	}
}

func TestInMemoryStoreListBySession(t *testing.T) {
	store := NewInMemoryStore(InMemoryStoreConfig{})
	ctx := context.Background()

	for _, tt := range []struct{ id, session string }{
		{"task-1", "session-a"},
		{"task-2", "session-a"},
		{"task-3", "session-b"},
	} {
		if err := store.Save(ctx, newTestTask(t, tt.id, tt.session)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	tasks, err := store.List(ctx, "session-a", 0, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("Expected 2 tasks for session-a, got %d", len(tasks))
	}

	all, err := store.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 tasks in total, got %d", len(all))
	}

	limited, err := store.List(ctx, "", 2, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected limit of 2 to apply, got %d", len(limited))
	}
}

func TestInMemoryStoreTTL(t *testing.T) {
	store := NewInMemoryStore(InMemoryStoreConfig{TTL: time.Hour})
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base }

	if err := store.Save(ctx, newTestTask(t, "task-1", "")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := store.Get(ctx, "task-1"); err == nil {
		t.Error("Expected expired task to report not found")
	}

	if purged := store.PurgeExpired(base.Add(2 * time.Hour)); purged != 1 {
		t.Errorf("Expected 1 purged task, got %d", purged)
	}
}
