// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewTask(t *testing.T) {
	msg := NewTextMessage(RoleUser, "hello")

	task, err := NewTask("task-1", "session-1", msg, map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if task.ID != "task-1" {
		t.Errorf("Expected task ID task-1, got %s", task.ID)
	}
	if task.Status.State != TaskStateSubmitted {
		t.Errorf("Expected submitted state, got %s", task.Status.State)
	}
	if task.Status.Timestamp == "" {
		t.Error("Expected timestamp to be set")
	}
	if len(task.History) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(task.History))
	}
	if diff := cmp.Diff(msg, task.History[0]); diff != "" {
		t.Errorf("History message mismatch (-want +got):\n%s", diff)
	}
}

func TestNewTaskGeneratesID(t *testing.T) {
	task, err := NewTask("", "", NewTextMessage(RoleUser, "hello"), nil)
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if task.ID == "" {
		t.Error("Expected generated task ID")
	}
}

func TestNewTaskRejectsInvalidMessage(t *testing.T) {
	_, err := NewTask("task-1", "", Message{Role: RoleUser}, nil)
	if err == nil {
		t.Error("Expected error for message without parts")
	}
}

func TestApplyStatus(t *testing.T) {
	task, err := NewTask("task-1", "", NewTextMessage(RoleUser, "hello"), nil)
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}

	if err := task.ApplyStatus(NewTaskStatus(TaskStateWorking)); err != nil {
		t.Errorf("Expected submitted -> working to succeed, got %v", err)
	}
	if err := task.ApplyStatus(NewTaskStatus(TaskStateInputRequired)); err != nil {
		t.Errorf("Expected working -> input-required to succeed, got %v", err)
	}
	if err := task.ApplyStatus(NewTaskStatus(TaskStateWorking)); err != nil {
		t.Errorf("Expected input-required -> working to succeed, got %v", err)
	}
	if err := task.ApplyStatus(NewTaskStatus(TaskStateCompleted)); err != nil {
		t.Errorf("Expected working -> completed to succeed, got %v", err)
	}
	if err := task.ApplyStatus(NewTaskStatus(TaskStateCanceled)); err == nil {
		t.Error("Expected completed -> canceled to fail")
	}
	if task.Status.State != TaskStateCompleted {
		t.Errorf("Expected status to remain completed, got %s", task.Status.State)
	}
}

func TestApplyStatusRejectsBackwardTransition(t *testing.T) {
	task, err := NewTask("task-1", "", NewTextMessage(RoleUser, "hello"), nil)
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if err := task.ApplyStatus(NewTaskStatus(TaskStateWorking)); err != nil {
		t.Fatalf("ApplyStatus failed: %v", err)
	}
	if err := task.ApplyStatus(NewTaskStatus(TaskStateSubmitted)); err == nil {
		t.Error("Expected working -> submitted to fail")
	}
}

func TestApplyArtifactReplace(t *testing.T) {
	task := &Task{ID: "task-1", Status: NewTaskStatus(TaskStateWorking)}

	task.ApplyArtifact(Artifact{Index: 0, Parts: []Part{NewTextPart("v1")}})
	task.ApplyArtifact(Artifact{Index: 0, Parts: []Part{NewTextPart("v2")}})

	if len(task.Artifacts) != 1 {
		t.Fatalf("Expected 1 artifact, got %d", len(task.Artifacts))
	}
	if got := task.Artifacts[0].Parts[0].Text; got != "v2" {
		t.Errorf("Expected replaced artifact text v2, got %q", got)
	}
}

func TestApplyArtifactAppendChunks(t *testing.T) {
	task := &Task{ID: "task-1", Status: NewTaskStatus(TaskStateWorking)}

	task.ApplyArtifact(Artifact{Index: 0, Parts: []Part{NewTextPart("chunk-1 ")}})
	task.ApplyArtifact(Artifact{Index: 0, Append: true, Parts: []Part{NewTextPart("chunk-2 ")}})
	task.ApplyArtifact(Artifact{Index: 0, Append: true, LastChunk: true, Parts: []Part{NewTextPart("chunk-3")}})

	if len(task.Artifacts) != 1 {
		t.Fatalf("Expected chunks to merge into 1 artifact, got %d", len(task.Artifacts))
	}
	artifact := task.Artifacts[0]
	if len(artifact.Parts) != 3 {
		t.Errorf("Expected 3 parts after appends, got %d", len(artifact.Parts))
	}
	if !artifact.LastChunk {
		t.Error("Expected LastChunk to be set after the final chunk")
	}
}

func TestApplyArtifactOrderedByIndex(t *testing.T) {
	task := &Task{ID: "task-1", Status: NewTaskStatus(TaskStateWorking)}

	task.ApplyArtifact(Artifact{Index: 2, Parts: []Part{NewTextPart("c")}})
	task.ApplyArtifact(Artifact{Index: 0, Parts: []Part{NewTextPart("a")}})
	task.ApplyArtifact(Artifact{Index: 1, Parts: []Part{NewTextPart("b")}})

	want := []int{0, 1, 2}
	for i, artifact := range task.Artifacts {
		if artifact.Index != want[i] {
			t.Errorf("Expected artifact at position %d to have index %d, got %d", i, want[i], artifact.Index)
		}
	}
}

func TestTaskClone(t *testing.T) {
	task, err := NewTask("task-1", "session-1", NewTextMessage(RoleUser, "hello"), map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	task.ApplyArtifact(Artifact{Index: 0, Parts: []Part{NewTextPart("out")}, Metadata: map[string]any{"m": 1}})

	clone := task.Clone()
	if diff := cmp.Diff(task, clone); diff != "" {
		t.Fatalf("Clone mismatch (-want +got):\n%s", diff)
	}

	clone.History[0].Parts[0].Text = "mutated"
	clone.Artifacts[0].Metadata["m"] = 2
	clone.Metadata["k"] = "mutated"

	if task.History[0].Parts[0].Text != "hello" {
		t.Error("Expected clone mutation not to affect original history")
	}
	if task.Artifacts[0].Metadata["m"] != 1 {
		t.Error("Expected clone mutation not to affect original artifact metadata")
	}
	if task.Metadata["k"] != "v" {
		t.Error("Expected clone mutation not to affect original metadata")
	}
}
