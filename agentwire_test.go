// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"testing"
)

func TestTaskStateValid(t *testing.T) {
	valid := []TaskState{
		TaskStateSubmitted,
		TaskStateWorking,
		TaskStateInputRequired,
		TaskStateCompleted,
		TaskStateFailed,
		TaskStateCanceled,
	}
	for _, state := range valid {
		if !state.Valid() {
			t.Errorf("Expected state %q to be valid", state)
		}
	}

	invalid := []TaskState{"", "pending", "SUBMITTED", "done"}
	for _, state := range invalid {
		if state.Valid() {
			t.Errorf("Expected state %q to be invalid", state)
		}
	}
}

func TestTaskStateTerminal(t *testing.T) {
	tests := []struct {
		state    TaskState
		terminal bool
	}{
		{TaskStateSubmitted, false},
		{TaskStateWorking, false},
		{TaskStateInputRequired, false},
		{TaskStateCompleted, true},
		{TaskStateFailed, true},
		{TaskStateCanceled, true},
	}
	for _, tt := range tests {
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("Expected %q.Terminal() to be %v, got %v", tt.state, tt.terminal, got)
		}
	}
}

func TestTaskStateCanTransition(t *testing.T) {
	tests := []struct {
		from    TaskState
		to      TaskState
		allowed bool
	}{
		{TaskStateSubmitted, TaskStateWorking, true},
		{TaskStateSubmitted, TaskStateCompleted, true},
		{TaskStateSubmitted, TaskStateFailed, true},
		{TaskStateSubmitted, TaskStateCanceled, true},
		{TaskStateSubmitted, TaskStateInputRequired, false},
		{TaskStateWorking, TaskStateInputRequired, true},
		{TaskStateWorking, TaskStateWorking, true},
		{TaskStateWorking, TaskStateCompleted, true},
		{TaskStateWorking, TaskStateSubmitted, false},
		{TaskStateInputRequired, TaskStateWorking, true},
		{TaskStateInputRequired, TaskStateFailed, true},
		{TaskStateInputRequired, TaskStateSubmitted, false},
		{TaskStateCompleted, TaskStateWorking, false},
		{TaskStateCompleted, TaskStateCanceled, false},
		{TaskStateCompleted, TaskStateCompleted, false},
		{TaskStateFailed, TaskStateWorking, false},
		{TaskStateCanceled, TaskStateCompleted, false},
		{TaskStateWorking, "bogus", false},
		{"bogus", TaskStateWorking, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("Expected CanTransition(%q -> %q) to be %v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}
