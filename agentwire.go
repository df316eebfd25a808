// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentwire provides the wire types of the agentwire protocol: tasks
// and their lifecycle state machine, messages and their typed parts,
// artifacts, streamed events, the agent discovery card and the JSON-RPC 2.0
// envelope.
//
// Agents expose the protocol with the server subpackage and call other
// agents with the client subpackage.
package agentwire

// Version is the version of the agentwire protocol implemented by this
// module.
const Version = "1.0.0"

// TaskState is a lifecycle state of a task.
//
// Tasks start in TaskStateSubmitted, move to TaskStateWorking once a
// processor picks them up, may alternate between TaskStateWorking and
// TaskStateInputRequired, and end in exactly one of the terminal states
// TaskStateCompleted, TaskStateFailed or TaskStateCanceled. Terminal states
// are absorbing.
type TaskState string

const (
	// TaskStateSubmitted is the initial state, assigned when a task is
	// accepted and before its processor runs.
	TaskStateSubmitted TaskState = "submitted"

	// TaskStateWorking means the processor is producing events.
	TaskStateWorking TaskState = "working"

	// TaskStateInputRequired means the processor is paused awaiting more
	// input from the caller.
	TaskStateInputRequired TaskState = "input-required"

	// TaskStateCompleted is the terminal success state.
	TaskStateCompleted TaskState = "completed"

	// TaskStateFailed is the terminal failure state.
	TaskStateFailed TaskState = "failed"

	// TaskStateCanceled is the terminal state of an explicitly canceled
	// task.
	TaskStateCanceled TaskState = "canceled"
)

// Valid reports whether s is a known task state.
func (s TaskState) Valid() bool {
	switch s {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle graph allows moving from s to
// next. Repeating the current state is allowed; any non-terminal state may
// move to any terminal state; terminal states allow no transitions.
func (s TaskState) CanTransition(next TaskState) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s.Terminal() {
		return false
	}
	if s == next {
		return true
	}
	if next.Terminal() {
		return true
	}
	switch s {
	case TaskStateSubmitted:
		return next == TaskStateWorking
	case TaskStateWorking:
		return next == TaskStateInputRequired
	case TaskStateInputRequired:
		return next == TaskStateWorking
	}
	return false
}
