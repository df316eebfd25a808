// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

// EventKind identifies the wire-level kind of a streamed event. It doubles as
// the SSE event label.
type EventKind string

const (
	// EventKindStatus labels a TaskStatusUpdateEvent.
	EventKindStatus EventKind = "status"

	// EventKindArtifact labels a TaskArtifactUpdateEvent.
	EventKindArtifact EventKind = "artifact"
)

// Event is one streamed update for a task. The concrete types are
// TaskStatusUpdateEvent and TaskArtifactUpdateEvent.
//
// For a given task the emitted sequence contains at most one event for which
// IsFinal reports true; it is always a status event in a terminal state and
// no events follow it.
type Event interface {
	// TaskID returns the id of the task the event belongs to.
	TaskID() string

	// Kind returns the wire-level kind of the event.
	Kind() EventKind

	// IsFinal reports whether no further events will be emitted for the task.
	IsFinal() bool
}

// TaskStatusUpdateEvent announces a change of a task's status. Final marks
// the last event of the task's stream.
type TaskStatusUpdateEvent struct {
	ID     string     `json:"id"`
	Status TaskStatus `json:"status"`
	Final  bool       `json:"final"`
}

// TaskID returns the id of the task the event belongs to.
func (e TaskStatusUpdateEvent) TaskID() string { return e.ID }

// Kind returns EventKindStatus.
func (e TaskStatusUpdateEvent) Kind() EventKind { return EventKindStatus }

// IsFinal reports whether this is the task's final event.
func (e TaskStatusUpdateEvent) IsFinal() bool { return e.Final }

// TaskArtifactUpdateEvent announces a new or updated artifact for a task.
type TaskArtifactUpdateEvent struct {
	ID       string   `json:"id"`
	Artifact Artifact `json:"artifact"`
}

// TaskID returns the id of the task the event belongs to.
func (e TaskArtifactUpdateEvent) TaskID() string { return e.ID }

// Kind returns EventKindArtifact.
func (e TaskArtifactUpdateEvent) Kind() EventKind { return EventKindArtifact }

// IsFinal always reports false; only status events can end a stream.
func (e TaskArtifactUpdateEvent) IsFinal() bool { return false }

// FinalStatusEvent creates the terminal status event that ends a task's
// stream.
func FinalStatusEvent(taskID string, status TaskStatus) TaskStatusUpdateEvent {
	return TaskStatusUpdateEvent{ID: taskID, Status: status, Final: true}
}

// FailedEvent creates a final failed status event carrying a human readable
// explanation.
func FailedEvent(taskID, text string) TaskStatusUpdateEvent {
	return FinalStatusEvent(taskID, NewTaskStatusWithMessage(TaskStateFailed, text))
}
