// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"fmt"
	"slices"
	"time"
)

// TaskStatus is the current status of a task. A task holds exactly one
// current status; superseded statuses survive only in the event log.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitzero"`
	Timestamp string    `json:"timestamp,omitzero"`
}

// NewTaskStatus creates a status in the given state with the timestamp set to
// the current time.
func NewTaskStatus(state TaskState) TaskStatus {
	return TaskStatus{
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// NewTaskStatusWithMessage creates a status in the given state carrying an
// agent message with the given text.
func NewTaskStatusWithMessage(state TaskState, text string) TaskStatus {
	status := NewTaskStatus(state)
	msg := NewTextMessage(RoleAgent, text)
	status.Message = &msg
	return status
}

// Task is one unit of work tracked by id through its lifecycle to a terminal
// outcome. A task is created on submission and mutated only by the owning
// protocol server as it observes events.
type Task struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId,omitzero"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitzero"`
	Artifacts []Artifact     `json:"artifacts,omitzero"`
	Metadata  map[string]any `json:"metadata,omitzero"`
}

// NewTask creates a task in the submitted state. If id is empty a new UUID is
// generated. The input message becomes the first history entry.
func NewTask(id, sessionID string, message Message, metadata map[string]any) (*Task, error) {
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request message: %w", err)
	}
	if id == "" {
		id = GenerateID()
	}
	return &Task{
		ID:        id,
		SessionID: sessionID,
		Status:    NewTaskStatus(TaskStateSubmitted),
		History:   []Message{message},
		Metadata:  metadata,
	}, nil
}

// Validate ensures the Task is valid.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if !t.Status.State.Valid() {
		return fmt.Errorf("invalid task state: %q", t.Status.State)
	}
	for i, msg := range t.History {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("history message at index %d is invalid: %w", i, err)
		}
	}
	for i, artifact := range t.Artifacts {
		if err := artifact.Validate(); err != nil {
			return fmt.Errorf("artifact at index %d is invalid: %w", i, err)
		}
	}
	return nil
}

// ApplyStatus replaces the task's current status after checking the
// transition against the lifecycle graph.
func (t *Task) ApplyStatus(status TaskStatus) error {
	if !t.Status.State.CanTransition(status.State) {
		return fmt.Errorf("invalid state transition: %s -> %s", t.Status.State, status.State)
	}
	t.Status = status
	return nil
}

// ApplyArtifact merges an artifact update into the task. An update with
// Append set merges its parts into the artifact already stored at the same
// index; otherwise the update replaces any artifact at that index. The
// artifact list is kept ordered by index.
func (t *Task) ApplyArtifact(artifact Artifact) {
	for i := range t.Artifacts {
		if t.Artifacts[i].Index != artifact.Index {
			continue
		}
		if artifact.Append {
			t.Artifacts[i].Parts = append(t.Artifacts[i].Parts, artifact.Parts...)
			t.Artifacts[i].LastChunk = artifact.LastChunk
			if artifact.Metadata != nil {
				if t.Artifacts[i].Metadata == nil {
					t.Artifacts[i].Metadata = map[string]any{}
				}
				for k, v := range artifact.Metadata {
					t.Artifacts[i].Metadata[k] = v
				}
			}
		} else {
			t.Artifacts[i] = artifact
		}
		return
	}
	t.Artifacts = append(t.Artifacts, artifact)
	slices.SortStableFunc(t.Artifacts, func(a, b Artifact) int {
		return a.Index - b.Index
	})
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.History != nil {
		c.History = make([]Message, len(t.History))
		for i, msg := range t.History {
			c.History[i] = msg
			c.History[i].Parts = clonePartSlice(msg.Parts)
			c.History[i].Metadata = cloneMap(msg.Metadata)
		}
	}
	if t.Artifacts != nil {
		c.Artifacts = make([]Artifact, len(t.Artifacts))
		for i, artifact := range t.Artifacts {
			c.Artifacts[i] = artifact.clone()
		}
	}
	c.Metadata = cloneMap(t.Metadata)
	if t.Status.Message != nil {
		msg := *t.Status.Message
		msg.Parts = clonePartSlice(t.Status.Message.Parts)
		msg.Metadata = cloneMap(t.Status.Message.Metadata)
		c.Status.Message = &msg
	}
	return &c
}
