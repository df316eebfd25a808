// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"

	"github.com/agentwire/agentwire"
)

// sinkBuffer bounds the channel between a processor and its runner.
const sinkBuffer = 64

// ProcessContext carries the inputs of one task execution.
type ProcessContext struct {
	// TaskID is the id events must be emitted under.
	TaskID string

	// Message is the caller's input message.
	Message agentwire.Message

	// SessionID groups related tasks, if the caller provided one.
	SessionID string

	// Metadata is the caller's opaque task metadata, if any.
	Metadata map[string]any
}

// Processor is the collaborator that performs the actual work of a task.
//
// Process pushes status and artifact events through the sink as work
// progresses. Status states must move forward along the task lifecycle graph
// and the sequence must end with exactly one final status event in a terminal
// state. Returning an error is the terminal failure arm of the contract: the
// server, never the processor, converts it into the final failed event. The
// sequence is finite and not restartable; Process is called at most once per
// task.
//
// Process must respect ctx: when the task is canceled the next sink push
// fails and ctx is done, at which point the processor should stop.
type Processor interface {
	Process(ctx context.Context, pc ProcessContext, sink *Sink) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, pc ProcessContext, sink *Sink) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, pc ProcessContext, sink *Sink) error {
	return f(ctx, pc, sink)
}

// Sink is the bounded channel a processor pushes events through. The runner
// on the other side validates, persists and publishes each event.
type Sink struct {
	taskID string
	events chan agentwire.Event
}

func newSink(taskID string) *Sink {
	return &Sink{
		taskID: taskID,
		events: make(chan agentwire.Event, sinkBuffer),
	}
}

// Event pushes a raw event. It blocks while the sink is full and fails when
// ctx is done, which is how a canceled task stops its processor.
func (s *Sink) Event(ctx context.Context, event agentwire.Event) error {
	select {
	case s.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status pushes a non-final status update.
func (s *Sink) Status(ctx context.Context, status agentwire.TaskStatus) error {
	return s.Event(ctx, agentwire.TaskStatusUpdateEvent{ID: s.taskID, Status: status})
}

// Working pushes a working status update carrying a progress message.
func (s *Sink) Working(ctx context.Context, text string) error {
	return s.Status(ctx, agentwire.NewTaskStatusWithMessage(agentwire.TaskStateWorking, text))
}

// InputRequired pushes an input-required status update.
func (s *Sink) InputRequired(ctx context.Context, text string) error {
	return s.Status(ctx, agentwire.NewTaskStatusWithMessage(agentwire.TaskStateInputRequired, text))
}

// Completed pushes the final completed status event ending the stream.
func (s *Sink) Completed(ctx context.Context, text string) error {
	status := agentwire.NewTaskStatus(agentwire.TaskStateCompleted)
	if text != "" {
		msg := agentwire.NewTextMessage(agentwire.RoleAgent, text)
		status.Message = &msg
	}
	return s.Event(ctx, agentwire.FinalStatusEvent(s.taskID, status))
}

// Artifact pushes an artifact update.
func (s *Sink) Artifact(ctx context.Context, artifact agentwire.Artifact) error {
	return s.Event(ctx, agentwire.TaskArtifactUpdateEvent{ID: s.taskID, Artifact: artifact})
}
