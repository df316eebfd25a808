// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package server implements the agent-side protocol server: task submission
// (blocking and streaming), resubscription, status queries and cancellation
// over JSON-RPC 2.0 with Server-Sent Events streaming.
//
// The server drives a pluggable Processor that performs the actual work and
// yields events. Every event flows through the event.Broker, which persists
// it in the per-task replay log and fans it out to attached subscribers, so
// the processor runs to completion independent of any subscriber's
// connection.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/server/event"
	"github.com/agentwire/agentwire/server/task"
)

// Server exposes one agent over the agentwire protocol.
type Server struct {
	card      agentwire.AgentCard
	processor Processor
	store     task.Store
	broker    *event.Broker
	logger    *slog.Logger

	// maxTaskDuration force-fails a task whose processor outlives it.
	// Zero means no limit.
	maxTaskDuration time.Duration

	// degraded is set when the snapshot store fails; the server keeps
	// serving from in-process state and reports the condition via /health.
	degraded atomic.Bool

	mu     sync.Mutex
	active map[string]*activeTask

	mux *http.ServeMux
}

// activeTask is the in-process state of a task whose runner may still be
// live. Its mutex serializes snapshot mutation between the runner and the
// cancel handler; no other component mutates the task.
type activeTask struct {
	mu     sync.Mutex
	task   *agentwire.Task
	cancel context.CancelFunc

	// persistMu serializes snapshot saves in mutation order, so a slow save
	// of a non-terminal snapshot cannot land after the terminal one.
	persistMu sync.Mutex
}

// NewServer creates a protocol server for the given agent card and
// processor.
func NewServer(card agentwire.AgentCard, processor Processor, opts ...Option) (*Server, error) {
	if err := card.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent card: %w", err)
	}
	if processor == nil {
		return nil, fmt.Errorf("processor cannot be nil")
	}

	s := &Server{
		card:      card,
		processor: processor,
		active:    make(map[string]*activeTask),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.store == nil {
		s.store = task.NewInMemoryStore(task.InMemoryStoreConfig{})
	}
	if s.broker == nil {
		s.broker = event.NewBroker(event.BrokerConfig{})
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent.json", s.handleAgentCard)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /tasks/send", s.handleSend)
	mux.HandleFunc("POST /tasks/sendSubscribe", s.handleSendSubscribe)
	mux.HandleFunc("POST /tasks/resubscribe", s.handleResubscribe)
	mux.HandleFunc("POST /tasks/get", s.handleGet)
	mux.HandleFunc("POST /tasks/cancel", s.handleCancel)
	s.mux = mux

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Broker exposes the server's event broker, primarily for diagnostics.
func (s *Server) Broker() *event.Broker {
	return s.broker
}

// Degraded reports whether the snapshot store has failed and the server is
// serving from in-process state only.
func (s *Server) Degraded() bool {
	return s.degraded.Load()
}

// startTask registers the task, publishes the initial submitted event,
// persists the submitted snapshot and launches the runner. Nothing is
// persisted when registration fails, so a rejected resend cannot touch an
// existing snapshot.
func (s *Server) startTask(t *agentwire.Task, pc ProcessContext) error {
	var ctx context.Context
	var cancel context.CancelFunc
	if s.maxTaskDuration > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.maxTaskDuration)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	entry := &activeTask{task: t, cancel: cancel}
	s.mu.Lock()
	if _, exists := s.active[t.ID]; exists {
		s.mu.Unlock()
		cancel()
		return agentwire.InvalidParamsError{Msg: fmt.Sprintf("task %s is already running", t.ID)}
	}
	s.active[t.ID] = entry
	s.mu.Unlock()

	initial := agentwire.TaskStatusUpdateEvent{
		ID:     t.ID,
		Status: agentwire.NewTaskStatus(agentwire.TaskStateSubmitted),
	}
	if _, err := s.broker.Publish(ctx, initial); err != nil {
		s.mu.Lock()
		delete(s.active, t.ID)
		s.mu.Unlock()
		cancel()
		return agentwire.InternalError{Err: err}
	}

	s.persist(ctx, t.Clone())
	go s.run(ctx, entry, pc)
	return nil
}

// run drives the processor for one task. It is the only goroutine that
// advances the task through non-terminal states; the cancel handler is the
// only other writer and always writes a terminal state.
func (s *Server) run(ctx context.Context, entry *activeTask, pc ProcessContext) {
	taskID := pc.TaskID
	defer entry.cancel()

	sink := newSink(taskID)
	procErr := make(chan error, 1)
	go func() {
		defer close(sink.events)
		procErr <- s.processor.Process(ctx, pc, sink)
	}()

	sawFinal := false
	for !sawFinal {
		select {
		case ev, ok := <-sink.events:
			if !ok {
				err := <-procErr
				s.finishRun(entry, taskID, err)
				return
			}
			final, err := s.dispatch(ctx, entry, taskID, ev)
			if err != nil {
				if errors.Is(err, event.ErrTaskFinalized) {
					// Another writer (cancel) already ended the stream.
					return
				}
				s.failTask(entry, taskID, err.Error())
				return
			}
			sawFinal = final

		case <-ctx.Done():
			if s.broker.Finalized(taskID) {
				return
			}
			reason := "task processing canceled"
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				reason = "task exceeded maximum processing duration"
			}
			s.failTask(entry, taskID, reason)
			return
		}
	}

	// Drop the entry now that the final snapshot is durable; resubscribe is
	// served from the store and the broker's replay log from here on.
	s.release(taskID)
}

// finishRun handles the processor returning. A returned error becomes the
// final failed event; a clean return without a final event is capped with a
// completed status, matching the blocking contract that every task ends with
// exactly one final event.
func (s *Server) finishRun(entry *activeTask, taskID string, err error) {
	if s.broker.Finalized(taskID) {
		s.release(taskID)
		return
	}
	if err != nil {
		s.logger.Error("processor failed", slog.String("task_id", taskID), slog.Any("error", err))
		s.failTask(entry, taskID, fmt.Sprintf("Error: %v", err))
		return
	}
	status := agentwire.NewTaskStatus(agentwire.TaskStateCompleted)
	s.terminate(entry, taskID, status)
}

// failTask publishes the final failed event and persists the snapshot.
func (s *Server) failTask(entry *activeTask, taskID, reason string) {
	s.terminate(entry, taskID, agentwire.NewTaskStatusWithMessage(agentwire.TaskStateFailed, reason))
}

// terminate ends a task with the given terminal status.
func (s *Server) terminate(entry *activeTask, taskID string, status agentwire.TaskStatus) {
	entry.persistMu.Lock()
	defer entry.persistMu.Unlock()

	ev := agentwire.FinalStatusEvent(taskID, status)
	entry.mu.Lock()
	if !entry.task.Status.State.Terminal() {
		entry.task.Status = status
	}
	snapshot := entry.task.Clone()
	entry.mu.Unlock()

	if _, err := s.broker.Publish(context.Background(), ev); err != nil && !errors.Is(err, event.ErrTaskFinalized) {
		s.logger.Error("failed to publish terminal event", slog.String("task_id", taskID), slog.Any("error", err))
	}
	s.persist(context.Background(), snapshot)
	s.release(taskID)
}

// dispatch validates one processor event, publishes it and persists the
// updated snapshot. It reports whether the event was final.
func (s *Server) dispatch(ctx context.Context, entry *activeTask, taskID string, ev agentwire.Event) (bool, error) {
	entry.persistMu.Lock()
	defer entry.persistMu.Unlock()

	// Events are always emitted under the server's task id, whatever the
	// processor put in the event.
	switch e := ev.(type) {
	case agentwire.TaskStatusUpdateEvent:
		e.ID = taskID
		if e.Status.State.Terminal() && !e.Final {
			e.Final = true
		}
		entry.mu.Lock()
		if err := entry.task.ApplyStatus(e.Status); err != nil {
			entry.mu.Unlock()
			return false, err
		}
		snapshot := entry.task.Clone()
		entry.mu.Unlock()

		if _, err := s.broker.Publish(ctx, e); err != nil {
			return false, err
		}
		s.persist(ctx, snapshot)
		return e.Final, nil

	case agentwire.TaskArtifactUpdateEvent:
		e.ID = taskID
		if err := e.Artifact.Validate(); err != nil {
			return false, fmt.Errorf("invalid artifact: %w", err)
		}
		entry.mu.Lock()
		entry.task.ApplyArtifact(e.Artifact)
		snapshot := entry.task.Clone()
		entry.mu.Unlock()

		if _, err := s.broker.Publish(ctx, e); err != nil {
			return false, err
		}
		s.persist(ctx, snapshot)
		return false, nil

	default:
		return false, fmt.Errorf("unknown event type %T", ev)
	}
}

// persist saves a snapshot to the store. Store failures do not fail the
// task: the server flips into degraded mode and keeps serving from
// in-process state, which /health reports.
func (s *Server) persist(ctx context.Context, snapshot *agentwire.Task) {
	if err := s.store.Save(ctx, snapshot); err != nil {
		if !s.degraded.Swap(true) {
			s.logger.Error("task store unavailable, serving from process memory",
				slog.String("task_id", snapshot.ID), slog.Any("error", err))
		}
		return
	}
	s.degraded.Store(false)
}

// release drops a task's active entry once its terminal snapshot is durable.
// In degraded mode the entry is kept so get and resubscribe still work.
func (s *Server) release(taskID string) {
	if s.degraded.Load() {
		return
	}
	s.mu.Lock()
	delete(s.active, taskID)
	s.mu.Unlock()
}

// lookupTask returns the current snapshot of a task from the active set or,
// failing that, the store.
func (s *Server) lookupTask(ctx context.Context, taskID string) (*agentwire.Task, error) {
	s.mu.Lock()
	entry, ok := s.active[taskID]
	s.mu.Unlock()
	if ok {
		entry.mu.Lock()
		snapshot := entry.task.Clone()
		entry.mu.Unlock()
		return snapshot, nil
	}
	return s.store.Get(ctx, taskID)
}

// cancelTask implements tasks/cancel semantics: unknown and already-terminal
// tasks are reported as success without any state change; a running task is
// moved to canceled, its final event is published and its runner context is
// canceled so the processor observes the cancellation at its next yield.
func (s *Server) cancelTask(ctx context.Context, taskID string) error {
	s.mu.Lock()
	entry, ok := s.active[taskID]
	s.mu.Unlock()

	if ok {
		// Taking persistMu first means any in-flight runner save completes
		// before the canceled snapshot is written, and no later runner save
		// can overwrite it.
		entry.persistMu.Lock()
		status := agentwire.NewTaskStatus(agentwire.TaskStateCanceled)
		entry.mu.Lock()
		if entry.task.Status.State.Terminal() {
			entry.mu.Unlock()
			entry.persistMu.Unlock()
			return nil
		}
		entry.task.Status = status
		snapshot := entry.task.Clone()
		entry.mu.Unlock()

		ev := agentwire.FinalStatusEvent(taskID, status)
		if _, err := s.broker.Publish(ctx, ev); err != nil && !errors.Is(err, event.ErrTaskFinalized) {
			entry.persistMu.Unlock()
			return agentwire.InternalError{Err: err}
		}
		s.persist(ctx, snapshot)
		entry.persistMu.Unlock()
		entry.cancel()
		s.release(taskID)
		return nil
	}

	// Not running here: update the stored snapshot when one exists and is
	// still cancelable, for example after a server restart.
	snapshot, err := s.store.Get(ctx, taskID)
	if err != nil {
		var notFound agentwire.TaskNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return agentwire.InternalError{Err: err}
	}
	if snapshot.Status.State.Terminal() {
		return nil
	}
	snapshot.Status = agentwire.NewTaskStatus(agentwire.TaskStateCanceled)
	ev := agentwire.FinalStatusEvent(taskID, snapshot.Status)
	if _, err := s.broker.Publish(ctx, ev); err != nil && !errors.Is(err, event.ErrTaskFinalized) {
		return agentwire.InternalError{Err: err}
	}
	s.persist(ctx, snapshot)
	return nil
}
