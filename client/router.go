// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/agentwire/agentwire"
)

// ArtifactIndexBase is the offset applied to artifact indices of relayed
// events. Indices below the base are reserved for artifacts the forwarding
// agent produces locally, so relayed and local indices never collide for
// the same task. Chunked artifacts keep reusing the same shifted index, so
// append reassembly is unaffected by the remap.
const ArtifactIndexBase = 64 * 1024

// sourceAgentMetadataKey tags relayed events with the downstream agent's
// name so callers can attribute provenance.
const sourceAgentMetadataKey = "source_agent"

// forwardedForMetadataKey carries the upstream task id in the metadata of
// the downstream submission.
const forwardedForMetadataKey = "forwarded_for"

// Router relays tasks to named downstream agents while preserving the
// upstream caller's view of a single task identity. Every relayed event is
// rewritten to the upstream task id, relayed artifact indices are shifted
// into a reserved range, and relayed status messages are tagged with the
// downstream agent's name.
type Router struct {
	mu     sync.RWMutex
	agents map[string]*Client

	clientOpts []Option
	logger     *slog.Logger
}

// NewRouter creates a router. The given options are applied to every
// downstream client it creates.
func NewRouter(opts ...Option) *Router {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		agents:     make(map[string]*Client),
		clientOpts: opts,
		logger:     logger,
	}
}

// RegisterAgent registers a downstream agent under a name.
func (r *Router) RegisterAgent(name, baseURL string) error {
	if name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	c, err := NewClient(baseURL, r.clientOpts...)
	if err != nil {
		return fmt.Errorf("register agent %s: %w", name, err)
	}
	r.mu.Lock()
	r.agents[name] = c
	r.mu.Unlock()
	return nil
}

// Agent returns the client for a registered agent.
func (r *Router) Agent(name string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.agents[name]
	return c, ok
}

// Agents returns the names of all registered agents, sorted.
func (r *Router) Agents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Forward relays a message to the named downstream agent and yields its
// events remapped to the upstream task id. The channel always ends with a
// final status event: a downstream terminal event relayed as-is, or a
// synthesized failed status when the downstream connection itself fails.
// The caller must not emit further events for the task after the final one.
func (r *Router) Forward(ctx context.Context, agentName, taskID string, message agentwire.Message, metadata map[string]any) <-chan agentwire.Event {
	out := make(chan agentwire.Event, 16)
	go func() {
		defer close(out)
		r.forward(ctx, out, agentName, taskID, message, metadata)
	}()
	return out
}

func (r *Router) forward(ctx context.Context, out chan<- agentwire.Event, agentName, taskID string, message agentwire.Message, metadata map[string]any) {
	c, ok := r.Agent(agentName)
	if !ok {
		r.emit(ctx, out, r.connectFailure(agentName, taskID, fmt.Errorf("agent not registered")))
		return
	}

	downstream := map[string]any{forwardedForMetadataKey: taskID}
	for k, v := range metadata {
		downstream[k] = v
	}
	params := agentwire.TaskSendParams{
		ID:       agentwire.GenerateID(),
		Message:  message,
		Metadata: downstream,
	}

	stream, err := c.SendSubscribe(ctx, params)
	if err != nil {
		r.emit(ctx, out, r.connectFailure(agentName, taskID, err))
		return
	}
	defer stream.Close()

	sawFinal := false
	for ev := range stream.Events() {
		remapped := r.remap(agentName, taskID, ev.Event)
		if !r.emit(ctx, out, remapped) {
			return
		}
		if remapped.IsFinal() {
			sawFinal = true
			break
		}
	}
	if sawFinal {
		return
	}

	// The stream ended without a final event: connection drop or protocol
	// violation. The upstream caller still gets a terminal status.
	err = stream.Err()
	if err == nil {
		err = fmt.Errorf("stream ended before final event")
	}
	r.logger.Warn("downstream stream ended early",
		slog.String("agent", agentName),
		slog.String("task_id", taskID),
		slog.Any("error", err))
	r.emit(ctx, out, r.connectFailure(agentName, taskID, err))
}

// remap rewrites one downstream event for the upstream stream.
func (r *Router) remap(agentName, taskID string, ev agentwire.Event) agentwire.Event {
	switch e := ev.(type) {
	case agentwire.TaskStatusUpdateEvent:
		e.ID = taskID
		if e.Status.Message != nil {
			msg := *e.Status.Message
			msg.Parts = append([]agentwire.Part(nil), msg.Parts...)
			for i, part := range msg.Parts {
				if part.Type == agentwire.PartTypeText {
					msg.Parts[i].Text = fmt.Sprintf("[%s] %s", agentName, part.Text)
					break
				}
			}
			if msg.Metadata == nil {
				msg.Metadata = make(map[string]any)
			}
			msg.Metadata[sourceAgentMetadataKey] = agentName
			e.Status.Message = &msg
		}
		return e

	case agentwire.TaskArtifactUpdateEvent:
		e.ID = taskID
		e.Artifact.Index += ArtifactIndexBase
		if e.Artifact.Metadata == nil {
			e.Artifact.Metadata = make(map[string]any)
		}
		e.Artifact.Metadata[sourceAgentMetadataKey] = agentName
		return e

	default:
		return ev
	}
}

// connectFailure synthesizes the terminal failed event for a downstream
// connection failure.
func (r *Router) connectFailure(agentName, taskID string, err error) agentwire.TaskStatusUpdateEvent {
	text := fmt.Sprintf("Error connecting to %s agent: %v", agentName, err)
	ev := agentwire.FailedEvent(taskID, text)
	if ev.Status.Message != nil {
		if ev.Status.Message.Metadata == nil {
			ev.Status.Message.Metadata = make(map[string]any)
		}
		ev.Status.Message.Metadata[sourceAgentMetadataKey] = agentName
	}
	return ev
}

func (r *Router) emit(ctx context.Context, out chan<- agentwire.Event, ev agentwire.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
