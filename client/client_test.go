// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/server"
)

func newAgentServer(t *testing.T, name string, processor server.Processor) *httptest.Server {
	t.Helper()
	card := agentwire.AgentCard{
		Name:    name,
		URL:     "http://localhost/",
		Version: "1.0.0",
		Capabilities: agentwire.AgentCapabilities{
			Streaming: true,
		},
		Skills: []agentwire.AgentSkill{
			{ID: "work", Name: "Work"},
		},
	}
	srv, err := server.NewServer(card, processor)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func completingProcessor(text string) server.Processor {
	return server.ProcessorFunc(func(ctx context.Context, pc server.ProcessContext, sink *server.Sink) error {
		if err := sink.Working(ctx, "working on it"); err != nil {
			return err
		}
		return sink.Completed(ctx, text)
	})
}

func userMessage(text string) agentwire.Message {
	return agentwire.NewTextMessage(agentwire.RoleUser, text)
}

func TestClientSendTask(t *testing.T) {
	ts := newAgentServer(t, "worker", completingProcessor("done"))
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	task, err := c.SendTask(context.Background(), agentwire.TaskSendParams{
		ID:      "task-1",
		Message: userMessage("hello"),
	})
	if err != nil {
		t.Fatalf("SendTask failed: %v", err)
	}
	if task.ID != "task-1" {
		t.Errorf("Expected task ID task-1, got %s", task.ID)
	}
	if task.Status.State != agentwire.TaskStateCompleted {
		t.Errorf("Expected completed state, got %s", task.Status.State)
	}
}

func TestClientSendSubscribe(t *testing.T) {
	ts := newAgentServer(t, "worker", completingProcessor("all done"))
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	stream, err := c.SendSubscribe(context.Background(), agentwire.TaskSendParams{
		ID:      "task-2",
		Message: userMessage("hello"),
	})
	if err != nil {
		t.Fatalf("SendSubscribe failed: %v", err)
	}
	defer stream.Close()

	var states []agentwire.TaskState
	for ev := range stream.Events() {
		if status, ok := ev.Event.(agentwire.TaskStatusUpdateEvent); ok {
			states = append(states, status.Status.State)
		}
	}
	if stream.Err() != nil {
		t.Fatalf("Stream failed: %v", stream.Err())
	}

	want := []agentwire.TaskState{
		agentwire.TaskStateSubmitted,
		agentwire.TaskStateWorking,
		agentwire.TaskStateCompleted,
	}
	if len(states) != len(want) {
		t.Fatalf("Expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("Expected state %s at position %d, got %s", want[i], i, states[i])
		}
	}
}

func TestClientResubscribeAfterCompletion(t *testing.T) {
	ts := newAgentServer(t, "worker", completingProcessor("done"))
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := c.SendTask(context.Background(), agentwire.TaskSendParams{
		ID:      "task-3",
		Message: userMessage("hello"),
	}); err != nil {
		t.Fatalf("SendTask failed: %v", err)
	}

	stream, err := c.Resubscribe(context.Background(), "task-3", 0)
	if err != nil {
		t.Fatalf("Resubscribe failed: %v", err)
	}
	defer stream.Close()

	var events []StreamEvent
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	if len(events) != 1 {
		t.Fatalf("Expected single final event for terminal task, got %d", len(events))
	}
	if !events[0].Event.IsFinal() {
		t.Error("Expected final event")
	}
}

func TestClientGetTask(t *testing.T) {
	ts := newAgentServer(t, "worker", completingProcessor("done"))
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := c.SendTask(context.Background(), agentwire.TaskSendParams{
		ID:      "task-4",
		Message: userMessage("hello"),
	}); err != nil {
		t.Fatalf("SendTask failed: %v", err)
	}

	task, err := c.GetTask(context.Background(), "task-4")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.Status.State != agentwire.TaskStateCompleted {
		t.Errorf("Expected completed state, got %s", task.Status.State)
	}

	_, err = c.GetTask(context.Background(), "missing")
	if !IsTaskNotFoundError(err) {
		t.Errorf("Expected task not found error, got %v", err)
	}
}

func TestClientCancelTask(t *testing.T) {
	ts := newAgentServer(t, "worker", completingProcessor("done"))
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ok, err := c.CancelTask(context.Background(), "never-sent")
	if err != nil {
		t.Fatalf("CancelTask failed: %v", err)
	}
	if !ok {
		t.Error("Expected cancel of unknown task to report success")
	}
}

func TestClientAgentCard(t *testing.T) {
	ts := newAgentServer(t, "card-agent", completingProcessor("done"))
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	card, err := c.AgentCard(context.Background())
	if err != nil {
		t.Fatalf("AgentCard failed: %v", err)
	}
	if card.Name != "card-agent" {
		t.Errorf("Expected agent name card-agent, got %s", card.Name)
	}

	// Second fetch is served from the cache; same value either way.
	again, err := c.AgentCard(context.Background())
	if err != nil {
		t.Fatalf("AgentCard failed: %v", err)
	}
	if again.Name != card.Name {
		t.Errorf("Expected cached card, got %s", again.Name)
	}
}

func TestClientSendTaskInvalidParams(t *testing.T) {
	ts := newAgentServer(t, "worker", completingProcessor("done"))
	c, err := NewClient(ts.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = c.SendTask(context.Background(), agentwire.TaskSendParams{ID: "task-bad"})
	if !IsInvalidParamsError(err) {
		t.Errorf("Expected invalid params error, got %v", err)
	}
}

func TestClientSubscriberNameOption(t *testing.T) {
	c, err := NewClient("http://localhost:1", WithSubscriberName("orchestrator"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.SubscriberName() != "orchestrator" {
		t.Errorf("Expected subscriber name orchestrator, got %s", c.SubscriberName())
	}
}

func TestClientRejectsEmptyBaseURL(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Error("Expected error for empty base URL")
	}
}
