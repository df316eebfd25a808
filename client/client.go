// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package client implements the caller side of the agentwire protocol:
// task submission (blocking and streaming), resubscription, status queries,
// cancellation and agent discovery, plus a forwarding router that relays a
// task to a downstream agent under the caller's task identity.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentwire/agentwire"
	"github.com/go-json-experiment/json"
)

const userAgent = "agentwire/client " + agentwire.Version

// agentCardPath is the well-known discovery document path.
const agentCardPath = "/.well-known/agent.json"

// subscriberHeader carries the client's subscriber name for the server's
// presence registry.
const subscriberHeader = "X-Agentwire-Subscriber"

// Client is a client for one agentwire server.
type Client struct {
	transport      *transport
	httpClient     *http.Client
	baseURL        string
	subscriberName string
	logger         *slog.Logger
	tracer         trace.Tracer

	cardMu sync.Mutex
	card   *agentwire.AgentCard
}

// NewClient creates a client for the agent at the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL must be provided")
	}

	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}
	subscriberName := options.SubscriberName
	if subscriberName == "" {
		subscriberName = "client-" + agentwire.GenerateID()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := options.Tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer("github.com/agentwire/agentwire/client")
	}

	t := newTransport(baseURL, httpClient, options.RetryConfig)
	headers := make(http.Header)
	if options.Headers != nil {
		headers = options.Headers.Clone()
	}
	headers.Set(subscriberHeader, subscriberName)
	t.setHeaders(headers)

	return &Client{
		transport:      t,
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		subscriberName: subscriberName,
		logger:         logger,
		tracer:         tracer,
	}, nil
}

// SubscriberName returns the name this client registers with servers.
func (c *Client) SubscriberName() string {
	return c.subscriberName
}

// AgentCard fetches the agent's discovery document. The card is cached
// after the first successful fetch.
func (c *Client) AgentCard(ctx context.Context) (*agentwire.AgentCard, error) {
	c.cardMu.Lock()
	defer c.cardMu.Unlock()
	if c.card != nil {
		return c.card, nil
	}

	ctx, span := c.tracer.Start(ctx, "agentwire.client.AgentCard")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+agentCardPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch agent card: unexpected status %s", resp.Status)
	}

	var card agentwire.AgentCard
	if err := json.UnmarshalRead(resp.Body, &card); err != nil {
		return nil, fmt.Errorf("decode agent card: %w", err)
	}
	c.card = &card
	return c.card, nil
}

// SendTask submits a task and blocks until it reaches a terminal state.
// The returned task carries the final status and all artifacts.
func (c *Client) SendTask(ctx context.Context, params agentwire.TaskSendParams) (*agentwire.Task, error) {
	ctx, span := c.tracer.Start(ctx, "agentwire.client.SendTask",
		trace.WithAttributes(attribute.String("agentwire.task_id", params.ID)))
	defer span.End()

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	var result agentwire.Task
	err := c.transport.call(ctx, "/tasks/send", agentwire.MethodTasksSend, params, agentwire.GenerateID(), &result)
	if err != nil {
		return nil, fmt.Errorf("failed to send task: %w", err)
	}
	return &result, nil
}

// SendSubscribe submits a task and streams its events. The stream starts
// with the initial submitted status and ends with the final event.
func (c *Client) SendSubscribe(ctx context.Context, params agentwire.TaskSendParams) (*EventStream, error) {
	ctx, span := c.tracer.Start(ctx, "agentwire.client.SendSubscribe",
		trace.WithAttributes(attribute.String("agentwire.task_id", params.ID)))
	defer span.End()

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	body, err := c.transport.stream(ctx, "/tasks/sendSubscribe", agentwire.MethodTasksSendSubscribe, params, agentwire.GenerateID())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to task: %w", err)
	}
	return newEventStream(ctx, NewStreamConn(body), 0), nil
}

// Resubscribe reattaches to an existing task's stream. afterSeq is the
// highest sequence number already processed; pass 0 on a fresh attach.
func (c *Client) Resubscribe(ctx context.Context, taskID string, afterSeq uint64) (*EventStream, error) {
	ctx, span := c.tracer.Start(ctx, "agentwire.client.Resubscribe",
		trace.WithAttributes(attribute.String("agentwire.task_id", taskID)))
	defer span.End()

	params := agentwire.TaskIDParams{ID: taskID}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	body, err := c.transport.stream(ctx, "/tasks/resubscribe", agentwire.MethodTasksResubscribe, params, agentwire.GenerateID())
	if err != nil {
		return nil, fmt.Errorf("failed to resubscribe to task: %w", err)
	}
	return newEventStream(ctx, NewStreamConn(body), afterSeq), nil
}

// GetTask retrieves the current snapshot of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*agentwire.Task, error) {
	ctx, span := c.tracer.Start(ctx, "agentwire.client.GetTask",
		trace.WithAttributes(attribute.String("agentwire.task_id", taskID)))
	defer span.End()

	var result agentwire.Task
	err := c.transport.call(ctx, "/tasks/get", agentwire.MethodTasksGet, agentwire.TaskIDParams{ID: taskID}, agentwire.GenerateID(), &result)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &result, nil
}

// CancelTask requests cancellation of a task. Unknown and already-terminal
// tasks report success without any state change.
func (c *Client) CancelTask(ctx context.Context, taskID string) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "agentwire.client.CancelTask",
		trace.WithAttributes(attribute.String("agentwire.task_id", taskID)))
	defer span.End()

	var result agentwire.CancelTaskResult
	err := c.transport.call(ctx, "/tasks/cancel", agentwire.MethodTasksCancel, agentwire.TaskIDParams{ID: taskID}, agentwire.GenerateID(), &result)
	if err != nil {
		return false, fmt.Errorf("failed to cancel task: %w", err)
	}
	return result.Success, nil
}
