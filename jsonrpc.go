// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"fmt"

	"github.com/go-json-experiment/json/jsontext"
)

// Agentwire RPC method names.
const (
	// MethodTasksSend is the method name for sending a task and blocking for
	// its final state.
	MethodTasksSend = "tasks/send"
	// MethodTasksSendSubscribe is the method name for sending a task and
	// subscribing to streamed updates.
	MethodTasksSendSubscribe = "tasks/sendSubscribe"
	// MethodTasksResubscribe is the method name for reattaching to an
	// existing task's stream.
	MethodTasksResubscribe = "tasks/resubscribe"
	// MethodTasksGet is the method name for getting a task snapshot.
	MethodTasksGet = "tasks/get"
	// MethodTasksCancel is the method name for canceling a task.
	MethodTasksCancel = "tasks/cancel"
)

// jsonrpcVersion is the JSON-RPC protocol version carried by every envelope.
const jsonrpcVersion = "2.0"

// JSONRPCRequest is a JSON-RPC 2.0 request envelope. Params stay raw until
// the method is known.
type JSONRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id,omitzero"`
	Method  string         `json:"method"`
	Params  jsontext.Value `json:"params,omitzero"`
}

// Validate ensures the request envelope is well formed.
func (r JSONRPCRequest) Validate() error {
	if r.JSONRPC != jsonrpcVersion {
		return fmt.Errorf("invalid jsonrpc version: %q", r.JSONRPC)
	}
	if r.Method == "" {
		return fmt.Errorf("method cannot be empty")
	}
	return nil
}

// JSONRPCError is the error member of a JSON-RPC 2.0 response.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitzero"`
}

// Error implements the error interface.
func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// JSONRPCResponse is a JSON-RPC 2.0 response envelope. Exactly one of Result
// and Error is set.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id,omitzero"`
	Result  any           `json:"result,omitzero"`
	Error   *JSONRPCError `json:"error,omitzero"`
}

// NewJSONRPCResponse creates a success response for the given request id.
func NewJSONRPCResponse(id string, result any) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: jsonrpcVersion, ID: id, Result: result}
}

// NewJSONRPCErrorResponse creates an error response for the given request id.
func NewJSONRPCErrorResponse(id string, err error) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: jsonrpcVersion, ID: id, Error: AsJSONRPCError(err)}
}

// TaskSendParams are the parameters of tasks/send and tasks/sendSubscribe.
type TaskSendParams struct {
	ID        string         `json:"id,omitzero"`
	SessionID string         `json:"sessionId,omitzero"`
	Message   Message        `json:"message"`
	Metadata  map[string]any `json:"metadata,omitzero"`
}

// Validate ensures the parameters are well formed.
func (p TaskSendParams) Validate() error {
	if err := p.Message.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}

// TaskIDParams are the parameters of tasks/get, tasks/cancel and
// tasks/resubscribe.
type TaskIDParams struct {
	ID string `json:"id"`
}

// Validate ensures the parameters are well formed.
func (p TaskIDParams) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("task id cannot be empty")
	}
	return nil
}

// CancelTaskResult is the result of tasks/cancel.
type CancelTaskResult struct {
	Success bool `json:"success"`
}
