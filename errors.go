// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes used by the agentwire protocol.
const (
	// ErrorCodeTaskNotFound indicates the referenced task id is unknown.
	ErrorCodeTaskNotFound = -32001
	// ErrorCodeJSONParse indicates the request body was not valid JSON.
	ErrorCodeJSONParse = -32700
	// ErrorCodeInvalidRequest indicates a malformed request envelope.
	ErrorCodeInvalidRequest = -32600
	// ErrorCodeMethodNotFound indicates an unknown RPC method.
	ErrorCodeMethodNotFound = -32601
	// ErrorCodeInvalidParams indicates malformed method parameters.
	ErrorCodeInvalidParams = -32602
	// ErrorCodeInternalError indicates a server side failure.
	ErrorCodeInternalError = -32603
)

// ProtocolError is an error carrying a JSON-RPC error code.
type ProtocolError interface {
	error
	Code() int
}

// TaskNotFoundError reports an operation referencing an unknown task id.
type TaskNotFoundError struct {
	ID string
}

// Error returns the error message.
func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task not found: %s", e.ID)
}

// Code returns ErrorCodeTaskNotFound.
func (e TaskNotFoundError) Code() int { return ErrorCodeTaskNotFound }

// JSONParseError reports an unparseable request body.
type JSONParseError struct {
	Err error
}

// Error returns the error message.
func (e JSONParseError) Error() string {
	return fmt.Sprintf("JSON parse error: %v", e.Err)
}

// Unwrap returns the underlying parse error.
func (e JSONParseError) Unwrap() error { return e.Err }

// Code returns ErrorCodeJSONParse.
func (e JSONParseError) Code() int { return ErrorCodeJSONParse }

// InvalidRequestError reports a malformed request envelope.
type InvalidRequestError struct {
	Msg string
}

// Error returns the error message.
func (e InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Msg)
}

// Code returns ErrorCodeInvalidRequest.
func (e InvalidRequestError) Code() int { return ErrorCodeInvalidRequest }

// MethodNotFoundError reports an unknown RPC method.
type MethodNotFoundError struct {
	Method string
}

// Error returns the error message.
func (e MethodNotFoundError) Error() string {
	return fmt.Sprintf("method not found: %s", e.Method)
}

// Code returns ErrorCodeMethodNotFound.
func (e MethodNotFoundError) Code() int { return ErrorCodeMethodNotFound }

// InvalidParamsError reports malformed method parameters.
type InvalidParamsError struct {
	Msg string
}

// Error returns the error message.
func (e InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params: %s", e.Msg)
}

// Code returns ErrorCodeInvalidParams.
func (e InvalidParamsError) Code() int { return ErrorCodeInvalidParams }

// InternalError reports a server side failure.
type InternalError struct {
	Err error
}

// Error returns the error message.
func (e InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e InternalError) Unwrap() error { return e.Err }

// Code returns ErrorCodeInternalError.
func (e InternalError) Code() int { return ErrorCodeInternalError }

// AsJSONRPCError converts any error into the wire error member, preserving
// the protocol code when the error carries one and falling back to the
// internal error code otherwise.
func AsJSONRPCError(err error) *JSONRPCError {
	var rpcErr *JSONRPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var perr ProtocolError
	if errors.As(err, &perr) {
		return &JSONRPCError{Code: perr.Code(), Message: perr.Error()}
	}
	return &JSONRPCError{Code: ErrorCodeInternalError, Message: err.Error()}
}
