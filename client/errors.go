// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"

	"github.com/agentwire/agentwire"
)

// IsRPCError checks if an error is a JSON-RPC error with the given code.
func IsRPCError(err error, code int) bool {
	var rpcErr *agentwire.JSONRPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == code
	}
	return false
}

// IsTaskNotFoundError checks if an error is due to a task not being found.
func IsTaskNotFoundError(err error) bool {
	return IsRPCError(err, agentwire.ErrorCodeTaskNotFound)
}

// IsInvalidParamsError checks if an error is due to malformed parameters.
func IsInvalidParamsError(err error) bool {
	return IsRPCError(err, agentwire.ErrorCodeInvalidParams)
}
