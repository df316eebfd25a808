// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package agentwire

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier for tasks, sessions and
// requests.
func GenerateID() string {
	return uuid.NewString()
}
