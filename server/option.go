// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/agentwire/agentwire/server/event"
	"github.com/agentwire/agentwire/server/task"
)

// Option configures a Server.
type Option func(*Server) error

// WithStore sets the snapshot store. Defaults to an in-memory store.
func WithStore(store task.Store) Option {
	return func(s *Server) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		s.store = store
		return nil
	}
}

// WithBroker sets the event broker. Defaults to a broker with the standard
// log cap and TTL.
func WithBroker(broker *event.Broker) Option {
	return func(s *Server) error {
		if broker == nil {
			return fmt.Errorf("broker cannot be nil")
		}
		s.broker = broker
		return nil
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithMaxTaskDuration bounds how long a single task's processor may run
// before the task is failed. Zero disables the limit.
func WithMaxTaskDuration(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return fmt.Errorf("max task duration cannot be negative")
		}
		s.maxTaskDuration = d
		return nil
	}
}
