// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Options represents the configuration options for the agentwire client.
type Options struct {
	// HTTPClient is the HTTP client to use for requests.
	// If nil, a client with the default timeout will be used.
	HTTPClient *http.Client

	// Headers are additional HTTP headers to include in requests.
	Headers http.Header

	// Timeout is the default timeout for non-streaming requests.
	Timeout time.Duration

	// RetryConfig configures the retry behavior for failed requests.
	RetryConfig RetryConfig

	// SubscriberName identifies this client in the server's subscriber
	// registry. Defaults to a generated id.
	SubscriberName string

	// Logger for logging operations.
	Logger *slog.Logger

	// Tracer for OpenTelemetry tracing.
	Tracer trace.Tracer
}

// RetryConfig configures retry behavior for failed requests.
type RetryConfig struct {
	// MaxRetries is the maximum number of retries for a request.
	// If zero, no retries will be attempted.
	MaxRetries int

	// RetryDelay is the base delay between retries. The actual delay is
	// calculated with exponential backoff and jitter.
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay between retries.
	MaxRetryDelay time.Duration

	// RetryableStatusCodes is the list of HTTP status codes that trigger a
	// retry. Network errors always do.
	RetryableStatusCodes []int
}

// DefaultOptions returns the default client options.
func DefaultOptions() Options {
	return Options{
		Timeout: 30 * time.Second,
		RetryConfig: RetryConfig{
			MaxRetries:           3,
			RetryDelay:           100 * time.Millisecond,
			MaxRetryDelay:        10 * time.Second,
			RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
		},
	}
}

// Option is a function that configures a Client.
type Option func(*Options)

// WithHTTPClient sets the HTTP client to use for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithTimeout sets the default timeout for non-streaming requests.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

// WithHeaders sets additional HTTP headers to include in requests.
func WithHeaders(headers http.Header) Option {
	return func(o *Options) {
		o.Headers = headers
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(config RetryConfig) Option {
	return func(o *Options) {
		o.RetryConfig = config
	}
}

// WithSubscriberName sets the subscriber name reported to servers.
func WithSubscriberName(name string) Option {
	return func(o *Options) {
		o.SubscriberName = name
	}
}

// WithLogger sets the [*slog.Logger] for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTracer sets the [trace.Tracer] for the client.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Options) {
		o.Tracer = tracer
	}
}
