// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/agentwire/agentwire"
)

// transport handles JSON-RPC communication with an agentwire server.
type transport struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	retry      RetryConfig
}

func newTransport(baseURL string, httpClient *http.Client, retry RetryConfig) *transport {
	return &transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		headers:    make(http.Header),
		retry:      retry,
	}
}

func (t *transport) setHeaders(headers http.Header) {
	t.headers = headers.Clone()
}

// makeRequest builds the JSON-RPC envelope for a method call.
func makeRequest(method string, params any, id string) ([]byte, error) {
	req := struct {
		JSONRPC string `json:"jsonrpc"`
		ID      string `json:"id,omitempty"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
	return sonic.ConfigFastest.Marshal(req)
}

// call sends one JSON-RPC request to the given endpoint path and decodes the
// result member into result. A populated error member is returned as
// *agentwire.JSONRPCError.
func (t *transport) call(ctx context.Context, path, method string, params any, id string, result any) error {
	data, err := makeRequest(method, params, id)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpResp, err := t.do(ctx, path, data, "application/json")
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	var resp struct {
		JSONRPC string                  `json:"jsonrpc"`
		ID      string                  `json:"id"`
		Result  json.RawMessage         `json:"result"`
		Error   *agentwire.JSONRPCError `json:"error"`
	}
	if err := sonic.ConfigFastest.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil {
		return nil
	}
	if err := sonic.ConfigFastest.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return nil
}

// stream sends one JSON-RPC request and returns the raw SSE response body.
func (t *transport) stream(ctx context.Context, path, method string, params any, id string) (io.ReadCloser, error) {
	data, err := makeRequest(method, params, id)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpResp, err := t.do(ctx, path, data, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return httpResp.Body, nil
}

// do performs the HTTP exchange with retries. Requests are retried on
// network errors and retryable status codes with capped exponential backoff
// and jitter. Streaming handshakes share the same policy since the request
// is not replayed once the body starts flowing.
func (t *transport) do(ctx context.Context, path string, payload []byte, accept string) (*http.Response, error) {
	url := t.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= t.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(t.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating HTTP request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", accept)
		httpReq.Header.Set("User-Agent", userAgent)
		for k, vs := range t.headers {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}

		httpResp, err := t.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("sending HTTP request: %w", err)
			continue
		}

		if httpResp.StatusCode == http.StatusOK {
			return httpResp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		httpResp.Body.Close()
		lastErr = fmt.Errorf("server returned non-OK status: %s, body: %s", httpResp.Status, string(body))
		if !slices.Contains(t.retry.RetryableStatusCodes, httpResp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// backoff returns the delay before the given retry attempt: exponential on
// the base delay, capped, with up to 25% random jitter.
func (t *transport) backoff(attempt int) time.Duration {
	delay := t.retry.RetryDelay << (attempt - 1)
	if t.retry.MaxRetryDelay > 0 && delay > t.retry.MaxRetryDelay {
		delay = t.retry.MaxRetryDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay)/4 + 1))
	return delay + jitter
}
