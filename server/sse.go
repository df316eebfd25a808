// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/server/event"
)

// sseWriter frames events as Server-Sent Events on a streaming response.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares the response for SSE streaming. It fails when the
// underlying writer does not support flushing.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable proxy buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

// writeEvent frames one protocol event. The broker sequence number, when
// present, becomes the SSE id field so reconnecting consumers can
// de-duplicate.
func (s *sseWriter) writeEvent(ev agentwire.Event, seq uint64) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if seq > 0 {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", strconv.FormatUint(seq, 10)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Kind(), data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// writeRecord frames one broker record.
func (s *sseWriter) writeRecord(record event.Record) error {
	return s.writeEvent(record.Event, record.Seq)
}

// writeComment writes an SSE comment line, used as an idle-stream heartbeat.
func (s *sseWriter) writeComment(comment string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", comment); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// heartbeatInterval is how often an idle stream emits a comment so proxies
// and clients can tell a silent stream from a dead one.
const heartbeatInterval = 15 * time.Second
