// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/agentwire/agentwire"
)

// SSE event labels used by the task stream.
const (
	eventLabelStatus   = "status"
	eventLabelArtifact = "artifact"
)

// StreamEvent is one decoded event from a task stream, with the server-side
// sequence number carried in the SSE id field. Seq is monotonically
// increasing per task; consumers reconnecting with replay de-duplicate by
// discarding events at or below the last sequence number they saw.
type StreamEvent struct {
	Seq   uint64
	Event agentwire.Event
}

// StreamConn reads SSE frames from a streaming response body.
type StreamConn struct {
	reader *bufio.Reader
	closer io.Closer

	mu      sync.Mutex
	closed  bool
	lastErr error
	done    chan struct{}
}

// NewStreamConn creates a StreamConn from a streaming response body.
func NewStreamConn(rc io.ReadCloser) *StreamConn {
	return &StreamConn{
		reader: bufio.NewReader(rc),
		closer: rc,
		done:   make(chan struct{}),
	}
}

// Close closes the stream connection.
func (s *StreamConn) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return s.closer.Close()
}

// Done returns a channel that is closed when the stream is closed.
func (s *StreamConn) Done() <-chan struct{} {
	return s.done
}

// Err returns the last error that occurred while reading from the stream.
func (s *StreamConn) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *StreamConn) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// readFrame reads one SSE frame, skipping comment lines used as heartbeats.
func (s *StreamConn) readFrame(ctx context.Context) (label string, seq uint64, data []byte, err error) {
	s.mu.Lock()
	if s.closed {
		err := s.lastErr
		if err == nil {
			err = errors.New("stream closed")
		}
		s.mu.Unlock()
		return "", 0, nil, err
	}
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return "", 0, nil, ctx.Err()
		default:
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.setError(err)
			if err == io.EOF {
				return "", 0, nil, err
			}
			return "", 0, nil, fmt.Errorf("reading line: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if label != "" && len(data) > 0 {
				return label, seq, data, nil
			}
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment.
		case strings.HasPrefix(line, "id:"):
			seq, _ = strconv.ParseUint(strings.TrimSpace(line[3:]), 10, 64)
		case strings.HasPrefix(line, "event:"):
			label = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			data = append(data, []byte(strings.TrimSpace(line[5:]))...)
		}
	}
}

// ReadEvent reads and decodes the next event from the stream.
func (s *StreamConn) ReadEvent(ctx context.Context) (*StreamEvent, error) {
	label, seq, data, err := s.readFrame(ctx)
	if err != nil {
		return nil, err
	}

	switch label {
	case eventLabelStatus:
		var ev agentwire.TaskStatusUpdateEvent
		if err := sonic.ConfigFastest.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling status event: %w", err)
		}
		return &StreamEvent{Seq: seq, Event: ev}, nil
	case eventLabelArtifact:
		var ev agentwire.TaskArtifactUpdateEvent
		if err := sonic.ConfigFastest.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("unmarshaling artifact event: %w", err)
		}
		return &StreamEvent{Seq: seq, Event: ev}, nil
	default:
		return nil, fmt.Errorf("unexpected event label: %s", label)
	}
}

// EventStream delivers decoded task events on a channel until the final
// event, a read error, or cancellation. Replayed duplicates are dropped
// using the sequence numbers when the consumer supplies the last sequence
// it already processed.
type EventStream struct {
	conn   *StreamConn
	events chan StreamEvent

	mu      sync.Mutex
	lastSeq uint64
	err     error
}

// newEventStream starts the reader goroutine. afterSeq suppresses events
// with a sequence number at or below it; pass 0 to deliver everything.
func newEventStream(ctx context.Context, conn *StreamConn, afterSeq uint64) *EventStream {
	es := &EventStream{
		conn:    conn,
		events:  make(chan StreamEvent, 16),
		lastSeq: afterSeq,
	}
	go es.read(ctx)
	return es
}

func (es *EventStream) read(ctx context.Context) {
	defer close(es.events)
	defer es.conn.Close()

	for {
		ev, err := es.conn.ReadEvent(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				es.mu.Lock()
				es.err = err
				es.mu.Unlock()
			}
			return
		}

		es.mu.Lock()
		// Synthetic events carry sequence 0 and are never de-duplicated.
		if ev.Seq != 0 && ev.Seq <= es.lastSeq {
			es.mu.Unlock()
			continue
		}
		if ev.Seq != 0 {
			es.lastSeq = ev.Seq
		}
		es.mu.Unlock()

		select {
		case es.events <- *ev:
		case <-ctx.Done():
			return
		}
		if ev.Event.IsFinal() {
			return
		}
	}
}

// Events returns the channel of decoded events. It is closed after the
// final event, a read error, or cancellation.
func (es *EventStream) Events() <-chan StreamEvent {
	return es.events
}

// LastSeq returns the highest sequence number delivered so far.
func (es *EventStream) LastSeq() uint64 {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.lastSeq
}

// Err returns the error that terminated the stream, if any. A stream that
// ended with the final event reports nil.
func (es *EventStream) Err() error {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.err
}

// Close tears down the underlying connection.
func (es *EventStream) Close() error {
	return es.conn.Close()
}
