// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

// Package event implements the per-task event log and publish/subscribe
// broker backing the protocol server.
//
// The broker combines a bounded append-only log per task with live fan-out to
// attached subscribers. Pure pub/sub loses events emitted before a subscriber
// attaches; pure log replay cannot push. Subscribe therefore snapshots the
// log and registers the live channel under the same lock, so a subscription
// observes every event exactly once and in order. Every published event
// carries a per-task monotonically increasing sequence number, letting a
// consumer that reconnects de-duplicate across the replay/live boundary;
// across reconnects delivery is at least once.
package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/agentwire/agentwire"
)

// Defaults mirror the limits of the original deployment: at most 1000
// retained events per task and a 24 hour retention for abandoned tasks.
const (
	DefaultLogCap = 1000
	DefaultTTL    = 24 * time.Hour
)

var (
	// ErrTaskFinalized indicates a publish after the task's final event.
	ErrTaskFinalized = errors.New("task event stream is finalized")

	// ErrSubscriptionLagged indicates a subscription was closed because it
	// fell more than a full log behind the publisher.
	ErrSubscriptionLagged = errors.New("subscription lagged behind publisher")
)

// Record is one logged event together with its per-task sequence number.
// Sequence numbers start at 1 and increase by one per published event.
type Record struct {
	Seq   uint64
	Event agentwire.Event
}

// BrokerConfig holds configuration for a Broker.
type BrokerConfig struct {
	// LogCap bounds the per-task event log. Zero means DefaultLogCap.
	LogCap int

	// TTL is how long a task's log and presence set are retained after the
	// last publish or subscribe. Zero means DefaultTTL.
	TTL time.Duration
}

// Broker is the sole arbiter of a task's shared event state: its bounded
// event log, its live subscriber channels and its subscriber-presence set.
// All methods are safe for concurrent use.
type Broker struct {
	mu     sync.Mutex
	tasks  map[string]*taskStream
	logCap int
	ttl    time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

type taskStream struct {
	records   []Record
	baseSeq   uint64 // sequence number of records[0], for trim accounting
	nextSeq   uint64
	finalized bool
	subs      map[*Subscription]struct{}
	presence  map[string]int
	expiresAt time.Time
}

// NewBroker creates a broker with the given configuration.
func NewBroker(config BrokerConfig) *Broker {
	logCap := config.LogCap
	if logCap <= 0 {
		logCap = DefaultLogCap
	}
	ttl := config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Broker{
		tasks:  make(map[string]*taskStream),
		logCap: logCap,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Publish appends an event to the task's log, assigns its sequence number
// and delivers it to every attached subscriber. Publishing after the final
// event returns ErrTaskFinalized. A subscriber whose buffer is full is closed
// with ErrSubscriptionLagged rather than blocking the publisher.
func (b *Broker) Publish(ctx context.Context, event agentwire.Event) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stream := b.stream(event.TaskID())
	if stream.finalized {
		return Record{}, ErrTaskFinalized
	}

	stream.nextSeq++
	record := Record{Seq: stream.nextSeq, Event: event}
	stream.records = append(stream.records, record)
	if len(stream.records) > b.logCap {
		trim := len(stream.records) - b.logCap
		stream.records = stream.records[trim:]
		stream.baseSeq += uint64(trim)
	}
	stream.expiresAt = b.now().Add(b.ttl)

	for sub := range stream.subs {
		select {
		case sub.ch <- record:
		default:
			sub.fail(ErrSubscriptionLagged)
			b.detach(stream, sub)
		}
	}

	if event.IsFinal() {
		stream.finalized = true
		for sub := range stream.subs {
			sub.finish()
			b.detach(stream, sub)
		}
	}

	return record, nil
}

// Subscribe attaches a named subscriber to a task's event stream. With replay
// set the subscription is pre-loaded with the retained log; either way it
// then receives live events. The log snapshot and the live registration
// happen atomically, so no event published around the call is missed or
// duplicated within this subscription. The name is recorded in the task's
// presence set until the subscription ends.
func (b *Broker) Subscribe(ctx context.Context, taskID, name string, replay bool) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stream := b.stream(taskID)
	stream.expiresAt = b.now().Add(b.ttl)

	var backlog []Record
	if replay {
		backlog = append(backlog, stream.records...)
	}

	sub := &Subscription{
		broker: b,
		taskID: taskID,
		name:   name,
		ch:     make(chan Record, b.logCap+len(backlog)),
		done:   make(chan struct{}),
	}
	for _, record := range backlog {
		sub.ch <- record
	}

	if stream.finalized {
		// Nothing further will be published; the backlog already ends with
		// the final event when replay was requested.
		sub.finish()
		return sub, nil
	}

	stream.subs[sub] = struct{}{}
	stream.presence[name]++
	return sub, nil
}

// Replay returns a copy of the retained event log for a task. Reading the
// log twice without intervening publishes yields identical sequences.
func (b *Broker) Replay(taskID string) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream, ok := b.tasks[taskID]
	if !ok {
		return nil
	}
	out := make([]Record, len(stream.records))
	copy(out, stream.records)
	return out
}

// Subscribers returns the names currently present on a task, sorted, for
// diagnostics.
func (b *Broker) Subscribers(taskID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream, ok := b.tasks[taskID]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(stream.presence))
	for name := range stream.presence {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Finalized reports whether the task's final event has been published.
func (b *Broker) Finalized(taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream, ok := b.tasks[taskID]
	return ok && stream.finalized
}

// Remove drops all broker state for a task, closing any live subscriptions.
func (b *Broker) Remove(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream, ok := b.tasks[taskID]
	if !ok {
		return
	}
	for sub := range stream.subs {
		sub.finish()
	}
	delete(b.tasks, taskID)
}

// PurgeExpired drops state for tasks whose retention window has passed and
// returns how many were removed. Tasks with live subscribers are kept.
func (b *Broker) PurgeExpired(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	purged := 0
	for taskID, stream := range b.tasks {
		if len(stream.subs) > 0 || now.Before(stream.expiresAt) {
			continue
		}
		delete(b.tasks, taskID)
		purged++
	}
	return purged
}

// stream returns the task's stream, creating it if needed. Callers hold b.mu.
func (b *Broker) stream(taskID string) *taskStream {
	stream, ok := b.tasks[taskID]
	if !ok {
		stream = &taskStream{
			subs:      make(map[*Subscription]struct{}),
			presence:  make(map[string]int),
			expiresAt: b.now().Add(b.ttl),
		}
		b.tasks[taskID] = stream
	}
	return stream
}

// detach removes a subscription from a stream. Callers hold b.mu.
func (b *Broker) detach(stream *taskStream, sub *Subscription) {
	delete(stream.subs, sub)
	if n := stream.presence[sub.name]; n <= 1 {
		delete(stream.presence, sub.name)
	} else {
		stream.presence[sub.name] = n - 1
	}
}

// Subscription is one attached consumer of a task's event stream. Events
// arrive on the channel returned by Events in publish order; the channel is
// closed after the task's final event or when the subscription ends.
type Subscription struct {
	broker *Broker
	taskID string
	name   string
	ch     chan Record

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Events returns the subscription's delivery channel.
func (s *Subscription) Events() <-chan Record {
	return s.ch
}

// Err returns the reason the subscription ended early, if any.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close detaches the subscription from the broker and releases its presence
// registration. It is safe to call multiple times.
func (s *Subscription) Close() {
	s.broker.mu.Lock()
	if stream, ok := s.broker.tasks[s.taskID]; ok {
		if _, attached := stream.subs[s]; attached {
			s.broker.detach(stream, s)
		}
	}
	s.broker.mu.Unlock()
	s.finish()
}

// finish closes the delivery channel once. Callers must have detached the
// subscription first so no concurrent publish can write to the channel.
func (s *Subscription) finish() {
	s.closeOnce.Do(func() {
		close(s.done)
		close(s.ch)
	})
}

// fail records an error reason and closes the subscription's channel.
func (s *Subscription) fail(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
		close(s.ch)
	})
}
