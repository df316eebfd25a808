// Copyright 2025 The Agentwire Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/agentwire/agentwire"
	"github.com/agentwire/agentwire/server/event"
)

// subscriberHeader carries an optional client-chosen subscriber name used
// for the broker's presence registry.
const subscriberHeader = "X-Agentwire-Subscriber"

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.MarshalWrite(w, s.card); err != nil {
		s.logger.Error("failed to write agent card", slog.Any("error", err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if s.degraded.Load() {
		status = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":%q,"agent":%q}`+"\n", status, s.card.Name)
}

// decodeRequest reads and validates the JSON-RPC envelope for one endpoint.
// Decode failures and envelope violations are written to the response and
// reported by the nil return.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, method string) *agentwire.JSONRPCRequest {
	var req agentwire.JSONRPCRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		s.writeError(w, "", agentwire.JSONParseError{Err: err})
		return nil
	}
	if err := req.Validate(); err != nil {
		s.writeError(w, req.ID, agentwire.InvalidRequestError{Msg: err.Error()})
		return nil
	}
	if req.Method != method {
		s.writeError(w, req.ID, agentwire.MethodNotFoundError{Method: req.Method})
		return nil
	}
	return &req
}

// decodeParams unmarshals the request params into dst, which must implement
// Validate.
func (s *Server) decodeParams(w http.ResponseWriter, req *agentwire.JSONRPCRequest, dst interface{ Validate() error }) bool {
	if err := json.Unmarshal(req.Params, dst); err != nil {
		s.writeError(w, req.ID, agentwire.InvalidParamsError{Msg: err.Error()})
		return false
	}
	if err := dst.Validate(); err != nil {
		s.writeError(w, req.ID, agentwire.InvalidParamsError{Msg: err.Error()})
		return false
	}
	return true
}

func (s *Server) writeResult(w http.ResponseWriter, id string, result any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.MarshalWrite(w, agentwire.NewJSONRPCResponse(id, result)); err != nil {
		s.logger.Error("failed to write response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, id string, err error) {
	w.Header().Set("Content-Type", "application/json")
	if werr := json.MarshalWrite(w, agentwire.NewJSONRPCErrorResponse(id, err)); werr != nil {
		s.logger.Error("failed to write error response", slog.Any("error", werr))
	}
}

// acceptTask validates send params and launches the runner. The returned
// task is the submitted snapshot. A task id that already has a snapshot or a
// live runner is rejected before anything is written, so a resend can never
// clobber existing state.
func (s *Server) acceptTask(ctx context.Context, params agentwire.TaskSendParams) (*agentwire.Task, error) {
	t, err := agentwire.NewTask(params.ID, params.SessionID, params.Message, params.Metadata)
	if err != nil {
		return nil, agentwire.InvalidParamsError{Msg: err.Error()}
	}
	if _, err := s.store.Get(ctx, t.ID); err == nil {
		return nil, agentwire.InvalidParamsError{Msg: fmt.Sprintf("task %s already exists", t.ID)}
	}

	pc := ProcessContext{
		TaskID:    t.ID,
		SessionID: t.SessionID,
		Message:   params.Message,
		Metadata:  params.Metadata,
	}
	if err := s.startTask(t, pc); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	req := s.decodeRequest(w, r, agentwire.MethodTasksSend)
	if req == nil {
		return
	}
	var params agentwire.TaskSendParams
	if !s.decodeParams(w, req, &params) {
		return
	}

	t, err := s.acceptTask(r.Context(), params)
	if err != nil {
		s.writeError(w, req.ID, err)
		return
	}

	// Block until the task reaches a terminal state. The runner keeps going
	// if the client disconnects; the result is then available via tasks/get.
	sub, err := s.broker.Subscribe(context.Background(), t.ID, subscriberName(r), true)
	if err != nil {
		s.writeError(w, req.ID, agentwire.InternalError{Err: err})
		return
	}
	defer sub.Close()

	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				snapshot, err := s.lookupTask(r.Context(), t.ID)
				if err != nil {
					s.writeError(w, req.ID, agentwire.InternalError{Err: err})
					return
				}
				s.writeResult(w, req.ID, snapshot)
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleSendSubscribe(w http.ResponseWriter, r *http.Request) {
	req := s.decodeRequest(w, r, agentwire.MethodTasksSendSubscribe)
	if req == nil {
		return
	}
	var params agentwire.TaskSendParams
	if !s.decodeParams(w, req, &params) {
		return
	}

	t, err := s.acceptTask(r.Context(), params)
	if err != nil {
		s.writeError(w, req.ID, err)
		return
	}

	sub, err := s.broker.Subscribe(r.Context(), t.ID, subscriberName(r), true)
	if err != nil {
		s.writeError(w, req.ID, agentwire.InternalError{Err: err})
		return
	}
	defer sub.Close()

	s.streamRecords(w, r, sub, nil)
}

func (s *Server) handleResubscribe(w http.ResponseWriter, r *http.Request) {
	req := s.decodeRequest(w, r, agentwire.MethodTasksResubscribe)
	if req == nil {
		return
	}
	var params agentwire.TaskIDParams
	if !s.decodeParams(w, req, &params) {
		return
	}

	snapshot, err := s.lookupTask(r.Context(), params.ID)
	if err != nil {
		s.writeError(w, req.ID, err)
		return
	}

	// The subscription is taken before the current-status event is built,
	// so any event published in between is delivered on the live channel
	// rather than lost. Duplicates are resolved client-side by state.
	var sub *event.Subscription
	if !snapshot.Status.State.Terminal() {
		sub, err = s.broker.Subscribe(r.Context(), params.ID, subscriberName(r), false)
		if err != nil {
			s.writeError(w, req.ID, agentwire.InternalError{Err: err})
			return
		}
		defer sub.Close()
		snapshot, err = s.lookupTask(r.Context(), params.ID)
		if err != nil {
			s.writeError(w, req.ID, err)
			return
		}
	}

	current := agentwire.TaskStatusUpdateEvent{
		ID:     params.ID,
		Status: snapshot.Status,
		Final:  snapshot.Status.State.Terminal(),
	}
	s.streamRecords(w, r, sub, &current)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	req := s.decodeRequest(w, r, agentwire.MethodTasksGet)
	if req == nil {
		return
	}
	var params agentwire.TaskIDParams
	if !s.decodeParams(w, req, &params) {
		return
	}

	snapshot, err := s.lookupTask(r.Context(), params.ID)
	if err != nil {
		s.writeError(w, req.ID, err)
		return
	}
	s.writeResult(w, req.ID, snapshot)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	req := s.decodeRequest(w, r, agentwire.MethodTasksCancel)
	if req == nil {
		return
	}
	var params agentwire.TaskIDParams
	if !s.decodeParams(w, req, &params) {
		return
	}

	if err := s.cancelTask(r.Context(), params.ID); err != nil {
		s.writeError(w, req.ID, err)
		return
	}
	s.writeResult(w, req.ID, agentwire.CancelTaskResult{Success: true})
}

// streamRecords writes an SSE stream: the optional synthetic current event
// first, then broker records until the stream is finalized or the client
// disconnects. A final event closes the stream.
func (s *Server) streamRecords(w http.ResponseWriter, r *http.Request, sub *event.Subscription, current *agentwire.TaskStatusUpdateEvent) {
	sw, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	if current != nil {
		if err := sw.writeEvent(*current, 0); err != nil {
			return
		}
		if current.Final {
			return
		}
	}
	if sub == nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case rec, ok := <-sub.Events():
			if !ok {
				if serr := sub.Err(); serr != nil {
					s.logger.Warn("subscription ended",
						slog.Any("error", serr))
				}
				return
			}
			if err := sw.writeRecord(rec); err != nil {
				return
			}
			if rec.Event.IsFinal() {
				return
			}
		case <-heartbeat.C:
			if err := sw.writeComment("heartbeat"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func subscriberName(r *http.Request) string {
	if name := r.Header.Get(subscriberHeader); name != "" {
		return name
	}
	return r.RemoteAddr
}
