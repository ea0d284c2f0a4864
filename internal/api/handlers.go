package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/command"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/network"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// Health status values.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"

	telemetryUnreachable = "unreachable"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Network       network.Status     `json:"network"`
	Session       session.Status     `json:"session"`
	Queue         session.QueueStats `json:"queue"`
	StreamClients int                `json:"stream_clients"`

	// Telemetry is "ok" or "unreachable", and absent when disabled. It does
	// not affect Status.
	Telemetry string `json:"telemetry,omitempty"`
}

// handleHealth reports a snapshot of the node. It always answers 200 so
// probes can distinguish "process up, broker down" from "process down".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	netStatus := s.network.Status()
	sess := s.session.Status()

	status := healthOK
	if !netStatus.Connected() || sess.State != session.StateActive {
		status = healthDegraded
	}

	resp := HealthResponse{
		Status:        status,
		Version:       s.version,
		UptimeSeconds: int64(s.now().Sub(s.started) / time.Second),
		Network:       netStatus,
		Session:       sess,
		Queue:         s.session.QueueStats(),
		StreamClients: s.hub.ClientCount(),
	}
	if s.telem != nil {
		resp.Telemetry = healthOK
		if err := s.telem.HealthCheck(r.Context()); err != nil {
			resp.Telemetry = telemetryUnreachable
			s.logger.Debug("telemetry health check failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// MessageRequest is the body of POST /api/v1/message.
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse acknowledges a queued command.
type MessageResponse struct {
	Status string `json:"status"`
	Topic  string `json:"topic"`
	QoS    string `json:"qos"`
}

// handleMessage hands a command to the event loop. 202 means queued for
// publishing, not delivered; delivery shows up in the journal.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	msg, err := s.commands.Submit(req.Message)
	switch {
	case errors.Is(err, command.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		return
	case errors.Is(err, command.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, ErrCodeBusy, "command queue is full, retry shortly")
		return
	case err != nil:
		s.logger.Error("command submit failed", "error", err)
		writeInternalError(w, "failed to submit command")
		return
	}

	writeJSON(w, http.StatusAccepted, MessageResponse{
		Status: "queued",
		Topic:  msg.Topic,
		QoS:    msg.QoS.String(),
	})
}

var knownKinds = map[journal.Kind]bool{
	journal.KindTransition: true,
	journal.KindInput:      true,
	journal.KindDrop:       true,
	journal.KindInbound:    true,
	journal.KindCommand:    true,
}

// HistoryResponse is the body of GET /api/v1/history.
type HistoryResponse struct {
	Notices []journal.Notice `json:"notices"`
	Count   int              `json:"count"`
}

// handleHistory lists recent journal notices, newest first.
//
// Query parameters:
//   - kind: transition, input, drop, inbound or command (default all)
//   - limit: maximum entries (default 50, max 500)
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "journal is not available")
		return
	}

	q := r.URL.Query()
	kind := journal.Kind(q.Get("kind"))
	if kind != "" && !knownKinds[kind] {
		writeBadRequest(w, "unknown kind: "+string(kind))
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	notices, err := s.history.Recent(r.Context(), kind, limit)
	if err != nil {
		s.logger.Error("reading journal failed", "error", err)
		writeInternalError(w, "failed to read journal")
		return
	}
	if notices == nil {
		notices = []journal.Notice{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Notices: notices, Count: len(notices)})
}
