package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-node/internal/auth"
	"github.com/nerrad567/gray-logic-node/internal/command"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/network"
	"github.com/nerrad567/gray-logic-node/internal/session"
	_ "github.com/nerrad567/gray-logic-node/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

type fakeNetwork struct{ status network.Status }

func (f *fakeNetwork) Status() network.Status { return f.status }

type fakeSession struct {
	status session.Status
	stats  session.QueueStats
}

func (f *fakeSession) Status() session.Status         { return f.status }
func (f *fakeSession) QueueStats() session.QueueStats { return f.stats }

type fakeHistory struct {
	notices []journal.Notice
	kind    journal.Kind
	limit   int
}

func (f *fakeHistory) Recent(_ context.Context, kind journal.Kind, limit int) ([]journal.Notice, error) {
	f.kind, f.limit = kind, limit
	return f.notices, nil
}

type fixture struct {
	srv     *Server
	bridge  *command.Bridge
	network *fakeNetwork
	session *fakeSession
	history *fakeHistory
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()

	f := &fixture{
		bridge: command.NewBridge(command.Config{
			Topic:     "glnode/node-01/message",
			QoS:       session.AtLeastOnce,
			MaxLength: 16,
			Buffer:    2,
		}),
		network: &fakeNetwork{status: network.Status{State: network.StateConnected}},
		session: &fakeSession{
			status: session.Status{State: session.StateActive},
			stats:  session.QueueStats{Len: 1, Capacity: 16, Dropped: 2},
		},
		history: &fakeHistory{},
	}

	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5}},
		WS:       config.WebSocketConfig{MaxMessageSize: 4096, PingInterval: 30, PongTimeout: 10},
		Security: config.SecurityConfig{JWT: config.JWTConfig{Secret: secret}},
		Logger:   testLogger(),
		Commands: f.bridge,
		Network:  f.network,
		Session:  f.session,
		History:  f.history,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	f.srv = srv
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

func bearer(t *testing.T, scopes ...auth.Scope) string {
	t.Helper()
	tok, err := auth.Generate("technician", testSecret, time.Hour, scopes...)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	return "Bearer " + tok
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() with no command submitter should fail")
	}
}

// ─── Health ────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	resp := decode[HealthResponse](t, w)
	if resp.Status != healthOK {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Version != "test" {
		t.Errorf("version = %q, want test", resp.Version)
	}
	if resp.Network.State != network.StateConnected || resp.Session.State != session.StateActive {
		t.Errorf("states = %q/%q", resp.Network.State, resp.Session.State)
	}
	if resp.Queue != (session.QueueStats{Len: 1, Capacity: 16, Dropped: 2}) {
		t.Errorf("queue = %+v", resp.Queue)
	}
}

func TestHealth_DegradedStillOK(t *testing.T) {
	tests := []struct {
		name    string
		network network.State
		session session.State
	}{
		{"network failed", network.StateFailed, session.StateIdle},
		{"broker reconnecting", network.StateConnected, session.StateReconnecting},
		{"session failed", network.StateConnected, session.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			f.network.status.State = tt.network
			f.session.status.State = tt.session

			w := f.do(t, http.MethodGet, "/api/v1/health", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if got := decode[HealthResponse](t, w).Status; got != healthDegraded {
				t.Errorf("status = %q, want degraded", got)
			}
		})
	}
}

type fakeTelemetry struct{ err error }

func (f fakeTelemetry) HealthCheck(context.Context) error { return f.err }

func TestHealth_Telemetry(t *testing.T) {
	tests := []struct {
		name      string
		telemetry Telemetry
		want      string
	}{
		{"disabled", nil, ""},
		{"reachable", fakeTelemetry{}, healthOK},
		{"unreachable", fakeTelemetry{err: errors.New("connection refused")}, telemetryUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			f.srv.telem = tt.telemetry

			resp := decode[HealthResponse](t, f.do(t, http.MethodGet, "/api/v1/health", ""))
			if resp.Telemetry != tt.want {
				t.Errorf("telemetry = %q, want %q", resp.Telemetry, tt.want)
			}
			if resp.Status != healthOK {
				t.Errorf("status = %q, want ok regardless of telemetry", resp.Status)
			}
		})
	}
}

func TestHealth_Uptime(t *testing.T) {
	f := newFixture(t, "")
	f.srv.started = time.Unix(1_700_000_000, 0)
	f.srv.now = func() time.Time { return f.srv.started.Add(90 * time.Second) }

	if got := decode[HealthResponse](t, f.do(t, http.MethodGet, "/api/v1/health", "")).UptimeSeconds; got != 90 {
		t.Errorf("uptime_seconds = %d, want 90", got)
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	f := newFixture(t, "")

	if got := f.do(t, http.MethodGet, "/api/v1/health", "").Header().Get("X-Request-ID"); got == "" {
		t.Error("expected X-Request-ID header to be set")
	}
	w := f.do(t, http.MethodGet, "/api/v1/health", "", "X-Request-ID", "client-123")
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodOptions, "/api/v1/message", "", "Origin", "http://localhost:3000")

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want http://localhost:3000", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	f := newFixture(t, "")
	f.srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}

	w := f.do(t, http.MethodGet, "/api/v1/health", "", "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want none", got)
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, "")
	if w := f.do(t, http.MethodGet, "/api/v1/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestPanelServedAtRoot(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Errorf("GET / = %d, want the control page", w.Code)
	}
}

// ─── Command ingress ───────────────────────────────────────────────

func TestMessage_Queued(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodPost, "/api/v1/message", `{"message":"Hello"}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	resp := decode[MessageResponse](t, w)
	if resp.Status != "queued" || resp.Topic != "glnode/node-01/message" || resp.QoS != "at_least_once" {
		t.Errorf("response = %+v", resp)
	}

	select {
	case msg := <-f.bridge.Pending():
		if string(msg.Payload) != "Hello" {
			t.Errorf("pending payload = %q, want Hello", msg.Payload)
		}
	default:
		t.Error("command was not handed to the event loop")
	}
}

func TestMessage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"invalid JSON", `{"message":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing message", `{}`, http.StatusUnprocessableEntity, ErrCodeValidation},
		{"empty message", `{"message":""}`, http.StatusUnprocessableEntity, ErrCodeValidation},
		{"too long", `{"message":"` + strings.Repeat("x", 17) + `"}`, http.StatusUnprocessableEntity, ErrCodeValidation},
		{"control character", `{"message":"Hello\u0007"}`, http.StatusUnprocessableEntity, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			w := f.do(t, http.MethodPost, "/api/v1/message", tt.body)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if got := decode[Error](t, w).Code; got != tt.wantErr {
				t.Errorf("code = %q, want %q", got, tt.wantErr)
			}
			if len(f.bridge.Pending()) != 0 {
				t.Error("rejected command reached the event loop")
			}
		})
	}
}

func TestMessage_Busy(t *testing.T) {
	f := newFixture(t, "")
	for range 2 {
		if w := f.do(t, http.MethodPost, "/api/v1/message", `{"message":"Hello"}`); w.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", w.Code)
		}
	}

	w := f.do(t, http.MethodPost, "/api/v1/message", `{"message":"World"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestMessage_Auth(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "technician",
			ExpiresAt: jwt.NewNumericDate(past),
		},
		Scopes: []auth.Scope{auth.ScopeCommand},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"read scope only", bearer(t, auth.ScopeRead), http.StatusForbidden},
		{"command scope", bearer(t, auth.ScopeCommand), http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testSecret)
			var w *httptest.ResponseRecorder
			if tt.header == "" {
				w = f.do(t, http.MethodPost, "/api/v1/message", `{"message":"Hello"}`)
			} else {
				w = f.do(t, http.MethodPost, "/api/v1/message", `{"message":"Hello"}`, "Authorization", tt.header)
			}
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
		})
	}
}

func TestHealth_OpenWhenAuthEnabled(t *testing.T) {
	f := newFixture(t, testSecret)
	if w := f.do(t, http.MethodGet, "/api/v1/health", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without a token", w.Code)
	}
}

// ─── History ───────────────────────────────────────────────────────

func TestHistory(t *testing.T) {
	f := newFixture(t, "")
	f.history.notices = []journal.Notice{
		{ID: "2", Kind: journal.KindDrop, Component: journal.ComponentQueue, Detail: "1 dropped"},
		{ID: "1", Kind: journal.KindDrop, Component: journal.ComponentQueue, Detail: "1 dropped"},
	}

	w := f.do(t, http.MethodGet, "/api/v1/history?kind=drop&limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := decode[HistoryResponse](t, w)
	if resp.Count != 2 || resp.Notices[0].ID != "2" {
		t.Errorf("response = %+v", resp)
	}
	if f.history.kind != journal.KindDrop || f.history.limit != 10 {
		t.Errorf("Recent called with kind=%q limit=%d", f.history.kind, f.history.limit)
	}
}

func TestHistory_EmptyIsArray(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodGet, "/api/v1/history", "")
	if !strings.Contains(w.Body.String(), `"notices":[]`) {
		t.Errorf("body = %s, want empty notices array", w.Body.String())
	}
}

func TestHistory_BadQuery(t *testing.T) {
	f := newFixture(t, "")
	for _, q := range []string{"kind=bogus", "limit=abc", "limit=0", "limit=-5"} {
		if w := f.do(t, http.MethodGet, "/api/v1/history?"+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("?%s status = %d, want 400", q, w.Code)
		}
	}
}

func TestHistory_Unavailable(t *testing.T) {
	f := newFixture(t, "")
	f.srv.history = nil
	if w := f.do(t, http.MethodGet, "/api/v1/history", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestHistory_RequiresReadScope(t *testing.T) {
	f := newFixture(t, testSecret)

	if w := f.do(t, http.MethodGet, "/api/v1/history", "", "Authorization", bearer(t, auth.ScopeCommand)); w.Code != http.StatusForbidden {
		t.Errorf("command-only token status = %d, want 403", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/history", "", "Authorization", bearer(t, auth.ScopeRead)); w.Code != http.StatusOK {
		t.Errorf("read token status = %d, want 200", w.Code)
	}
}

func TestHistory_SQLiteJournal(t *testing.T) {
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}

	repo := journal.NewRepository(db.DB, 0)
	at := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	for i, state := range []string{"associating", "connected"} {
		err := repo.Write(context.Background(), journal.Notice{
			ID:        state,
			At:        at.Add(time.Duration(i) * time.Second),
			Kind:      journal.KindTransition,
			Component: journal.ComponentNetwork,
			State:     state,
		})
		if err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}

	f := newFixture(t, "")
	f.srv.history = repo

	resp := decode[HistoryResponse](t, f.do(t, http.MethodGet, "/api/v1/history?kind=transition", ""))
	if resp.Count != 2 || resp.Notices[0].State != "connected" {
		t.Errorf("notices = %+v, want newest (connected) first", resp.Notices)
	}
}

// ─── WebSocket hub ─────────────────────────────────────────────────

func newTestClient(hub *Hub, channels ...string) *WSClient {
	c := &WSClient{
		id:            "test",
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *WSClient) (WSMessage, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg, true
	case <-time.After(100 * time.Millisecond):
		return WSMessage{}, false
	}
}

func TestHub_WriteRoutesByKind(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	drops := newTestClient(hub, string(journal.KindDrop))
	all := newTestClient(hub, ChannelAll)
	inputs := newTestClient(hub, string(journal.KindInput))

	notice := journal.Notice{ID: "n1", Kind: journal.KindDrop, Component: journal.ComponentQueue, Detail: "1 dropped"}
	if err := hub.Write(context.Background(), notice); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	for name, c := range map[string]*WSClient{"drop subscriber": drops, "wildcard subscriber": all} {
		msg, ok := receive(t, c)
		if !ok {
			t.Errorf("%s received nothing", name)
			continue
		}
		if msg.Type != WSTypeEvent || msg.EventType != "drop" {
			t.Errorf("%s got %+v", name, msg)
		}
	}
	if _, ok := receive(t, inputs); ok {
		t.Error("input subscriber should not receive a drop notice")
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	c := newTestClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	hub.Unregister(c) // second call must not double-close
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	newTestClient(hub, ChannelAll)

	done := make(chan struct{})
	go func() {
		for range wsSendBufferSize * 2 {
			hub.Broadcast("drop", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
}

func TestClientSubscription(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	c := newTestClient(hub)

	c.handleMessage([]byte(`{"type":"subscribe","id":"s1","payload":{"channels":["command"]}}`))
	if msg, ok := receive(t, c); !ok || msg.Type != WSTypeResponse || msg.ID != "s1" {
		t.Fatalf("subscribe response = %+v", msg)
	}
	if !c.isSubscribed("command") {
		t.Error("client not subscribed to command")
	}

	c.handleMessage([]byte(`{"type":"unsubscribe","payload":{"channels":["command"]}}`))
	receive(t, c)
	if c.isSubscribed("command") {
		t.Error("client still subscribed after unsubscribe")
	}

	c.handleMessage([]byte(`{"type":"ping","id":"p1"}`))
	if msg, _ := receive(t, c); msg.Type != WSTypePong {
		t.Errorf("ping reply = %+v, want pong", msg)
	}

	c.handleMessage([]byte(`{"type":"shout"}`))
	if msg, _ := receive(t, c); msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v, want error", msg)
	}
}

func TestSplitChannels(t *testing.T) {
	got := splitChannels(" drop, ,command,")
	if strings.Join(got, "|") != "drop|command" {
		t.Errorf("splitChannels() = %q", got)
	}
}

// ─── WebSocket over a real connection ──────────────────────────────

func TestWebSocket_StreamsNotices(t *testing.T) {
	f := newFixture(t, "")
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?channels=command"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()

	deadline := time.Now().Add(time.Second)
	for f.srv.Hub().ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	//nolint:errcheck // Hub.Write never fails
	f.srv.Hub().Write(context.Background(), journal.Notice{ID: "n1", Kind: journal.KindCommand, Component: journal.ComponentCommand, Detail: "Hello"})

	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type      string         `json:"type"`
		EventType string         `json:"event_type"`
		Payload   journal.Notice `json:"payload"`
	}
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.EventType != "command" || msg.Payload.Detail != "Hello" {
		t.Errorf("message = %+v", msg)
	}
}

func TestWebSocket_Auth(t *testing.T) {
	f := newFixture(t, testSecret)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()
	base := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	if err == nil {
		t.Fatal("expected error connecting without token")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	tok := strings.TrimPrefix(bearer(t, auth.ScopeRead), "Bearer ")
	ws, _, err := websocket.DefaultDialer.Dial(base+"?token="+tok, nil)
	if err != nil {
		t.Fatalf("dial with read token: %v", err)
	}
	ws.Close()
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestStartClose(t *testing.T) {
	f := newFixture(t, "")

	if err := f.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := f.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := f.srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	resp, err := http.Get("http://" + f.srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := f.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := f.srv.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
