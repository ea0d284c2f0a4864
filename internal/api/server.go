package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/journal"
	"github.com/nerrad567/gray-logic-node/internal/network"
	"github.com/nerrad567/gray-logic-node/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CommandSubmitter accepts raw commands for publishing.
// Implemented by command.Bridge.
type CommandSubmitter interface {
	Submit(raw string) (session.Message, error)
}

// NetworkStatus reports the association state.
// Implemented by network.Supervisor.
type NetworkStatus interface {
	Status() network.Status
}

// SessionStatus reports broker session and queue state.
// Implemented by session.Manager.
type SessionStatus interface {
	Status() session.Status
	QueueStats() session.QueueStats
}

// History reads the diagnostic journal.
// Implemented by journal.Repository.
type History interface {
	Recent(ctx context.Context, kind journal.Kind, limit int) ([]journal.Notice, error)
}

// Telemetry reports whether the telemetry backend is reachable.
// Implemented by influxdb.Client.
type Telemetry interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Commands CommandSubmitter
	Network  NetworkStatus
	Session  SessionStatus
	History  History // optional; /history answers 503 without it

	// Telemetry is optional. When set, health reports its reachability.
	Telemetry Telemetry

	// Hub streams notices to WebSocket clients. When nil the server creates
	// its own, which then receives no notices unless registered as a sink.
	Hub *Hub

	// PanelDir serves the control page from disk instead of the embedded copy.
	PanelDir string

	Version   string
	StartedAt time.Time
}

// Server is the node's HTTP API server.
//
// It is created with New, started with Start and stopped with Close.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	commands CommandSubmitter
	network  NetworkStatus
	session  SessionStatus
	history  History
	telem    Telemetry
	hub      *Hub
	panelDir string
	version  string
	started  time.Time
	now      func() time.Time

	mu     sync.Mutex
	server *http.Server
	addr   string
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Commands == nil {
		return nil, fmt.Errorf("command submitter is required")
	}
	if deps.Network == nil || deps.Session == nil {
		return nil, fmt.Errorf("network and session status are required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		commands: deps.Commands,
		network:  deps.Network,
		session:  deps.Session,
		history:  deps.History,
		telem:    deps.Telemetry,
		hub:      deps.Hub,
		panelDir: deps.PanelDir,
		version:  deps.Version,
		started:  deps.StartedAt,
		now:      time.Now,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	if s.started.IsZero() {
		s.started = s.now()
	}
	return s, nil
}

// Hub returns the WebSocket hub so it can be registered as a journal sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully routed handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns, so a port conflict is
// reported to the caller rather than logged from a goroutine. Serving and
// the hub run in the background until Close or ctx cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	srvCtx, cancel := context.WithCancel(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		cancel()
		s.server = nil
		return fmt.Errorf("listening on %s: %w", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port), err)
	}
	s.addr = ln.Addr().String()
	s.cancel = cancel

	go s.hub.Run(srvCtx)

	srv := s.server
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.addr, "cert", s.cfg.TLS.CertFile)
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.addr)
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr is the bound listen address, useful when the configured port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.server, s.cancel = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
