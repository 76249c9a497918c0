package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/filterbind/internal/config"
	"github.com/vango-dev/filterbind/pkg/middleware"
	"github.com/vango-dev/filterbind/pkg/navigation"
	"github.com/vango-dev/filterbind/pkg/protocol"
)

// DefaultTracerName is the OpenTelemetry instrumentation name.
const DefaultTracerName = "github.com/vango-dev/filterbind/pkg/server"

// requestBuckets span plain requests and websocket sessions, which count as
// one request lasting the whole session.
var requestBuckets = prometheus.ExponentialBuckets(0.005, 4, 12)

// Server serves filter sessions over websocket.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	registry *prometheus.Registry
	metrics  *Metrics
	tracer   trace.Tracer
	handler  http.Handler

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRegistry sets the Prometheus registry metrics are registered with and
// served from. The default is a fresh registry per Server.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithTracer sets the tracer. The default comes from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// New creates a Server for cfg.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default().With("component", "server")
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(DefaultTracerName)
	}
	s.metrics = NewMetrics(s.registry, DefaultNamespace)

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.Server.ReadBufferSize,
		WriteBufferSize: cfg.Server.WriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Tracing(
		middleware.WithTracer(s.tracer),
		middleware.WithRequestFilter(s.traced),
	))
	metricsOpts := []middleware.MetricsOption{
		middleware.WithNamespace(DefaultNamespace),
		middleware.WithRegistry(s.registry),
		middleware.WithBuckets(requestBuckets),
	}
	if s.cfg.Name != "" {
		metricsOpts = append(metricsOpts, middleware.WithConstLabels(prometheus.Labels{"app": s.cfg.Name}))
	}
	r.Use(middleware.Metrics(metricsOpts...))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", s.handleWebSocket)
	r.Handle(s.cfg.Server.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// and closes every open session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "app", s.cfg.Name, "addr", ln.Addr().String(), "filters", len(s.cfg.Filters))
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeoutDuration())
	defer cancel()

	s.closeSessions()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Registry returns the Prometheus registry holding the server's metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// traced reports whether r gets a server span. Health checks and scrapes do not.
func (s *Server) traced(r *http.Request) bool {
	return r.URL.Path != "/healthz" && r.URL.Path != s.cfg.Server.MetricsPath
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	href := r.URL.Query().Get("href")
	if href == "" {
		href = "/"
	}
	history, err := navigation.NewHistory(href)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := newSessionID()
	if err != nil {
		s.logger.Error("session id generation failed", "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	logger := s.logger.With("session_id", id, "request_id", chimw.GetReqID(r.Context()))
	history.SetLogger(logger)

	sess := &Session{
		ID:        id,
		ctx:       r.Context(),
		conn:      conn,
		history:   history,
		metrics:   s.metrics,
		tracer:    s.tracer,
		logger:    logger,
		clientURL: history.Current().Href(),
	}
	if err := sess.bind(s); err != nil {
		logger.Error("binding filters failed", "error", err)
		sess.send(protocol.NewErrorMessage(err))
		conn.Close()
		return
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	s.metrics.sessionOpened()
	logger.Info("session opened", "href", history.Current().Href())

	defer func() {
		sess.Close()
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		s.metrics.sessionClosed()
		logger.Info("session closed")
	}()

	if err := sess.send(protocol.NewStateMessage(sess.Values())); err != nil {
		return
	}
	sess.readLoop()
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
