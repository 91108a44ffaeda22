package gateway

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soyeahso/breakthis/internal/agent"
	"github.com/soyeahso/breakthis/internal/config"
	"github.com/soyeahso/breakthis/internal/hooks"
	"github.com/soyeahso/breakthis/internal/logging"
	"github.com/soyeahso/breakthis/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	// maxPayload bounds a single inbound frame.
	maxPayload = 1 << 20

	handshakeTimeout = 10 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// Server serves the comparison page and the /ws socket. Every socket owns
// one duel for its lifetime.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	version  string
	duels    *agent.DuelStore
	page     *template.Template
	hooks    *hooks.Manager // optional

	turnTimeout time.Duration
	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// WithTurnTimeout bounds a single chat.send or challenge.send request.
func WithTurnTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.turnTimeout = d
		}
	}
}

// New creates a gateway server whose sockets draw duels from duels.
func New(cfg config.Config, duels *agent.DuelStore, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		duels:       duels,
		page:        pageTemplate,
		turnTimeout: defaultTurnTimeout,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: handshakeTimeout,
		CheckOrigin:      checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRPCHandlers()
	return s
}

// checkWebSocketOrigin accepts a missing Origin, the page's own host, or a
// listed origin.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		switch origin := r.Header.Get("Origin"); origin {
		case "", "http://" + r.Host, "https://" + r.Host:
			return true
		default:
			return isOriginAllowed(origin, allowed)
		}
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names, sorted.
func (s *Server) Methods() []string {
	return slices.Sorted(maps.Keys(s.handlers))
}

// Events returns the event names the server may push.
func (s *Server) Events() []string {
	return []string{EventConnectChallenge, EventChatBroadcast, EventChatDelta, EventChatTurn, EventDuelState}
}

// resolveBindAddr maps gateway.bind onto a listen address. Unknown modes
// fall back to loopback.
func resolveBindAddr(cfg config.GatewayConfig) string {
	host := "127.0.0.1"
	switch cfg.Bind {
	case "lan", "auto":
		host = "0.0.0.0"
	case "custom":
		host = cmp.Or(cfg.CustomBindHost, "0.0.0.0")
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins)
}

// listen opens the TCP listener, wrapped in TLS when configured.
func (s *Server) listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	tlsCfg := s.cfg.Gateway.TLS
	if !tlsCfg.Enabled {
		return ln, nil
	}
	cert, err := tls.LoadX509KeyPair(tlsCfg.CertPath, tlsCfg.KeyPath)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}), nil
}

// Start serves until ctx is cancelled, then closes every socket and shuts
// the HTTP server down. In-flight turns are not cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.listen(resolveBindAddr(s.cfg.Gateway))
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.startedAt = time.Now()

	addr := ln.Addr().String()
	s.log.Info().
		Str("addr", addr).
		Bool("tls", s.cfg.Gateway.TLS.Enabled).
		Str("model", s.cfg.LLM.Model).
		Msg("serving comparison page")
	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": addr})
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.shutdown()
	}()

	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}

func (s *Server) shutdown() {
	s.log.Info().Int("connected", s.clients.Count()).Msg("shutting down")
	if s.hooks != nil {
		s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
	}
	s.clients.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("shutdown incomplete")
	}
}

// uptime is zero until Start runs.
func (s *Server) uptime() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
