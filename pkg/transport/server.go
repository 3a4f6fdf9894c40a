package transport

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Server defaults.
const (
	DefaultPort        = 10275
	DefaultReadTimeout = 35 * time.Second
)

// Server errors.
var (
	ErrServerRunning    = errors.New("server already running")
	ErrServerNotRunning = errors.New("server not running")
)

// ServerConfig configures the LAN HTTP server.
type ServerConfig struct {
	// Address to listen on. Default: ":10275".
	Address string

	// Handler serves requests, normally a *Router.
	Handler http.Handler

	// ReadTimeout bounds reading a request. Default: 35 seconds.
	ReadTimeout time.Duration

	// DisableFallback makes Start fail instead of retrying on port 0 when
	// the configured address is taken.
	DisableFallback bool

	// Logger for debug output. Nil disables logging.
	Logger *slog.Logger
}

// Server is the HTTP endpoint devices call back into.
type Server struct {
	config ServerConfig

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer creates a server. It does not listen until Start.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		config.Address = ":" + strconv.Itoa(DefaultPort)
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultReadTimeout
	}
	if config.Handler == nil {
		config.Handler = http.NotFoundHandler()
	}
	return &Server{config: config}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return ErrServerRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		if s.config.DisableFallback {
			return err
		}
		host, _, splitErr := net.SplitHostPort(s.config.Address)
		if splitErr != nil {
			return err
		}
		s.debugLog("listen failed, falling back to ephemeral port", "address", s.config.Address, "error", err)
		ln, err = lc.Listen(ctx, "tcp", net.JoinHostPort(host, "0"))
		if err != nil {
			return err
		}
	}

	srv := &http.Server{
		Handler:     s.config.Handler,
		ReadTimeout: s.config.ReadTimeout,
	}
	done := make(chan struct{})
	s.srv = srv
	s.listener = ln
	s.done = done

	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.debugLog("serve stopped", "error", err)
		}
	}()

	s.debugLog("lan server listening", "address", ln.Addr().String())
	return nil
}

// Stop shuts the server down and waits for in-flight requests until ctx
// expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv = nil
	s.listener = nil
	s.done = nil
	s.mu.Unlock()

	if srv == nil {
		return ErrServerNotRunning
	}
	err := srv.Shutdown(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}

// Addr returns the bound address, or nil when not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or 0 when not running.
func (s *Server) Port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}
