// Package gateway exposes the relay over HTTP: the Telegram webhook
// endpoint, a health check and a monitoring WebSocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/okovalenko/tgrelay/internal/config"
	"github.com/okovalenko/tgrelay/internal/dedupe"
	"github.com/okovalenko/tgrelay/internal/domain"
	"github.com/okovalenko/tgrelay/internal/logging"
	"github.com/okovalenko/tgrelay/internal/version"
)

// MessageHandler turns a normalized inbound message into a reply.
type MessageHandler interface {
	Handle(ctx context.Context, msg domain.InboundMessage) (*domain.OutboundReply, error)
}

// ReplySender delivers replies back to the chat platform.
type ReplySender interface {
	SendReply(reply *domain.OutboundReply) error
	SendTyping(chatID int64)
}

// Server is the relay HTTP server.
type Server struct {
	cfg     config.Config
	log     *logging.Logger
	handler MessageHandler
	sender  ReplySender
	dedupe  *dedupe.Cache
	monitor *MonitorHub

	startedAt  time.Time
	httpServer *http.Server
}

// New creates a gateway server. The webhook path is derived from the
// configured webhook secret.
func New(cfg config.Config, handler MessageHandler, sender ReplySender, dd *dedupe.Cache, log *logging.Logger) *Server {
	return &Server{
		cfg:     cfg,
		log:     log.Sub("gateway"),
		handler: handler,
		sender:  sender,
		dedupe:  dd,
		monitor: NewMonitorHub(cfg.Gateway.MonitorToken, log),
	}
}

// Monitor returns the monitoring event hub.
func (s *Server) Monitor() *MonitorHub {
	return s.monitor
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// routes builds the HTTP handler tree.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /webhook/{secret}", s.handleWebhook)
	mux.HandleFunc("GET /ws", s.monitor.handleWebSocket)
	mux.HandleFunc("/", handleNotFound)
	return withMiddleware(mux, s.log)
}

// Start begins listening. It blocks until the context is cancelled or
// an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.monitor.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
	})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": "not found",
	})
}
