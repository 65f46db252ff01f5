// Package httpapi exposes the Session Manager over HTTP for the web UI
// (§4.12): a single NDJSON streaming chat endpoint, an authorization
// redemption endpoint, and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/nexus-assistant/internal/pairing"
	"github.com/haasonsaas/nexus-assistant/internal/session"
)

// Server owns the HTTP listener that fronts the Session Manager.
type Server struct {
	addr    string
	manager *session.Manager
	pairing *pairing.Store
	auth    *tokenAuth

	httpServer *http.Server
	listener   net.Listener
}

// Config collects what NewServer needs to build a Server.
type Config struct {
	Host    string
	Port    int
	Token   string // static bearer secret from server.token (§6); empty disables auth
	Manager *session.Manager
	Pairing *pairing.Store
}

// NewServer builds a Server; it does not yet listen.
func NewServer(cfg Config) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		manager: cfg.Manager,
		pairing: cfg.Pairing,
		auth:    newTokenAuth(cfg.Token),
	}
}

func (s *Server) mux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("POST /api/chat/stream", s.auth.wrap(http.HandlerFunc(s.handleChatStream)))
	mux.Handle("POST /api/auth/{platform}", s.auth.wrap(http.HandlerFunc(s.handleAuth)))
	return mux
}

// Start listens and begins serving in the background; a zero port disables
// the server entirely (returns nil without listening), matching the
// teacher's own "HTTPPort == 0 means disabled" convention.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.addr == "" {
		return nil
	}
	if _, port, err := net.SplitHostPort(s.addr); err == nil && port == "0" {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen: %w", err)
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpServer = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Println("httpapi: server error:", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
// Streaming chat requests are exempt from this wait in spirit only: the
// loop driving them keeps running to completion even if the client already
// disconnected (§5 backpressure), so Shutdown's deadline bounds how long we
// wait for the HTTP layer, not the tool-calling loop underneath it.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	s.listener = nil
	return err
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
