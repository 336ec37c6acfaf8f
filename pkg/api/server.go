// Package api exposes the bridge's HTTP boundary: status, pairing material,
// outbound sends, lifecycle commands, and a live event stream.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/caam1406/wahook/pkg/bus"
	"github.com/caam1406/wahook/pkg/config"
	"github.com/caam1406/wahook/pkg/gateway"
	"github.com/caam1406/wahook/pkg/logger"
	"github.com/caam1406/wahook/pkg/session"
)

// SessionController is the lifecycle surface the API needs.
type SessionController interface {
	Snapshot() session.Status
	Restart()
	Reset()
}

// MessageSender is the outbound send surface.
type MessageSender interface {
	Send(ctx context.Context, req gateway.SendRequest) (gateway.SendResult, error)
}

type Server struct {
	config     config.APIConfig
	controller SessionController
	sender     MessageSender
	msgBus     *bus.MessageBus
	hub        *Hub
	httpServer *http.Server
	startTime  time.Time
}

func NewServer(cfg config.APIConfig, controller SessionController, sender MessageSender, msgBus *bus.MessageBus) *Server {
	return &Server{
		config:     cfg,
		controller: controller,
		sender:     sender,
		msgBus:     msgBus,
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.startTime = time.Now()

	s.hub = NewHub(s.msgBus)
	go s.hub.Run(ctx)

	mux := http.NewServeMux()

	// Liveness and the service banner stay unauthenticated.
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/status", s.authMiddleware(s.handleStatus))
	mux.HandleFunc("/qr", s.authMiddleware(s.handleQR))
	mux.HandleFunc("/send", s.authMiddleware(s.handleSend))
	mux.HandleFunc("/restart", s.authMiddleware(s.handleRestart))
	mux.HandleFunc("/reset", s.authMiddleware(s.handleReset))

	// WebSocket (auth via query param)
	mux.HandleFunc("/ws", s.handleWebSocket)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		logger.InfoCF("api", "API server started", map[string]interface{}{
			"address": addr,
		})
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("api", "API server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return nil
}

func (s *Server) Stop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
		logger.InfoC("api", "API server stopped")
	}
}

// authMiddleware wraps a handler with bearer token authentication when auth
// is enabled.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.AuthEnabled && s.extractToken(r) != s.config.Token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// extractToken gets the bearer token from the Authorization header.
func (s *Server) extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Fallback: query parameter (for WebSocket)
	return r.URL.Query().Get("token")
}

// corsMiddleware adds CORS headers for browser callers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
