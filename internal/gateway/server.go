// Package gateway exposes the HTTP surface of the process: health checks
// and inbound platform webhooks routed to webhook-capable adapters.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/whatsdex/gateway/internal/channels"
)

// Server is the HTTP listener. It holds no routing logic of its own:
// webhook deliveries are resolved through the registry and handed to the
// owning adapter.
type Server struct {
	addr       string
	registry   *channels.Registry
	limiter    *tokenRateLimiter
	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer creates a gateway HTTP server.
func NewServer(addr string, registry *channels.Registry) *Server {
	return &Server{
		addr:     addr,
		registry: registry,
		limiter:  newTokenRateLimiter(),
	}
}

// BuildMux creates and caches the mux with all routes registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /webhook/telegram/{token}", s.handlePlatformWebhook)

	s.mux = mux
	return mux
}

// Start listens until ctx is cancelled, then drains with a bounded
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("gateway starting", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"channels": len(s.registry.Keys()),
	})
}

// handlePlatformWebhook routes a platform push delivery to the adapter
// registered under the routing token. The response is always 2xx, even
// for unknown tokens or adapters without webhook support: surfacing an
// error here would put the provider into a retry storm. Anomalies are
// logged instead.
func (s *Server) handlePlatformWebhook(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	if !s.limiter.Allow(token) {
		slog.Warn("webhook delivery rate limited", "token", token)
		w.WriteHeader(http.StatusOK)
		return
	}

	adapter, ok := s.registry.Get(token)
	if !ok {
		slog.Warn("webhook delivery for unknown routing token", "token", token)
		w.WriteHeader(http.StatusOK)
		return
	}

	hook, ok := adapter.(channels.WebhookCapable)
	if !ok {
		slog.Warn("webhook delivery for non-webhook adapter",
			"token", token, "channel", adapter.ID())
		w.WriteHeader(http.StatusOK)
		return
	}

	hook.HandleWebhook(w, r)
}
