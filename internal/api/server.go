// Package api exposes the dashboard's HTTP surface: auth, event data,
// stats, imports, chat, exports, and the operational endpoints.
package api

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seismicguard/seismicguard/internal/domain"
	"github.com/seismicguard/seismicguard/internal/notify"
	"github.com/seismicguard/seismicguard/internal/observability"
	"github.com/seismicguard/seismicguard/internal/session"
	"github.com/seismicguard/seismicguard/internal/source/fileimport"
	"github.com/seismicguard/seismicguard/internal/source/usgs"
	"github.com/seismicguard/seismicguard/internal/userstore"
)

// Server wires the HTTP routes to the domain services.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *observability.Metrics

	users      *userstore.Store
	sessions   *session.Manager
	feed       *usgs.Client
	importer   *fileimport.Provider
	responder  *domain.Responder
	dispatcher *notify.Dispatcher

	// rngMu serializes access to rng; *rand.Rand is not safe for
	// concurrent use and requests share one seeded generator.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewServer creates the HTTP server with every route registered.
func NewServer(
	addr string,
	logger *slog.Logger,
	metrics *observability.Metrics,
	users *userstore.Store,
	sessions *session.Manager,
	feed *usgs.Client,
	importer *fileimport.Provider,
	responder *domain.Responder,
	dispatcher *notify.Dispatcher,
	rng *rand.Rand,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:     logger,
		metrics:    metrics,
		users:      users,
		sessions:   sessions,
		feed:       feed,
		importer:   importer,
		responder:  responder,
		dispatcher: dispatcher,
		rng:        rng,
	}

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/auth/register", s.instrument("auth_register", s.handleRegister))
	mux.HandleFunc("POST /v1/auth/login", s.instrument("auth_login", s.handleLogin))
	mux.HandleFunc("POST /v1/auth/logout", s.instrument("auth_logout", s.withSession(s.handleLogout)))

	mux.HandleFunc("GET /v1/events", s.instrument("events", s.withSession(s.handleEvents)))
	mux.HandleFunc("GET /v1/stats", s.instrument("stats", s.withSession(s.handleStats)))
	mux.HandleFunc("POST /v1/import", s.instrument("import", s.withSession(s.handleImport)))
	mux.HandleFunc("POST /v1/source/live", s.instrument("source_live", s.withSession(s.handleSourceLive)))

	mux.HandleFunc("GET /v1/chat", s.instrument("chat_get", s.withSession(s.handleChatTranscript)))
	mux.HandleFunc("POST /v1/chat", s.instrument("chat_post", s.withSession(s.handleChat)))

	mux.HandleFunc("POST /v1/lab/losscurve", s.instrument("losscurve", s.withSession(s.handleLossCurve)))
	mux.HandleFunc("GET /v1/report", s.instrument("report", s.withSession(s.handleReport)))

	mux.HandleFunc("GET /v1/admin/users", s.instrument("admin_users", s.withAdmin(s.handleAdminUsers)))
	mux.HandleFunc("GET /v1/admin/raw", s.instrument("admin_raw", s.withAdmin(s.handleAdminRaw)))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.CheckReadiness(r.Context()); err != nil {
		writeErrorDetail(w, http.StatusServiceUnavailable, "not ready", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
