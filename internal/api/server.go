package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	router        *chi.Mux
	port          int
	turnMode      string
	natsConnected func() bool
	httpSrv       *http.Server
}

// Limits are per client IP per minute; a value <= 0 disables that limit.
type Limits struct {
	CreatesPerMinute int
	TurnsPerMinute   int
}

// NewServer builds the router. An empty apiToken disables bearer auth.
// natsConnected may be nil when events are not configured.
func NewServer(port int, apiToken string, limits Limits, turnMode string, natsConnected func() bool, conversations Conversations, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:        router,
		port:          port,
		turnMode:      turnMode,
		natsConnected: natsConnected,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/marquee/status", s.status)
	router.Handle("/metrics", promhttp.Handler())

	h := &conversationHandler{svc: conversations, logger: logger}
	router.Route("/api/v1/conversations", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.With(perMinuteLimiter(limits.CreatesPerMinute)).Post("/", h.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.transcript)
			r.Delete("/", h.remove)
			r.Post("/reset", h.reset)
			r.With(perMinuteLimiter(limits.TurnsPerMinute)).Post("/turns", h.turn)
		})
	})

	return s
}

func perMinuteLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(perMinute, time.Minute)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server starting", "addr", addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	nats := "disabled"
	if s.natsConnected != nil {
		nats = "disconnected"
		if s.natsConnected() {
			nats = "connected"
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":     "marquee",
		"status":    "ready",
		"turn_mode": s.turnMode,
		"nats":      nats,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
