package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inspector is the read-only view of a dispatcher served by the handler.
type Inspector interface {
	Describe(ctx context.Context, id domain.ChainID) string
	Stats() dispatch.Stats
}

// Server serves node diagnostics. It never delivers messages.
type Server struct {
	Inspector Inspector
	Archive   ports.HistoryStore
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithArchive exposes the archived histories under /archive.
func WithArchive(store ports.HistoryStore) Option {
	return func(s *Server) {
		s.Archive = store
	}
}

// WithGatherer serves the metrics of g under /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// NewHandler creates the diagnostics router.
//
//	GET /healthz
//	GET /stats
//	GET /chains/{id}    (id as printed by domain.ChainID.String)
//	GET /archive        (with WithArchive)
//	GET /archive/{id}   (with WithArchive)
//	GET /metrics        (with WithGatherer)
func NewHandler(inspector Inspector, opts ...Option) http.Handler {
	server := &Server{
		Inspector: inspector,
		Logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/healthz", server.Health)
	r.Get("/stats", server.Stats)
	r.Get("/chains/{id}", server.Chain)
	if server.Archive != nil {
		r.Get("/archive", server.ListArchive)
		r.Get("/archive/{id}", server.ArchivedHistory)
	}
	if server.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.Gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// Stats handles GET /stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.Inspector.Stats())
}

// Chain handles GET /chains/{id}. Chains the node knows nothing about are
// reported with 404 and the same text.
func (s *Server) Chain(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseChainID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	text := s.Inspector.Describe(r.Context(), id)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if text == dispatch.NoInformation {
		w.WriteHeader(http.StatusNotFound)
	}
	_, _ = w.Write([]byte(strings.TrimRight(text, "\n") + "\n"))
}

// ListArchive handles GET /archive.
func (s *Server) ListArchive(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Archive.List(r.Context())
	if err != nil {
		s.Logger.Error("failed to list archived histories", "err", err)
		http.Error(w, "archive unavailable", http.StatusServiceUnavailable)
		return
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	sort.Strings(out)
	s.writeJSON(w, out)
}

// ArchivedHistory handles GET /archive/{id}.
func (s *Server) ArchivedHistory(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseChainID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entries, err := s.Archive.Load(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrHistoryNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		s.Logger.Error("failed to load archived history", "chain", id.String(), "err", err)
		http.Error(w, "archive unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}
