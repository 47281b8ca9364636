// Package api serves the buildboard HTTP API: the two public signup
// endpoints, status checks, the prototype resource CRUD, health, metrics and
// the admin MCP endpoint.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/buildboard/observability"
	"github.com/hazyhaar/buildboard/shield"
	"github.com/hazyhaar/buildboard/store"
)

// ServiceName labels business events and the MCP implementation.
const ServiceName = "buildboard"

// Config wires a Server.
type Config struct {
	Store       *store.Store
	Metrics     *observability.Metrics // nil = fresh registry
	EnableMCP   bool
	CORSOrigins []string // empty = any http(s) origin
	Version     string
	Logger      *slog.Logger
}

// Server holds the API dependencies.
type Server struct {
	store   *store.Store
	events  *observability.EventLogger
	audit   *observability.AuditLogger
	metrics *observability.Metrics
	limiter *shield.RateLimiter
	stack   []func(http.Handler) http.Handler
	policy  *bluemonday.Policy
	mcp     *mcp.Server
	version string
	logger  *slog.Logger
	started time.Time
}

// New applies the shield and observability schemas to the store's database
// and returns a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("api: Store is required")
	}
	db := cfg.Store.DB()
	if err := shield.Init(db); err != nil {
		return nil, fmt.Errorf("api: shield schema: %w", err)
	}
	if err := observability.Init(db); err != nil {
		return nil, fmt.Errorf("api: observability schema: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	stack, rl := shield.APIStack(db, cfg.CORSOrigins...)
	s := &Server{
		store:   cfg.Store,
		events:  observability.NewEventLogger(db, ServiceName),
		audit:   observability.NewAuditLogger(db),
		metrics: cfg.Metrics,
		limiter: rl,
		stack:   stack,
		policy:  bluemonday.StrictPolicy(),
		version: cfg.Version,
		logger:  cfg.Logger,
		started: time.Now(),
	}
	if cfg.EnableMCP {
		s.mcp = mcp.NewServer(&mcp.Implementation{Name: ServiceName, Version: cfg.Version}, nil)
		s.RegisterMCP(s.mcp)
	}
	return s, nil
}

// StartBackground refreshes rate-limit rules until done is closed.
func (s *Server) StartBackground(done <-chan struct{}) {
	s.limiter.StartReloader(done)
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	for _, mw := range s.stack {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"version": s.version,
			"uptime":  time.Since(s.started).Round(time.Second).String(),
		})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	hello := func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
	}
	r.Get("/api", hello)
	r.Get("/api/", hello)

	r.Post("/api/status", s.handleCreateStatus)
	r.Get("/api/status", s.handleListStatus)
	r.Post("/api/waitlist", s.handleWaitlist)
	r.Post("/api/referrals", s.handleReferral)

	for _, kind := range store.Kinds {
		res, err := s.store.Resources(kind)
		if err != nil {
			continue
		}
		r.Route("/api/"+kind, func(r chi.Router) {
			r.Get("/", s.listResources(res))
			r.Post("/", s.createResource(res))
			r.Get("/{id}", s.getResource(res))
			r.Put("/{id}", s.updateResource(res))
			r.Delete("/{id}", s.deleteResource(res))
		})
	}

	if s.mcp != nil {
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcp }, nil)
		r.Handle("/mcp", h)
		r.Handle("/mcp/*", h)
	}
	return r
}

func (s *Server) handleCreateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientName *string `json:"client_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, []ValidationError{{Loc: []any{"body"}, Msg: "JSON decode error", Type: "json_invalid"}})
		return
	}
	if req.ClientName == nil {
		writeDetail(w, []ValidationError{missing("client_name")})
		return
	}
	c, err := s.store.CreateStatusCheck(r.Context(), s.clean(*req.ClientName, maxName))
	if err != nil {
		shield.GetLogger(r.Context()).Error("create status check", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListStatus(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListStatusChecks(r.Context())
	if err != nil {
		shield.GetLogger(r.Context()).Error("list status checks", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def, max int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
