// Package http exposes registered machines over a JSON API: catalog,
// introspection (IO schemas and a generated OpenAPI document), and
// synchronous run execution.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
)

// Catalog resolves machine definitions and lists the known identifiers.
type Catalog interface {
	LoadMachine(ctx context.Context, id string) (*domain.Machine, error)
	IDs() []string
}

// ContextFactory builds a fresh action context per run.
type ContextFactory func() *domain.Context

// Server serves machines over HTTP.
type Server struct {
	catalog    Catalog
	contextFor ContextFactory
	logger     *slog.Logger
	maxWait    time.Duration
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMaxWait caps the per-run await timeout.
func WithMaxWait(d time.Duration) Option {
	return func(s *Server) { s.maxWait = d }
}

// NewServer creates a server over a catalog and a per-run context factory.
func NewServer(catalog Catalog, contextFor ContextFactory, opts ...Option) *Server {
	s := &Server{
		catalog:    catalog,
		contextFor: contextFor,
		logger:     slog.New(slog.DiscardHandler),
		maxWait:    2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/machines", s.handleList)
	r.Get("/machines/{id}/schema", s.handleSchema)
	r.Get("/machines/{id}/openapi.json", s.handleOpenAPI)
	r.Post("/machines/{id}/runs", s.handleRun)
	return r
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"machines": s.catalog.IDs()})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	machine, ok := s.loadMachine(w, r)
	if !ok {
		return
	}
	input, output := loom.IOSchemas(s.contextFor(), machine)
	writeJSON(w, http.StatusOK, map[string]any{
		"input":  input.Document(),
		"output": output.Document(),
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	machine, ok := s.loadMachine(w, r)
	if !ok {
		return
	}
	doc, err := OpenAPIDocument(s.contextFor(), machine)
	if err != nil {
		s.logger.Error("building openapi document", "machine", machine.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to build document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type runRequest struct {
	Event     domain.Event `json:"event"`
	TimeoutMS int          `json:"timeout_ms,omitempty"`
}

type runResponse struct {
	RunID string       `json:"run_id"`
	Event domain.Event `json:"event"`
	Trail domain.Trail `json:"trail"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	machine, ok := s.loadMachine(w, r)
	if !ok {
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	timeout := s.maxWait
	if req.TimeoutMS > 0 {
		if d := time.Duration(req.TimeoutMS) * time.Millisecond; d < timeout {
			timeout = d
		}
	}

	inst, err := loom.Start(s.contextFor(), machine, loom.WithLogger(s.logger))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	defer inst.Stop()

	if err := inst.Submit(req.Event); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := inst.Await(timeout)
	if err != nil {
		if errors.Is(err, domain.ErrAwaitTimeout) {
			writeError(w, http.StatusGatewayTimeout, "run did not complete in time")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runResponse{RunID: inst.ID(), Event: res.Event, Trail: res.Trail})
}

func (s *Server) loadMachine(w http.ResponseWriter, r *http.Request) (*domain.Machine, bool) {
	id := chi.URLParam(r, "id")
	machine, err := s.catalog.LoadMachine(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrMachineNotFound) {
			writeError(w, http.StatusNotFound, "unknown machine "+id)
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return machine, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
