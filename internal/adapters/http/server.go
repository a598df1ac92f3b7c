// Package http serves a read-mostly view of one open document: its graph,
// a Mermaid rendering, the undo history, editing intents and a server-sent
// stream of change batches.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/internal/presentation/graph"
	"github.com/aretw0/tapestry/pkg/command"
	"github.com/aretw0/tapestry/pkg/document"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/event"
	"github.com/go-chi/chi/v5"
)

// Version is reported by /info.
var Version = "dev"

// APIVersion is the version of the route set.
const APIVersion = "0.1.0"

// Server exposes a Document over HTTP. Requests touching the document are
// serialized, which keeps the single editing timeline.
type Server struct {
	mu      sync.Mutex
	doc     *document.Document
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates a Server over doc.
func NewServer(doc *document.Document, opts ...Option) *Server {
	s := &Server{doc: doc, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Edit runs fn in the editing context shared with HTTP requests. Other
// goroutines that mutate the document must go through it.
func (s *Server) Edit(fn func(d *document.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.doc)
}

// NewHandler creates a new HTTP handler for the document.
func NewHandler(doc *document.Document, opts ...Option) http.Handler {
	return NewServer(doc, opts...).Handler()
}

// Handler returns the routes of s.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"app":         "tapestry-http",
			"version":     Version,
			"api_version": APIVersion,
		})
	})

	r.Get("/graph", s.getGraph)
	r.Get("/graph/mermaid", s.getMermaid)
	r.Get("/history", s.getHistory)
	r.Get("/selection", s.getSelection)
	r.Post("/undo", s.postUndo)
	r.Post("/redo", s.postRedo)
	r.Post("/nodes", s.postNode)
	r.Delete("/nodes/{id}", s.deleteNode)
	r.Put("/nodes/{id}/properties/{key}", s.putProperty)
	r.Put("/nodes/{id}/position", s.putPosition)
	r.Post("/connections", s.postConnection)
	r.Delete("/connections/{id}", s.deleteConnection)
	r.Get("/events", s.subscribeEvents)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

// --- Reads ---

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := s.doc.Snapshot()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getMermaid(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := s.doc.Snapshot()
	sel := s.doc.Selection()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, graph.GenerateMermaid(snap, &graph.Overlay{Selected: sel.Nodes}))
}

type historyResponse struct {
	Undo    []string `json:"undo"`
	Redo    []string `json:"redo"`
	CanUndo bool     `json:"can_undo"`
	CanRedo bool     `json:"can_redo"`
	Changed *bool    `json:"changed,omitempty"`
}

func (s *Server) history() historyResponse {
	undo, redo := s.doc.Engine().History()
	if undo == nil {
		undo = []string{}
	}
	if redo == nil {
		redo = []string{}
	}
	return historyResponse{Undo: undo, Redo: redo, CanUndo: s.doc.CanUndo(), CanRedo: s.doc.CanRedo()}
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := s.history()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getSelection(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sel := s.doc.Selection()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, sel)
}

// --- Intents ---

func (s *Server) postUndo(w http.ResponseWriter, r *http.Request) {
	s.step(w, (*document.Document).Undo)
}

func (s *Server) postRedo(w http.ResponseWriter, r *http.Request) {
	s.step(w, (*document.Document).Redo)
}

func (s *Server) step(w http.ResponseWriter, fn func(*document.Document) (bool, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed, err := fn(s.doc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := s.history()
	resp.Changed = &changed
	writeJSON(w, http.StatusOK, resp)
}

type createNodeRequest struct {
	Type       domain.TypeTag  `json:"type"`
	Position   domain.Position `json:"position"`
	Properties map[string]any  `json:"properties"`
}

func (s *Server) postNode(w http.ResponseWriter, r *http.Request) {
	var body createNodeRequest
	if !decode(w, r, &body) {
		return
	}
	var id domain.NodeID
	err := s.Edit(func(d *document.Document) error {
		var err error
		id, err = d.CreateNode(body.Type, body.Position, body.Properties)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]domain.NodeID{"id": id})
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	id := domain.NodeID(chi.URLParam(r, "id"))
	err := s.Edit(func(d *document.Document) error {
		if !d.Graph().HasNode(id) {
			return domain.NodeNotFound(id)
		}
		return d.DeleteNodes(id)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putProperty(w http.ResponseWriter, r *http.Request) {
	id := domain.NodeID(chi.URLParam(r, "id"))
	key := chi.URLParam(r, "key")
	var body struct {
		Value any `json:"value"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.Edit(func(d *document.Document) error { return d.SetProperty(id, key, body.Value) }); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putPosition(w http.ResponseWriter, r *http.Request) {
	id := domain.NodeID(chi.URLParam(r, "id"))
	var pos domain.Position
	if !decode(w, r, &pos) {
		return
	}
	if err := s.Edit(func(d *document.Document) error { return d.Move(id, pos) }); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type connectRequest struct {
	Source domain.PortRef `json:"source"`
	Target domain.PortRef `json:"target"`
}

func (s *Server) postConnection(w http.ResponseWriter, r *http.Request) {
	var body connectRequest
	if !decode(w, r, &body) {
		return
	}
	var id domain.ConnectionID
	err := s.Edit(func(d *document.Document) error {
		var err error
		id, err = d.Connect(body.Source, body.Target)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]domain.ConnectionID{"id": id})
}

func (s *Server) deleteConnection(w http.ResponseWriter, r *http.Request) {
	id := domain.ConnectionID(chi.URLParam(r, "id"))
	if err := s.Edit(func(d *document.Document) error { return d.Disconnect(id) }); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Events ---

// subscribeEvents handles the GET /events request (SSE). Every batch is
// sent as one "batch" event, in publication order.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	batches := make(chan event.Batch)
	s.mu.Lock()
	stop := s.doc.Bus().SubscribeAsync(func(b event.Batch) {
		select {
		case batches <- b:
		case <-ctx.Done():
		}
	})
	s.mu.Unlock()
	defer stop()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case b := <-batches:
			data, err := json.Marshal(b)
			if err != nil {
				s.logger.Error("failed to encode batch", "seq", b.Seq, "err", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: batch\ndata: %s\n\n", b.Seq, data)
			flusher.Flush()
		}
	}
}

// --- Helpers ---

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps the error taxonomy to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrTypeMismatch),
		errors.Is(err, domain.ErrPortCapacity),
		errors.Is(err, domain.ErrSelfLoop),
		errors.Is(err, domain.ErrClipboardFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, command.ErrGroupOpen):
		return http.StatusConflict
	case errors.Is(err, document.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
