// Package httpapi exposes the note use cases over HTTP/JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"semnotes/config"
	"semnotes/internal/adapter/notifier"
	"semnotes/internal/domain"
	"semnotes/internal/usecase"
)

// keepAliveInterval is how often an idle event stream sends a comment line.
var keepAliveInterval = 25 * time.Second

// Deps are the use cases served by the API.
type Deps struct {
	Capture *usecase.CaptureUseCase
	Reindex *usecase.ReindexUseCase
	Search  *usecase.SearchUseCase
	Notes   *usecase.NotesUseCase
	Hub     *notifier.Hub
}

// Server routes HTTP requests to the use cases.
type Server struct {
	deps   Deps
	cfg    config.ServerConfig
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewServer creates a new server.
func NewServer(deps Deps, cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /v1/capture", s.handleCapture)
	s.mux.HandleFunc("POST /v1/search", s.handleSearch)
	s.mux.HandleFunc("GET /v1/notes", s.handleList)
	s.mux.HandleFunc("GET /v1/notes/{id}", s.handleGet)
	s.mux.HandleFunc("DELETE /v1/notes/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /v1/notes/{id}/reembed", s.handleReembed)
	s.mux.HandleFunc("GET /v1/events", s.handleEvents)

	return s
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Serve listens on cfg.Addr until ctx is done, then shuts down gracefully.
// ready, if set, receives the bound address once the listener is open.
func (s *Server) Serve(ctx context.Context, ready func(addr string)) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.deps.Capture.Capture(r.Context(), req.OwnerID, req.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, captureResponse{NoteID: id})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	results, err := s.deps.Search.Search(r.Context(), usecase.SearchQuery{
		OwnerID:   req.OwnerID,
		Text:      req.Query,
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: toSearchResults(results)})
}

func (s *Server) handleReembed(w http.ResponseWriter, r *http.Request) {
	var req reembedRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	note, err := s.deps.Reindex.Reembed(r.Context(), req.OwnerID, r.PathValue("id"), req.Content, req.Revision)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reembedResponse{
		NoteID:   note.ID,
		Revision: note.Revision,
		Status:   string(note.Embedding.State),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrValidation))
			return
		}
		limit = n
	}

	notes, err := s.deps.Notes.List(r.Context(), q.Get("owner_id"), domain.EmbeddingState(q.Get("status")), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]noteView, len(notes))
	for i, n := range notes {
		views[i] = toNoteView(n)
	}
	writeJSON(w, http.StatusOK, listResponse{Notes: views})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	note, err := s.deps.Notes.Get(r.Context(), r.URL.Query().Get("owner_id"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteView(note))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Notes.Delete(r.Context(), r.URL.Query().Get("owner_id"), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams the owner's note events as Server-Sent Events until
// the client disconnects or the subscription is dropped.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Hub.Subscribe(r.Context(), r.URL.Query().Get("owner_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": subscribed\n\n")
	if err := rc.Flush(); err != nil {
		s.logger.Warn("event stream cannot flush", "error", err)
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
		case event, ok := <-sub.Events():
			if !ok {
				if sub.Dropped() {
					// The client must reload current state and reconnect.
					fmt.Fprint(w, "event: dropped\ndata: {}\n\n")
					rc.Flush()
				}
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("failed to encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// decode reads a single JSON object into dst, rejecting unknown fields,
// trailing data and bodies over the configured size.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrValidation, tooLarge.Limit)
		}
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrValidation, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON object", domain.ErrValidation)
	}
	return nil
}

func statusFor(kind string) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errorDetail{Kind: kind, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
