// Package api exposes the configured embedder over HTTP/JSON.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ontotext-AD/embedding-model-clients/internal/embedder"
	"github.com/Ontotext-AD/embedding-model-clients/internal/metrics"
)

// RequestIDHeader carries the per-request id on every response.
const RequestIDHeader = "X-Request-ID"

// Info describes the backend behind the server.
type Info struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Server is an HTTP API server that exposes embedding operations.
type Server struct {
	embedder     embedder.Embedder
	info         Info
	logger       *slog.Logger
	authToken    string // empty = no auth required
	maxBodyBytes int64
}

// NewServer creates a new Server with the given dependencies.
func NewServer(emb embedder.Embedder, info Info, logger *slog.Logger, authToken string, maxBodyBytes int64) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Server{
		embedder:     emb,
		info:         info,
		logger:       logger,
		authToken:    authToken,
		maxBodyBytes: maxBodyBytes,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check, no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /v1/embeddings", s.auth(s.handleEmbeddings))
	mux.HandleFunc("GET /v1/info", s.auth(s.handleInfo))
	mux.Handle("GET /debug/vars", s.auth(expvar.Handler().ServeHTTP))

	return s.requestID(mux)
}

// --- middleware ---

// requestID tags every response with an X-Request-ID, reusing the caller's
// value when one is sent.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		metrics.Inc(metrics.APIRequests)
		next.ServeHTTP(w, r)
	})
}

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// embeddingsRequest is the body accepted by POST /v1/embeddings.
type embeddingsRequest struct {
	Texts []string `json:"texts"`
}

// embeddingsResponse is returned by POST /v1/embeddings.
type embeddingsResponse struct {
	Model      string      `json:"model"`
	Dimension  int         `json:"dimension"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	var req embeddingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Texts) == 0 {
		s.writeError(w, http.StatusBadRequest, "texts is required")
		return
	}

	start := time.Now()
	vecs, err := s.embedder.EmbedAll(r.Context(), req.Texts)
	if err != nil {
		s.writeEmbedError(w, r, err)
		return
	}
	s.logger.Debug("embedded texts", "count", len(req.Texts), "duration", time.Since(start),
		"request_id", w.Header().Get(RequestIDHeader))

	dim := 0
	if len(vecs) > 0 {
		dim = len(vecs[0])
	}
	s.writeJSON(w, http.StatusOK, embeddingsResponse{
		Model:      s.info.Model,
		Dimension:  dim,
		Embeddings: vecs,
	})
}

// infoResponse is returned by GET /v1/info.
type infoResponse struct {
	Info
	Dimension int `json:"dimension"`
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, infoResponse{Info: s.info, Dimension: s.embedder.Dimension()})
}

// --- helpers ---

// writeEmbedError maps embedder failures to status codes. Authentication
// failures keep their message so operators see the remedy.
func (s *Server) writeEmbedError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *embedder.AuthenticationError
	switch {
	case errors.As(err, &authErr):
		s.logger.Error("embedding backend rejected credentials", "error", err)
		s.writeError(w, http.StatusBadGateway, authErr.Error())
	case errors.Is(err, embedder.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, "embedder is shutting down")
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Client went away; nobody reads the response.
		s.logger.Debug("embedding request cancelled by client")
	default:
		s.logger.Error("failed to embed texts", "error", err,
			"request_id", w.Header().Get(RequestIDHeader))
		s.writeError(w, http.StatusBadGateway, "embedding backend failed")
	}
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
