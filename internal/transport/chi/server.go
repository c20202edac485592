// Package chi serves the engine over a small JSON HTTP API. The transport is
// a thin envelope: requests carry raw texts and ids, responses carry ranked
// results; all embedding and fusion happens behind the Engine interface.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vexhub/vexdb"
	logpkg "github.com/vexhub/vexdb/internal/logger"
	"github.com/vexhub/vexdb/internal/metrics"
	"github.com/vexhub/vexdb/pkg/models"
)

// Engine is the part of the vexdb client the transport needs.
type Engine interface {
	Add(ctx context.Context, collection string, documents []string,
		metadata []map[string]any, ids []models.PointID) ([]models.PointID, error)
	Query(ctx context.Context, collection, text string, opts ...vexdb.QueryOption) ([]models.RankedResult, error)
	QueryBatch(ctx context.Context, collection string, texts []string,
		opts ...vexdb.QueryOption) ([][]models.RankedResult, error)
	Count(ctx context.Context, collection string) (int, error)
	Retrieve(ctx context.Context, collection string, ids []models.PointID) ([]models.Point, error)
	CollectionExists(ctx context.Context, collection string) (bool, error)
	DeleteCollection(ctx context.Context, collection string) error
	GetCollectionInfo(ctx context.Context, collection string) (vexdb.CollectionInfo, error)
	Ping(ctx context.Context) error
}

var _ Engine = (*vexdb.Client)(nil)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	engine        Engine
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(engine Engine, logger *zap.Logger) *Server {
	s := &Server{engine: engine, logger: logger}
	s.errorHandlers = []errorHandler{
		schemaMismatchHandler,
		sentinelHandler(models.ErrCollectionNotFound, http.StatusNotFound, "collection_not_found"),
		sentinelHandler(models.ErrFieldNotFound, http.StatusNotFound, "field_not_found"),
		sentinelHandler(models.ErrUnknownModel, http.StatusBadRequest, "unknown_model"),
		sentinelHandler(models.ErrModelConflict, http.StatusConflict, "model_conflict"),
		sentinelHandler(models.ErrInputMismatch, http.StatusBadRequest, "input_mismatch"),
		sentinelHandler(models.ErrEmbedderNotConfigured, http.StatusNotImplemented, "embedder_not_configured"),
		sentinelHandler(models.ErrEmbeddingProvider, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(models.ErrUnsupportedOperation, http.StatusBadRequest, "unsupported_operation"),
	}
	return s
}

// Router assembles the chi router: recoverer, request ids, metrics, bearer
// auth, and the API routes.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/collections/{collection}", func(r chi.Router) {
		r.Get("/", s.GetCollection)
		r.Delete("/", s.DeleteCollection)
		r.Post("/documents", s.AddDocuments)
		r.Post("/query", s.Query)
		r.Post("/query/batch", s.QueryBatch)
		r.Get("/count", s.Count)
		r.Post("/points/retrieve", s.Retrieve)
	})

	return r
}

type addRequest struct {
	Documents []string         `json:"documents"`
	Metadata  []map[string]any `json:"metadata,omitempty"`
	IDs       []models.PointID `json:"ids,omitempty"`
}

type addResponse struct {
	IDs []models.PointID `json:"ids"`
}

// AddDocuments handles POST /api/v1/collections/{collection}/documents.
func (s *Server) AddDocuments(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "documents is required")
		return
	}

	ids, err := s.engine.Add(r.Context(), collectionParam(r), req.Documents, req.Metadata, req.IDs)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addResponse{IDs: ids})
}

type queryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type resultItem struct {
	ID        models.PointID     `json:"id"`
	Score     float64            `json:"score"`
	SubScores map[string]float64 `json:"sub_scores,omitempty"`
	Payload   map[string]any     `json:"payload,omitempty"`
}

type queryResponse struct {
	Results []resultItem `json:"results"`
}

// Query handles POST /api/v1/collections/{collection}/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "query is required")
		return
	}

	results, err := s.engine.Query(r.Context(), collectionParam(r), req.Query, limitOpts(req.Limit)...)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Results: resultsToWire(results)})
}

type queryBatchRequest struct {
	Queries []string `json:"queries"`
	Limit   int      `json:"limit,omitempty"`
}

type queryBatchResponse struct {
	Results [][]resultItem `json:"results"`
}

// QueryBatch handles POST /api/v1/collections/{collection}/query/batch.
func (s *Server) QueryBatch(w http.ResponseWriter, r *http.Request) {
	var req queryBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "queries is required")
		return
	}

	batches, err := s.engine.QueryBatch(r.Context(), collectionParam(r), req.Queries, limitOpts(req.Limit)...)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	out := make([][]resultItem, len(batches))
	for i, results := range batches {
		out[i] = resultsToWire(results)
	}
	writeJSON(w, http.StatusOK, queryBatchResponse{Results: out})
}

type countResponse struct {
	Count int `json:"count"`
}

// Count handles GET /api/v1/collections/{collection}/count.
func (s *Server) Count(w http.ResponseWriter, r *http.Request) {
	count, err := s.engine.Count(r.Context(), collectionParam(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

type retrieveRequest struct {
	IDs []models.PointID `json:"ids"`
}

type pointItem struct {
	ID      models.PointID `json:"id"`
	Payload map[string]any `json:"payload,omitempty"`
}

type retrieveResponse struct {
	Points []pointItem `json:"points"`
}

// Retrieve handles POST /api/v1/collections/{collection}/points/retrieve.
// Vectors stay server-side; the wire carries ids and payloads only.
func (s *Server) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "ids is required")
		return
	}

	points, err := s.engine.Retrieve(r.Context(), collectionParam(r), req.IDs)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	items := make([]pointItem, len(points))
	for i, p := range points {
		items[i] = pointItem{ID: p.ID, Payload: p.Payload}
	}
	writeJSON(w, http.StatusOK, retrieveResponse{Points: items})
}

type collectionResponse struct {
	Name   string                  `json:"name"`
	Count  int                     `json:"count"`
	Schema models.CollectionSchema `json:"schema"`
}

// GetCollection handles GET /api/v1/collections/{collection}.
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	name := collectionParam(r)
	info, err := s.engine.GetCollectionInfo(r.Context(), name)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, collectionResponse{Name: name, Count: info.Count, Schema: info.Schema})
}

// DeleteCollection handles DELETE /api/v1/collections/{collection}.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteCollection(r.Context(), collectionParam(r)); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	// Opaque failures log through the request-scoped logger so the line
	// carries the request id.
	logpkg.FromContext(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func collectionParam(r *http.Request) string {
	return chi.URLParam(r, "collection")
}

func limitOpts(limit int) []vexdb.QueryOption {
	if limit <= 0 {
		return nil
	}
	return []vexdb.QueryOption{vexdb.WithLimit(limit)}
}

func resultsToWire(results []models.RankedResult) []resultItem {
	items := make([]resultItem, len(results))
	for i, r := range results {
		items[i] = resultItem{ID: r.ID, Score: r.Score, SubScores: r.SubScores, Payload: r.Payload}
	}
	return items
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// schemaMismatchHandler surfaces the offending field when the mismatch
// carries one.
func schemaMismatchHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, models.ErrSchemaMismatch) {
		return false
	}
	var sme *models.SchemaMismatchError
	if errors.As(err, &sme) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"code":    "schema_mismatch",
			"message": models.ErrSchemaMismatch.Error(),
			"field":   sme.Field,
		})
		return true
	}
	writeError(w, http.StatusBadRequest, "schema_mismatch", models.ErrSchemaMismatch.Error())
	return true
}

// jsonRecoverer returns JSON instead of a plain text stacktrace on panic.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
