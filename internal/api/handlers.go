// Package api exposes the summary objects over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/GowthamShanmugam/performance-monitoring/internal/history"
	"github.com/GowthamShanmugam/performance-monitoring/internal/registry"
	"github.com/GowthamShanmugam/performance-monitoring/internal/store"
)

// SchemaVersionHeader lets clients pin the schema version they were built
// against. A mismatch is rejected before any data is returned.
const SchemaVersionHeader = "X-Schema-Version"

// Handler serves the summary read API.
type Handler struct {
	store    store.SummaryStore
	registry *registry.Registry
	history  *history.Store
	logger   *zap.Logger
}

// NewHandler builds the API handler. history may be nil when trend storage
// is disabled.
func NewHandler(st store.SummaryStore, reg *registry.Registry, hist *history.Store, logger *zap.Logger) *Handler {
	return &Handler{
		store:    st,
		registry: reg,
		history:  hist,
		logger:   logger,
	}
}

// RegisterRoutes attaches all endpoints to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.handleReady).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(h.schemaVersionMiddleware)

	v1.HandleFunc("/schema", h.handleSchema).Methods(http.MethodGet)
	v1.HandleFunc("/schema/{object}", h.handleSchemaObject).Methods(http.MethodGet)

	v1.HandleFunc("/summary/nodes", h.handleListNodeSummaries).Methods(http.MethodGet)
	v1.HandleFunc("/summary/nodes/{node_id}", h.handleGetNodeSummary).Methods(http.MethodGet)
	v1.HandleFunc("/summary/nodes/{node_id}", h.handleDeleteNodeSummary).Methods(http.MethodDelete)
	v1.HandleFunc("/summary/nodes/{node_id}/history", h.handleNodeHistory).Methods(http.MethodGet)

	v1.HandleFunc("/summary/clusters", h.handleListClusterSummaries).Methods(http.MethodGet)
	v1.HandleFunc("/summary/clusters/{cluster_id}", h.handleGetClusterSummary).Methods(http.MethodGet)

	v1.HandleFunc("/summary/system", h.handleListSystemSummaries).Methods(http.MethodGet)
	v1.HandleFunc("/summary/system/{sds_type}", h.handleGetSystemSummary).Methods(http.MethodGet)

	v1.HandleFunc("/nodes", h.handleListNodeContexts).Methods(http.MethodGet)
}

// schemaVersionMiddleware rejects requests pinned to a different schema
// version than the one this service serves.
func (h *Handler) schemaVersionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if expected := r.Header.Get(SchemaVersionHeader); expected != "" {
			if err := h.registry.CheckVersion(expected); err != nil {
				h.writeError(w, http.StatusConflict, "SCHEMA_VERSION_MISMATCH", err.Error(), nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "performance-monitoring",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(r.Context()); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "coordination store not reachable", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleSchema(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": h.registry.Version(),
		"objects": h.registry.Objects(),
	})
}

func (h *Handler) handleSchemaObject(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["object"]
	def, err := h.registry.Lookup(name)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, def)
}

func (h *Handler) handleListNodeSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListNodeSummaries(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"node_summaries": summaries,
		"count":          len(summaries),
	})
}

func (h *Handler) handleGetNodeSummary(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["node_id"]
	summary, err := h.store.GetNodeSummary(r.Context(), nodeID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleDeleteNodeSummary(w http.ResponseWriter, r *http.Request) {
	nodeID := mux.Vars(r)["node_id"]
	if err := h.store.DeleteNodeSummary(r.Context(), nodeID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleNodeHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotImplemented, "HISTORY_DISABLED", "summary history is not enabled", nil)
		return
	}

	nodeID := mux.Vars(r)["node_id"]
	key, err := h.registry.KeyFor(registry.ObjectNodeSummary, nodeID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	var limit uint64 = 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	snapshots, err := h.history.Recent(r.Context(), registry.ObjectNodeSummary, key, limit)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

func (h *Handler) handleListClusterSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListClusterSummaries(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"cluster_summaries": summaries,
		"count":             len(summaries),
	})
}

func (h *Handler) handleGetClusterSummary(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["cluster_id"]
	summary, err := h.store.GetClusterSummary(r.Context(), clusterID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListSystemSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListSystemSummaries(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"system_summaries": summaries,
		"count":            len(summaries),
	})
}

func (h *Handler) handleGetSystemSummary(w http.ResponseWriter, r *http.Request) {
	sdsType := mux.Vars(r)["sds_type"]
	summary, err := h.store.GetSystemSummary(r.Context(), sdsType)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleListNodeContexts(w http.ResponseWriter, r *http.Request) {
	contexts, err := h.store.ListNodeContexts(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodes": contexts,
		"count": len(contexts),
	})
}

// writeStoreError maps schema and store errors onto HTTP statuses.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var keyErr *registry.KeyDerivationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, registry.ErrUnknownObject):
		h.writeError(w, http.StatusNotFound, "UNKNOWN_OBJECT", err.Error(), nil)
	case errors.As(err, &keyErr):
		h.writeError(w, http.StatusBadRequest, "EMPTY_KEY_ATTRIBUTE", err.Error(), map[string]interface{}{
			"object":    keyErr.Object,
			"attribute": keyErr.Attr,
		})
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "request failed", nil)
	}
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	h.writeJSON(w, statusCode, ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
