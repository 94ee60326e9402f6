// Package httptransport is the thin HTTP layer over the query pipeline. It
// delegates to the orchestrator and keeps transport concerns out of the
// domain packages.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ecplacas/internal/audit"
	"ecplacas/internal/cache"
	"ecplacas/internal/query"
	"ecplacas/internal/transport/http/shared"
	dErrors "ecplacas/pkg/domain-errors"
)

// Service is the slice of the orchestrator the handlers need.
type Service interface {
	QueryPlate(ctx context.Context, rawPlate string, opts query.Options) *query.Result
	Progress(sessionID uuid.UUID) (*query.Progress, error)
	Invalidate(ctx context.Context, rawPlate, source string) error
	CacheStats(ctx context.Context) (cache.Stats, error)
	PurgeExpired(ctx context.Context) (int, error)
}

// Handler serves the query and cache management endpoints.
type Handler struct {
	service Service
	audit   audit.Store
	logger  *slog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(service Service, auditStore audit.Store, logger *slog.Logger) *Handler {
	return &Handler{service: service, audit: auditStore, logger: logger}
}

// Register mounts the API routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/query", h.handleQuery)
	r.Get("/api/query/{sessionID}", h.handleProgress)
	r.Get("/api/queries/recent", h.handleRecentQueries)
	r.Get("/api/cache/stats", h.handleCacheStats)
	r.Post("/api/cache/purge", h.handleCachePurge)
	r.Delete("/api/cache/{plate}", h.handleCacheInvalidate)
}

type queryRequest struct {
	Plate        string `json:"plate"`
	Source       string `json:"source,omitempty"`
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Plate == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "plate is required"))
		return
	}

	result := h.service.QueryPlate(r.Context(), req.Plate, query.Options{
		ForceRefresh: req.ForceRefresh,
		Source:       req.Source,
		ClientKey:    clientKey(r),
	})

	status := http.StatusOK
	if !result.Success {
		status = dErrors.ToHTTPStatus(dErrors.Code(result.ErrorCode))
	}
	shared.WriteJSON(w, status, result)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return
	}

	progress, err := h.service.Progress(sessionID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, progress)
}

func (h *Handler) handleRecentQueries(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 500"))
			return
		}
		limit = parsed
	}

	records, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list recent queries"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"queries": records})
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.CacheStats(r.Context())
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "read cache stats"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.PurgeExpired(r.Context())
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "purge cache"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	plateParam := chi.URLParam(r, "plate")
	source := r.URL.Query().Get("source")

	if err := h.service.Invalidate(r.Context(), plateParam, source); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clientKey identifies the caller for rate limiting: the first forwarded
// address when behind a proxy, the peer address otherwise.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
