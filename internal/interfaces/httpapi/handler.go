package httpapi

import (
	"net/http"
	"time"

	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/usecase"
)

type Handler struct {
	queries   *usecase.QueryService
	refresh   *usecase.RefreshService
	logger    *logging.Logger
	startedAt time.Time
}

func NewHandler(queries *usecase.QueryService, refresh *usecase.RefreshService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		queries:   queries,
		refresh:   refresh,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}

func (h *Handler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListUpcoming")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.queries.LoadUpcoming(ctx))
}

func (h *Handler) ListHistorical(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListHistorical")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.queries.LoadHistorical(ctx))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetStats")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.queries.LoadStats(ctx))
}

func (h *Handler) GetRefreshStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetRefreshStatus")
	defer span.End()

	payload := map[string]any{"refreshedAt": nil}
	if refreshedAt, ok := h.queries.LastRefresh(ctx); ok {
		payload["refreshedAt"] = refreshedAt.Format(time.RFC3339)
	}
	writeSuccess(ctx, w, http.StatusOK, payload)
}

// RunRefreshJob triggers a synchronous refresh pass. The run lock inside the
// refresh service turns concurrent triggers into conflicts.
func (h *Handler) RunRefreshJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunRefreshJob")
	defer span.End()

	if h.refresh == nil {
		writeError(ctx, w, usecase.ErrDependencyUnavailable)
		return
	}
	if err := h.refresh.Run(ctx); err != nil {
		writeError(ctx, w, err)
		return
	}

	payload := map[string]any{"status": "completed"}
	if refreshedAt, ok := h.queries.LastRefresh(ctx); ok {
		payload["refreshedAt"] = refreshedAt.Format(time.RFC3339)
	}
	writeSuccess(ctx, w, http.StatusOK, payload)
}
