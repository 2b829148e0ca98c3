package httpapi

import (
	"fmt"
	"net/http"

	"github.com/riskibarqy/courtstats/internal/usecase"
)

const jobSourceQStash = "qstash"

// RunRefreshCacheJob is the push endpoint for delayed cache repairs and
// externally published notifications. A failure answers 5xx so the sender
// redelivers.
func (h *Handler) RunRefreshCacheJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunRefreshCacheJob")
	defer span.End()

	if h.refresher == nil {
		writeError(ctx, w, fmt.Errorf("%w: cache refresher is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	var req refreshCacheRequest
	if err := h.decodeRequest(ctx, r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	span.SetAttributes(pairAttributes(req.PlayerID, req.TeamID)...)
	notification := usecase.Notification{PlayerID: req.PlayerID, TeamID: req.TeamID}
	if err := h.refresher.Handle(ctx, jobSourceQStash, notification); err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, refreshCacheResponse{
		PlayerID: req.PlayerID,
		TeamID:   req.TeamID,
		Status:   "refreshed",
	})
}

func (h *Handler) RunWarmCacheJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunWarmCacheJob")
	defer span.End()

	if h.warmupService == nil {
		writeError(ctx, w, fmt.Errorf("%w: cache warm-up is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	result, err := h.warmupService.WarmAll(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "run warm cache job failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

type refreshCacheRequest struct {
	PlayerID int64 `json:"playerId" validate:"required,min=1"`
	TeamID   int64 `json:"teamId" validate:"required,min=1"`
}

type refreshCacheResponse struct {
	PlayerID int64  `json:"playerId"`
	TeamID   int64  `json:"teamId"`
	Status   string `json:"status"`
}
