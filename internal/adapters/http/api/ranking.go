package api

import (
	"context"
	"net/http"

	service "github.com/okian/expwatch/internal/app"
)

// RankingDependencies defines the interface for ranking operations.
type RankingDependencies interface {
	LatestRanking(ctx context.Context, limit int) (service.Ranking, error)
}

// RankingHandler handles ranking requests.
type RankingHandler struct {
	deps RankingDependencies
}

// NewRankingHandler creates a new ranking handler.
func NewRankingHandler(deps RankingDependencies) *RankingHandler {
	return &RankingHandler{deps: deps}
}

// HandleGetRanking handles GET /ranking?limit=N requests. Without a limit
// the configured top size is returned; larger limits are capped.
func (h *RankingHandler) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit, err := parseInt(r.URL.Query(), "limit")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	ranking, err := h.deps.LatestRanking(r.Context(), limit)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}
