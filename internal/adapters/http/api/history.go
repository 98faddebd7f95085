package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/expwatch/internal/domain/model"
)

// HistoryDependencies defines the interface for ledger history reads.
type HistoryDependencies interface {
	Snapshots(ctx context.Context, names []string, from, to time.Time) ([]model.Snapshot, error)
	Names(ctx context.Context) ([]string, error)
}

// HistoryHandler handles snapshot history requests.
type HistoryHandler struct {
	deps HistoryDependencies
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

// HandleGetSnapshots handles GET /snapshots?names=a,b&from=&to= requests.
func (h *HistoryHandler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_snapshots"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	from, to, err := parseRange(q)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.Snapshots(r.Context(), parseNames(q), from, to)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if rows == nil {
		rows = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleGetNames handles GET /names requests.
func (h *HistoryHandler) HandleGetNames(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_names"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	names, err := h.deps.Names(r.Context())
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}
