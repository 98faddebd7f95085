package api

import (
	"context"
	"net/http"

	service "github.com/okian/expwatch/internal/app"
)

// ProjectionDependencies defines the interface for projections.
type ProjectionDependencies interface {
	Overtake(ctx context.Context, names []string, w service.Window) (service.OvertakeReport, error)
	Milestone(ctx context.Context, names []string, w service.Window, level int) (service.MilestoneReport, error)
}

// ProjectionHandler handles overtake and milestone requests.
type ProjectionHandler struct {
	deps ProjectionDependencies
}

// NewProjectionHandler creates a new projection handler.
func NewProjectionHandler(deps ProjectionDependencies) *ProjectionHandler {
	return &ProjectionHandler{deps: deps}
}

// HandleGetOvertake handles GET /projections/overtake?names=&window= requests.
func (h *ProjectionHandler) HandleGetOvertake(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_overtake"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	win, err := parseWindow(q)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rep, err := h.deps.Overtake(r.Context(), parseNames(q), win)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if rep.Entries == nil {
		rep.Entries = []service.OvertakeEntry{}
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandleGetMilestone handles GET /projections/milestone?names=&window=&level= requests.
func (h *ProjectionHandler) HandleGetMilestone(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_milestone"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	win, err := parseWindow(q)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	level, err := parseInt(q, "level")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rep, err := h.deps.Milestone(r.Context(), parseNames(q), win, level)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	if rep.Entries == nil {
		rep.Entries = []service.MilestoneEntry{}
	}
	writeJSON(w, http.StatusOK, rep)
}
