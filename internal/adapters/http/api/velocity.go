package api

import (
	"context"
	"net/http"

	service "github.com/okian/expwatch/internal/app"
)

// VelocityDependencies defines the interface for velocity estimates.
type VelocityDependencies interface {
	Velocity(ctx context.Context, names []string, w service.Window) (service.VelocityReport, error)
}

// VelocityHandler handles velocity requests.
type VelocityHandler struct {
	deps VelocityDependencies
}

// NewVelocityHandler creates a new velocity handler.
func NewVelocityHandler(deps VelocityDependencies) *VelocityHandler {
	return &VelocityHandler{deps: deps}
}

// HandleGetVelocity handles GET /velocity?names=&window=6h requests. An
// explicit from/to pair overrides the window.
func (h *VelocityHandler) HandleGetVelocity(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_velocity"
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
	rep, err := h.deps.Velocity(r.Context(), parseNames(q), win)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
