// Package api exposes the tracker's analytics over HTTP as JSON.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	service "github.com/okian/expwatch/internal/app"
	"github.com/okian/expwatch/internal/domain/model"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	LatestRanking(ctx context.Context, limit int) (service.Ranking, error)
	Snapshots(ctx context.Context, names []string, from, to time.Time) ([]model.Snapshot, error)
	Names(ctx context.Context) ([]string, error)
	Velocity(ctx context.Context, names []string, w service.Window) (service.VelocityReport, error)
	Overtake(ctx context.Context, names []string, w service.Window) (service.OvertakeReport, error)
	Milestone(ctx context.Context, names []string, w service.Window, level int) (service.MilestoneReport, error)
}

// Server wires HTTP routes for the analytics API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	rankingHandler    *RankingHandler
	historyHandler    *HistoryHandler
	velocityHandler   *VelocityHandler
	projectionHandler *ProjectionHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		rankingHandler:    NewRankingHandler(deps),
		historyHandler:    NewHistoryHandler(deps),
		velocityHandler:   NewVelocityHandler(deps),
		projectionHandler: NewProjectionHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/ranking", MetricsMiddleware(s.rankingHandler.HandleGetRanking, "ranking"))
	mux.HandleFunc("/snapshots", MetricsMiddleware(s.historyHandler.HandleGetSnapshots, "snapshots"))
	mux.HandleFunc("/names", MetricsMiddleware(s.historyHandler.HandleGetNames, "names"))
	mux.HandleFunc("/velocity", MetricsMiddleware(s.velocityHandler.HandleGetVelocity, "velocity"))
	mux.HandleFunc("/projections/overtake", MetricsMiddleware(s.projectionHandler.HandleGetOvertake, "overtake"))
	mux.HandleFunc("/projections/milestone", MetricsMiddleware(s.projectionHandler.HandleGetMilestone, "milestone"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code, name := status(err)
	noteErrorCode(w, name)
	msg := http.StatusText(code)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, code, errorResponse{Code: name, Message: msg})
}
