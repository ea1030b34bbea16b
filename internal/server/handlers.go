package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/mosaic/internal/store"
	"github.com/sells-group/mosaic/pkg/regional"
)

type predictRequest struct {
	Points []struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"points"`
	Smooth *float64 `json:"smooth,omitempty"`
	Stderr bool     `json:"stderr,omitempty"`
}

type predictResponse struct {
	Values []*float64 `json:"values"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Points) == 0 {
		writeError(w, http.StatusBadRequest, "points are required")
		return
	}

	obs := &regional.Observations{
		SRID:   s.ensemble.Regions().SRID,
		Fields: map[string][]float64{},
	}
	for _, p := range req.Points {
		obs.Coords = append(obs.Coords, geom.Coord{p.X, p.Y})
	}

	opts := regional.PredictOptions{
		Smooth:  s.opts.Smooth,
		Workers: s.opts.Workers,
	}
	if req.Smooth != nil {
		opts.Smooth = regional.Scalar(*req.Smooth)
	}
	if req.Stderr {
		opts.Mode = regional.ModeStderr
	}

	values, err := s.ensemble.Predict(r.Context(), obs, opts)
	if err != nil {
		zap.L().Error("prediction failed",
			zap.String("component", "server"),
			zap.Error(err),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// JSON has no NaN; an undefined prediction comes back as null.
	resp := predictResponse{Values: make([]*float64, len(values))}
	for i := range values {
		if !math.IsNaN(values[i]) {
			v := values[i]
			resp.Values[i] = &v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"srid":    s.ensemble.Regions().SRID,
		"regions": s.ensemble.Regions().IDs(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run store not configured")
		return
	}

	filter := store.RunFilter{Status: store.RunStatus(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run store not configured")
		return
	}

	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
