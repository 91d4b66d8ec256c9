package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/model"
	"github.com/Hitoyu22/TP3-datamining/internal/predict"
	"github.com/Hitoyu22/TP3-datamining/internal/store"
)

// ErrInvalidRequest marks a malformed request body or query.
var ErrInvalidRequest = eris.New("api: invalid request")

const maxBodyBytes = 1 << 16

type predictResponse struct {
	Estimate float64 `json:"loyer_estime"`
}

type retrainResponse struct {
	predict.Metrics
	RunID string `json:"run_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"model_ready": s.opts.Predictor.Ready(),
		"model_mode":  s.opts.Predictor.Mode(),
	})
}

func (s *Server) handleNeighborhoods(w http.ResponseWriter, r *http.Request) {
	entries, err := s.opts.Neighborhoods()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFeatures(r.Body)
	if err != nil {
		writeError(w, err)
		return
	}

	estimate, err := s.opts.Predictor.Predict(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Estimate: estimate})
}

// decodeFeatures parses and validates one inference row. Rooms, neighborhood
// and sector are required; era and furnished may be null.
func decodeFeatures(body io.Reader) (predict.Features, error) {
	var f predict.Features
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return f, eris.Wrapf(ErrInvalidRequest, "decode body: %v", err)
	}

	switch {
	case f.Rooms == nil:
		return f, eris.Wrap(ErrInvalidRequest, "nombre_pieces_principales is required")
	case *f.Rooms <= 0:
		return f, eris.Wrap(ErrInvalidRequest, "nombre_pieces_principales must be > 0")
	case f.NeighborhoodID == nil:
		return f, eris.Wrap(ErrInvalidRequest, "numero_quartier is required")
	case f.Sector == nil:
		return f, eris.Wrap(ErrInvalidRequest, "secteur_geographique is required")
	case f.Furnished != nil && *f.Furnished != model.Furnished && *f.Furnished != model.Unfurnished:
		return f, eris.Wrap(ErrInvalidRequest, "type_location must be 0, 1 or null")
	case f.Era != nil && model.EraDisplay(*f.Era) == "":
		return f, eris.Wrapf(ErrInvalidRequest, "epoque_construction %d is not a known era", *f.Era)
	}
	return f, nil
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var run *model.Run
	if s.opts.Runs != nil {
		var err error
		run, err = s.opts.Runs.CreateRun(ctx, model.RunKindTrain, s.opts.DatasetID)
		if err != nil {
			zap.L().Warn("api: record retrain run", zap.Error(err))
		}
	}

	metrics, err := s.opts.Predictor.Retrain(ctx)
	if run != nil {
		s.finishRun(r, run, metrics, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := retrainResponse{Metrics: metrics}
	if run != nil {
		resp.RunID = run.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) finishRun(r *http.Request, run *model.Run, m predict.Metrics, runErr error) {
	var err error
	if runErr != nil {
		err = s.opts.Runs.FailRun(r.Context(), run.ID, runErr)
	} else {
		mae := m.MAE
		err = s.opts.Runs.CompleteRun(r.Context(), run.ID, &model.RunResult{
			Rows: m.TrainRows + m.TestRows,
			MAE:  &mae,
		})
	}
	if err != nil {
		zap.L().Warn("api: finish retrain run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// handleReload drops the cached model so the next prediction reloads the
// artifact from disk, picking up a model trained by another process.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.opts.Predictor.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "invalidated",
		"model_ready": s.opts.Predictor.Ready(),
	})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	if s.opts.Catalog == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "dataset catalog is not configured"})
		return
	}
	d, err := s.opts.Catalog.Details(r.Context(), s.opts.DatasetID)
	if err != nil {
		zap.L().Error("api: dataset details", zap.String("dataset", s.opts.DatasetID), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "dataset catalog unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Runs == nil {
		writeJSON(w, http.StatusOK, []model.Run{})
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{
		Kind:   model.RunKind(q.Get("kind")),
		Status: model.RunStatus(q.Get("status")),
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &filter.Limit}, {"offset", &filter.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, eris.Wrapf(ErrInvalidRequest, "%s must be a non-negative integer", p.name))
			return
		}
		*p.dst = n
	}

	runs, err := s.opts.Runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP statuses: malformed input is a
// client error, a missing model is temporary unavailability.
func statusFor(err error) int {
	var schemaErr *predict.SchemaError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, predict.ErrModelNotReady),
		errors.Is(err, predict.ErrArtifactNotFound),
		errors.As(err, &schemaErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		zap.L().Error("api: request failed", zap.Error(err))
		msg = http.StatusText(status)
	case http.StatusServiceUnavailable:
		zap.L().Warn("api: model unavailable", zap.Error(err))
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
