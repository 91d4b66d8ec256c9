package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/catalog"
	"github.com/Hitoyu22/TP3-datamining/internal/model"
	"github.com/Hitoyu22/TP3-datamining/internal/predict"
	"github.com/Hitoyu22/TP3-datamining/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakePredictor struct {
	mu         sync.Mutex
	ready      bool
	estimate   float64
	err        error
	retrainErr error
	got        []predict.Features

	invalidated int
}

func (f *fakePredictor) Predict(_ context.Context, in predict.Features) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, in)
	return f.estimate, f.err
}

func (f *fakePredictor) Retrain(context.Context) (predict.Metrics, error) {
	if f.retrainErr != nil {
		return predict.Metrics{}, f.retrainErr
	}
	f.ready = true
	return predict.Metrics{MAE: 1.5, TrainRows: 80, TestRows: 20, Estimators: 100}, nil
}

func (f *fakePredictor) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = false
	f.invalidated++
}

func (f *fakePredictor) Ready() bool        { return f.ready }
func (f *fakePredictor) Mode() predict.Mode { return predict.ModeCached }

type fakeCatalog struct {
	err error
}

func (c fakeCatalog) Details(_ context.Context, id string) (*catalog.Details, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &catalog.Details{ID: id, Title: "Encadrement des loyers"}, nil
}

func intPtr(v int) *int { return &v }

func newTestServer(t *testing.T, p *fakePredictor, mutate func(*Options)) http.Handler {
	t.Helper()
	opts := Options{
		Predictor: p,
		Neighborhoods: func() ([]model.Neighborhood, error) {
			return []model.Neighborhood{{Name: "Necker", ID: intPtr(40), Sector: intPtr(3)}}, nil
		},
		Catalog:   fakeCatalog{},
		DatasetID: "logement-encadrement-des-loyers@parisdata",
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := New(opts)
	require.NoError(t, err)
	return srv.Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Predictor: &fakePredictor{}})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	rr := do(t, newTestServer(t, &fakePredictor{ready: true}, nil), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["model_ready"])
	assert.Equal(t, "cached", body["model_mode"])
}

func TestNeighborhoods(t *testing.T) {
	rr := do(t, newTestServer(t, &fakePredictor{}, nil), http.MethodGet, "/api/neighborhoods", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"nom_quartier":"Necker","numero_quartier":40,"secteur_geographique":3}]`, rr.Body.String())
}

func TestPredict(t *testing.T) {
	p := &fakePredictor{ready: true, estimate: 27.43}
	body := `{"epoque_construction":1945,"nombre_pieces_principales":2,"type_location":1,"numero_quartier":40,"secteur_geographique":3}`

	rr := do(t, newTestServer(t, p, nil), http.MethodPost, "/api/predict", body)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"loyer_estime":27.43}`, rr.Body.String())
	require.Len(t, p.got, 1)
	assert.Equal(t, 1945, *p.got[0].Era)
	assert.InDelta(t, 2.0, *p.got[0].Rooms, 1e-9)
	assert.Equal(t, 1, *p.got[0].Furnished)
}

func TestPredict_NullableFeatures(t *testing.T) {
	p := &fakePredictor{ready: true, estimate: 20}
	body := `{"epoque_construction":null,"nombre_pieces_principales":3,"type_location":null,"numero_quartier":12,"secteur_geographique":1}`

	rr := do(t, newTestServer(t, p, nil), http.MethodPost, "/api/predict", body)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, p.got, 1)
	assert.Nil(t, p.got[0].Era)
	assert.Nil(t, p.got[0].Furnished)
}

func TestPredict_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"nombre_pieces_principales":`},
		{"wrong type", `{"nombre_pieces_principales":"deux","numero_quartier":1,"secteur_geographique":1}`},
		{"unknown field", `{"nombre_pieces_principales":2,"numero_quartier":1,"secteur_geographique":1,"surface":30}`},
		{"missing rooms", `{"numero_quartier":1,"secteur_geographique":1}`},
		{"zero rooms", `{"nombre_pieces_principales":0,"numero_quartier":1,"secteur_geographique":1}`},
		{"missing neighborhood", `{"nombre_pieces_principales":2,"secteur_geographique":1}`},
		{"missing sector", `{"nombre_pieces_principales":2,"numero_quartier":1}`},
		{"bad furnished", `{"nombre_pieces_principales":2,"numero_quartier":1,"secteur_geographique":1,"type_location":2}`},
		{"bad era", `{"nombre_pieces_principales":2,"numero_quartier":1,"secteur_geographique":1,"epoque_construction":2000}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePredictor{ready: true}
			rr := do(t, newTestServer(t, p, nil), http.MethodPost, "/api/predict", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			var body errorBody
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Empty(t, p.got, "predictor must not be called")
		})
	}
}

func TestPredict_ModelNotReady(t *testing.T) {
	p := &fakePredictor{err: eris.Wrap(predict.ErrModelNotReady, "no dataset")}
	body := `{"nombre_pieces_principales":2,"numero_quartier":1,"secteur_geographique":1}`

	rr := do(t, newTestServer(t, p, nil), http.MethodPost, "/api/predict", body)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "model not ready")
}

func TestPredict_InternalErrorHidden(t *testing.T) {
	p := &fakePredictor{err: errors.New("disk on fire")}
	body := `{"nombre_pieces_principales":2,"numero_quartier":1,"secteur_geographique":1}`

	rr := do(t, newTestServer(t, p, nil), http.MethodPost, "/api/predict", body)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "disk on fire")
}

func TestRetrain_RecordsRun(t *testing.T) {
	runs, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })
	require.NoError(t, runs.Migrate(context.Background()))

	h := newTestServer(t, &fakePredictor{}, func(o *Options) { o.Runs = runs })
	rr := do(t, h, http.MethodPost, "/api/model/retrain", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp retrainResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.InDelta(t, 1.5, resp.MAE, 1e-9)
	require.NotEmpty(t, resp.RunID)

	run, err := runs.GetRun(context.Background(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 100, run.Result.Rows)

	rr = do(t, h, http.MethodGet, "/api/runs?kind=train&limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var listed []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, resp.RunID, listed[0].ID)
}

func TestRetrain_Failure(t *testing.T) {
	p := &fakePredictor{retrainErr: eris.Wrap(predict.ErrModelNotReady, "read dataset")}
	rr := do(t, newTestServer(t, p, nil), http.MethodPost, "/api/model/retrain", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReload_InvalidatesCachedModel(t *testing.T) {
	p := &fakePredictor{ready: true}
	rr := do(t, newTestServer(t, p, nil), http.MethodPost, "/api/model/reload", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"invalidated","model_ready":false}`, rr.Body.String())
	assert.Equal(t, 1, p.invalidated)
}

func TestRuns_BadLimit(t *testing.T) {
	runs, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })
	require.NoError(t, runs.Migrate(context.Background()))

	h := newTestServer(t, &fakePredictor{}, func(o *Options) { o.Runs = runs })
	rr := do(t, h, http.MethodGet, "/api/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRuns_NoStore(t *testing.T) {
	rr := do(t, newTestServer(t, &fakePredictor{}, nil), http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestDataset(t *testing.T) {
	rr := do(t, newTestServer(t, &fakePredictor{}, nil), http.MethodGet, "/api/dataset", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var d catalog.Details
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	assert.Equal(t, "logement-encadrement-des-loyers@parisdata", d.ID)
	assert.Equal(t, "Encadrement des loyers", d.Title)
}

func TestDataset_CatalogDown(t *testing.T) {
	h := newTestServer(t, &fakePredictor{}, func(o *Options) { o.Catalog = fakeCatalog{err: errors.New("timeout")} })
	rr := do(t, h, http.MethodGet, "/api/dataset", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestDataset_NotConfigured(t *testing.T) {
	h := newTestServer(t, &fakePredictor{}, func(o *Options) { o.Catalog = nil })
	rr := do(t, h, http.MethodGet, "/api/dataset", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, &fakePredictor{}, func(o *Options) { o.CORSOrigins = []string{"http://localhost:5173"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{eris.Wrap(ErrInvalidRequest, "x"), http.StatusBadRequest},
		{predict.ErrModelNotReady, http.StatusServiceUnavailable},
		{eris.Wrap(predict.ErrArtifactNotFound, "x"), http.StatusServiceUnavailable},
		{&predict.SchemaError{Column: "loyers_reference"}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
