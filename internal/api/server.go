// Package api exposes rent prediction, the neighborhood lookup and dataset
// metadata over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Hitoyu22/TP3-datamining/internal/catalog"
	"github.com/Hitoyu22/TP3-datamining/internal/model"
	"github.com/Hitoyu22/TP3-datamining/internal/predict"
	"github.com/Hitoyu22/TP3-datamining/internal/store"
)

// Predictor serves and retrains the rent model. *predict.Service implements it.
type Predictor interface {
	Predict(ctx context.Context, f predict.Features) (float64, error)
	Retrain(ctx context.Context) (predict.Metrics, error)
	Invalidate()
	Ready() bool
	Mode() predict.Mode
}

// Catalog reads dataset metadata. *catalog.Client implements it.
type Catalog interface {
	Details(ctx context.Context, id string) (*catalog.Details, error)
}

// NeighborhoodSource returns the current neighborhood lookup.
type NeighborhoodSource func() ([]model.Neighborhood, error)

// Options wires the server to its collaborators. Catalog and Runs are
// optional.
type Options struct {
	Predictor     Predictor
	Neighborhoods NeighborhoodSource
	Catalog       Catalog
	DatasetID     string
	Runs          store.Store
	CORSOrigins   []string
}

// Server holds the handlers' dependencies.
type Server struct {
	opts Options
}

// New validates opts and returns a server.
func New(opts Options) (*Server, error) {
	if opts.Predictor == nil {
		return nil, eris.New("api: predictor is required")
	}
	if opts.Neighborhoods == nil {
		return nil, eris.New("api: neighborhood source is required")
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{opts: opts}, nil
}

// Routes wires middlewares and endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Get("/neighborhoods", s.handleNeighborhoods)
		api.Post("/predict", s.handlePredict)
		api.Post("/model/retrain", s.handleRetrain)
		api.Post("/model/reload", s.handleReload)
		api.Get("/dataset", s.handleDataset)
		api.Get("/runs", s.handleRuns)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
