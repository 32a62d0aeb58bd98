// Package server exposes profiles, reviews, fetch sessions, and exports as a
// local JSON API for the web client.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/locale-cli/internal/ingest"
	"github.com/sells-group/locale-cli/internal/ledger"
	"github.com/sells-group/locale-cli/internal/store"
	"github.com/sells-group/locale-cli/internal/transcode"
	"github.com/sells-group/locale-cli/pkg/nominatim"
)

// Fetcher runs one ingestion for a center and radius.
type Fetcher interface {
	FetchAndMerge(ctx context.Context, lat, lng float64, radiusMeters int) (*ingest.Result, error)
}

// Deps are the collaborators the API is built from. Geocoder may be nil, in
// which case the geocode routes answer 503.
type Deps struct {
	Store          store.Store
	Ledger         *ledger.Ledger
	Fetcher        Fetcher
	Tracker        *ingest.Tracker
	Transcoder     *transcode.Transcoder
	Geocoder       nominatim.Client
	AllowedOrigins []string
}

// Server routes API requests. Background fetches run on the context passed to
// New so they outlive the request that started them.
type Server struct {
	deps    Deps
	baseCtx context.Context
	router  chi.Router
	log     *zap.Logger
	wg      sync.WaitGroup
}

// New builds the router.
func New(ctx context.Context, deps Deps) *Server {
	if deps.Tracker == nil {
		deps.Tracker = ingest.NewTracker()
	}
	s := &Server{
		deps:    deps,
		baseCtx: ctx,
		log:     zap.L().With(zap.String("component", "server")),
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Wait blocks until background fetches started by this server return.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Profile-PIN"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/profiles", func(r chi.Router) {
		r.Get("/", s.handleListProfiles)
		r.Post("/", s.handleCreateProfile)
		r.Route("/{profileID}", func(r chi.Router) {
			r.Use(s.withProfile)
			r.Get("/", s.handleGetProfile)
			r.Post("/unlock", s.handleUnlock)

			// PIN-protected profiles must send X-Profile-PIN from here on.
			r.Group(func(r chi.Router) {
				r.Use(s.requirePIN)
				r.Put("/location", s.handleSetLocation)
				r.Get("/businesses", s.handleListBusinesses)
				r.Put("/visits/{businessID}", s.handleRecordVisit)
				r.Get("/stats", s.handleStats)
				r.Post("/fetch", s.handleStartFetch)
				r.Get("/fetch", s.handleFetchStatus)
				r.Get("/export.csv", s.handleExportCSV)
				r.Get("/export.xlsx", s.handleExportXLSX)
				r.Get("/export.geojson", s.handleExportGeoJSON)
				r.Post("/import", s.handleImport)
			})
		})
	})

	r.Route("/geocode", func(r chi.Router) {
		r.Get("/search", s.handleGeocodeSearch)
		r.Get("/reverse", s.handleGeocodeReverse)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
