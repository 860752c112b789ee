package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/orderdesk/internal/catalog"
	"github.com/kiwari-pos/orderdesk/internal/handler"
	"github.com/kiwari-pos/orderdesk/internal/metrics"
	"github.com/kiwari-pos/orderdesk/internal/sales"
	"github.com/kiwari-pos/orderdesk/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Deps holds everything the routes are built from.
type Deps struct {
	AllowedOrigins []string
	Orders         handler.OrderServicer
	Menu           catalog.Source
	Snapshots      handler.Refresher
	Reporter       *sales.Reporter
	Hub            *ws.Hub
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Log            zerolog.Logger
}

// New creates a Chi router with all application routes wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(d.Log))
	r.Use(hlog.AccessHandler(logRequest))
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Snapshot-Generation", "X-Snapshot-Stale"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	if d.Hub != nil {
		r.Get("/ws/{view}", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWS(d.Hub, w, r)
		})
	}

	orderHandler := handler.NewOrderHandler(d.Orders, d.Reporter.Calendar().Location, d.Log)
	r.Route("/orders", orderHandler.RegisterRoutes)
	r.Route("/queue", orderHandler.RegisterQueueRoutes)

	menuHandler := handler.NewMenuHandler(d.Menu, d.Log)
	r.Route("/menu", menuHandler.RegisterRoutes)

	reportsHandler := handler.NewReportsHandler(d.Snapshots, d.Reporter, d.Log)
	r.Route("/reports", reportsHandler.RegisterRoutes)

	snapshotHandler := handler.NewSnapshotHandler(d.Snapshots, d.Log)
	r.Route("/snapshot", snapshotHandler.RegisterRoutes)

	d.Log.Info().Msg("router initialized")
	return r
}

// logRequest writes one access line per request through the injected logger.
func logRequest(r *http.Request, status, size int, elapsed time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", elapsed).
		Msg("request")
}
