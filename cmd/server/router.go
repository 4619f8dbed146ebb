package main

import (
	"net/http"
	"time"

	"github.com/cyans/todo-app-sub000/internal/handlers"
	"github.com/cyans/todo-app-sub000/internal/metrics"
	"github.com/cyans/todo-app-sub000/internal/middleware"
	"github.com/cyans/todo-app-sub000/internal/services/search"
	"github.com/cyans/todo-app-sub000/internal/services/workflow"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "todo-api"

// routerConfig carries everything newRouter wires together
type routerConfig struct {
	Logger         *zap.Logger
	Workflow       *workflow.Service
	Search         *search.Service
	Health         *handlers.HealthChecker
	Metrics        *metrics.Recorder
	RateLimit      func(http.Handler) http.Handler
	AllowedOrigins []string
	EnableHSTS     bool
	RequestTimeout time.Duration
	OpenAPIPath    string
	Tracing        bool
}

// newRouter builds the HTTP surface. gorilla/mux runs middleware in
// registration order, so the first Use is the outermost wrapper.
func newRouter(rc routerConfig) *mux.Router {
	r := mux.NewRouter()

	if rc.Tracing {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.RequestID)
	if rc.Metrics != nil {
		r.Use(middleware.Metrics(rc.Metrics))
	}
	r.Use(middleware.SecurityHeaders(rc.EnableHSTS))
	r.Use(middleware.CORS(rc.AllowedOrigins, rc.Logger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(rc.RequestTimeout))
	r.Use(middleware.ErrorHandler(rc.Logger))
	r.Use(middleware.Logging(rc.Logger))

	// Probes stay outside the rate limiter
	r.HandleFunc("/healthz", rc.Health.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/ready", rc.Health.Ready).Methods(http.MethodGet)
	r.HandleFunc("/live", rc.Health.Live).Methods(http.MethodGet)
	r.HandleFunc("/health", handlers.LegacyHealth).Methods(http.MethodGet)
	r.HandleFunc("/version", handlers.VersionInfo).Methods(http.MethodGet)
	if rc.Metrics != nil {
		r.HandleFunc("/metrics", handlers.NewMetricsHandler(rc.Metrics, rc.Logger).Snapshot).Methods(http.MethodGet)
	}

	handlers.NewOpenAPIHandler(rc.OpenAPIPath).RegisterRoutes(r)

	todoHandler := handlers.NewTodoHandler(rc.Workflow, rc.Search, rc.Logger)
	statusHandler := handlers.NewStatusHandler(rc.Workflow, rc.Logger)
	searchHandler := handlers.NewSearchHandler(rc.Search, rc.Logger)

	// Unversioned paths kept for existing clients
	legacyRouter := r.PathPrefix("/api/todos").Subrouter()
	if rc.RateLimit != nil {
		legacyRouter.Use(rc.RateLimit)
	}
	todoHandler.RegisterRoutes(legacyRouter)
	statusHandler.RegisterRoutes(legacyRouter)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	if rc.RateLimit != nil {
		apiRouter.Use(rc.RateLimit)
	}
	todosRouter := apiRouter.PathPrefix("/todos").Subrouter()
	todoHandler.RegisterRoutes(todosRouter)
	statusHandler.RegisterRoutes(todosRouter)
	searchHandler.RegisterRoutes(apiRouter.PathPrefix("/search").Subrouter())

	// Preflight requests are answered by the CORS middleware; this route
	// only makes sure mux matches them
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
