package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sos-echo/platform/services/case/internal/config"
	"github.com/sos-echo/platform/services/case/internal/metrics"
)

// RouterConfig collects what the HTTP surface is built from.
type RouterConfig struct {
	ServiceName string
	CORS        config.CORSConfig
	Sessions    SessionVerifier
	Auth        *AuthHandler
	Cases       *CaseHandler
	Monitor     *MonitorHandler
	Metrics     *metrics.Collector
	Logger      *slog.Logger

	// Ready reports whether the service can take traffic. Nil means always ready.
	Ready func() bool
}

// NewRouter wires middleware, health probes, metrics and the /api/v1 routes.
func NewRouter(cfg RouterConfig) *mux.Router {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	router := mux.NewRouter()
	router.Use(RequestID())
	router.Use(Logger(log, cfg.Metrics))
	router.Use(Recovery(log))
	router.Use(CORS(cfg.CORS))

	router.HandleFunc("/health", healthHandler(cfg.ServiceName)).Methods("GET")
	router.HandleFunc("/ready", readyHandler(cfg.ServiceName, cfg.Ready)).Methods("GET")
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics.Handler()).Methods("GET")
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	if cfg.Auth != nil {
		cfg.Auth.RegisterPublicRoutes(api)
	}

	protected := api.NewRoute().Subrouter()
	protected.Use(Auth(cfg.Sessions, log))
	if cfg.Auth != nil {
		cfg.Auth.RegisterRoutes(protected)
	}
	if cfg.Cases != nil {
		cfg.Cases.RegisterRoutes(protected)
	}
	if cfg.Monitor != nil {
		cfg.Monitor.RegisterRoutes(protected)
	}

	// Preflight requests carry no token.
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return router
}

func healthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": service})
	}
}

func readyHandler(service string, ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "service": service})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready", "service": service})
	}
}
