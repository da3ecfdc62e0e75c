package webd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/rotblauer/catride/app"
	"github.com/rotblauer/catride/params"
)

// WebDaemon serves the HTTP control and ingest API for one Tracker.
type WebDaemon struct {
	Config *params.WebDaemonConfig

	tracker        *app.Tracker
	logger         *slog.Logger
	started        time.Time
	melodyInstance *melody.Melody
	unsubscribe    func()
}

func NewWebDaemon(config *params.WebDaemonConfig, tracker *app.Tracker) *WebDaemon {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = params.DefaultMaxBodyBytes
	}
	return &WebDaemon{
		Config:  config,
		tracker: tracker,
		logger:  slog.With("d", "web"),
		started: time.Now(),
	}
}

// Run listens on the configured address and serves until ctx is done,
// then shuts the server down gracefully.
func (s *WebDaemon) Run(ctx context.Context) error {
	ln, err := net.Listen(s.Config.Network, s.Config.Address)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	defer s.closeSocket()

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web daemon", "network", s.Config.Network, "address", ln.Addr().String())
		errs <- server.Serve(ln)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("Shutting down web daemon")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()

	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)

	// Websocket clients get every waypoint and stats update.
	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.melodyInstance.HandleRequest(w, r); err != nil {
			s.logger.Warn("Websocket request failed", "error", err)
		}
	})

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/stats").HandlerFunc(s.handleGetStats).Methods(http.MethodGet)
	apiJSONRoutes.Path("/last").HandlerFunc(s.handleLast).Methods(http.MethodGet)
	apiJSONRoutes.Path("/waypoints").HandlerFunc(s.handleWaypoints).Methods(http.MethodGet)

	authenticatedAPIRoutes := apiJSONRoutes.NewRoute().Subrouter()
	authenticatedAPIRoutes.Use(s.tokenAuthenticationMiddleware)

	authenticatedAPIRoutes.Path("/session/start").HandlerFunc(s.handleStart).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/session/stop").HandlerFunc(s.handleStop).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/stats").HandlerFunc(s.handleClearStats).Methods(http.MethodDelete)
	authenticatedAPIRoutes.Path("/fixes").HandlerFunc(s.handleFixes).Methods(http.MethodPost)
	authenticatedAPIRoutes.Path("/motion").HandlerFunc(s.handleMotion).Methods(http.MethodPost)

	return router
}
