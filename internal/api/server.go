package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apiHandlers "github.com/chart-proxy/internal/api/handlers"
	"github.com/chart-proxy/pkg/config"
	"github.com/chart-proxy/pkg/logger"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server

	chartHandler *apiHandlers.ChartHandler
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, logger *logrus.Logger, chartHandler *apiHandlers.ChartHandler) *Server {
	s := &Server{
		cfg:          cfg,
		logger:       logger,
		chartHandler: chartHandler,
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(logger.Middleware(s.logger))
	s.router.Use(s.recoveryMiddleware)

	s.chartHandler.RegisterRoutes(s.router)

	// router.Use middlewares only run for matched routes
	s.router.NotFoundHandler = logger.Middleware(s.logger)(http.HandlerFunc(notFound))
	s.router.MethodNotAllowedHandler = s.router.NotFoundHandler

	// CORS wraps the router so preflights and unmatched paths get the headers too
	s.handler = handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
	)(s.router)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		if strings.Contains(err.Error(), "address already in use") {
			return fmt.Errorf("port %d is already in use, pick another with --port", s.cfg.Server.Port)
		}
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.FromContext(r.Context(), s.logger).WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("Not Found"))
}
