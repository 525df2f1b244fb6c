package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chart-proxy/internal/api"
	apiHandlers "github.com/chart-proxy/internal/api/handlers"
	"github.com/chart-proxy/internal/cache"
	"github.com/chart-proxy/internal/exchange"
	"github.com/chart-proxy/internal/messaging"
	"github.com/chart-proxy/internal/services"
	"github.com/chart-proxy/internal/session"
	"github.com/chart-proxy/internal/symbols"
	"github.com/chart-proxy/pkg/config"
	"github.com/chart-proxy/pkg/models"
	"github.com/sirupsen/logrus"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	logger *logrus.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Core components
	capital    *exchange.CapitalClient
	sessionMgr *session.Manager
	store      cache.Store
	natsClient *messaging.NATSClient
	resolver   *symbols.Resolver

	// Services
	marketData *services.MarketDataService
	charts     *services.ChartService
	search     *services.SearchService
	apiServer  *api.Server
}

// New creates a new application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Initialize initializes all application components
func (a *App) Initialize() error {
	if err := a.cfg.Capital.ValidateCredentials(); err != nil {
		a.logger.WithError(err).Warn("Upstream credentials incomplete, requests will fail until they are set")
	}

	if err := a.initializeCache(); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	a.initializeMessaging()

	a.initializeServices()

	a.initializeAPIServer()

	return nil
}

// Start starts the HTTP server in the background
func (a *App) Start() error {
	if a.apiServer == nil {
		return fmt.Errorf("application not initialized")
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.apiServer.Start(); err != nil {
			a.logger.WithError(err).Error("API server error")
			a.cancel()
		}
	}()

	return nil
}

// Done is closed when the application context is cancelled, including when
// the HTTP server fails
func (a *App) Done() <-chan struct{} {
	return a.ctx.Done()
}

// Stop gracefully stops the application
func (a *App) Stop() error {
	a.logger.Info("Stopping application...")

	a.stopServicesWithTimeout()

	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("All goroutines stopped")
	case <-time.After(3 * time.Second):
		a.logger.Warn("Timeout waiting for goroutines to finish")
	}

	if err := a.closeConnections(); err != nil {
		a.logger.WithError(err).Error("Error closing connections")
	}

	a.logger.Info("Application stopped successfully")
	return nil
}

// stopServicesWithTimeout stops each service with a timeout
func (a *App) stopServicesWithTimeout() {
	if a.apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Error("Error stopping API server")
		}
		cancel()
	}
}

// GetConfig returns the application configuration
func (a *App) GetConfig() *config.Config {
	return a.cfg
}

// Charts returns the chart service
func (a *App) Charts() *services.ChartService {
	return a.charts
}

// Search returns the search service
func (a *App) Search() *services.SearchService {
	return a.search
}

// Sessions returns the upstream session manager
func (a *App) Sessions() *session.Manager {
	return a.sessionMgr
}

// Private initialization methods

func (a *App) initializeCache() error {
	store, err := cache.New(a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.store = store

	a.logger.WithField("backend", a.cfg.Cache.Backend).Info("Resolver cache initialized")
	return nil
}

func (a *App) initializeMessaging() {
	if !a.cfg.NATS.Enabled {
		return
	}

	natsClient, err := messaging.NewNATSClient(&a.cfg.NATS, a.logger)
	if err != nil {
		a.logger.WithError(err).Warn("NATS unavailable, fetch events disabled")
		return
	}
	a.natsClient = natsClient
}

func (a *App) initializeServices() {
	a.capital = exchange.NewCapitalClient(&a.cfg.Capital, a.logger)
	a.sessionMgr = session.NewManager(a.capital, a.cfg.Capital.SessionTTL, a.logger)
	a.resolver = symbols.NewResolver(a.capital, a.store, a.cfg.Cache.ResolverTTL, a.logger)

	a.marketData = services.NewMarketDataService(
		a.sessionMgr,
		a.capital,
		a.resolver,
		a.cfg.Proxy.FetchTimeout,
		a.logger,
	)

	// a nil *NATSClient must not become a non-nil interface
	var publisher services.EventPublisher
	if a.natsClient != nil {
		publisher = a.natsClient
	}
	a.charts = services.NewChartService(a.marketData, publisher, a.cfg.Capital.Currency, a.cfg.Capital.ExchangeName, a.logger)
	a.search = services.NewSearchService(a.sessionMgr, a.capital, a.logger)
}

func (a *App) initializeAPIServer() {
	defaultRes := models.ParseResolution(a.cfg.Proxy.DefaultResolution, models.ResolutionDay)
	chartHandler := apiHandlers.NewChartHandler(a.charts, a.search, defaultRes, a.logger)
	a.apiServer = api.NewServer(a.cfg, a.logger, chartHandler)
}

func (a *App) closeConnections() error {
	var errs []error

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
		}
	}

	if a.natsClient != nil {
		if err := a.natsClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close NATS: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}

	return nil
}
