package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"vidgate/internal/config"
	apierrors "vidgate/internal/errors"
	"vidgate/internal/infrastructure"
	"vidgate/internal/license"
	customMiddleware "vidgate/internal/middleware"
	"vidgate/internal/store"
	handlers "vidgate/internal/transport/http"
	"vidgate/pkg/contracts"
)

// Application represents the license authority server container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Services      *ServiceContainer

	clock     func() time.Time
	seedStore store.Store

	mu       sync.Mutex
	listener net.Listener
	stopOnce sync.Once
	stopErr  error
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Store     store.Store
	Issuer    license.TokenIssuer
	Authority *license.Authority
}

// Option customizes an Application before its services are built.
type Option func(*Application)

// WithClock replaces time.Now for the authority and the session gate.
func WithClock(now func() time.Time) Option {
	return func(a *Application) { a.clock = now }
}

// WithStore uses s instead of the backend named in the configuration.
func WithStore(s store.Store) Option {
	return func(a *Application) { a.seedStore = s }
}

// NewApplication creates a new application instance with dependency injection.
// providers may be nil, in which case telemetry records nothing.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("application needs a configuration")
	}
	if providers == nil {
		providers = infrastructure.NoopProviders(logger)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}

	logger.InfoContext(ctx, "application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("store", cfg.Store.Backend),
		slog.String("concurrency", cfg.Server.Concurrency),
		slog.String("token_mode", cfg.Token.Mode),
	)

	if err := app.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the store, the token issuer and the authority
func (a *Application) initializeServices(ctx context.Context) error {
	backend := a.seedStore
	if backend == nil {
		s, err := store.New(ctx, a.Config.Store, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to open license store: %w", err)
		}
		backend = s
	}

	telemetry, err := store.NewTelemetry(a.OTelProviders.Tracer, a.OTelProviders.Meter, a.Config.Store.Backend)
	if err != nil {
		return fmt.Errorf("failed to initialize store metrics: %w", err)
	}
	backend = telemetry.Wrap(backend)

	issuer, err := license.NewIssuer(a.Config.Token)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	metrics, err := license.InitializeLicenseMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to initialize license metrics: %w", err)
	}

	authority, err := license.NewAuthority(license.Options{
		Store:           backend,
		Issuer:          issuer,
		Concurrency:     a.Config.Server.Concurrency,
		ConflictRetries: a.Config.Server.ConflictRetries,
		Clock:           a.clock,
		Logger:          a.Logger,
		Metrics:         metrics,
		Tracer:          a.OTelProviders.Tracer,
	})
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to create license authority: %w", err)
	}

	a.Services = &ServiceContainer{
		Store:     backend,
		Issuer:    issuer,
		Authority: authority,
	}
	return nil
}

// setupRouter wires middleware and routes.
// Ordering: RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}

	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apierrors.RecoveryMiddleware(errorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	a.setupAPIRoutes(r)
	a.setupEngineRoutes(r)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	licenseHandler := handlers.NewLicenseHandler(
		a.Services.Authority,
		handlers.CookieConfigFrom(a.Config.Token),
		a.Config.Server.Language,
		a.Config.Server.RequestTimeout,
		a.Logger,
	)
	healthHandler := handlers.NewHealthHandler(a.Services.Authority, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/version", healthHandler.Version)

		r.Mount("/license", licenseHandler.Routes())
	})
}

// setupEngineRoutes serves the processing engine only to holders of a valid
// session cookie.
func (a *Application) setupEngineRoutes(r chi.Router) {
	gate := customMiddleware.NewSessionGate(a.Services.Issuer, a.Config.Token.CookieName, a.clock, a.Logger)
	engine := http.StripPrefix("/engine", handlers.EngineFiles(a.Config.Server.EngineDir))

	r.With(gate.Handler).Handle("/engine/*", engine)
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Addr returns the bound listen address, or nil before Start.
func (a *Application) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Start binds the listen address and probes the license store. A failing
// probe is logged, not fatal: the store may come up after the server.
func (a *Application) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level))
	return nil
}

// serve blocks until the server is shut down
func (a *Application) serve() error {
	a.mu.Lock()
	ln := a.listener
	a.mu.Unlock()

	if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the application. It is safe to call more than once.
func (a *Application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.Logger.InfoContext(ctx, "Shutting down application")

		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
		a.mu.Lock()
		if a.listener != nil {
			// Already closed if Serve ran.
			a.listener.Close()
		}
		a.mu.Unlock()

		if err := a.Services.Authority.Close(); err != nil {
			a.Logger.ErrorContext(ctx, "Error closing license store", slog.String("error", err.Error()))
			errs = append(errs, err)
		}

		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}

		a.Logger.InfoContext(ctx, "Application shutdown complete")
		a.stopErr = errors.Join(errs...)
	})
	return a.stopErr
}

// Run starts the application and serves until ctx is cancelled, SIGINT or
// SIGTERM arrives, or the server fails.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.serve)
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(context.Background(), "Received shutdown signal")
		return a.Stop(context.Background())
	})
	return g.Wait()
}

// performStartupHealthCheck performs one license store round trip
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.Services.Authority.Ready(ctx); err != nil {
		return fmt.Errorf("license store not reachable (%s): %w", apierrors.Code(err), err)
	}
	return nil
}
