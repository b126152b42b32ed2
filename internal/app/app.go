package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"covidcli/internal/acquisition"
	"covidcli/internal/config"
	apperrors "covidcli/internal/errors"
	"covidcli/internal/exporter"
	"covidcli/internal/infrastructure"
	custommw "covidcli/internal/middleware"
	"covidcli/internal/services"
	httphandlers "covidcli/internal/transport/http"
	"covidcli/internal/websocket"
	"covidcli/pkg/contracts"
)

// Application wires configuration, acquisition, services and the HTTP server
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.DatasetMetrics
	Source        *acquisition.Source
	Exporter      *exporter.SliceExporter
	Dataset       *services.DatasetService
	Health        *services.HealthService
	Events        *websocket.Hub
	ErrorHandler  *apperrors.ErrorHandler
	Router        *chi.Mux
	Server        *http.Server

	serverErr chan error
	warm      sync.WaitGroup
}

// Option customizes NewApplication
type Option func(*Application)

// WithLogger replaces the process-wide logger built from cfg.Logging
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) {
		a.Logger = logger
	}
}

// NewApplication creates a new application instance with dependency injection
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	app := &Application{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	app.Paths = paths

	if app.Logger == nil {
		logging := cfg.Logging
		if logging.FilePath != "" && !filepath.IsAbs(logging.FilePath) {
			logging.FilePath = filepath.Join(paths.BaseDir, logging.FilePath)
		}
		logger, err := infrastructure.InitializeLogger(logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		app.Logger = logger
	}

	app.Logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(app.Logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), app.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	app.OTelProviders = otelProviders

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the acquisition source and the services on top of it
func (a *Application) initializeServices() error {
	metrics, err := infrastructure.CreateDatasetMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create dataset metrics: %w", err)
	}
	a.Metrics = metrics

	a.Source = acquisition.NewSourceFromConfig(a.Config, a.Paths, a.Logger)
	a.Exporter = exporter.NewSliceExporter(a.Paths, a.Logger)
	a.Events = websocket.NewHub(a.Logger)

	a.Dataset = services.NewDatasetService(a.Source, a.Logger,
		services.WithThresholds(a.Config.Transform.Thresholds),
		services.WithTracer(a.OTelProviders.Tracer),
		services.WithMetrics(metrics),
		services.WithExporter(a.Exporter),
		services.WithNotifier(a.Events),
	)
	a.Health = services.NewHealthService(contracts.Version, a.Paths, a.Source, a.Logger)
	a.ErrorHandler = apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	a.Logger.Debug("Services initialized",
		slog.Any("thresholds", a.Config.Transform.Thresholds),
		slog.String("source_url", a.Config.Source.URL))
	return nil
}

// setupRouter configures routes and middleware.
// Order: RequestID, RealIP, OTel, Logger, Recoverer, SecurityHeaders, RateLimit.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(a.ErrorHandler.Recoverer)
	r.Use(custommw.SecurityHeaders)
	r.Use(custommw.StripSlashes)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	// Scrapes are not rate limited
	r.Method(http.MethodGet, "/metrics", httphandlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	r.Group(func(r chi.Router) {
		if a.Config.Server.RateLimit.Enabled {
			r.Use(custommw.NewRateLimiter(a.Config.Server.RateLimit, a.ErrorHandler, a.Logger).Handler)
		}
		a.setupAPIRoutes(r)
	})

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	health := httphandlers.NewHealthHandler(a.Health, a.Logger)
	dataset := httphandlers.NewDatasetHandler(a.Dataset, a.Logger, a.ErrorHandler)
	events := websocket.NewHandler(a.Events, a.Logger, a.ErrorHandler)

	r.Route("/api/"+contracts.APIVersion, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Mount("/health", health.Routes())
		r.Get("/version", health.Version)
		r.Method(http.MethodGet, "/events", events)
		r.Mount("/", dataset.Routes())
	})
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

// Start starts the HTTP server in the background and warms the dataset.
// Listen errors are reported by Wait.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Events.Start()

	a.serverErr = make(chan error, 1)
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			a.serverErr <- err
		}
		close(a.serverErr)
	}()

	a.warm.Add(1)
	go func() {
		defer a.warm.Done()
		a.warmDataset(ctx)
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// warmDataset loads the dataset once so the first request does not pay for
// the download. Failures are logged; requests retry the load.
func (a *Application) warmDataset(ctx context.Context) {
	snap, err := a.Dataset.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.Logger.WarnContext(ctx, "Initial dataset load failed", slog.String("error", err.Error()))
		}
		return
	}
	a.Logger.InfoContext(ctx, "Dataset ready",
		slog.Int("rows", len(snap.Records)),
		slog.Bool("stale", snap.Stale),
		slog.String("source_date", snap.SourceDate.Format("2006-01-02")))
}

// Wait blocks until ctx is done or the server fails
func (a *Application) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-a.serverErr:
		if ok && err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked connections
	a.Events.Stop()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	a.warm.Wait()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run serves until SIGINT, SIGTERM or a server failure, then shuts down
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	waitErr := a.Wait(ctx)
	if ctx.Err() != nil {
		a.Logger.Info("Received interrupt signal")
	}

	// Shutdown runs on a fresh context; ctx is already cancelled here
	if err := a.Stop(context.Background()); err != nil {
		return err
	}
	return waitErr
}

// Close releases telemetry and log resources for short-lived commands
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// performStartupHealthCheck verifies the working directories are writable
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	directories := map[string]string{
		"Data":    a.Paths.DataDir,
		"Inbox":   a.Paths.InboxDir,
		"Reports": a.Paths.ReportsDir,
		"Logs":    a.Paths.LogsDir,
	}

	for name, dir := range directories {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
			continue
		}
		os.Remove(testFile)
	}

	if a.Config.Source.URL == "" {
		a.Logger.InfoContext(ctx, "No source URL configured, the dataset is read from the inbox only",
			slog.String("inbox", a.Paths.InboxDir))
	}
	if !config.FileExists(a.Paths.DataFile) {
		a.Logger.InfoContext(ctx, "Dataset file not present yet",
			slog.String("path", a.Paths.DataFile))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed",
		slog.Duration("max_age", a.Config.Source.MaxAge),
		slog.Time("checked_at", time.Now()))
	return nil
}
