package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"

	"github.com/debugops/debugops/internal/analyzer"
	"github.com/debugops/debugops/internal/config"
	"github.com/debugops/debugops/internal/database"
	"github.com/debugops/debugops/internal/handlers"
	"github.com/debugops/debugops/internal/incidents"
	"github.com/debugops/debugops/internal/jobs"
	"github.com/debugops/debugops/internal/middleware"
	"github.com/debugops/debugops/internal/services"
	slackutil "github.com/debugops/debugops/internal/slack"
	"github.com/debugops/debugops/internal/telemetry"
	"github.com/debugops/debugops/internal/templates"
)

const (
	shutdownTimeout  = 15 * time.Second
	telemetryFlush   = 2 * time.Second
	recoveryInterval = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, live feed, Slack notifier and recovery monitor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// openStore returns the store DATABASE_URL selects. Persistent stores are
// migrated on open.
func openStore(cfg *config.Config) (incidents.Store, error) {
	if cfg.StoreKind() == config.StoreMemory {
		return incidents.NewMemoryStore(nil), nil
	}

	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return database.NewGormStore(db, nil), nil
}

func runServe(ctx context.Context) error {
	cleanup := initLogging()
	defer cleanup()

	zap.S().Infof("Starting DebugOps %s...", Version)
	zap.S().Infof("JWT secret loaded from %s", cfg.JWTSecretSource)

	if cfg.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is not set")
	}
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	reporter, err := telemetry.New(telemetry.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     Version,
	})
	if err != nil {
		return err
	}
	defer reporter.Flush(telemetryFlush)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	zap.S().Infof("Incident store: %s", cfg.StoreKind())

	client, err := analyzer.New(ctx, analyzer.Config{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		return err
	}
	configured := analyzer.IsConfigured(client)
	if !configured {
		zap.S().Warnf("LLM_API_KEY is not set; analysis runs will fail")
	}
	zap.S().Infof("Analysis engine: %s", client.Name())

	tmpl, err := templates.Load(cfg.TemplatesFile)
	if err != nil {
		return err
	}

	// ========== Services ==========

	analysis := services.NewAnalysisService(store, client, reporter, services.AnalysisConfig{
		DefaultTimeout: cfg.AnalysisTimeout,
		DeployDelay:    cfg.DeployDelay,
	})
	settings := services.NewSettingsService(services.Settings{
		AutoAnalyze:            cfg.AutoAnalyze,
		RefreshIntervalSeconds: cfg.RefreshIntervalSeconds,
		AnalysisTimeoutSeconds: int(cfg.AnalysisTimeout / time.Second),
		LLMProvider:            cfg.LLMProvider,
		LLMEngine:              client.Name(),
		LLMConfigured:          configured,
		TelemetryEnabled:       reporter.Enabled(),
	})
	incidentService := services.NewIncidentService(store, analysis, settings, tmpl, reporter)
	reportService := services.NewReportService(store)

	// ========== Subscribers ==========

	hub := handlers.NewLiveHub(Version)
	defer store.Subscribe(hub.Handle)()

	var notifier *slackutil.Notifier
	if cfg.SlackEnabled() {
		notifier = slackutil.NewNotifier(cfg.SlackBotToken, cfg.SlackChannel)
		defer store.Subscribe(notifier.Handle)()
	}

	monitor := jobs.NewRecoveryMonitor(store, analysis, cfg.StaleAnalysisAfter)

	// ========== HTTP ==========

	jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:           true,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: passwordHash,
		JWTSecret:         cfg.JWTSecret,
		JWTExpiryHours:    cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
		},
		QueryTokenPaths: []string{"/ws/live"},
	})
	zap.S().Infof("JWT authentication enabled for user: %s", cfg.AdminUsername)

	mux := http.NewServeMux()
	handlers.NewHTTPHandler(Version, cfg.StoreKind(), analysis.EngineName).SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuth).SetupRoutes(mux)
	handlers.NewAPIHandler(store, incidentService, analysis, reportService, settings).SetupRoutes(mux)
	hub.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handlers.Chain(mux, middleware.NewCORSMiddleware(cfg.CORSOrigins...), jwtAuth),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ========== Run ==========

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.S().Infof("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			zap.S().Warnf("Error shutting down HTTP server: %v", err)
		}
		// background runs reopen their incidents before the store closes
		analysis.Stop()
		return nil
	})

	g.Go(func() error {
		return hub.Run(gctx)
	})

	if notifier != nil {
		g.Go(func() error {
			if err := notifier.Run(gctx); err != nil {
				zap.S().Errorf("Slack notifier stopped: %v", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		monitor.Start(gctx, recoveryInterval)
		return nil
	})

	zap.S().Infof("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	zap.S().Infof("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	err = g.Wait()
	zap.S().Info("Shutdown complete")
	return err
}
