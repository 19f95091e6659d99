package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dandantas/tasyrunner/internal/automation"
	"github.com/dandantas/tasyrunner/internal/config"
	"github.com/dandantas/tasyrunner/internal/database"
	"github.com/dandantas/tasyrunner/internal/handler"
	"github.com/dandantas/tasyrunner/internal/items"
	"github.com/dandantas/tasyrunner/internal/model"
	"github.com/dandantas/tasyrunner/internal/notify"
	"github.com/dandantas/tasyrunner/internal/records"
	"github.com/dandantas/tasyrunner/internal/scheduler"
	"github.com/dandantas/tasyrunner/internal/service"
	"github.com/dandantas/tasyrunner/internal/webhook"
	"github.com/dandantas/tasyrunner/internal/worker"
	"github.com/dandantas/tasyrunner/pkg/middleware"
	"github.com/google/uuid"
)

const version = "1.0.0"

// ledgerBackend is a ledger that can also report its health
type ledgerBackend interface {
	service.Ledger
	scheduler.JobStore
	Ping(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting Tasy automation runner", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	owner := instanceID(cfg)

	// Ledger: MongoDB unless explicitly running in memory
	var ledger ledgerBackend
	var locker scheduler.Locker
	if cfg.LedgerBackend == "memory" {
		slog.Warn("Using in-memory job ledger, jobs will not survive a restart")
		ledger = database.NewMemoryLedger()
	} else {
		db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
		if err != nil {
			slog.Error("Failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := db.Disconnect(context.Background()); err != nil {
				slog.Error("Failed to disconnect from MongoDB", "error", err)
			}
		}()

		if err := database.CreateIndexes(ctx, db); err != nil {
			slog.Error("Failed to create indexes", "error", err)
			os.Exit(1)
		}

		ledger = database.NewJobRepository(db)
		locker = database.NewLockRepository(db)
	}

	// Browser automation
	locators, err := automation.LoadLocators(cfg.LocatorsFile)
	if err != nil {
		slog.Error("Failed to load UI locators", "error", err)
		os.Exit(1)
	}
	driver := automation.NewDriver(
		automation.ChromeLauncher{Headless: cfg.HeadlessMode, ExecPath: cfg.ChromePath},
		automation.Credentials{URL: cfg.TasyURL, Username: cfg.TasyUser, Password: cfg.TasyPassword},
		locators,
		automation.DefaultTimings(),
	)
	runners := service.NewRunnerFactory(driver,
		automation.NewBoletosFlow(cfg.MaxRetries),
		automation.NewOwnResourceFlow(cfg.TasyEstablishment),
	)

	// Runner slots shared by every job
	pool := worker.NewWorkerPool(cfg.WorkerPoolSize, cfg.WorkerPoolSize*cfg.ChunkCount*4)
	pool.Start()

	orchestrator := service.NewOrchestrator(ledger, pool, runners, buildNotifier(cfg), service.OrchestratorConfig{
		ChunkCount:        cfg.ChunkCount,
		Owner:             owner,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})
	jobService := service.NewJobService(ledger)

	// Close jobs abandoned by a previous process
	sweeper := scheduler.NewSweeper(scheduler.Config{
		Enabled:    cfg.SweeperEnabled,
		Schedule:   cfg.SweeperSchedule,
		StaleAfter: cfg.SweeperStaleAfter,
		LockTTL:    cfg.SweeperLockTTL,
		Owner:      owner,
	}, ledger, locker, orchestrator)
	if err := sweeper.Start(ctx); err != nil {
		slog.Error("Failed to start job sweeper", "error", err)
		os.Exit(1)
	}

	// Item decoders
	boletosDecoder, err := items.NewDecoder(items.Spec{IDPath: cfg.BoletosIDPath})
	if err != nil {
		slog.Error("Invalid boletos item path", "error", err)
		os.Exit(1)
	}
	recursoDecoder, err := items.NewDecoder(items.Spec{
		IDPath: cfg.RecursoIDPath,
		Metadata: map[string]string{
			"nm_paciente":    "$.nm_paciente",
			"nr_atendimento": "$.nr_atendimento",
		},
	})
	if err != nil {
		slog.Error("Invalid own-resource item path", "error", err)
		os.Exit(1)
	}

	// Optional ERP lookups
	var lookup handler.RecordLookup
	if cfg.OracleDSN != "" {
		oracle, err := records.Connect(ctx, cfg.OracleDSN)
		if err != nil {
			slog.Error("Failed to connect to Oracle, lookups disabled", "error", err)
		} else {
			defer oracle.Close()
			lookup = records.NewRepository(oracle)
		}
	}

	// Auth
	auth := service.NewAuthService(service.AuthConfig{
		Username:  cfg.AppUser,
		Password:  cfg.AppPassword,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.JWTTTL,
	})
	var tokens middleware.TokenValidator
	if cfg.AuthEnabled() {
		tokens = auth
	} else {
		slog.Warn("JWT_SECRET not set, API routes are not authenticated")
	}

	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	router := handler.NewRouter(
		handler.NewAuthHandler(auth),
		handler.NewAutomationHandler(orchestrator, map[model.JobType]handler.ItemDecoder{
			model.JobTypeBoletos:        boletosDecoder,
			model.JobTypeRecursoProprio: recursoDecoder,
		}),
		handler.NewJobHandler(jobService),
		handler.NewRecordsHandler(lookup),
		handler.NewHealthHandler(ledger, pool, version),
		tokens,
		corsConfig,
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort, "owner", owner)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting batches first
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Let running jobs finish; whatever is left is closed by the next sweep
	slog.Info("Waiting for running jobs...")
	if err := orchestrator.Wait(shutdownCtx); err != nil {
		slog.Warn("Shutdown timeout with jobs still running", "error", err)
	}
	pool.Stop()

	slog.Info("Stopping job sweeper...")
	sweeper.Stop(shutdownCtx)

	slog.Info("Tasy automation runner stopped")
}

// instanceID names this process in the ledger so the sweeper can recognize
// its own jobs after a restart
func instanceID(cfg *config.Config) string {
	if cfg.InstanceID != "" {
		return cfg.InstanceID
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	id := uuid.New().String()
	slog.Warn("Failed to get hostname, using UUID as instance ID", "owner", id)
	return id
}

// buildNotifier fans the job summary out to every configured channel
func buildNotifier(cfg *config.Config) service.Notifier {
	var channels notify.Multi

	if cfg.EmailEnabled() {
		sender := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPServer,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
		})
		channels = append(channels, notify.NewEmailNotifier(cfg.EmailFrom, cfg.EmailTo, sender))
	}

	if cfg.SummaryWebhookURL != "" {
		endpoint := webhook.Endpoint{URL: cfg.SummaryWebhookURL}
		endpoint.SetDefaults()
		channels = append(channels, webhook.NewNotifier(webhook.NewDispatcher(cfg.DefaultWebhookTimeout), endpoint))
	}

	if len(channels) == 0 {
		slog.Warn("No summary channel configured, job summaries are only logged")
		return nil
	}
	return channels
}
