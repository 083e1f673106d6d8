package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medivault/medivault/internal/config"
	"github.com/medivault/medivault/internal/domain/access"
	"github.com/medivault/medivault/internal/domain/dashboard"
	"github.com/medivault/medivault/internal/domain/identity"
	"github.com/medivault/medivault/internal/domain/medication"
	"github.com/medivault/medivault/internal/domain/records"
	"github.com/medivault/medivault/internal/domain/scheduling"
	"github.com/medivault/medivault/internal/platform/auth"
	"github.com/medivault/medivault/internal/platform/db"
	"github.com/medivault/medivault/internal/platform/middleware"
	"github.com/medivault/medivault/internal/platform/notification"
	"github.com/medivault/medivault/internal/platform/reminder"
)

// dueReminderSource adapts the medication service to the reminder worker's
// source interface, avoiding a dependency from the worker on the domain types.
type dueReminderSource struct {
	svc *medication.Service
}

func (s *dueReminderSource) DueAt(ctx context.Context, hhmm string) ([]reminder.Due, error) {
	items, err := s.svc.DueAt(ctx, hhmm)
	if err != nil {
		return nil, err
	}
	due := make([]reminder.Due, 0, len(items))
	for _, d := range items {
		due = append(due, reminder.Due{
			ReminderID: d.ReminderID.String(),
			Phone:      d.Phone,
			Medicine:   d.Medicine,
			Dosage:     d.Dosage,
			Time:       d.Time,
		})
	}
	return due, nil
}

// userNotifier resolves a user's email and delivers a templated
// notification. Failures are logged; callers never see them.
type userNotifier struct {
	users  *identity.Service
	mgr    *notification.Manager
	logger zerolog.Logger
}

func (n *userNotifier) Notify(ctx context.Context, templateID string, userID uuid.UUID, data map[string]string) {
	u, err := n.users.GetUser(ctx, userID)
	if err != nil {
		n.logger.Warn().Err(err).Str("template", templateID).Msg("notification recipient lookup failed")
		return
	}
	if _, err := n.mgr.SendFromTemplate(ctx, templateID, data, u.Email); err != nil {
		n.logger.Warn().Err(err).Str("template", templateID).Msg("notification send failed")
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "medivault-server",
		Short: "MediVault medical records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Token issuing and revocation
	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL())
	revoked := auth.NewTokenRevocationStore()
	defer revoked.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// API groups
	api := e.Group("/api")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))

	protected := api.Group("", auth.Middleware(issuer, revoked))

	// Notifications
	tpl := notification.NewTemplateEngine()
	notifier := notification.NewManager(
		&notification.LogEmailSender{Logger: logger},
		&notification.LogSMSSender{Logger: logger},
		tpl,
	)

	// -- Domain wiring --

	identitySvc := identity.NewService(identity.NewRepoPG(pool))
	identityHandler := identity.NewHandler(identitySvc, issuer, revoked)
	identityHandler.RegisterRoutes(api, protected)

	userNotify := &userNotifier{users: identitySvc, mgr: notifier, logger: logger}

	accessSvc := access.NewService(access.NewRequestRepoPG(pool), access.NewGrantRepoPG(pool), identitySvc, userNotify)
	accessHandler := access.NewHandler(accessSvc)
	accessHandler.RegisterRoutes(protected)

	recordsSvc := records.NewService(records.NewRepoPG(pool))
	recordsHandler := records.NewHandler(recordsSvc)
	recordsHandler.RegisterRoutes(protected)

	schedulingSvc := scheduling.NewService(scheduling.NewRepoPG(pool), identitySvc, userNotify)
	schedulingHandler := scheduling.NewHandler(schedulingSvc)
	schedulingHandler.RegisterRoutes(protected)

	medicationSvc := medication.NewService(
		medication.NewPrescriptionRepoPG(pool),
		medication.NewReminderRepoPG(pool),
		identitySvc,
		schedulingSvc,
	)
	medicationHandler := medication.NewHandler(medicationSvc)
	medicationHandler.RegisterRoutes(protected)

	dashboardSvc := dashboard.NewService(identitySvc, recordsSvc, medicationSvc, schedulingSvc, accessSvc)
	dashboardHandler := dashboard.NewHandler(dashboardSvc)
	dashboardHandler.RegisterRoutes(protected)

	// Medication reminder worker
	var worker *reminder.Worker
	if cfg.RemindersOn {
		worker = reminder.NewWorker(&dueReminderSource{svc: medicationSvc}, notifier, logger)
		worker.Start()
		logger.Info().Msg("medication reminder worker started")
	}

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	if worker != nil {
		worker.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	return nil
}
