package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/portal/internal/config"
	"github.com/ehr/portal/internal/domain/clinical"
	"github.com/ehr/portal/internal/domain/diagnostics"
	"github.com/ehr/portal/internal/domain/identity"
	"github.com/ehr/portal/internal/domain/immunization"
	"github.com/ehr/portal/internal/domain/medication"
	"github.com/ehr/portal/internal/domain/portal"
	"github.com/ehr/portal/internal/platform/auth"
	"github.com/ehr/portal/internal/platform/blobstore"
	"github.com/ehr/portal/internal/platform/db"
	"github.com/ehr/portal/internal/platform/events"
	"github.com/ehr/portal/internal/platform/middleware"
	"github.com/ehr/portal/internal/platform/notice"
	"github.com/ehr/portal/internal/platform/telemetry"
	"github.com/ehr/portal/migrations"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

const (
	apiPrefix       = "/api/v1"
	labReportUpload = apiPrefix + "/lab-reports"
	sessionEvents   = apiPrefix + "/auth/events"
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	bcryptCost      = 12
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ehr-portal",
		Short: "EHR portal server for doctors and patients",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ehr-portal", version)
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
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closePool, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

// openMigrator reads migrations from MIGRATIONS_DIR when set, otherwise from
// the files embedded in the binary.
func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationFiles(cfg.MigrationsDir)), pool.Close, nil
}

func migrationFiles(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newBlobStore returns the lab report store selected by STORAGE_DRIVER.
func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.StorageDriver != "minio" {
		return blobstore.NewMemoryStore(), nil
	}
	client, err := blobstore.NewMinioClient(blobstore.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	store := blobstore.NewMinioStore(client, cfg.MinioBucket)
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// newRevocationStore uses Redis when REDIS_URL is set. Without it signed-out
// tokens are only remembered by this process.
func newRevocationStore(cfg *config.Config) (auth.RevocationStore, func(ctx context.Context) error, error) {
	if cfg.RedisURL == "" {
		return auth.NewMemoryRevocationStore(), func(context.Context) error { return nil }, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	store := auth.NewRedisRevocationStore(redis.NewClient(opts))
	return store, store.Ping, nil
}

// logSessionEvents writes every session change to the log until the
// subscription closes.
func logSessionEvents(sub *events.Subscription, logger zerolog.Logger) {
	for ev := range sub.C {
		logger.Info().
			Str("event", ev.Type).
			Str("account_id", ev.AccountID).
			Str("role", ev.Role).
			Msg("session event")
	}
}

func newEcho(cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Metrics, sessions auth.SessionConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = notice.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(middleware.BodyLimitConfig{
		Default: cfg.BodyLimit,
		// multipart framing on top of the file itself
		Overrides: map[string]string{labReportUpload: fmt.Sprint(cfg.LabReportMaxBytes + 1<<20)},
	}))
	e.Use(middleware.RequestTimeout(requestTimeout, sessionEvents, labReportUpload))
	e.Use(auth.SessionMiddleware(sessions))
	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	loc, _ := cfg.Location()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	revocations, pingRevocations, err := newRevocationStore(cfg)
	if err != nil {
		return err
	}
	store, err := newBlobStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open lab report storage")
		return err
	}
	logger.Info().Str("driver", cfg.StorageDriver).Msg("lab report storage ready")

	hub := events.NewHub()
	sub := hub.Subscribe()
	defer sub.Close()
	go logSessionEvents(sub, logger)

	metrics := telemetry.NewMetrics()
	tokens := auth.NewTokenIssuer([]byte(cfg.SessionSecret), cfg.SessionTTL)

	e := newEcho(cfg, logger, metrics, auth.SessionConfig{
		Tokens:      tokens,
		Revocations: revocations,
		CookieName:  cfg.SessionCookie,
	})

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/ready", db.ReadinessHandler(
		db.PoolCheck(pool),
		db.Check{Name: "sessions", Probe: pingRevocations},
		db.Check{Name: "storage", Probe: store.Ping},
	))
	e.GET("/metrics", metrics.Handler())

	apiV1 := e.Group(apiPrefix)
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           cfg.RateLimitIdleTTL,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.Audit(logger))

	// Identity domain
	identitySvc := identity.NewService(identity.ServiceDeps{
		Accounts:    identity.NewAccountRepo(pool),
		Patients:    identity.NewPatientRepo(pool),
		Doctors:     identity.NewDoctorRepo(pool),
		Tx:          db.NewTxRunner(pool),
		Hasher:      auth.NewPasswordHasher(bcryptCost),
		Tokens:      tokens,
		Revocations: revocations,
		Hub:         hub,
	})
	identity.NewHandler(identitySvc, identity.HandlerConfig{
		CookieName:   cfg.SessionCookie,
		SecureCookie: cfg.IsProduction(),
		Observer:     metrics,
	}).RegisterRoutes(apiV1)
	events.NewWebSocketHandler(hub, cfg.CORSOrigins, logger).RegisterRoutes(apiV1)

	// Record domains
	clinicalSvc := clinical.NewService(clinical.NewDiagnosisRepoPG(pool), identitySvc)
	clinical.NewHandler(clinicalSvc, identitySvc).RegisterRoutes(apiV1)

	medicationSvc := medication.NewService(medication.NewPrescriptionRepoPG(pool), identitySvc, loc)
	medication.NewHandler(medicationSvc, identitySvc).RegisterRoutes(apiV1)

	immunizationSvc := immunization.NewService(immunization.NewVaccinationRepoPG(pool), identitySvc, loc)
	immunization.NewHandler(immunizationSvc, identitySvc).RegisterRoutes(apiV1)

	diagnosticsSvc := diagnostics.NewService(diagnostics.NewLabReportRepoPG(pool), store, identitySvc, diagnostics.ServiceConfig{
		MaxBytes: cfg.LabReportMaxBytes,
		Observer: metrics,
	})
	diagnostics.NewHandler(diagnosticsSvc, identitySvc).RegisterRoutes(apiV1)

	// Dashboards, profiles and pages
	portalSvc := portal.NewService(portal.ServiceDeps{
		Profiles:      identitySvc,
		Diagnoses:     clinicalSvc,
		Prescriptions: medicationSvc,
		LabReports:    diagnosticsSvc,
		Appointments:  portal.NewAppointmentRepoPG(pool),
		Settings:      portal.NewSettingsRepoPG(pool),
		Location:      loc,
	})
	portal.NewHandler(portalSvc, identitySvc).RegisterRoutes(apiV1)
	portal.NewPages(portalSvc, portal.PagesConfig{
		LabReportMaxBytes: cfg.LabReportMaxBytes,
		Observer:          metrics,
	}).Register(e)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
