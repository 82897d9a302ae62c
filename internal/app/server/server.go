package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hrkpi/internal/domain/audit"
	"hrkpi/internal/domain/auth"
	"hrkpi/internal/domain/kpi"
	"hrkpi/internal/domain/notifications"
	"hrkpi/internal/domain/org"
	"hrkpi/internal/domain/task"
	"hrkpi/internal/platform/config"
	"hrkpi/internal/platform/crypto"
	"hrkpi/internal/platform/db"
	"hrkpi/internal/platform/email"
	"hrkpi/internal/platform/jobs"
	"hrkpi/internal/platform/metrics"
	"hrkpi/internal/platform/querier"
	"hrkpi/internal/platform/storage"
	audithandler "hrkpi/internal/transport/http/handlers/audit"
	authhandler "hrkpi/internal/transport/http/handlers/auth"
	kpihandler "hrkpi/internal/transport/http/handlers/kpi"
	notificationshandler "hrkpi/internal/transport/http/handlers/notifications"
	orghandler "hrkpi/internal/transport/http/handlers/org"
	taskshandler "hrkpi/internal/transport/http/handlers/tasks"
	"hrkpi/internal/transport/http/middleware"
)

const shutdownTimeout = 15 * time.Second

// Services is everything the HTTP layer needs. It is built once at startup.
type Services struct {
	Auth          *auth.Service
	Org           *org.Service
	KPI           *kpi.Service
	Tasks         *task.Service
	Notifications *notifications.Service
	Audit         *audit.Service
	Metrics       *metrics.Collector
	Perms         middleware.PermissionStore
	// Jobs runs deferred work such as notification fan-out. Nil runs it inline.
	Jobs *jobs.Service
}

// NewServices wires the domain services on top of one database handle. The
// sealer encrypts attachments and MFA secrets.
func NewServices(cfg config.Config, q querier.Querier, blobs storage.Blob, sealer auth.Sealer, mailer email.Mailer) *Services {
	return &Services{
		Auth: auth.NewService(auth.NewStore(q), mailer, auth.Options{
			Secret:          cfg.JWTSecret,
			AccessTTL:       cfg.AccessTokenTTL,
			RefreshTTL:      cfg.RefreshTokenTTL,
			ResetTTL:        cfg.ResetTokenTTL,
			BaseURL:         cfg.BaseURL,
			EmailFrom:       cfg.EmailFrom,
			AllowSelfSignup: cfg.AllowSelfSignup,
			Sealer:          sealer,
		}),
		Org:           org.NewService(org.NewStore(q)),
		KPI:           kpi.NewService(kpi.NewStore(q)),
		Tasks:         task.NewService(task.NewStore(q), blobs, sealer, cfg.MaxUploadBytes),
		Notifications: notifications.New(notifications.NewStore(q), mailer, cfg.EmailEnabled, cfg.EmailFrom),
		Audit:         audit.New(q),
		Metrics:       metrics.New(),
		Perms:         auth.Policy{},
	}
}

// NewRouter builds the full HTTP surface. ready backs /readyz.
func NewRouter(cfg config.Config, svc *Services, ready func(context.Context) error) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(svc.Metrics))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, svc.Auth))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if ready != nil {
			if err := ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4")
			if err := svc.Metrics.WritePrometheus(w); err != nil {
				slog.Warn("metrics write failed", "err", err)
			}
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		authhandler.NewHandler(svc.Auth, svc.Perms, svc.Audit, svc.Metrics).RegisterRoutes(r)
		orghandler.NewHandler(svc.Org, svc.Perms, svc.Audit).RegisterRoutes(r)
		kpihandler.NewHandler(svc.KPI, svc.Org, svc.Perms, svc.Notifications, svc.Audit, svc.Metrics, svc.Jobs).RegisterRoutes(r)
		taskshandler.NewHandler(svc.Tasks, svc.Perms, svc.Notifications, svc.Audit, svc.Metrics, cfg.MaxUploadBytes).RegisterRoutes(r)
		notificationshandler.NewHandler(svc.Notifications).RegisterRoutes(r)
		audithandler.NewHandler(svc.Audit, svc.Perms).RegisterRoutes(r)
	})

	return router
}

func setupLogger(cfg config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.Environment, "development") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// App is a fully wired server: pool, services, background jobs and router.
type App struct {
	Config   config.Config
	DB       *pgxpool.Pool
	Services *Services
	Router   http.Handler

	jobs *jobs.Service
}

// New connects to the database, applies migrations and the seed when enabled,
// and starts the background jobs. Close releases everything New acquired.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed failed: %w", err)
		}
	}

	blobs, err := storage.New(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage init failed: %w", err)
	}
	sealer, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("encryption init failed: %w", err)
	}
	if !sealer.Configured() {
		slog.Warn("DATA_ENCRYPTION_KEY not set, attachments are stored unencrypted")
	}

	svc := NewServices(cfg, pool, blobs, sealer, email.New(cfg))
	runner := jobs.New(pool, svc.Auth, cfg.TokenPurgeInterval)
	runner.Events = svc.Metrics
	runner.Start(context.Background())
	svc.Jobs = runner

	return &App{
		Config:   cfg,
		DB:       pool,
		Services: svc,
		Router:   NewRouter(cfg, svc, pool.Ping),
		jobs:     runner,
	}, nil
}

func (a *App) Close() {
	a.jobs.Stop()
	a.DB.Close()
}

// Run starts the API and blocks until SIGINT or SIGTERM.
func Run() error {
	cfg := config.Load()
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("KPI server listening", "addr", cfg.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
