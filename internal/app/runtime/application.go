package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/wishbank/wishbank/internal/app"
	"github.com/wishbank/wishbank/internal/app/httpapi"
	"github.com/wishbank/wishbank/internal/app/services/payments"
	"github.com/wishbank/wishbank/internal/app/services/retention"
	"github.com/wishbank/wishbank/internal/app/storage/postgres"
	redisstore "github.com/wishbank/wishbank/internal/app/storage/redis"
	"github.com/wishbank/wishbank/internal/config"
	"github.com/wishbank/wishbank/internal/httputil"
	"github.com/wishbank/wishbank/internal/middleware"
	"github.com/wishbank/wishbank/internal/platform/migrations"
	"github.com/wishbank/wishbank/pkg/logger"
)

const limiterCleanupSchedule = "@every 15m"

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	db         *sql.DB
	redis      *goredis.Client
}

// NewApplication loads configuration from the environment and builds the
// application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New(ctx, cfg)
}

// New builds the application from cfg. Without DATABASE_URL the service
// runs on the in-memory store.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: "wishbank",
	})

	a := &Application{cfg: cfg, log: log}
	stores, err := a.buildStores(ctx)
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	var provider payments.Provider
	if cfg.Stripe.SecretKey != "" || cfg.Stripe.WebhookSecret != "" {
		provider = payments.NewStripeProvider(payments.StripeConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			BaseURL:       cfg.Stripe.APIBaseURL,
		})
	} else {
		log.Warn("STRIPE_SECRET_KEY not set; payment endpoints disabled")
	}

	application, err := app.New(stores, app.Options{
		Provider:          provider,
		Bundles:           cfg.Bundles,
		WebhookEventTypes: cfg.Stripe.EventTypes(),
		RetentionSchedule: cfg.Retention.Schedule,
		EventRetention:    cfg.Retention.PaymentEventTTL,
	}, log)
	if err != nil {
		a.closeBackends()
		return nil, err
	}
	a.app = application

	var limiter *middleware.RateLimiter
	if cfg.HTTP.WishRateLimit > 0 {
		proxies, err := httputil.ParseTrustedProxies(cfg.HTTP.TrustedProxies())
		if err != nil {
			a.closeBackends()
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
		limiter = middleware.NewRateLimiter(cfg.HTTP.WishRateLimit, cfg.HTTP.WishRateBurst,
			httputil.ForwardedClientIP(proxies), log)
		idle := cfg.Retention.LimiterIdleWindow
		if err := application.Retention.AddJob(retention.Job{
			Name:     "ratelimit-cleanup",
			Schedule: limiterCleanupSchedule,
			Run: func(context.Context) {
				if removed := limiter.Cleanup(idle); removed > 0 {
					log.WithField("removed", removed).Debug("rate limiter buckets pruned")
				}
			},
		}); err != nil {
			a.closeBackends()
			return nil, err
		}
	}

	a.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: httpapi.NewHandler(application, httpapi.Options{
			WishLimiter: limiter,
			CORSOrigins: cfg.HTTP.CORSAllowedOrigins(),
		}, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return a, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts background services and the HTTP server, and blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the HTTP server and background services.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	a.closeBackends()
	return errors.Join(errs...)
}

func (a *Application) buildStores(ctx context.Context) (app.Stores, error) {
	var (
		stores app.Stores
		pg     *postgres.Store
	)

	if a.cfg.Database.URL == "" {
		a.log.Warn("DATABASE_URL not set; using in-memory store")
	} else {
		if a.cfg.Database.Migrate {
			if err := migrations.Up(a.cfg.Database.URL); err != nil {
				return stores, err
			}
		}
		db, err := openDatabase(ctx, a.cfg.Database)
		if err != nil {
			return stores, err
		}
		a.db = db
		pg = postgres.New(db)
		stores = app.Stores{Users: pg, Events: pg, Wishes: pg, Sequence: pg, Health: pg}
	}

	if a.cfg.Redis.URL != "" {
		client, err := redisstore.Open(ctx, a.cfg.Redis.URL)
		if err != nil {
			return stores, err
		}
		a.redis = client
		seq := redisstore.NewSequence(client, a.cfg.Redis.SequenceKey)
		if pg != nil {
			if err := seedSequence(ctx, pg, seq, a.log); err != nil {
				return stores, err
			}
		}
		stores.Sequence = seq
		a.log.Info("wish sequence backed by redis")
	}
	return stores, nil
}

type sequenceFloor interface {
	LastSequence(ctx context.Context) (int64, error)
}

type sequenceSeeder interface {
	Seed(ctx context.Context, floor int64) (int64, error)
}

// seedSequence lifts the Redis counter above every number the database has
// already handed out, so switching sequence backends never reissues one.
func seedSequence(ctx context.Context, src sequenceFloor, dst sequenceSeeder, log *logger.Logger) error {
	floor, err := src.LastSequence(ctx)
	if err != nil {
		return fmt.Errorf("read last wish sequence: %w", err)
	}
	current, err := dst.Seed(ctx, floor)
	if err != nil {
		return err
	}
	log.WithField("floor", floor).WithField("current", current).Info("redis wish sequence seeded")
	return nil
}

func (a *Application) closeBackends() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
