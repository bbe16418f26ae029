// Package app assembles the registration workflow from configuration. Both
// the HTTP server and passctl build their dependencies here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventpass/internal/audit"
	"eventpass/internal/platform/config"
	"eventpass/internal/platform/database"
	"eventpass/internal/platform/identity"
	"eventpass/internal/platform/metrics"
	"eventpass/internal/platform/redis"
	"eventpass/internal/registration/asset"
	"eventpass/internal/registration/handler"
	"eventpass/internal/registration/models"
	"eventpass/internal/registration/render"
	"eventpass/internal/registration/sequence"
	"eventpass/internal/registration/service"
	"eventpass/internal/registration/store"
	"eventpass/pkg/platform/circuit"
	"eventpass/pkg/platform/httputil"
	"eventpass/pkg/platform/tx"
)

// Repository is everything the app needs from a profile store.
type Repository interface {
	service.Repository
	render.ProfileFinder
	ListLocked(ctx context.Context) ([]*models.Locked, error)
}

// App holds the wired components and the resources they own.
type App struct {
	Config   config.Server
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Repo     Repository
	Assets   *asset.LocalStore
	Service  *service.Service
	Renderer *render.Renderer
	Tokens   *identity.TokenService
	Audit    *audit.Publisher
	AuditLog *audit.SQLSink

	db      *sql.DB
	redis   *redis.Client
	closers []func() error
}

// Option adjusts the app during Build.
type Option func(*buildOptions)

type buildOptions struct {
	exporter render.Exporter
}

// WithExporter replaces the headless Chrome exporter.
func WithExporter(e render.Exporter) Option {
	return func(o *buildOptions) {
		o.exporter = e
	}
}

// Build opens every backend cfg selects. Close releases them.
func Build(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewWithRegistry(a.Registry)

	if cfg.UsesDevKeys() {
		logger.Warn("using development signing keys; set ASSET_SIGNING_KEY and IDENTITY_SIGNING_KEY")
	}

	runner, allocator, err := a.openStore(ctx)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}
	if rc != nil {
		a.redis = rc
		a.closers = append(a.closers, rc.Close)
		allocator = sequence.NewRedis(rc, sequence.DefaultRedisKey)
		logger.Info("sequence allocator", "backend", "redis")
	}

	signer := asset.NewSigner(cfg.Assets.SigningKey, cfg.Assets.SignedURLTTL, time.Now)
	a.Assets, err = asset.NewLocalStore(cfg.Assets.Root, cfg.PublicURL, signer)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.Audit, err = a.openAudit(ctx)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.Service = service.New(a.Repo, allocator, a.Assets,
		service.WithTxRunner(runner),
		service.WithAuditor(a.Audit),
		service.WithMetrics(a.Metrics),
		service.WithLogger(logger),
	)

	exporter := o.exporter
	if exporter == nil {
		chrome := render.NewRodExporter(cfg.ChromeBin, logger)
		a.closers = append(a.closers, chrome.Close)
		exporter = chrome
	}
	a.Renderer = render.New(a.Repo, a.Assets, exporter,
		render.WithAuditor(a.Audit),
		render.WithMetrics(a.Metrics),
		render.WithLogger(logger),
	)

	a.Tokens = identity.NewTokenService(cfg.Identity.SigningKey, cfg.Identity.Issuer, cfg.Identity.Audience)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (service.TxRunner, service.Allocator, error) {
	cfg := a.Config
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, database.SQLiteDSN(cfg.SQLitePath))
		if err != nil {
			return nil, nil, err
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		if err := database.MigrateSQLite(db); err != nil {
			return nil, nil, err
		}
		a.Repo = store.NewSQLite(db)
		a.Logger.Info("profile store", "backend", "sqlite", "path", cfg.SQLitePath)
		return tx.NewSQLRunner(db), sequence.NewSQLite(db), nil

	case config.StorePostgres:
		db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		if err := database.MigratePostgres(db); err != nil {
			return nil, nil, err
		}
		a.Repo = store.NewPostgres(db)
		a.Logger.Info("profile store", "backend", "postgres")
		return tx.NewSQLRunner(db), sequence.NewPostgres(db), nil

	default:
		a.Repo = store.NewInMemory()
		a.Logger.Warn("profile store", "backend", "memory", "note", "data is lost on restart")
		return tx.NopRunner{}, sequence.NewMemory(0), nil
	}
}

func (a *App) openAudit(ctx context.Context) (*audit.Publisher, error) {
	sinks := audit.MultiSink{audit.NewLogSink(a.Logger)}
	switch {
	case a.db != nil && a.Config.Store == config.StorePostgres:
		a.AuditLog = audit.NewPostgresSink(a.db)
	case a.db != nil:
		a.AuditLog = audit.NewSQLiteSink(a.db)
	}
	if a.AuditLog != nil {
		sinks = append(sinks, a.AuditLog)
	}
	if len(a.Config.Audit.KafkaBrokers) > 0 {
		ks, err := audit.NewKafkaSink(ctx, a.Config.Audit.KafkaBrokers, a.Config.Audit.Topic)
		if err != nil {
			return nil, fmt.Errorf("audit kafka sink: %w", err)
		}
		a.closers = append(a.closers, func() error {
			ks.Close()
			return nil
		})
		breaker := circuit.New("audit-kafka", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second))
		sinks = append(sinks, audit.NewBreakerSink(ks, breaker, a.Logger))
	}
	p := audit.NewPublisher(sinks,
		audit.WithLogger(a.Logger),
		audit.WithAsyncBuffer(a.Config.Audit.Buffer),
	)
	// Drain before the Kafka client closes.
	a.closers = append(a.closers, func() error {
		p.Close()
		return nil
	})
	return p, nil
}

// Router mounts health, metrics, signed assets and the registration API.
func (a *App) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}))
	asset.NewHandler(a.Assets, a.Logger).Register(r)
	handler.New(a.Service, a.Renderer, a.Tokens, a.Logger, a.Metrics, a.Config.RequestTTL).Register(r)
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	check := func(name string, err error) {
		if err != nil {
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			return
		}
		resp.Checks[name] = "ok"
	}
	if a.db != nil {
		check("database", a.db.PingContext(ctx))
	}
	if a.redis != nil {
		check("redis", a.redis.Health(ctx))
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
