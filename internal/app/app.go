package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"todoapi/internal/attachment"
	"todoapi/internal/cache"
	"todoapi/internal/config"
	"todoapi/internal/metrics"
	"todoapi/internal/migrations"
	"todoapi/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg      config.Config
	log      *slog.Logger
	store    *Store
	redis    *redis.Client
	registry *prometheus.Registry
	router   *gin.Engine
}

// New wires the store, cache, attachment issuer and HTTP router from cfg.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	store, err := OpenStore(ctx, cfg.Store, clock.WallClock)
	if err != nil {
		return nil, err
	}
	a.store = store

	if cfg.Store.AutoMigrate {
		v, err := migrations.Up(ctx, store.DB, store.Dialect)
		if err != nil {
			store.Close()
			return nil, err
		}
		log.Info("schema migrated", "driver", cfg.Store.Driver, "version", v)
	}

	var todoCache *cache.TodoCache
	if cfg.Redis.Enabled() {
		rdb, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.redis = rdb
		todoCache = cache.NewTodoCache(rdb, cfg.Redis.DefaultTTL.Duration())
	}

	collector := metrics.NewMetricsCollector()
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := newTodoService(ctx, cfg, log, store, todoCache, collector)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	if !cfg.Auth.GatewayVerified {
		log.Warn("bearer token signatures are not verified; run behind a verifying gateway and set AUTH_GATEWAY_VERIFIED=true")
	}
	log.Info("todo service ready", "comment_read_policy", svc.ReadPolicy(), "cache", todoCache != nil)

	a.router = newRouter(cfg, log, collector)
	Setup(a.router, routeDeps{
		cfg:      cfg,
		store:    store,
		redis:    a.redis,
		registry: a.registry,
		service:  svc,
	})
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Close(ctx context.Context) error {
	_ = ctx
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	return nil
}

func newTodoService(ctx context.Context, cfg config.Config, log *slog.Logger, store *Store, todoCache *cache.TodoCache, m *metrics.Collector) (*service.TodoService, error) {
	policy, err := service.ParseCommentReadPolicy(cfg.Comments.ReadPolicy)
	if err != nil {
		return nil, err
	}
	presigner, err := attachment.NewS3Presigner(ctx, attachment.S3Options{
		Region:       cfg.Attachment.Region,
		Endpoint:     cfg.Attachment.Endpoint,
		UsePathStyle: cfg.Attachment.PathStyle,
		AccessKey:    cfg.Attachment.AccessKey,
		SecretKey:    cfg.Attachment.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	issuer, err := attachment.NewIssuer(presigner, cfg.Attachment.Bucket, cfg.Attachment.KeyPrefix,
		cfg.Attachment.URLExpiration.Duration(), clock.WallClock)
	if err != nil {
		return nil, err
	}
	log.Info("attachment uploads configured", "bucket", cfg.Attachment.Bucket, "url_expiry", issuer.Expiry())
	return service.NewTodoService(service.Config{
		Todos:             store.Todos,
		Comments:          store.Comments,
		Issuer:            issuer,
		Cache:             todoCache,
		Metrics:           m,
		Logger:            log,
		CommentReadPolicy: policy,
		CommentPageSize:   cfg.Comments.PageSize,
	})
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func newRouter(cfg config.Config, log *slog.Logger, m *metrics.Collector) *gin.Engine {
	if cfg.App.Env == "prod" || cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), m.Middleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}))
	return r
}
