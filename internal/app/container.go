package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/starterapi/internal/billing"
	"github.com/hitoshi/starterapi/internal/config"
	"github.com/hitoshi/starterapi/internal/database"
	"github.com/hitoshi/starterapi/internal/handler"
	"github.com/hitoshi/starterapi/internal/identity"
	"github.com/hitoshi/starterapi/internal/metrics"
	"github.com/hitoshi/starterapi/internal/middleware"
	"github.com/hitoshi/starterapi/internal/ratelimit"
	"github.com/hitoshi/starterapi/internal/repository"
	"github.com/hitoshi/starterapi/internal/security"
	"github.com/hitoshi/starterapi/internal/todo"
	"github.com/hitoshi/starterapi/internal/worker/cleanup"
)

// lazy は初回呼び出し時に1回だけ値を構築する。
// 並行な初回アクセスでも構築は1回で、全員が同じ値とエラーを受け取る。
type lazy[T any] struct {
	once sync.Once
	val  T
	err  error
}

func (l *lazy[T]) get(build func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.val, l.err = build()
	})
	return l.val, l.err
}

// Container はプロセス内で共有するサービスとリポジトリを保持する。
// 各依存は初回利用時に構築され、以降のリクエストで再利用される。
type Container struct {
	cfg       *config.Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector

	// openDB はテストで差し替える。
	openDB func(url string, pool database.PoolConfig) (*sql.DB, error)

	db           lazy[*sql.DB]
	redis        lazy[*redis.Client]
	limiter      lazy[ratelimit.Limiter]
	todoService  lazy[*todo.Service]
	billing      lazy[*billing.Service]
	resolver     lazy[*identity.Resolver]
	router       lazy[http.Handler]
	cleanupJob   lazy[*cleanup.CleanupJob]
	memoryLimits *ratelimit.MemoryLimiter
}

// NewContainer はContainerを生成する。この時点では何も接続しない。
func NewContainer(cfg *config.Config, logger *slog.Logger) *Container {
	reg := prometheus.NewRegistry()
	return &Container{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		collector: metrics.NewCollector(reg),
		openDB:    database.Open,
	}
}

// Metrics はメトリクスコレクタを返す。
func (c *Container) Metrics() *metrics.Collector {
	return c.collector
}

// Catalog は設定から組み立てたプロダクト定義を返す。
func (c *Container) Catalog() billing.Catalog {
	return billing.Catalog{ProProductID: c.cfg.ProProductID}
}

// DB はデータベース接続プールを返す。
func (c *Container) DB() (*sql.DB, error) {
	return c.db.get(func() (*sql.DB, error) {
		db, err := c.openDB(c.cfg.DatabaseURL, database.DefaultPoolConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	})
}

// Redis はレート制限用のRedisクライアントを返す。REDIS_URL未設定の場合はnil。
func (c *Container) Redis() (*redis.Client, error) {
	return c.redis.get(func() (*redis.Client, error) {
		if c.cfg.RedisURL == "" {
			return nil, nil
		}
		return ratelimit.NewRedisClient(c.cfg.RedisURL)
	})
}

// Limiter はレート制限のバックエンドを返す。
// REDIS_URLが設定されていればRedis、なければプロセス内のトークンバケットを使う。
func (c *Container) Limiter() (ratelimit.Limiter, error) {
	return c.limiter.get(func() (ratelimit.Limiter, error) {
		policies := ratelimit.NewPolicies(
			c.cfg.RateLimitAuthenticated,
			c.cfg.RateLimitUnauthenticated,
			c.cfg.RateLimitWindow,
		)
		rdb, err := c.Redis()
		if err != nil {
			return nil, err
		}
		if rdb != nil {
			c.logger.Info("rate limiter backend", slog.String("backend", "redis"))
			return ratelimit.NewRedisLimiter(rdb, policies), nil
		}
		c.logger.Info("rate limiter backend", slog.String("backend", "memory"))
		c.memoryLimits = ratelimit.NewMemoryLimiter(policies, 5*time.Minute)
		return c.memoryLimits, nil
	})
}

// TodoService はTodoサービスを返す。
func (c *Container) TodoService() (*todo.Service, error) {
	return c.todoService.get(func() (*todo.Service, error) {
		db, err := c.DB()
		if err != nil {
			return nil, err
		}
		return todo.NewService(
			repository.NewPostgresTodoRepo(db),
			c.Catalog(),
			security.NewMarkupDetector(),
			c.collector,
		), nil
	})
}

// BillingService はサブスクリプションサービスを返す。
func (c *Container) BillingService() (*billing.Service, error) {
	return c.billing.get(func() (*billing.Service, error) {
		client := billing.NewPolarClient(
			&http.Client{Timeout: 10 * time.Second},
			c.logger,
			c.cfg.PolarAPIURL,
			c.cfg.PolarAccessToken,
		)
		return billing.NewService(c.Catalog(), client, c.cfg.PolarSuccessURL, c.logger), nil
	})
}

// Resolver は呼び出し元の解決器を返す。
// Bearerトークン（モバイル）を先に、セッションCookie（Web）を後に試す。
func (c *Container) Resolver() (*identity.Resolver, error) {
	return c.resolver.get(func() (*identity.Resolver, error) {
		db, err := c.DB()
		if err != nil {
			return nil, err
		}
		return identity.NewResolver(
			repository.NewPostgresCustomerStateRepo(db),
			c.logger,
			c.collector,
			identity.NewTokenSessionProvider([]byte(c.cfg.SessionSecret)),
			identity.NewCookieSessionProvider(repository.NewPostgresSessionRepo(db)),
		), nil
	})
}

// Router はすべての依存を組み立てたHTTPハンドラーを返す。
func (c *Container) Router() (http.Handler, error) {
	return c.router.get(func() (http.Handler, error) {
		db, err := c.DB()
		if err != nil {
			return nil, err
		}
		resolver, err := c.Resolver()
		if err != nil {
			return nil, err
		}
		limiter, err := c.Limiter()
		if err != nil {
			return nil, err
		}
		todoService, err := c.TodoService()
		if err != nil {
			return nil, err
		}
		billingService, err := c.BillingService()
		if err != nil {
			return nil, err
		}

		return handler.NewRouter(&handler.RouterDeps{
			Logger:            c.logger,
			Collector:         c.collector,
			DevMode:           c.cfg.IsDevelopment(),
			CORSAllowedOrigin: c.cfg.CORSAllowedOrigin,
			Resolver:          resolver,
			RateLimit: middleware.NewRateLimitMiddleware(
				ratelimit.NewSelector(c.cfg.TrustedProxyHeaders),
				limiter,
				c.logger,
				c.collector,
			),
			TodoService:    todoService,
			BillingService: billingService,
			DB:             db,
			MetricsHandler: metrics.Handler(c.registry),
		}), nil
	})
}

// CleanupJob は期限切れセッションの削除ジョブを返す。
func (c *Container) CleanupJob() (*cleanup.CleanupJob, error) {
	return c.cleanupJob.get(func() (*cleanup.CleanupJob, error) {
		db, err := c.DB()
		if err != nil {
			return nil, err
		}
		return cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), c.logger, c.collector), nil
	})
}

// Close は構築済みのリソースを解放する。未構築のものは何もしない。
func (c *Container) Close() error {
	var errs []error
	if c.memoryLimits != nil {
		c.memoryLimits.Stop()
	}
	if rdb, err := c.redis.get(func() (*redis.Client, error) { return nil, nil }); err == nil && rdb != nil {
		errs = append(errs, rdb.Close())
	}
	if db, err := c.db.get(func() (*sql.DB, error) { return nil, nil }); err == nil && db != nil {
		errs = append(errs, db.Close())
	}
	return errors.Join(errs...)
}
