// Package handler はHTTPルーティングとRPCプロシージャの登録を行う。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/starterapi/internal/metrics"
	"github.com/hitoshi/starterapi/internal/middleware"
	"github.com/hitoshi/starterapi/internal/rpc"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger    *slog.Logger
	Collector metrics.MetricsCollector
	DevMode   bool

	// ミドルウェア依存
	CORSAllowedOrigin string
	Resolver          middleware.IdentityResolver
	RateLimit         *middleware.RateLimitMiddleware

	// プロシージャ
	TodoService    TodoService
	BillingService BillingService

	// 運用エンドポイント
	DB             Pinger
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → CORS → SecurityHeaders
//	  → Identity → RateLimit → プロシージャ（認証ゲート → 実行）
//
// GET /、/health、/metricsは呼び出し元の解決とレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware(!deps.DevMode))

	// --- 運用エンドポイント ---
	r.Get("/", rootHandler)
	r.Get("/health", newHealthHandler(deps.DB, deps.Logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- RPC ---
	srv := rpc.NewServer(deps.Logger, deps.Collector, deps.DevMode)
	RegisterHealthProcedure(srv)
	RegisterTodoProcedures(srv, deps.TodoService)
	RegisterSubscriptionProcedures(srv, deps.BillingService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.Resolver))
		r.Use(deps.RateLimit.Handler)
		r.Mount("/rpc", srv.Routes())
	})

	return r
}
