package identity

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/starterapi/internal/metrics"
	"github.com/hitoshi/starterapi/internal/model"
)

// SessionProvider はリクエストからセッションを解決する。
// 認証情報がない場合はnil, nilを返す。
type SessionProvider interface {
	Name() string
	SessionFromRequest(ctx context.Context, r *http.Request) (*model.Session, error)
}

// CustomerStateProvider はユーザーの顧客状態を取得する。
// repository.CustomerStateRepositoryの部分集合として定義する。
type CustomerStateProvider interface {
	FindActiveByUserID(ctx context.Context, userID string) (*model.CustomerState, error)
}

const customerStateProviderName = "customer_state"

// Resolver はリクエストごとにIdentityを解決する。
type Resolver struct {
	sessions  []SessionProvider
	customers CustomerStateProvider
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
}

// NewResolver はResolverの新しいインスタンスを生成する。
// sessionsは先頭から順に試し、最初に解決したものを採用する。
func NewResolver(customers CustomerStateProvider, logger *slog.Logger, collector metrics.MetricsCollector, sessions ...SessionProvider) *Resolver {
	return &Resolver{
		sessions:  sessions,
		customers: customers,
		logger:    logger,
		metrics:   collector,
	}
}

// Resolve はリクエストの呼び出し元を解決する。失敗しない。
// プロバイダのエラーはログとメトリクスに記録し、その項目を「なし」として扱う。
// 顧客状態はセッションが解決した場合のみ取得する。
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) Identity {
	var id Identity

	for _, p := range r.sessions {
		session, err := p.SessionFromRequest(ctx, req)
		if err != nil {
			r.recordFailure(ctx, p.Name(), err)
			continue
		}
		if session != nil {
			id.Session = session
			break
		}
	}

	if id.Session == nil || r.customers == nil {
		return id
	}

	customer, err := r.customers.FindActiveByUserID(ctx, id.Session.UserID)
	if err != nil {
		r.recordFailure(ctx, customerStateProviderName, err)
		return id
	}
	id.Customer = customer

	return id
}

func (r *Resolver) recordFailure(ctx context.Context, provider string, err error) {
	r.logger.WarnContext(ctx, "identity provider failed, treating as absent",
		slog.String("provider", provider),
		slog.String("error", err.Error()),
	)
	r.metrics.RecordIdentityProviderFailure(provider)
}
