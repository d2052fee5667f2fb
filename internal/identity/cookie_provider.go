package identity

import (
	"context"
	"net/http"

	"github.com/hitoshi/starterapi/internal/model"
)

// SessionCookieName はセッションIDを格納するCookie名。
const SessionCookieName = "session_id"

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// CookieSessionProvider はHTTP Only CookieのセッションIDからセッションを解決する。
type CookieSessionProvider struct {
	finder SessionFinder
}

// NewCookieSessionProvider はCookieSessionProviderを生成する。
func NewCookieSessionProvider(finder SessionFinder) *CookieSessionProvider {
	return &CookieSessionProvider{finder: finder}
}

// Name はメトリクス・ログ用のプロバイダ名を返す。
func (p *CookieSessionProvider) Name() string { return "session_cookie" }

// SessionFromRequest はCookieのセッションIDで有効なセッションを検索する。
// Cookieがない場合、またはセッションが期限切れ・存在しない場合はnil, nilを返す。
func (p *CookieSessionProvider) SessionFromRequest(ctx context.Context, r *http.Request) (*model.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return p.finder.FindByID(ctx, cookie.Value)
}
