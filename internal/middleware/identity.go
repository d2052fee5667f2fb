package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/starterapi/internal/identity"
)

// IdentityResolver はリクエストの呼び出し元を解決する。
// 解決に失敗しても匿名として扱い、エラーを返さない。
type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request) identity.Identity
}

// NewIdentityMiddleware はリクエストごとに1回だけ呼び出し元を解決し、
// 結果をコンテキストに格納するミドルウェアを返す。
// 認証の要否はここでは判定せず、後段のプロシージャに委ねる。
func NewIdentityMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := resolver.Resolve(r.Context(), r)
			if id.Authenticated() {
				setLogUserID(r.Context(), id.UserID())
			}
			ctx := identity.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
