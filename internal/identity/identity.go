// Package identity はリクエストごとの呼び出し元（セッションと顧客状態）の解決を提供する。
// 解決結果はリクエストの間だけ保持し、リクエストをまたいでキャッシュしない。
package identity

import (
	"context"

	"github.com/hitoshi/starterapi/internal/model"
)

// Identity はリクエストの呼び出し元を表す。
// Sessionがnilなら匿名、Customerは決済プロバイダの状態（取得できなければnil）。
type Identity struct {
	Session  *model.Session
	Customer *model.CustomerState
}

// Authenticated はセッションが解決済みかを返す。
func (id Identity) Authenticated() bool {
	return id.Session != nil
}

// UserID は認証済みの場合はユーザーID、匿名の場合は空文字列を返す。
func (id Identity) UserID() string {
	if id.Session == nil {
		return ""
	}
	return id.Session.UserID
}

type contextKey struct{}

// WithIdentity は解決済みのIdentityをコンテキストに格納する。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext はコンテキストからIdentityを取得する。未格納の場合は匿名を返す。
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(contextKey{}).(Identity)
	return id
}
