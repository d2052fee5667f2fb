package ratelimit

import (
	"context"
	"time"
)

// Policy はバケットの制限値。Window内にLimit回までのリクエストを許可する。
type Policy struct {
	Limit  int
	Window time.Duration
}

// Policies はバケットごとのポリシー表。
type Policies map[Bucket]Policy

// DefaultPolicies は既定のポリシー表を返す。
// free/proはどちらもauthenticatedバケットを共有する。
func DefaultPolicies() Policies {
	return NewPolicies(100, 20, time.Minute)
}

// NewPolicies は認証済み・匿名の上限と共通のウィンドウからポリシー表を生成する。
func NewPolicies(authenticated, unauthenticated int, window time.Duration) Policies {
	return Policies{
		BucketAuthenticated:   {Limit: authenticated, Window: window},
		BucketUnauthenticated: {Limit: unauthenticated, Window: window},
	}
}

// For はバケットのポリシーを返す。未登録のバケットには最も厳しい匿名ポリシーを適用する。
func (p Policies) For(b Bucket) Policy {
	if policy, ok := p[b]; ok {
		return policy
	}
	return p[BucketUnauthenticated]
}

// Decision はレート制限の判定結果。
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter はSelectionごとに制限を適用する。
// ストアが利用できない場合はエラーを返し、許可するかは呼び出し元が判断する。
type Limiter interface {
	Allow(ctx context.Context, sel Selection) (Decision, error)
}
