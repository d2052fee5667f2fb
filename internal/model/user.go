// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロール。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole は文字列からRoleを解決する。未知の値はRoleUserとして扱う。
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Session はIdPが発行したログインセッションを表す。
// コアからは読み取り専用で、リクエスト単位でのみ保持する。
type Session struct {
	ID            string
	UserID        string
	Email         string
	EmailVerified bool
	Role          Role
	ExpiresAt     time.Time
}

// ActiveSubscription は有効なサブスクリプション1件を表す。
type ActiveSubscription struct {
	ProductID string
}

// CustomerState は決済プロバイダ側の顧客状態。
// ActiveSubscriptionsは作成順に並ぶ。
type CustomerState struct {
	ActiveSubscriptions []ActiveSubscription
}

// HasProduct は指定プロダクトの有効なサブスクリプションを持つかを返す。
// nilレシーバはサブスクリプションなしとして扱う。
func (c *CustomerState) HasProduct(productID string) bool {
	if c == nil || productID == "" {
		return false
	}
	for _, s := range c.ActiveSubscriptions {
		if s.ProductID == productID {
			return true
		}
	}
	return false
}

// Tier はサブスクリプションから導出される利用プラン。
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)
