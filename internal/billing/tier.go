// Package billing はサブスクリプションからの利用プラン判定と、
// 決済プロバイダでのチェックアウト作成を提供する。
package billing

import "github.com/hitoshi/starterapi/internal/model"

// Unlimited は件数上限がないことを表す。
const Unlimited = -1

// TierLimits はプランごとの上限。
type TierLimits struct {
	MaxTodos int
}

// Limits はプランごとの上限表。proは無制限。
var Limits = map[model.Tier]TierLimits{
	model.TierFree: {MaxTodos: 10},
	model.TierPro:  {MaxTodos: Unlimited},
}

// LimitsFor は指定プランの上限を返す。未知のプランはfreeとして扱う。
func LimitsFor(tier model.Tier) TierLimits {
	if l, ok := Limits[tier]; ok {
		return l
	}
	return Limits[model.TierFree]
}

// Catalog は販売中プロダクトの設定。
type Catalog struct {
	ProProductID string
}

// ProductID はスラッグに対応するプロダクトIDを返す。未知のスラッグはfalseを返す。
func (c Catalog) ProductID(slug string) (string, bool) {
	if slug == string(model.TierPro) && c.ProProductID != "" {
		return c.ProProductID, true
	}
	return "", false
}

// TierOf は顧客状態から利用プランを導出する。
// Pro商品の有効なサブスクリプションを1件でも持てばpro、それ以外（nil含む）はfree。
func (c Catalog) TierOf(cs *model.CustomerState) model.Tier {
	if cs.HasProduct(c.ProProductID) {
		return model.TierPro
	}
	return model.TierFree
}
