// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupDetector はユーザー入力のプレーンテキスト（Todoのタイトル・説明）に
// HTMLとして解釈される部分が含まれるかを判定する。入力は書き換えずに保存し、
// エスケープは表示側に任せる。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupDetector はプレーンテキスト入力のマークアップ判定のインターフェース。
type MarkupDetector interface {
	// ContainsMarkup はinputにタグ・コメント・文字参照など、
	// HTMLとして解釈されると見た目が変わる部分が含まれる場合にtrueを返す。
	ContainsMarkup(input string) bool
}

// markupDetector はMarkupDetectorの実装。
// bluemondayのポリシーはスレッドセーフなため、全リクエストで共有する。
type markupDetector struct {
	policy *bluemonday.Policy
}

// NewMarkupDetector はMarkupDetectorの新しいインスタンスを生成する。
func NewMarkupDetector() MarkupDetector {
	return &markupDetector{
		policy: bluemonday.StrictPolicy(),
	}
}

// newlineNormalizer はHTMLトークナイザーと同じく改行をLFに揃える。
var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// ContainsMarkup はStrictPolicyの出力が単純なエスケープ結果と一致しない場合にtrueを返す。
// 純粋なテキストであれば、StrictPolicyは各文字をエスケープするだけで何も落とさない。
func (d *markupDetector) ContainsMarkup(input string) bool {
	if input == "" {
		return false
	}
	text := newlineNormalizer.Replace(input)
	return d.policy.Sanitize(text) != html.EscapeString(text)
}
