// Package ratelimit はリクエストのレート制限バケット選択と、
// バケットごとの制限の適用（インメモリ / Redis）を提供する。
package ratelimit

import (
	"net/http"
	"strings"

	"github.com/hitoshi/starterapi/internal/identity"
)

// Bucket はレート制限のバケット。値は閉じた列挙で、ポリシー表のキーになる。
type Bucket string

const (
	BucketUnauthenticated Bucket = "unauthenticated"
	BucketAuthenticated   Bucket = "authenticated"
)

// UnknownKey は識別子を得られなかった匿名リクエストのキー。
// 該当するリクエストはすべて同じキーを共有する。
const UnknownKey = "unknown"

// DefaultTrustedHeaders はクライアントIPを示すプロキシヘッダーの既定の優先順。
var DefaultTrustedHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Selection はバケットとキーの組。
type Selection struct {
	Bucket Bucket
	Key    string
}

// Selector はIdentityとリクエストヘッダーからバケットとキーを決定する。
// 副作用はなく、同じ入力には常に同じ結果を返す。
type Selector struct {
	trustedHeaders []string
}

// NewSelector はSelectorを生成する。headersが空の場合はDefaultTrustedHeadersを使用する。
func NewSelector(headers []string) *Selector {
	if len(headers) == 0 {
		headers = DefaultTrustedHeaders
	}
	return &Selector{trustedHeaders: append([]string(nil), headers...)}
}

// Select はバケットとキーを決定する。
// セッションがあれば"user:"+ユーザーID、なければ信頼するプロキシヘッダーの
// 最初の非空値、どれもなければUnknownKeyを使用する。
func (s *Selector) Select(id identity.Identity, h http.Header) Selection {
	if id.Session != nil {
		return Selection{Bucket: BucketAuthenticated, Key: "user:" + id.Session.UserID}
	}
	for _, name := range s.trustedHeaders {
		if v := firstHop(h.Get(name)); v != "" {
			return Selection{Bucket: BucketUnauthenticated, Key: v}
		}
	}
	return Selection{Bucket: BucketUnauthenticated, Key: UnknownKey}
}

// firstHop はカンマ区切りのヘッダー値から最初の要素（元のクライアント）を返す。
func firstHop(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
