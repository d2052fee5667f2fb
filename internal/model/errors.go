// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, todo, billing, system
	Action   string // ユーザー向け対処方法

	// Quota はQUOTA_EXCEEDEDの場合のみ設定される。
	// クライアントはアップグレード導線の表示に使用する。
	Quota *QuotaDetail
}

// QuotaDetail はプラン上限到達時の詳細。
type QuotaDetail struct {
	Tier  Tier
	Limit int
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeQuotaExceeded    = "QUOTA_EXCEEDED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeMethodNotAllowed = "METHOD_NOT_SUPPORTED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証必須のプロシージャをセッションなしで呼び出した場合のエラーを生成する。
// どのプロシージャでも同一の内容を返す。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewForbiddenError は認証済みでも許可されない操作のエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "This action is not available for your account.",
	}
}

// NewQuotaExceededError はプランのリソース上限到達エラーを生成する。
func NewQuotaExceededError(tier Tier, limit int) *APIError {
	return &APIError{
		Code:     ErrCodeQuotaExceeded,
		Message:  fmt.Sprintf("You've reached your %s plan limit of %d todos. Upgrade to Pro for unlimited todos.", tier, limit),
		Category: "billing",
		Action:   "Upgrade to Pro or delete existing todos.",
		Quota:    &QuotaDetail{Tier: tier, Limit: limit},
	}
}

// NewTodoNotFoundError はTodo未検出エラーを生成する。
// 他ユーザー所有の場合も存在を明かさないため同じエラーを返す。
func NewTodoNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Todo not found",
		Category: "todo",
		Action:   "Check the todo ID.",
	}
}

// NewProcedureNotFoundError は未登録プロシージャの呼び出しエラーを生成する。
func NewProcedureNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("No procedure found on path %q", name),
		Category: "validation",
		Action:   "Check the procedure name.",
	}
}

// NewBadRequestError は入力バリデーションエラーを生成する。
func NewBadRequestError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeBadRequest,
		Message:  message,
		Category: "validation",
		Action:   "Fix the request input and try again.",
	}
}

// NewMethodNotAllowedError はクエリ/ミューテーションの呼び分け誤りのエラーを生成する。
func NewMethodNotAllowedError(name, method string) *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  fmt.Sprintf("Unsupported %s request to procedure %q", method, name),
		Category: "validation",
		Action:   "Use GET for queries and POST for mutations.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
// 詳細はログのみに記録する。
func NewInternalError(message string) *APIError {
	if message == "" {
		message = "Internal server error"
	}
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  message,
		Category: "system",
		Action:   "Please wait and try again later.",
	}
}
