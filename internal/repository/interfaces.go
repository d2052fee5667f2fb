// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/starterapi/internal/model"
)

// ErrLimitReached はCreateWithinLimitで所有者のTodo数が上限に達している場合に返る。
var ErrLimitReached = errors.New("todo limit reached")

// Unlimited はCreateWithinLimitで件数上限を設けないことを表す。
const Unlimited = -1

// TodoRepository はTodoの永続化インターフェース。
// すべての操作は所有者（userID）で絞り込まれ、他ユーザーの行は存在しないものとして扱う。
type TodoRepository interface {
	// Create は上限を確認せずにTodoを作成する。CreatedAt/UpdatedAtはDB側で設定される。
	Create(ctx context.Context, todo *model.Todo) error

	// CreateWithinLimit は所有者のTodo数がlimit未満の場合のみTodoを作成する。
	// 件数確認と挿入は所有者単位で直列化され、同時作成でも上限を超えない。
	// limitがUnlimited（負値）の場合は件数を確認しない。
	// 上限に達している場合はErrLimitReachedを返す。
	CreateWithinLimit(ctx context.Context, todo *model.Todo, limit int) error

	// FindByID は所有者のTodoを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, userID string) (*model.Todo, error)

	// ListByUserID は所有者のTodoを作成日時の新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Todo, error)

	// CountByUserID は所有者のTodo総数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// CountCompletedByUserID は所有者の完了済みTodo数を返す。
	CountCompletedByUserID(ctx context.Context, userID string) (int, error)

	// Update はpatchで指定されたフィールドを更新し、updated_atをサーバー時刻に更新する。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id, userID string, patch model.TodoPatch) (*model.Todo, error)

	// ToggleComplete は完了状態を1回のUPDATEで反転する。見つからない場合はnilを返す。
	ToggleComplete(ctx context.Context, id, userID string) (*model.Todo, error)

	// Delete は所有者のTodoを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id, userID string) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションはIdPが作成するため、コアからは参照と期限切れ削除のみを行う。
type SessionRepository interface {
	// FindByID は指定IDの有効なセッションをユーザー情報付きで取得する。
	// 期限切れまたは存在しない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteExpired はbefore以前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// CustomerStateRepository は決済プロバイダから同期された顧客状態の参照インターフェース。
type CustomerStateRepository interface {
	// FindActiveByUserID はユーザーの有効なサブスクリプションを作成順に返す。
	// サブスクリプションがない場合も空のCustomerStateを返す。
	FindActiveByUserID(ctx context.Context, userID string) (*model.CustomerState, error)
}
