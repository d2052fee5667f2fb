package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/starterapi/internal/model"
)

const todoColumns = `id, user_id, title, description, completed, created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresTodoRepo はPostgreSQLを使用したTodoリポジトリ。
type PostgresTodoRepo struct {
	db *sql.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sql.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

func scanTodo(row rowScanner) (*model.Todo, error) {
	todo := &model.Todo{}
	var description sql.NullString
	if err := row.Scan(
		&todo.ID, &todo.UserID, &todo.Title, &description,
		&todo.Completed, &todo.CreatedAt, &todo.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		d := description.String
		todo.Description = &d
	}
	return todo, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return emptyAsNull(*s)
}

// emptyAsNull は空の説明をNULLとして保存する。Createと同じ表現に揃えるため。
func emptyAsNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create は上限を確認せずにTodoを作成する。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO todos (id, user_id, title, description, completed)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		todo.ID, todo.UserID, todo.Title, nullableString(todo.Description), todo.Completed,
	).Scan(&todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}
	return nil
}

// CreateWithinLimit は所有者単位のアドバイザリロックを保持したトランザクション内で
// 件数確認と挿入を行う。ロックはトランザクション終了時に解放される。
func (r *PostgresTodoRepo) CreateWithinLimit(ctx context.Context, todo *model.Todo, limit int) error {
	if limit < 0 {
		return r.Create(ctx, todo)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`,
		todo.UserID,
	); err != nil {
		return fmt.Errorf("failed to acquire todo quota lock: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM todos WHERE user_id = $1`,
		todo.UserID,
	).Scan(&count); err != nil {
		return fmt.Errorf("failed to count todos: %w", err)
	}
	if count >= limit {
		return ErrLimitReached
	}

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO todos (id, user_id, title, description, completed)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		todo.ID, todo.UserID, todo.Title, nullableString(todo.Description), todo.Completed,
	).Scan(&todo.CreatedAt, &todo.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert todo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByID は所有者のTodoを取得する。見つからない場合はnilを返す。
func (r *PostgresTodoRepo) FindByID(ctx context.Context, id, userID string) (*model.Todo, error) {
	todo, err := scanTodo(r.db.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	return todo, nil
}

// ListByUserID は所有者のTodoを作成日時の新しい順に返す。
func (r *PostgresTodoRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Todo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	todos := []*model.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}
	return todos, nil
}

// CountByUserID は所有者のTodo総数を返す。
func (r *PostgresTodoRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM todos WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count todos: %w", err)
	}
	return count, nil
}

// CountCompletedByUserID は所有者の完了済みTodo数を返す。
func (r *PostgresTodoRepo) CountCompletedByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM todos WHERE user_id = $1 AND completed = true`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed todos: %w", err)
	}
	return count, nil
}

// Update はpatchで指定されたフィールドのみを更新する。
// patchが空の場合もupdated_atは更新される。
func (r *PostgresTodoRepo) Update(ctx context.Context, id, userID string, patch model.TodoPatch) (*model.Todo, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", emptyAsNull(*patch.Description))
	}
	if patch.Completed != nil {
		add("completed", *patch.Completed)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id, userID)

	query := fmt.Sprintf(
		`UPDATE todos SET %s WHERE id = $%d AND user_id = $%d RETURNING `+todoColumns,
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	todo, err := scanTodo(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return todo, nil
}

// ToggleComplete は完了状態を反転する。読み取りと書き込みの間に競合が入らないよう1文で行う。
func (r *PostgresTodoRepo) ToggleComplete(ctx context.Context, id, userID string) (*model.Todo, error) {
	todo, err := scanTodo(r.db.QueryRowContext(ctx,
		`UPDATE todos SET completed = NOT completed, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+todoColumns,
		id, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle todo: %w", err)
	}
	return todo, nil
}

// Delete は所有者のTodoを削除する。
func (r *PostgresTodoRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM todos WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete todo: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read deleted todo count: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
