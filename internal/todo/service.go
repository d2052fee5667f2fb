// Package todo はプラン上限付きのTodo管理のドメインロジックを提供する。
package todo

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/starterapi/internal/billing"
	"github.com/hitoshi/starterapi/internal/metrics"
	"github.com/hitoshi/starterapi/internal/model"
	"github.com/hitoshi/starterapi/internal/repository"
	"github.com/hitoshi/starterapi/internal/security"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

// CreateInput はtodo.createの入力。
type CreateInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// UpdateInput はtodo.updateの入力。nilのフィールドは変更しない。
type UpdateInput struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Service はTodo管理のサービス層。
// 作成時にプラン上限を適用し、その他の操作はすべて所有者で絞り込む。
type Service struct {
	repo      repository.TodoRepository
	catalog   billing.Catalog
	markup    security.MarkupDetector
	metrics   metrics.MetricsCollector
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.TodoRepository,
	catalog billing.Catalog,
	markup security.MarkupDetector,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		repo:      repo,
		catalog:   catalog,
		markup:    markup,
		metrics:   collector,
		newID:     uuid.NewString,
	}
}

// Create はプラン上限内であればTodoを作成する。
// 上限の確認と挿入はリポジトリで原子的に行われる。
func (s *Service) Create(ctx context.Context, userID string, customer *model.CustomerState, in CreateInput) (*model.Todo, error) {
	title, err := s.cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	var description *string
	if in.Description != nil {
		d, err := s.cleanDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		description = descriptionOrNil(d)
	}

	tier := s.catalog.TierOf(customer)
	limit := billing.LimitsFor(tier).MaxTodos

	todo := &model.Todo{
		ID:          s.newID(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Completed:   false,
	}

	if err := s.repo.CreateWithinLimit(ctx, todo, limit); err != nil {
		if errors.Is(err, repository.ErrLimitReached) {
			s.metrics.RecordQuotaRejection(string(tier))
			return nil, model.NewQuotaExceededError(tier, limit)
		}
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	return todo, nil
}

// List は所有者のTodoを新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Todo, error) {
	todos, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

// Get は所有者のTodoを返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Todo, error) {
	todo, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get todo: %w", err)
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError()
	}
	return todo, nil
}

// Update はTodoを部分更新する。
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (*model.Todo, error) {
	var patch model.TodoPatch
	if in.Title != nil {
		title, err := s.cleanTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if in.Description != nil {
		d, err := s.cleanDescription(*in.Description)
		if err != nil {
			return nil, err
		}
		// 空文字列は説明の削除（NULL）として扱う
		patch.Description = &d
	}
	patch.Completed = in.Completed

	todo, err := s.repo.Update(ctx, in.ID, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError()
	}
	return todo, nil
}

// ToggleComplete は完了状態を反転する。
func (s *Service) ToggleComplete(ctx context.Context, userID, id string) (*model.Todo, error) {
	todo, err := s.repo.ToggleComplete(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle todo: %w", err)
	}
	if todo == nil {
		return nil, model.NewTodoNotFoundError()
	}
	return todo, nil
}

// Delete は所有者のTodoを削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	deleted, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	if !deleted {
		return model.NewTodoNotFoundError()
	}
	return nil
}

// Stats は総数と完了数を並行して取得し、未完了数を導出する。
// 2つの件数は別々に読むため、同時更新中はわずかにずれる場合がある。
func (s *Service) Stats(ctx context.Context, userID string) (model.TodoStats, error) {
	var total, completed int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountByUserID(gctx, userID)
		total = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountCompletedByUserID(gctx, userID)
		completed = n
		return err
	})
	if err := g.Wait(); err != nil {
		return model.TodoStats{}, fmt.Errorf("failed to get todo stats: %w", err)
	}

	return model.TodoStats{
		Total:     total,
		Completed: completed,
		Pending:   total - completed,
	}, nil
}

func (s *Service) cleanTitle(title string) (string, error) {
	n := utf8.RuneCountInString(title)
	if n < 1 || n > MaxTitleLength {
		return "", model.NewBadRequestError(fmt.Sprintf("Title must be between 1 and %d characters", MaxTitleLength))
	}
	if s.markup.ContainsMarkup(title) {
		return "", model.NewBadRequestError("Title must be plain text")
	}
	return title, nil
}

func (s *Service) cleanDescription(description string) (string, error) {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", model.NewBadRequestError(fmt.Sprintf("Description must be at most %d characters", MaxDescriptionLength))
	}
	if s.markup.ContainsMarkup(description) {
		return "", model.NewBadRequestError("Description must be plain text")
	}
	return description, nil
}

// descriptionOrNil は空の説明をnilに揃える。
func descriptionOrNil(d string) *string {
	if d == "" {
		return nil
	}
	return &d
}
