package todo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/starterapi/internal/model"
	"github.com/hitoshi/starterapi/internal/repository"
)

// memoryTodoRepo はテスト用のインメモリTodoRepository。
// CreateWithinLimitはmutexで件数確認と挿入を原子的に行う。
type memoryTodoRepo struct {
	mu    sync.Mutex
	todos map[string]*model.Todo
	clock time.Time
	calls int
	err   error
}

func newMemoryTodoRepo() *memoryTodoRepo {
	return &memoryTodoRepo{
		todos: make(map[string]*model.Todo),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *memoryTodoRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memoryTodoRepo) countLocked(userID string) int {
	n := 0
	for _, t := range r.todos {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

func (r *memoryTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	return r.CreateWithinLimit(ctx, todo, repository.Unlimited)
}

func (r *memoryTodoRepo) CreateWithinLimit(ctx context.Context, todo *model.Todo, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	if limit >= 0 && r.countLocked(todo.UserID) >= limit {
		return repository.ErrLimitReached
	}
	now := r.tick()
	todo.CreatedAt, todo.UpdatedAt = now, now
	stored := *todo
	r.todos[todo.ID] = &stored
	return nil
}

func (r *memoryTodoRepo) FindByID(ctx context.Context, id, userID string) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.todos[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memoryTodoRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := []*model.Todo{}
	for _, t := range r.todos {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryTodoRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	return r.countLocked(userID), nil
}

func (r *memoryTodoRepo) CountCompletedByUserID(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	n := 0
	for _, t := range r.todos {
		if t.UserID == userID && t.Completed {
			n++
		}
	}
	return n, nil
}

func (r *memoryTodoRepo) Update(ctx context.Context, id, userID string, patch model.TodoPatch) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.todos[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = descriptionOrNil(*patch.Description)
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	t.UpdatedAt = r.tick()
	cp := *t
	return &cp, nil
}

func (r *memoryTodoRepo) ToggleComplete(ctx context.Context, id, userID string) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.todos[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	t.Completed = !t.Completed
	t.UpdatedAt = r.tick()
	cp := *t
	return &cp, nil
}

func (r *memoryTodoRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return false, r.err
	}
	t, ok := r.todos[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(r.todos, id)
	return true, nil
}

func (r *memoryTodoRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var _ repository.TodoRepository = (*memoryTodoRepo)(nil)
