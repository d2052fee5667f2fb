package handler

import (
	"context"
	"strings"
	"time"

	"github.com/hitoshi/starterapi/internal/model"
	"github.com/hitoshi/starterapi/internal/rpc"
	"github.com/hitoshi/starterapi/internal/todo"
)

// TodoService はtodo.*プロシージャが必要とするサービスインターフェース。
type TodoService interface {
	Create(ctx context.Context, userID string, customer *model.CustomerState, in todo.CreateInput) (*model.Todo, error)
	List(ctx context.Context, userID string) ([]*model.Todo, error)
	Get(ctx context.Context, userID, id string) (*model.Todo, error)
	Update(ctx context.Context, userID string, in todo.UpdateInput) (*model.Todo, error)
	ToggleComplete(ctx context.Context, userID, id string) (*model.Todo, error)
	Delete(ctx context.Context, userID, id string) error
	Stats(ctx context.Context, userID string) (model.TodoStats, error)
}

// todoResponse はTodoのAPIレスポンス。
type todoResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toTodoResponse(t *model.Todo) todoResponse {
	return todoResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// todoIDInput はIDのみを受け取るプロシージャの入力。
type todoIDInput struct {
	ID string `json:"id"`
}

// statsResponse はtodo.statsのレスポンス。
type statsResponse struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// successResponse は結果を持たないミューテーションのレスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return model.NewBadRequestError("id is required")
	}
	return nil
}

// RegisterTodoProcedures はtodo.*プロシージャを登録する。すべて認証必須。
func RegisterTodoProcedures(srv *rpc.Server, svc TodoService) {
	srv.Query("todo.list", rpc.Protected(func(ctx context.Context, c rpc.Caller, _ rpc.Empty) ([]todoResponse, error) {
		todos, err := svc.List(ctx, c.UserID())
		if err != nil {
			return nil, err
		}
		out := make([]todoResponse, 0, len(todos))
		for _, t := range todos {
			out = append(out, toTodoResponse(t))
		}
		return out, nil
	}))

	srv.Query("todo.get", rpc.Protected(func(ctx context.Context, c rpc.Caller, in todoIDInput) (*todoResponse, error) {
		if err := requireID(in.ID); err != nil {
			return nil, err
		}
		t, err := svc.Get(ctx, c.UserID(), in.ID)
		if err != nil {
			return nil, err
		}
		resp := toTodoResponse(t)
		return &resp, nil
	}))

	srv.Mutation("todo.create", rpc.Protected(func(ctx context.Context, c rpc.Caller, in todo.CreateInput) (*todoResponse, error) {
		t, err := svc.Create(ctx, c.UserID(), c.Customer, in)
		if err != nil {
			return nil, err
		}
		resp := toTodoResponse(t)
		return &resp, nil
	}))

	srv.Mutation("todo.update", rpc.Protected(func(ctx context.Context, c rpc.Caller, in todo.UpdateInput) (*todoResponse, error) {
		if err := requireID(in.ID); err != nil {
			return nil, err
		}
		t, err := svc.Update(ctx, c.UserID(), in)
		if err != nil {
			return nil, err
		}
		resp := toTodoResponse(t)
		return &resp, nil
	}))

	srv.Mutation("todo.toggleComplete", rpc.Protected(func(ctx context.Context, c rpc.Caller, in todoIDInput) (*todoResponse, error) {
		if err := requireID(in.ID); err != nil {
			return nil, err
		}
		t, err := svc.ToggleComplete(ctx, c.UserID(), in.ID)
		if err != nil {
			return nil, err
		}
		resp := toTodoResponse(t)
		return &resp, nil
	}))

	srv.Mutation("todo.delete", rpc.Protected(func(ctx context.Context, c rpc.Caller, in todoIDInput) (successResponse, error) {
		if err := requireID(in.ID); err != nil {
			return successResponse{}, err
		}
		if err := svc.Delete(ctx, c.UserID(), in.ID); err != nil {
			return successResponse{}, err
		}
		return successResponse{Success: true}, nil
	}))

	srv.Query("todo.stats", rpc.Protected(func(ctx context.Context, c rpc.Caller, _ rpc.Empty) (statsResponse, error) {
		st, err := svc.Stats(ctx, c.UserID())
		if err != nil {
			return statsResponse{}, err
		}
		return statsResponse{Total: st.Total, Completed: st.Completed, Pending: st.Pending}, nil
	}))
}
