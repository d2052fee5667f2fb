// Package rpc はJSON over HTTPのプロシージャ呼び出しと認証ゲートを提供する。
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/starterapi/internal/identity"
	"github.com/hitoshi/starterapi/internal/model"
)

// Kind はプロシージャの種別。クエリはGET、ミューテーションはPOSTで呼び出す。
type Kind int

const (
	Query Kind = iota
	Mutation
)

func (k Kind) String() string {
	if k == Mutation {
		return "mutation"
	}
	return "query"
}

// Caller は認証済みの呼び出し元。Protectedなプロシージャにのみ渡される。
// Sessionは常に存在するため、プロシージャ側で再確認する必要はない。
type Caller struct {
	Session  model.Session
	Customer *model.CustomerState
}

// UserID は呼び出し元のユーザーIDを返す。
func (c Caller) UserID() string {
	return c.Session.UserID
}

// Empty は入力を取らないプロシージャの入力型。
type Empty struct{}

// Handler は生の入力JSONを受け取り、レスポンスのdataを返す。
type Handler func(ctx context.Context, input json.RawMessage) (any, error)

// Procedure は登録可能なプロシージャ。PublicまたはProtectedで生成する。
type Procedure struct {
	handler   Handler
	protected bool
}

// Protected はセッションが必須のプロシージャであればtrueを返す。
func (p Procedure) Protected() bool {
	return p.protected
}

// Call はプロシージャを実行する。
func (p Procedure) Call(ctx context.Context, input json.RawMessage) (any, error) {
	return p.handler(ctx, input)
}

// Public は認証不要のプロシージャを生成する。
func Public[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Procedure {
	return Procedure{handler: func(ctx context.Context, input json.RawMessage) (any, error) {
		in, err := decodeInput[In](input)
		if err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}}
}

// Protected は認証必須のプロシージャを生成する。
// セッションがない場合は入力を解析する前にUNAUTHORIZEDを返し、fnは呼ばれない。
// Serverはこれに加えて、リクエストボディを読む前に同じ確認を行う。
func Protected[In, Out any](fn func(ctx context.Context, caller Caller, in In) (Out, error)) Procedure {
	return Procedure{protected: true, handler: func(ctx context.Context, input json.RawMessage) (any, error) {
		caller, err := callerFrom(ctx)
		if err != nil {
			return nil, err
		}
		in, err := decodeInput[In](input)
		if err != nil {
			return nil, err
		}
		return fn(ctx, caller, in)
	}}
}

// callerFrom はコンテキストの呼び出し元を認証済みのCallerに絞り込む。
func callerFrom(ctx context.Context) (Caller, error) {
	id := identity.FromContext(ctx)
	if !id.Authenticated() {
		return Caller{}, model.NewUnauthorizedError()
	}
	return Caller{Session: *id.Session, Customer: id.Customer}, nil
}

// decodeInput は入力JSONをInに変換する。入力が空またはnullの場合はゼロ値を返す。
func decodeInput[In any](input json.RawMessage) (In, error) {
	var in In
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return in, nil
	}
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return in, model.NewBadRequestError(fmt.Sprintf("Invalid input: %v", err))
	}
	return in, nil
}
