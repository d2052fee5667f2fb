package model

import "time"

// Todo はプラン上限の対象となるユーザー所有のリソース。
type Todo struct {
	ID          string
	UserID      string
	Title       string
	Description *string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoPatch はTodoの部分更新内容。nilのフィールドは変更しない。
// Descriptionに空文字列を指定すると説明をNULLに戻す。
// updated_atはリポジトリがサーバー側で更新するため含まない。
type TodoPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p TodoPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil
}

// TodoStats はユーザーのTodo集計。
type TodoStats struct {
	Total     int
	Completed int
	Pending   int
}
