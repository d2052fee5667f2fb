package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/starterapi/internal/model"
)

// SubscriptionStatusActive は有効なサブスクリプションのステータス値。
const SubscriptionStatusActive = "active"

// PostgresCustomerStateRepo はPostgreSQLを使用した顧客状態リポジトリ。
type PostgresCustomerStateRepo struct {
	db *sql.DB
}

// NewPostgresCustomerStateRepo はPostgresCustomerStateRepoを生成する。
func NewPostgresCustomerStateRepo(db *sql.DB) *PostgresCustomerStateRepo {
	return &PostgresCustomerStateRepo{db: db}
}

// FindActiveByUserID はユーザーの有効なサブスクリプションを作成順に返す。
func (r *PostgresCustomerStateRepo) FindActiveByUserID(ctx context.Context, userID string) (*model.CustomerState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id
		 FROM customer_subscriptions
		 WHERE user_id = $1 AND status = $2
		 ORDER BY created_at ASC, id ASC`,
		userID, SubscriptionStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer subscriptions: %w", err)
	}
	defer rows.Close()

	state := &model.CustomerState{ActiveSubscriptions: []model.ActiveSubscription{}}
	for rows.Next() {
		var sub model.ActiveSubscription
		if err := rows.Scan(&sub.ProductID); err != nil {
			return nil, fmt.Errorf("failed to scan customer subscription: %w", err)
		}
		state.ActiveSubscriptions = append(state.ActiveSubscriptions, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customer subscriptions: %w", err)
	}

	return state, nil
}

// compile-time interface check
var _ CustomerStateRepository = (*PostgresCustomerStateRepo)(nil)
