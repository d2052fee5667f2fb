package handler

import (
	"context"

	"github.com/hitoshi/starterapi/internal/billing"
	"github.com/hitoshi/starterapi/internal/model"
	"github.com/hitoshi/starterapi/internal/rpc"
)

// BillingService はsubscription.*プロシージャが必要とするサービスインターフェース。
type BillingService interface {
	Status(customer *model.CustomerState) billing.Status
	CreateCheckout(ctx context.Context, session model.Session, customer *model.CustomerState, slug string) (*billing.CheckoutResult, error)
}

// checkoutInput はsubscription.createCheckoutの入力。slug省略時はpro。
type checkoutInput struct {
	Slug string `json:"slug"`
}

// RegisterSubscriptionProcedures はsubscription.*プロシージャを登録する。
func RegisterSubscriptionProcedures(srv *rpc.Server, svc BillingService) {
	srv.Query("subscription.getStatus", rpc.Protected(func(ctx context.Context, c rpc.Caller, _ rpc.Empty) (billing.Status, error) {
		return svc.Status(c.Customer), nil
	}))

	srv.Mutation("subscription.createCheckout", rpc.Protected(func(ctx context.Context, c rpc.Caller, in checkoutInput) (*billing.CheckoutResult, error) {
		return svc.CreateCheckout(ctx, c.Session, c.Customer, in.Slug)
	}))
}

// RegisterHealthProcedure は認証不要のhealthCheckを登録する。
func RegisterHealthProcedure(srv *rpc.Server) {
	srv.Query("healthCheck", rpc.Public(func(ctx context.Context, _ rpc.Empty) (string, error) {
		return "OK", nil
	}))
}
