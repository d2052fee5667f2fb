package billing

import (
	"context"
	"log/slog"

	"github.com/hitoshi/starterapi/internal/model"
)

// Status はsubscription.getStatusの応答。
type Status struct {
	Tier        model.Tier `json:"tier"`
	IsProActive bool       `json:"isProActive"`
}

// CheckoutResult はsubscription.createCheckoutの応答。
type CheckoutResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	CheckoutID  string `json:"checkoutId"`
}

// Service はサブスクリプション状態の参照とアップグレード導線を提供する。
type Service struct {
	catalog    Catalog
	checkout   CheckoutProvider
	successURL string
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(catalog Catalog, checkout CheckoutProvider, successURL string, logger *slog.Logger) *Service {
	return &Service{
		catalog:    catalog,
		checkout:   checkout,
		successURL: successURL,
		logger:     logger,
	}
}

// Catalog はプロダクト設定を返す。
func (s *Service) Catalog() Catalog {
	return s.catalog
}

// Status は顧客状態から現在のプランを返す。
func (s *Service) Status(customer *model.CustomerState) Status {
	tier := s.catalog.TierOf(customer)
	return Status{Tier: tier, IsProActive: tier == model.TierPro}
}

// CreateCheckout はアップグレード用のチェックアウトセッションを作成する。
// すでにProの場合はFORBIDDEN、プロバイダの失敗はINTERNAL_ERRORを返す。
func (s *Service) CreateCheckout(ctx context.Context, session model.Session, customer *model.CustomerState, slug string) (*CheckoutResult, error) {
	if slug == "" {
		slug = string(model.TierPro)
	}
	productID, ok := s.catalog.ProductID(slug)
	if !ok {
		return nil, model.NewBadRequestError("Unknown product: " + slug)
	}

	if s.catalog.TierOf(customer) == model.TierPro {
		return nil, model.NewForbiddenError("You already have an active Pro subscription")
	}

	checkout, err := s.checkout.CreateCheckout(ctx, CheckoutRequest{
		ProductIDs:         []string{productID},
		ExternalCustomerID: session.UserID,
		CustomerEmail:      session.Email,
		SuccessURL:         s.successURL,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Polar checkout creation failed",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError("Failed to create checkout session")
	}

	return &CheckoutResult{CheckoutURL: checkout.URL, CheckoutID: checkout.ID}, nil
}
