package billing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/starterapi/internal/model"
)

// mockCheckoutProvider はCheckoutProviderのテスト用モック。
type mockCheckoutProvider struct {
	checkout *Checkout
	err      error
	calls    []CheckoutRequest
}

func (m *mockCheckoutProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	m.calls = append(m.calls, req)
	return m.checkout, m.err
}

var (
	testSession = model.Session{ID: "sess-1", UserID: "user-1", Email: "a@example.com"}
	proCustomer = &model.CustomerState{ActiveSubscriptions: []model.ActiveSubscription{{ProductID: "prod-pro"}}}
)

func newTestService(provider CheckoutProvider) (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewService(Catalog{ProProductID: "prod-pro"}, provider, "https://app.example.com/success", newTestLogger(&buf)), &buf
}

func TestService_Status(t *testing.T) {
	svc, _ := newTestService(&mockCheckoutProvider{})

	if got := svc.Status(nil); got != (Status{Tier: model.TierFree, IsProActive: false}) {
		t.Errorf("Status(nil) = %+v", got)
	}
	if got := svc.Status(proCustomer); got != (Status{Tier: model.TierPro, IsProActive: true}) {
		t.Errorf("Status(pro) = %+v", got)
	}
}

func TestService_CreateCheckout_AlreadyPro_Forbidden(t *testing.T) {
	provider := &mockCheckoutProvider{}
	svc, _ := newTestService(provider)

	_, err := svc.CreateCheckout(context.Background(), testSession, proCustomer, "pro")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeForbidden)
	}
	if apiErr.Message != "You already have an active Pro subscription" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if len(provider.calls) != 0 {
		t.Errorf("provider should not be called, got %d calls", len(provider.calls))
	}
}

func TestService_CreateCheckout_Success(t *testing.T) {
	provider := &mockCheckoutProvider{checkout: &Checkout{ID: "chk_1", URL: "https://polar.sh/c/chk_1"}}
	svc, _ := newTestService(provider)

	got, err := svc.CreateCheckout(context.Background(), testSession, nil, "")
	if err != nil {
		t.Fatalf("CreateCheckout returned error: %v", err)
	}
	if got.CheckoutID != "chk_1" || got.CheckoutURL != "https://polar.sh/c/chk_1" {
		t.Errorf("result = %+v", got)
	}
	if len(provider.calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(provider.calls))
	}
	req := provider.calls[0]
	if req.ExternalCustomerID != "user-1" || req.CustomerEmail != "a@example.com" {
		t.Errorf("request = %+v", req)
	}
	if len(req.ProductIDs) != 1 || req.ProductIDs[0] != "prod-pro" {
		t.Errorf("ProductIDs = %v", req.ProductIDs)
	}
	if req.SuccessURL != "https://app.example.com/success" {
		t.Errorf("SuccessURL = %q", req.SuccessURL)
	}
}

func TestService_CreateCheckout_ProviderFailure_InternalErrorAndLogged(t *testing.T) {
	provider := &mockCheckoutProvider{err: errors.New("polar unavailable")}
	svc, logs := newTestService(provider)

	_, err := svc.CreateCheckout(context.Background(), testSession, nil, "pro")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeInternal || apiErr.Message != "Failed to create checkout session" {
		t.Errorf("error = %+v", apiErr)
	}
	if !bytes.Contains(logs.Bytes(), []byte("polar unavailable")) {
		t.Errorf("provider error should be logged, got %s", logs.String())
	}
}

func TestService_CreateCheckout_UnknownSlug_BadRequest(t *testing.T) {
	svc, _ := newTestService(&mockCheckoutProvider{})

	_, err := svc.CreateCheckout(context.Background(), testSession, nil, "enterprise")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBadRequest {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}
}
