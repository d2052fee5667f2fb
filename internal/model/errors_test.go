package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewQuotaExceededError_CarriesTierAndLimit(t *testing.T) {
	err := NewQuotaExceededError(TierFree, 10)

	if err.Code != ErrCodeQuotaExceeded {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeQuotaExceeded)
	}
	want := "You've reached your free plan limit of 10 todos. Upgrade to Pro for unlimited todos."
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
	if err.Category != "billing" {
		t.Errorf("Category = %q, want billing", err.Category)
	}
	if err.Quota == nil || err.Quota.Tier != TierFree || err.Quota.Limit != 10 {
		t.Errorf("Quota = %+v, want {free 10}", err.Quota)
	}
}

func TestNewUnauthorizedError_IsUniform(t *testing.T) {
	a, b := NewUnauthorizedError(), NewUnauthorizedError()
	if *a != *b {
		t.Errorf("unauthorized errors differ: %+v vs %+v", a, b)
	}
	if a.Code != ErrCodeUnauthorized {
		t.Errorf("Code = %q", a.Code)
	}
}

func TestNewInternalError_DefaultMessage(t *testing.T) {
	if got := NewInternalError("").Message; got != "Internal server error" {
		t.Errorf("Message = %q", got)
	}
	if got := NewInternalError("Failed to create checkout session").Message; got != "Failed to create checkout session" {
		t.Errorf("Message = %q", got)
	}
}

func TestAPIError_ErrorsAsThroughWrap(t *testing.T) {
	wrapped := fmt.Errorf("create todo: %w", NewTodoNotFoundError())

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As should find *APIError through wrapping")
	}
	if !strings.Contains(wrapped.Error(), "[NOT_FOUND]") {
		t.Errorf("Error() = %q, should contain code", wrapped.Error())
	}
}
