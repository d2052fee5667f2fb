package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	// DefaultPolarAPIURL はPolarのサンドボックスAPIのベースURL。
	DefaultPolarAPIURL = "https://sandbox-api.polar.sh"
	// maxResponseSize はレスポンスボディの読み取り上限（1MB）。
	maxResponseSize = 1 << 20
)

// CheckoutRequest はチェックアウト作成のパラメータ。
type CheckoutRequest struct {
	ProductIDs         []string
	ExternalCustomerID string
	CustomerEmail      string
	SuccessURL         string
}

// Checkout は作成されたチェックアウトセッション。
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutProvider はチェックアウトセッションを作成する決済プロバイダ。
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// PolarClient はPolarのチェックアウトAPIのクライアント。
type PolarClient struct {
	httpClient  *http.Client
	logger      *slog.Logger
	baseURL     string
	accessToken string
}

// NewPolarClient はPolarClientの新しいインスタンスを生成する。
// baseURLが空の場合はサンドボックスを使用する。
func NewPolarClient(httpClient *http.Client, logger *slog.Logger, baseURL, accessToken string) *PolarClient {
	if baseURL == "" {
		baseURL = DefaultPolarAPIURL
	}
	return &PolarClient{
		httpClient:  httpClient,
		logger:      logger,
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
	}
}

type polarCheckoutBody struct {
	Products           []string `json:"products"`
	ExternalCustomerID string   `json:"external_customer_id,omitempty"`
	CustomerEmail      string   `json:"customer_email,omitempty"`
	SuccessURL         string   `json:"success_url,omitempty"`
}

// CreateCheckout はチェックアウトセッションを作成する。
// 2xx以外のステータスはエラーとして返す。
func (c *PolarClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	payload, err := json.Marshal(polarCheckoutBody{
		Products:           req.ProductIDs,
		ExternalCustomerID: req.ExternalCustomerID,
		CustomerEmail:      req.CustomerEmail,
		SuccessURL:         req.SuccessURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkouts/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build checkout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read checkout response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Polar checkout API returned error status",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("checkout API returned status %d", resp.StatusCode)
	}

	var checkout Checkout
	if err := json.Unmarshal(body, &checkout); err != nil {
		return nil, fmt.Errorf("failed to decode checkout response: %w", err)
	}
	if checkout.ID == "" || checkout.URL == "" {
		return nil, fmt.Errorf("checkout response is missing id or url")
	}

	return &checkout, nil
}

// compile-time interface check
var _ CheckoutProvider = (*PolarClient)(nil)
