package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"diggin-checkout/internal/api"
	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/infrastructure/notify"
)

// Backend is the checkout API as seen from the client.
type Backend interface {
	CreateOrder(ctx context.Context, accessToken string, req api.CreateOrderRequest) (*api.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, accessToken string, req api.VerifyPaymentRequest) (*api.VerifyPaymentResponse, error)
	SendNotification(ctx context.Context, n notify.Notification) error
}

// BackendError is a non-success reply from the checkout API.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("checkout api error (%d): %s", e.Status, e.Message)
}

// Unwrap lets callers match a 401 with domain.ErrUnauthorized.
func (e *BackendError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return domain.ErrUnauthorized
	}
	return nil
}

// HTTPBackend calls the checkout API over HTTP.
type HTTPBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPBackend returns a backend rooted at baseURL. apiKey is sent as the
// Apikey header when set.
func NewHTTPBackend(baseURL, apiKey string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *HTTPBackend) CreateOrder(ctx context.Context, accessToken string, req api.CreateOrderRequest) (*api.CreateOrderResponse, error) {
	var out api.CreateOrderResponse
	if err := b.post(ctx, api.PathCreateOrder, accessToken, req, &out); err != nil {
		return nil, err
	}
	if !out.Success || out.OrderID == "" {
		return nil, &BackendError{Status: http.StatusOK, Message: out.Error}
	}
	return &out, nil
}

func (b *HTTPBackend) VerifyPayment(ctx context.Context, accessToken string, req api.VerifyPaymentRequest) (*api.VerifyPaymentResponse, error) {
	var out api.VerifyPaymentResponse
	if err := b.post(ctx, api.PathVerifyPayment, accessToken, req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &BackendError{Status: http.StatusOK, Message: out.Error}
	}
	return &out, nil
}

func (b *HTTPBackend) SendNotification(ctx context.Context, n notify.Notification) error {
	var out api.SendNotificationResponse
	return b.post(ctx, api.PathSendNotification, "", n, &out)
}

func (b *HTTPBackend) post(ctx context.Context, path, accessToken string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if b.apiKey != "" {
		httpReq.Header.Set("Apikey", b.apiKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return &BackendError{Status: resp.StatusCode, Message: apiErr.Error}
		}
		return &BackendError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
