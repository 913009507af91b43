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
)

const salesPath = "/api/v1/sales"

// HTTPClient submits sales to the order API over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) SubmitSale(ctx context.Context, sale SaleRequest) (SaleResult, error) {
	body, err := json.Marshal(sale)
	if err != nil {
		return SaleResult{}, fmt.Errorf("json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+salesPath, bytes.NewReader(body))
	if err != nil {
		return SaleResult{}, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", sale.IdempotencyKey.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return SaleResult{}, fmt.Errorf("client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return SaleResult{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var result SaleResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SaleResult{}, fmt.Errorf("decode sale response: %w", err)
	}

	return result, nil
}

// StatusError is returned when the order API answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("order api returned status %d: %s", e.Code, e.Body)
}
