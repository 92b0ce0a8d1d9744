package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/xbyte-labs/byte-gateway/internal/x402"
)

// HTTPClient is the production Client: it POSTs to {BaseURL}/verify and
// {BaseURL}/settle on a remote facilitator, per spec.md §4.3.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds an HTTPClient against baseURL. timeout bounds every
// call made through this client (gatewayd passes the configured
// FACILITATOR_TIMEOUT_SECONDS); a non-positive timeout means 30 seconds.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Verify calls {BaseURL}/verify.
func (c *HTTPClient) Verify(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error) {
	return c.post(ctx, "/verify", payload, req)
}

// Settle calls {BaseURL}/settle.
func (c *HTTPClient) Settle(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error) {
	return c.post(ctx, "/settle", payload, req)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error) {
	body, err := json.Marshal(x402.FacilitatorRequest{
		X402Version:         x402.Version,
		PaymentPayload:      payload,
		PaymentRequirements: req,
	})
	if err != nil {
		return nil, fmt.Errorf("facilitator: encoding request: %w", err)
	}

	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("facilitator: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	slog.Debug("facilitator request", "url", url)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("facilitator: calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("facilitator: reading response: %w", err)
	}

	slog.Debug("facilitator response", "url", url, "status", resp.StatusCode)

	var verdict x402.Verdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, fmt.Errorf("facilitator: decoding response: %w", err)
	}
	return &verdict, nil
}
