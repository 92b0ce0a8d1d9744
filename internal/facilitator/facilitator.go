// Package facilitator talks to an x402 payment facilitator: the external
// service that verifies a client's signed payment authorization and, once
// verification has succeeded, settles it on-chain. The gateway dispatches
// settlement before it fetches the bytes from upstream.
package facilitator

import (
	"context"

	"github.com/xbyte-labs/byte-gateway/internal/x402"
)

// Client verifies and settles x402 payments against a facilitator. Settle
// is always called after Verify has already returned a valid Verdict; it is
// the caller's job (internal/gateway) to dispatch Settle off the request
// path so a slow or unreachable facilitator never delays the response.
type Client interface {
	Verify(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error)
	Settle(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error)
}
