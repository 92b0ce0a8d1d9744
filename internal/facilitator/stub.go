package facilitator

import (
	"context"

	"github.com/xbyte-labs/byte-gateway/internal/x402"
)

// StubClient is a table-driven Client for tests: VerifyFunc/SettleFunc are
// called if set, otherwise Verify/Settle return VerifyVerdict/SettleVerdict
// unconditionally. Call counts are recorded for assertions.
type StubClient struct {
	VerifyFunc func(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error)
	SettleFunc func(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error)

	VerifyVerdict *x402.Verdict
	SettleVerdict *x402.Verdict

	VerifyCalls int
	SettleCalls int
}

func (s *StubClient) Verify(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error) {
	s.VerifyCalls++
	if s.VerifyFunc != nil {
		return s.VerifyFunc(ctx, payload, req)
	}
	return s.VerifyVerdict, nil
}

func (s *StubClient) Settle(ctx context.Context, payload x402.PaymentPayload, req x402.PaymentRequirement) (*x402.Verdict, error) {
	s.SettleCalls++
	if s.SettleFunc != nil {
		return s.SettleFunc(ctx, payload, req)
	}
	return s.SettleVerdict, nil
}

// Truth is a convenience for constructing a *bool inline in test tables.
func Truth(b bool) *bool { return &b }

// ValidVerdict returns a Verdict satisfying Verdict.Valid().
func ValidVerdict() *x402.Verdict {
	return &x402.Verdict{Success: Truth(true)}
}

// RejectedVerdict returns a Verdict that fails Verdict.Valid(), carrying reason.
func RejectedVerdict(reason string) *x402.Verdict {
	return &x402.Verdict{Success: Truth(false), ErrorReason: &reason}
}
