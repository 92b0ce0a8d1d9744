package x402

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// HeaderName is the request header carrying the client's payment
// authorization.
const HeaderName = "X-Payment"

// ErrNoPayment is returned for every way a payment authorization can be
// absent or malformed: a missing header, invalid base64, or a JSON body
// that doesn't match PaymentPayload's schema. The gateway treats all three
// identically - a missing header - per spec: it must never distinguish
// "you sent garbage" from "you sent nothing" in its response.
var ErrNoPayment = errors.New("x402: no payment authorization present")

// DecodeHeader decodes the X-Payment header value into a PaymentPayload.
// An empty header, invalid base64, or invalid JSON all return ErrNoPayment.
func DecodeHeader(value string) (*PaymentPayload, error) {
	if value == "" {
		return nil, ErrNoPayment
	}

	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, ErrNoPayment
	}

	var payload PaymentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrNoPayment
	}

	return &payload, nil
}

// EncodeHeader is the inverse of DecodeHeader, used by tests to build a
// valid X-Payment header value.
func EncodeHeader(payload PaymentPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
