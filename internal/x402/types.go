// Package x402 implements the wire types of the x402 payment protocol: the
// 402 challenge, the client-borne payment authorization carried in the
// X-Payment header, and the facilitator request/response shapes. All JSON
// uses camelCase field names; this is a stable wire contract - fields may
// be added, never renamed or removed.
package x402

import "encoding/json"

// Version is the x402Version this gateway speaks.
const Version = 1

// DefaultMimeType is the mime type advertised for every payment requirement.
const DefaultMimeType = "application/json"

// DefaultMaxTimeoutSeconds is published to the client in every challenge.
// It is advisory: the gateway bounds its facilitator calls with its own
// configured timeout (internal/gateway's Config.FacilitatorTimeout), not
// with this value.
const DefaultMaxTimeoutSeconds = 60

// PaymentRequirement is a single accepted way to pay for a resource.
type PaymentRequirement struct {
	Scheme            string            `json:"scheme"`
	Network           string            `json:"network"`
	MaxAmountRequired string            `json:"maxAmountRequired"`
	Resource          string            `json:"resource"`
	Description       string            `json:"description,omitempty"`
	MimeType          string            `json:"mimeType"`
	PayTo             string            `json:"payTo"`
	MaxTimeoutSeconds int               `json:"maxTimeoutSeconds"`
	Asset             string            `json:"asset"`
	Extra             map[string]string `json:"extra"`
}

// Challenge is the 402 response body: a versioned list of acceptable
// payment requirements. The list carries one element in current
// deployments, but is a list to allow offering alternatives later.
type Challenge struct {
	X402Version int                  `json:"x402Version"`
	Accepts     []PaymentRequirement `json:"accepts"`
}

// NewChallenge builds a Challenge carrying a single requirement.
func NewChallenge(req PaymentRequirement) Challenge {
	return Challenge{X402Version: Version, Accepts: []PaymentRequirement{req}}
}

// Authorization is the EIP-3009 TransferWithAuthorization data the client
// signed. The core treats Signature and Nonce as opaque; semantic
// validation is the facilitator's job.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// Payload wraps the signature and the authorization it signs over.
type Payload struct {
	Signature     string        `json:"signature"`
	Authorization Authorization `json:"authorization"`
}

// PaymentPayload is the full structure decoded from the client's X-Payment
// header.
type PaymentPayload struct {
	X402Version int     `json:"x402Version"`
	Scheme      string  `json:"scheme"`
	Network     string  `json:"network"`
	Payload     Payload `json:"payload"`
}

// FacilitatorRequest is the body POSTed to both /verify and /settle.
type FacilitatorRequest struct {
	X402Version         int                `json:"x402Version"`
	PaymentPayload      PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements PaymentRequirement `json:"paymentRequirements"`
}

// Verdict is the facilitator's response to /verify or /settle. A verdict is
// valid iff Success is true or IsValid is true; both absent or both false
// means reject.
type Verdict struct {
	Success      *bool   `json:"success,omitempty"`
	IsValid      *bool   `json:"isValid,omitempty"`
	Network      *string `json:"network,omitempty"`
	Transaction  *string `json:"transaction,omitempty"`
	Payer        *string `json:"payer,omitempty"`
	ErrorReason  *string `json:"errorReason,omitempty"`
}

// Valid reports whether the verdict counts as a successful verification or
// settlement.
func (v *Verdict) Valid() bool {
	if v == nil {
		return false
	}
	if v.Success != nil && *v.Success {
		return true
	}
	if v.IsValid != nil && *v.IsValid {
		return true
	}
	return false
}

// Reason returns the human-readable error reason, if any, for logging.
func (v *Verdict) Reason() string {
	if v == nil || v.ErrorReason == nil {
		return ""
	}
	return *v.ErrorReason
}

// MarshalRequirement is a convenience for logging/tests: round-trips a
// PaymentRequirement through JSON.
func MarshalRequirement(req PaymentRequirement) ([]byte, error) {
	return json.Marshal(req)
}
