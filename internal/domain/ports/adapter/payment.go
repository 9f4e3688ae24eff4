package adapter

import (
	"context"
	"encoding/json"
	"time"
)

// InitializeRequest is what the gateway needs to open a hosted checkout.
// Amount is in whole currency units; adapters convert to minor units.
type InitializeRequest struct {
	Email       string
	Amount      int64
	Reference   string
	Metadata    map[string]interface{}
	CallbackURL string
}

type InitializeResult struct {
	AuthorizationURL string
	Reference        string
	AccessCode       string
}

// VerifyStatus is the provider-agnostic outcome of a payment.
type VerifyStatus string

const (
	VerifyStatusSuccess   VerifyStatus = "success"
	VerifyStatusFailed    VerifyStatus = "failed"
	VerifyStatusAbandoned VerifyStatus = "abandoned"
	VerifyStatusTimeout   VerifyStatus = "timeout"
	VerifyStatusPending   VerifyStatus = "pending"
)

type VerifyResult struct {
	Status    VerifyStatus
	Reference string
	Amount    int64 // whole currency units
	PaidAt    *time.Time
	Reason    string // gateway_response or similar human-readable text
	Raw       json.RawMessage
}

// WebhookEvent is a parsed, signature-checked push notification.
type WebhookEvent struct {
	Event     string // provider event name, e.g. "charge.success"
	Status    VerifyStatus
	Reference string
	Amount    int64
	PaidAt    *time.Time
	Reason    string
	Metadata  map[string]interface{}
	Raw       json.RawMessage
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// NewReference returns a fresh, process-wide unique payment reference.
	NewReference() string
	// Initialize opens a checkout and returns the URL the payer is redirected to.
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error)
	// VerifyByReference asks the provider for the authoritative state of a payment.
	VerifyByReference(ctx context.Context, reference string) (VerifyResult, error)

	// VerifyWebhookSignature checks header against an HMAC of the raw request body.
	VerifyWebhookSignature(raw []byte, header string) bool
	// ParseWebhookEvent decodes a verified webhook body. ok is false for events
	// that carry no payment outcome.
	ParseWebhookEvent(raw []byte) (ev WebhookEvent, ok bool, err error)
}
