package payment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gym-membership/internal/domain/ports/adapter"
)

// paystackTransaction is the "data" object shared by verify responses and
// charge webhooks. Amounts are in kobo.
type paystackTransaction struct {
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	PaidAt          *time.Time      `json:"paid_at"`
	GatewayResponse string          `json:"gateway_response"`
	Metadata        json.RawMessage `json:"metadata"`
}

// metadata decodes Paystack metadata, which arrives as an object or as a
// JSON-encoded string depending on how the checkout was opened.
func (t paystackTransaction) metadata() map[string]interface{} {
	if len(t.Metadata) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(t.Metadata, &m); err == nil {
		return m
	}
	var s string
	if err := json.Unmarshal(t.Metadata, &s); err == nil && s != "" {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return m
		}
	}
	return nil
}

// mapStatus folds Paystack transaction states into the provider-agnostic set.
func mapStatus(s string) adapter.VerifyStatus {
	switch strings.ToLower(s) {
	case "success":
		return adapter.VerifyStatusSuccess
	case "failed", "reversed":
		return adapter.VerifyStatusFailed
	case "abandoned":
		return adapter.VerifyStatusAbandoned
	case "timeout", "timedout":
		return adapter.VerifyStatusTimeout
	}
	return adapter.VerifyStatusPending
}

// eventOutcome maps an event name to an outcome. Both "charge.success" and the
// bare "success" are accepted; anything else carries no payment outcome.
func eventOutcome(event string) (adapter.VerifyStatus, bool) {
	name := strings.ToLower(strings.TrimSpace(event))
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		if name[:i] != "charge" {
			return "", false
		}
		name = name[i+1:]
	}
	switch name {
	case "success":
		return adapter.VerifyStatusSuccess, true
	case "failed":
		return adapter.VerifyStatusFailed, true
	case "abandoned":
		return adapter.VerifyStatusAbandoned, true
	case "timedout", "timeout":
		return adapter.VerifyStatusTimeout, true
	}
	return "", false
}

// ParseWebhookEvent decodes a Paystack webhook body. It does not check the
// signature; callers verify first.
func ParseWebhookEvent(raw []byte) (adapter.WebhookEvent, bool, error) {
	var body struct {
		Event string              `json:"event"`
		Data  paystackTransaction `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return adapter.WebhookEvent{}, false, fmt.Errorf("decode webhook: %w", err)
	}
	ev := adapter.WebhookEvent{
		Event:     body.Event,
		Reference: body.Data.Reference,
		Amount:    body.Data.Amount / 100,
		PaidAt:    body.Data.PaidAt,
		Reason:    body.Data.GatewayResponse,
		Metadata:  body.Data.metadata(),
		Raw:       json.RawMessage(raw),
	}
	status, ok := eventOutcome(body.Event)
	if !ok {
		return ev, false, nil
	}
	ev.Status = status
	return ev, true, nil
}
