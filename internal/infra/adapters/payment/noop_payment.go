package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gym-membership/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests. Every
// initialized checkout verifies as paid; Fail marks one as declined instead.
type NoopPaymentGateway struct {
	secret  string
	baseURL string

	mu      sync.Mutex
	intents map[string]noopIntent
}

type noopIntent struct {
	amount int64
	status adapter.VerifyStatus
}

// NewNoopPaymentGateway signs webhooks with secret; checkout URLs point at baseURL.
func NewNoopPaymentGateway(secret, baseURL string) *NoopPaymentGateway {
	if baseURL == "" {
		baseURL = "https://checkout.example.test"
	}
	return &NoopPaymentGateway{
		secret:  secret,
		baseURL: baseURL,
		intents: make(map[string]noopIntent),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) NewReference() string { return NewReference() }

func (g *NoopPaymentGateway) Initialize(ctx context.Context, req adapter.InitializeRequest) (adapter.InitializeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[req.Reference] = noopIntent{amount: req.Amount, status: adapter.VerifyStatusSuccess}
	return adapter.InitializeResult{
		AuthorizationURL: g.baseURL + "/pay/" + req.Reference,
		Reference:        req.Reference,
		AccessCode:       "noop-" + req.Reference,
	}, nil
}

// Fail makes the next verification of reference report a declined charge.
func (g *NoopPaymentGateway) Fail(reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	in := g.intents[reference]
	in.status = adapter.VerifyStatusFailed
	g.intents[reference] = in
}

func (g *NoopPaymentGateway) VerifyByReference(ctx context.Context, reference string) (adapter.VerifyResult, error) {
	g.mu.Lock()
	in, ok := g.intents[reference]
	g.mu.Unlock()
	if !ok {
		return adapter.VerifyResult{}, fmt.Errorf("noop: reference %q not found", reference)
	}
	now := time.Now().UTC()
	raw, _ := json.Marshal(map[string]any{"reference": reference, "status": in.status, "amount": in.amount * 100})
	res := adapter.VerifyResult{Status: in.status, Reference: reference, Amount: in.amount, Raw: raw}
	if in.status == adapter.VerifyStatusSuccess {
		res.PaidAt = &now
	} else {
		res.Reason = "Declined"
	}
	return res, nil
}

func (g *NoopPaymentGateway) VerifyWebhookSignature(raw []byte, header string) bool {
	return VerifySignature(g.secret, raw, header)
}

func (g *NoopPaymentGateway) ParseWebhookEvent(raw []byte) (adapter.WebhookEvent, bool, error) {
	return ParseWebhookEvent(raw)
}
