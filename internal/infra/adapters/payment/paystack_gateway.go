// File: internal/infra/adapters/payment/paystack_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gym-membership/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PaystackGateway)(nil)

// GatewayError is a non-2xx or status=false reply from the provider.
type GatewayError struct {
	Op         string
	HTTPStatus int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("paystack %s: http %d: %s", e.Op, e.HTTPStatus, e.Message)
}

// PaystackGateway implements adapter.PaymentGateway over the Paystack REST API.
type PaystackGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
	log       *zerolog.Logger
}

func NewPaystackGateway(secretKey, baseURL string, timeout time.Duration, logger *zerolog.Logger) (*PaystackGateway, error) {
	if secretKey == "" {
		return nil, errors.New("paystack secret key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid paystack base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := logger.With().Str("component", "PaystackGateway").Logger()
	return &PaystackGateway{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: timeout},
		log:       &l,
	}, nil
}

func (p *PaystackGateway) Name() string { return "paystack" }

func (p *PaystackGateway) NewReference() string { return NewReference() }

// envelope is the common Paystack reply shape.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *PaystackGateway) do(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("paystack %s: read body: %w", op, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &GatewayError{Op: op, HTTPStatus: resp.StatusCode, Message: "undecodable response"}
	}
	if resp.StatusCode/100 != 2 || !env.Status {
		p.log.Warn().Str("op", op).Int("http_status", resp.StatusCode).Str("message", env.Message).Msg("paystack call rejected")
		return nil, &GatewayError{Op: op, HTTPStatus: resp.StatusCode, Message: env.Message}
	}
	return env.Data, nil
}

// Initialize calls POST /transaction/initialize. Paystack wants kobo.
func (p *PaystackGateway) Initialize(ctx context.Context, req adapter.InitializeRequest) (adapter.InitializeResult, error) {
	if req.Email == "" || req.Reference == "" || req.Amount <= 0 {
		return adapter.InitializeResult{}, errors.New("paystack initialize: email, reference and positive amount required")
	}
	payload := map[string]any{
		"email":     req.Email,
		"amount":    req.Amount * 100,
		"reference": req.Reference,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}
	if req.Metadata != nil {
		payload["metadata"] = req.Metadata
	}
	data, err := p.do(ctx, "initialize", http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return adapter.InitializeResult{}, err
	}
	var out struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return adapter.InitializeResult{}, fmt.Errorf("paystack initialize: decode: %w", err)
	}
	if out.AuthorizationURL == "" {
		return adapter.InitializeResult{}, &GatewayError{Op: "initialize", HTTPStatus: http.StatusOK, Message: "missing authorization_url"}
	}
	if out.Reference == "" {
		out.Reference = req.Reference
	}
	return adapter.InitializeResult{AuthorizationURL: out.AuthorizationURL, Reference: out.Reference, AccessCode: out.AccessCode}, nil
}

// VerifyByReference calls GET /transaction/verify/{reference}.
func (p *PaystackGateway) VerifyByReference(ctx context.Context, reference string) (adapter.VerifyResult, error) {
	if reference == "" {
		return adapter.VerifyResult{}, errors.New("paystack verify: empty reference")
	}
	data, err := p.do(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return adapter.VerifyResult{}, err
	}
	var t paystackTransaction
	if err := json.Unmarshal(data, &t); err != nil {
		return adapter.VerifyResult{}, fmt.Errorf("paystack verify: decode: %w", err)
	}
	if t.Reference == "" {
		t.Reference = reference
	}
	return adapter.VerifyResult{
		Status:    mapStatus(t.Status),
		Reference: t.Reference,
		Amount:    t.Amount / 100,
		PaidAt:    t.PaidAt,
		Reason:    t.GatewayResponse,
		Raw:       data,
	}, nil
}

func (p *PaystackGateway) VerifyWebhookSignature(raw []byte, header string) bool {
	return VerifySignature(p.secretKey, raw, header)
}

func (p *PaystackGateway) ParseWebhookEvent(raw []byte) (adapter.WebhookEvent, bool, error) {
	return ParseWebhookEvent(raw)
}
