package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"gym-membership/internal/domain"
	"gym-membership/internal/domain/model"
	"gym-membership/internal/infra/adapters/payment"
	"gym-membership/internal/infra/logging"
	"gym-membership/internal/usecase"
)

const maxWebhookBody = 1 << 20

// Failure codes carried to the failure page.
const (
	failNoReference         = "no_reference"
	failTransactionNotFound = "transaction_not_found"
	failPaymentFailed       = "payment_failed"
	failVerificationFailed  = "verification_failed"
)

type initializeRequest struct {
	PlanID string `json:"planId"`
}

type initializeResponse struct {
	Success bool `json:"success"`
	*usecase.InitializeOutput
}

func (s *Server) handleInitializePayment(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	var req initializeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	email := p.Email
	if email == "" {
		email = strings.TrimSpace(r.Header.Get("X-User-Email"))
	}

	out, err := s.deps.Payments.InitializePayment(r.Context(), usecase.InitializeInput{
		UserID: p.UserID,
		Email:  email,
		PlanID: strings.TrimSpace(req.PlanID),
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, initializeResponse{Success: true, InitializeOutput: out})
}

// handleVerifyPayment is where the browser lands after checkout. It always
// answers with a redirect.
func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := strings.TrimSpace(q.Get("reference"))
	if ref == "" {
		ref = strings.TrimSpace(q.Get("trxref"))
	}
	ctx := logging.WithReference(r.Context(), ref)

	out, err := s.deps.Payments.ReconcileVerifyReturn(ctx, ref)
	switch {
	case errors.Is(err, domain.ErrNoReference):
		s.redirectFailure(w, r, failNoReference)
	case errors.Is(err, domain.ErrTransactionNotFound):
		s.redirectFailure(w, r, failTransactionNotFound)
	case err != nil:
		l := logging.With(ctx, s.log)
		l.Error().Err(err).Msg("verify return failed")
		s.redirectFailure(w, r, failVerificationFailed)
	case out.Status != model.TransactionStatusSuccess:
		s.redirectFailure(w, r, failPaymentFailed)
	default:
		http.Redirect(w, r, withQuery(s.pages.SuccessURL, "reference", ref), http.StatusSeeOther)
	}
}

func (s *Server) redirectFailure(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, withQuery(s.pages.FailureURL, "error", code), http.StatusSeeOther)
}

func withQuery(base, key, value string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// handleWebhook answers 400 only for a bad signature. Anything else is
// acknowledged so the gateway does not keep retrying; failures are logged and
// left to the reconciler.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body"})
		return
	}

	out, err := s.deps.Payments.ReconcileWebhookEvent(r.Context(), raw, r.Header.Get(payment.SignatureHeader))
	if errors.Is(err, domain.ErrInvalidSignature) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid signature"})
		return
	}
	l := logging.With(r.Context(), s.log)
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		l.Warn().Err(err).Msg("webhook for unknown reference ignored")
	case err != nil:
		l.Error().Err(err).Msg("webhook processing failed")
	case out != nil:
		l.Info().Str("reference", out.Reference).Str("status", string(out.Status)).
			Bool("applied", out.Applied).Bool("activated", out.Activated).Msg("webhook processed")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reconciler == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "reconciler not configured"})
		return
	}
	res, err := s.deps.Reconciler.RunOnce(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success   bool `json:"success"`
		Activated int  `json:"activated"`
		Settled   int  `json:"settled"`
	}{true, res.Activated, res.Settled})
}

func (s *Server) handleMyTransactions(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	txs, err := s.deps.Ledger.ListByUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if txs == nil {
		txs = []*model.Transaction{}
	}
	writeJSON(w, http.StatusOK, dataBody{Success: true, Data: txs})
}
