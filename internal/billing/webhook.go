// Package billing turns Stripe payment confirmations into plan upgrades.
package billing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/harshite737-crypto/haste/internal/api/respond"
	"github.com/harshite737-crypto/haste/internal/model"
)

// EventCheckoutCompleted is the only event acted upon.
const EventCheckoutCompleted = "checkout.session.completed"

// MetadataPlanKey names the checkout metadata entry carrying the purchased plan.
const MetadataPlanKey = "plan"

const maxBodyBytes = int64(65536)

// Upgrader applies a plan change.
type Upgrader interface {
	Upgrade(ctx context.Context, id model.Identity, plan string) error
}

// WebhookHandler verifies Stripe signatures and upgrades the identity stored
// in the session's client_reference_id.
type WebhookHandler struct {
	secret   string
	upgrader Upgrader
	log      zerolog.Logger
}

func NewWebhookHandler(secret string, upgrader Upgrader, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{secret: secret, upgrader: upgrader, log: log}
}

// ackResponse is returned for every event Stripe should not retry.
type ackResponse struct {
	Received bool   `json:"received"`
	Action   string `json:"action"`
}

// ServeHTTP handles POST /api/billing/webhook. Malformed or unsigned requests
// get 400; events that cannot be applied are acknowledged so Stripe stops
// retrying; storage failures return 500 so Stripe retries.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		respond.WriteError(w, http.StatusServiceUnavailable, "billing webhook not configured")
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respond.WriteBadRequest(w, "unreadable body")
		return
	}
	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.secret)
	if err != nil {
		h.log.Warn().Err(err).Msg("stripe signature verification failed")
		respond.WriteBadRequest(w, "invalid signature")
		return
	}

	if event.Type != EventCheckoutCompleted {
		respond.WriteJSON(w, http.StatusOK, ackResponse{Received: true, Action: "ignored"})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		respond.WriteBadRequest(w, "invalid checkout session")
		return
	}
	log := h.log.With().Str("event", event.ID).Str("session", sess.ID).Logger()

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		log.Info().Str("payment_status", string(sess.PaymentStatus)).Msg("checkout not paid yet")
		respond.WriteJSON(w, http.StatusOK, ackResponse{Received: true, Action: "pending"})
		return
	}

	id := model.Identity(sess.ClientReferenceID)
	plan := sess.Metadata[MetadataPlanKey]
	if id == "" || plan == "" {
		log.Warn().Msg("checkout session missing client_reference_id or plan metadata")
		respond.WriteJSON(w, http.StatusOK, ackResponse{Received: true, Action: "ignored"})
		return
	}

	if err := h.upgrader.Upgrade(r.Context(), id, plan); err != nil {
		if model.IsValidationError(err) {
			log.Warn().Err(err).Str("plan", plan).Msg("checkout names an unknown plan")
			respond.WriteJSON(w, http.StatusOK, ackResponse{Received: true, Action: "ignored"})
			return
		}
		log.Error().Stack().Err(err).Msg("plan upgrade failed")
		respond.WriteInternalError(w, "upgrade failed")
		return
	}
	log.Info().Str("identity", string(id)).Str("plan", plan).Msg("plan upgraded")
	respond.WriteJSON(w, http.StatusOK, ackResponse{Received: true, Action: "upgraded"})
}
