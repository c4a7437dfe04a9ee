package payments

import (
	"encoding/json"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Webhook event kinds this system reacts to. Anything else is acknowledged
// and ignored.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// WebhookEvent is the reduced view of a provider notification: which session
// or payment intent it concerns and what happened to it.
type WebhookEvent struct {
	Type            string
	SessionID       string
	PaymentIntentID string
}

// ParseWebhookEvent verifies the signature and extracts the identifiers the
// order corroboration path needs.
func ParseWebhookEvent(payload []byte, signature, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return nil, err
	}

	out := &WebhookEvent{Type: string(event.Type)}

	switch out.Type {
	case EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, err
		}
		out.SessionID = sess.ID
		if sess.PaymentIntent != nil {
			out.PaymentIntentID = sess.PaymentIntent.ID
		}
	case EventPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, err
		}
		out.PaymentIntentID = intent.ID
	}

	return out, nil
}
