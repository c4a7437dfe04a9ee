package payments

import (
	"context"
	"errors"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeClient implements SessionRetriever and SessionCreator against Stripe
// Checkout. It is constructed once at startup; a missing key is a
// configuration error there, not a per-call nil check.
type StripeClient struct {
	api      *client.API
	currency string
}

func NewStripeClient(secretKey string) (*StripeClient, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}

	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeClient{api: api, currency: string(stripe.CurrencyUSD)}, nil
}

func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")

	sess, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	out := &Session{
		ID:             sess.ID,
		PaymentStatus:  string(sess.PaymentStatus),
		AmountSubtotal: sess.AmountSubtotal,
		AmountTotal:    sess.AmountTotal,
		Metadata:       sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	if sess.LineItems != nil {
		out.LineItems = make([]LineItem, 0, len(sess.LineItems.Data))
		for _, item := range sess.LineItems.Data {
			out.LineItems = append(out.LineItems, LineItem{
				Description: item.Description,
				Quantity:    item.Quantity,
				AmountTotal: item.AmountTotal,
			})
		}
	}

	return out, nil
}

func (c *StripeClient) CreateSession(ctx context.Context, p CreateSessionParams) (*CreatedSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(p.LineItems)+1)
	for _, item := range p.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.currency),
				UnitAmount: stripe.Int64(item.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}
	// Shipping rides as the last line item so session amounts stay the single
	// source of truth for what was charged.
	if p.ShippingAmount > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.currency),
				UnitAmount: stripe.Int64(p.ShippingAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(ShippingLineDescription),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	params.AddMetadata(MetadataProductIDs, p.ProductIDs)
	params.AddMetadata(MetadataShippingAddress, p.ShippingAddress)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}

	return &CreatedSession{ID: sess.ID, URL: sess.URL}, nil
}
