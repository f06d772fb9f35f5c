package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
)

// StripeClient implements SessionCreator on Stripe Checkout. The API
// handle is constructed explicitly and injected, never set on the global
// stripe.Key.
type StripeClient struct {
	api *client.API
}

// NewStripeClient returns a StripeClient authenticated with secretKey.
func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

// CreateSession opens a payment-mode checkout session and returns its id
// and redirect URL.
func (c *StripeClient) CreateSession(ctx context.Context, params SessionParams) (Session, error) {
	sp := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sp.Context = ctx

	for _, item := range params.LineItems {
		sp.LineItems = append(sp.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(item.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}

	for k, v := range truncateMetadata(params.Metadata) {
		sp.AddMetadata(k, v)
	}

	sess, err := c.api.CheckoutSessions.New(sp)
	if err != nil {
		return Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// RetrieveSession fetches an existing session by id.
func (c *StripeClient) RetrieveSession(ctx context.Context, id string) (Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return Session{}, fmt.Errorf("retrieve checkout session %s: %w", id, err)
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}
