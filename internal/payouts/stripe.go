// Package payouts wraps stripe-go for the driver's instant cash-out
// flow.
package payouts

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/payout"
)

// StripeClient is a thin wrapper around stripe-go payouts.
type StripeClient struct{}

// NewStripeClient initializes the stripe client with the given API key.
func NewStripeClient(apiKey string) *StripeClient {
	stripe.Key = apiKey
	return &StripeClient{}
}

// CashOut moves the given amount to the driver's external account as
// an instant payout. Returns the payout ID on success.
func (s *StripeClient) CashOut(ctx context.Context, amountCents int64, currency string) (string, error) {
	params := &stripe.PayoutParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		Method:   stripe.String("instant"),
	}
	p, err := payout.New(params)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// Status fetches the current state of a payout.
func (s *StripeClient) Status(ctx context.Context, payoutID string) (string, error) {
	p, err := payout.Get(payoutID, nil)
	if err != nil {
		return "", err
	}
	return string(p.Status), nil
}
