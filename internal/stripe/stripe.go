package stripe

import (
	"context"
	"fmt"
	"log/slog"

	"inkwell/internal/config"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	stripeCheckoutSession "github.com/stripe/stripe-go/v76/checkout/session"
	stripeCustomer "github.com/stripe/stripe-go/v76/customer"
)

// metadataAccountID is the customer metadata key holding the internal
// account id. It is written once at customer creation and read back by the
// webhook customer resolver.
const metadataAccountID = "account_id"

type Client struct {
	logger *slog.Logger
	config config.StripeConfig
}

func NewClient(logger *slog.Logger, cfg config.StripeConfig) *Client {
	stripe.Key = cfg.SecretKey

	return &Client{logger: logger, config: cfg}
}

// CreateCustomer creates a Stripe customer carrying the internal account id
// in its metadata.
func (c *Client) CreateCustomer(ctx context.Context, email string, accountID uuid.UUID) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata(metadataAccountID, accountID.String())

	customer, err := stripeCustomer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe customer: %w", err)
	}

	c.logger.InfoContext(ctx, "Created Stripe customer", "customer_id", customer.ID, "account_id", accountID)
	return customer.ID, nil
}

// AccountIDForCustomer reads the account id back out of a customer's
// metadata. It implements billing.CustomerDirectory.
func (c *Client) AccountIDForCustomer(ctx context.Context, customerID string) (uuid.UUID, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	customer, err := stripeCustomer.Get(customerID, params)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to retrieve Stripe customer %s: %w", customerID, err)
	}

	raw, ok := customer.Metadata[metadataAccountID]
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("customer %s has no %s metadata", customerID, metadataAccountID)
	}

	accountID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("customer %s carries invalid %s metadata: %w", customerID, metadataAccountID, err)
	}

	return accountID, nil
}

type CheckoutParams struct {
	CustomerID string
	AccountID  uuid.UUID
	PriceID    string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession starts a subscription-mode checkout for the given
// price. The account id rides along in the session metadata for dashboard
// traceability; reconciliation itself relies on the customer metadata.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (CheckoutSession, error) {
	sessionParams := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(params.CustomerID),
		SuccessURL: stripe.String(c.config.CheckoutSuccessURL),
		CancelURL:  stripe.String(c.config.CheckoutCancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	sessionParams.Context = ctx
	sessionParams.AddMetadata(metadataAccountID, params.AccountID.String())

	session, err := stripeCheckoutSession.New(sessionParams)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("failed to create Stripe checkout session: %w", err)
	}

	c.logger.InfoContext(ctx, "Created checkout session",
		"session_id", session.ID,
		"account_id", params.AccountID,
		"price_id", params.PriceID)
	return CheckoutSession{ID: session.ID, URL: session.URL}, nil
}
