package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Event kinds this subsystem reconciles. Anything else the provider sends is
// acknowledged as a no-op.
const (
	KindSubscriptionCreated  = "customer.subscription.created"
	KindSubscriptionUpdated  = "customer.subscription.updated"
	KindSubscriptionDeleted  = "customer.subscription.deleted"
	KindInvoicePaymentOK     = "invoice.payment_succeeded"
	KindInvoicePaymentFailed = "invoice.payment_failed"
)

// Event is the closed set of decoded billing notifications. Each variant
// maps to exactly one reconciler operation.
type Event interface {
	Kind() string
	CustomerID() string
}

type SubscriptionChanged struct {
	Customer       string
	SubscriptionID string
	PriceID        string
	ProviderStatus string
	PeriodStart    time.Time
	PeriodEnd      time.Time

	// EventKind is the provider event type this change was decoded from,
	// either KindSubscriptionCreated or KindSubscriptionUpdated.
	EventKind string
}

func (e SubscriptionChanged) Kind() string {
	if e.EventKind == "" {
		return KindSubscriptionUpdated
	}
	return e.EventKind
}
func (e SubscriptionChanged) CustomerID() string { return e.Customer }

type SubscriptionCanceled struct {
	Customer       string
	SubscriptionID string
}

func (e SubscriptionCanceled) Kind() string       { return KindSubscriptionDeleted }
func (e SubscriptionCanceled) CustomerID() string { return e.Customer }

type PaymentSucceeded struct {
	Customer  string
	InvoiceID string
}

func (e PaymentSucceeded) Kind() string       { return KindInvoicePaymentOK }
func (e PaymentSucceeded) CustomerID() string { return e.Customer }

type PaymentFailed struct {
	Customer  string
	InvoiceID string
}

func (e PaymentFailed) Kind() string       { return KindInvoicePaymentFailed }
func (e PaymentFailed) CustomerID() string { return e.Customer }

// VerifyPayload checks the Stripe signature header against the raw request
// body and returns the decoded event envelope. It must be called on the
// untouched body bytes; any re-encoding invalidates the signature. Webhook
// endpoints can be pinned to a different API version than this library, so a
// version mismatch on a correctly signed payload is not treated as a
// signature failure.
func VerifyPayload(payload []byte, signatureHeader, secret string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

// DecodeEvent turns a verified provider envelope into one of the tagged
// variants above. Unrecognized kinds yield (nil, nil) so the dispatcher can
// acknowledge them without doing anything. A payload that does not match the
// schema its kind implies yields ErrMalformedPayload.
func DecodeEvent(ev stripe.Event) (Event, error) {
	switch string(ev.Type) {
	case KindSubscriptionCreated, KindSubscriptionUpdated:
		sub, err := decodeSubscription(ev)
		if err != nil {
			return nil, err
		}
		if len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
			return nil, fmt.Errorf("%w: subscription %s has no price item", ErrMalformedPayload, sub.ID)
		}
		return SubscriptionChanged{
			Customer:       sub.Customer.ID,
			SubscriptionID: sub.ID,
			PriceID:        sub.Items.Data[0].Price.ID,
			ProviderStatus: string(sub.Status),
			PeriodStart:    time.Unix(sub.CurrentPeriodStart, 0).UTC(),
			PeriodEnd:      time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
			EventKind:      string(ev.Type),
		}, nil

	case KindSubscriptionDeleted:
		sub, err := decodeSubscription(ev)
		if err != nil {
			return nil, err
		}
		return SubscriptionCanceled{
			Customer:       sub.Customer.ID,
			SubscriptionID: sub.ID,
		}, nil

	case KindInvoicePaymentOK:
		inv, err := decodeInvoice(ev)
		if err != nil {
			return nil, err
		}
		return PaymentSucceeded{Customer: inv.Customer.ID, InvoiceID: inv.ID}, nil

	case KindInvoicePaymentFailed:
		inv, err := decodeInvoice(ev)
		if err != nil {
			return nil, err
		}
		return PaymentFailed{Customer: inv.Customer.ID, InvoiceID: inv.ID}, nil

	default:
		return nil, nil
	}
}

func decodeSubscription(ev stripe.Event) (stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
		return sub, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if sub.ID == "" || sub.Customer == nil || sub.Customer.ID == "" {
		return sub, fmt.Errorf("%w: subscription event %s is missing identifiers", ErrMalformedPayload, ev.ID)
	}
	// Items is nil when the payload carried no items object at all.
	if sub.Items == nil {
		sub.Items = &stripe.SubscriptionItemList{}
	}
	return sub, nil
}

func decodeInvoice(ev stripe.Event) (stripe.Invoice, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
		return inv, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if inv.Customer == nil || inv.Customer.ID == "" {
		return inv, fmt.Errorf("%w: invoice event %s is missing a customer", ErrMalformedPayload, ev.ID)
	}
	return inv, nil
}
