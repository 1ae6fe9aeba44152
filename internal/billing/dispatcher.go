package billing

import (
	"context"
	"log/slog"

	"github.com/stripe/stripe-go/v76"
)

// Dispatcher routes a verified provider envelope to the reconciler operation
// for its kind. Each delivery is an independent unit of work: a failure here
// only fails this acknowledgement, and the provider's redelivery is the sole
// retry mechanism.
type Dispatcher struct {
	logger     *slog.Logger
	reconciler *Reconciler
}

func NewDispatcher(logger *slog.Logger, reconciler *Reconciler) *Dispatcher {
	return &Dispatcher{logger: logger, reconciler: reconciler}
}

// Dispatch decodes and applies one event. Unrecognized kinds return nil so
// the transport acknowledges them; the provider's event vocabulary grows over
// time and unknown kinds must never fail a delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, ev stripe.Event) error {
	decoded, err := DecodeEvent(ev)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to decode webhook event", "event_id", ev.ID, "type", ev.Type, "error", err)
		return err
	}
	if decoded == nil {
		d.logger.InfoContext(ctx, "Ignoring unhandled webhook event", "event_id", ev.ID, "type", ev.Type)
		return nil
	}

	switch e := decoded.(type) {
	case SubscriptionChanged:
		return d.reconciler.ApplySubscriptionChange(ctx, e)
	case SubscriptionCanceled:
		return d.reconciler.ApplySubscriptionCanceled(ctx, e)
	case PaymentSucceeded:
		return d.reconciler.ApplyPaymentSucceeded(ctx, e)
	case PaymentFailed:
		return d.reconciler.ApplyPaymentFailed(ctx, e)
	default:
		// DecodeEvent only produces the variants above.
		d.logger.ErrorContext(ctx, "Decoded event has no route", "event_id", ev.ID, "kind", decoded.Kind())
		return nil
	}
}
