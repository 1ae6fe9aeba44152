package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/model"

	"github.com/google/uuid"
)

// SubscriptionStore is the persistence gateway for subscription records.
// Every method must behave as a single atomic write per account so two
// concurrent deliveries for the same account cannot interleave, and every
// method must create the record if the account has none yet.
type SubscriptionStore interface {
	// UpsertSubscription applies a subscription change. Period fields are
	// applied only when they do not regress the stored period for the same
	// provider subscription id; a new subscription id replaces the period
	// wholesale. words_used is never touched.
	UpsertSubscription(ctx context.Context, update model.SubscriptionUpdate) error

	// SetSubscriptionStatus updates only the status field.
	SetSubscriptionStatus(ctx context.Context, accountID uuid.UUID, customerID string, status model.SubscriptionStatus) error

	// ResetWordsUsed zeroes the usage counter for a new billing period.
	ResetWordsUsed(ctx context.Context, accountID uuid.UUID, customerID string) error
}

// Reconciler converges a local subscription record to the provider's
// authoritative state. All operations are idempotent and safe under
// duplicated or out-of-order delivery.
type Reconciler struct {
	logger   *slog.Logger
	resolver *Resolver
	store    SubscriptionStore
	timeout  time.Duration
}

func NewReconciler(logger *slog.Logger, resolver *Resolver, store SubscriptionStore, timeout time.Duration) *Reconciler {
	return &Reconciler{logger: logger, resolver: resolver, store: store, timeout: timeout}
}

func (r *Reconciler) ApplySubscriptionChange(ctx context.Context, e SubscriptionChanged) error {
	accountID, err := r.resolver.Resolve(ctx, e.Customer)
	if err != nil {
		return err
	}

	tier, limit := PlanForPrice(e.PriceID)
	status := r.mapStatus(ctx, e.ProviderStatus, e.SubscriptionID)

	update := model.SubscriptionUpdate{
		AccountID:            accountID,
		StripeCustomerID:     e.Customer,
		StripeSubscriptionID: e.SubscriptionID,
		PlanTier:             tier,
		Status:               status,
		WordLimit:            limit,
		PeriodStart:          e.PeriodStart,
		PeriodEnd:            e.PeriodEnd,
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.UpsertSubscription(ctx, update); err != nil {
		return fmt.Errorf("failed to upsert subscription for account %s: %w", accountID, err)
	}

	r.logger.InfoContext(ctx, "Subscription reconciled",
		"account_id", accountID,
		"subscription_id", e.SubscriptionID,
		"plan_tier", tier,
		"status", status)
	return nil
}

func (r *Reconciler) ApplySubscriptionCanceled(ctx context.Context, e SubscriptionCanceled) error {
	accountID, err := r.resolver.Resolve(ctx, e.Customer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Quota fields stay as they are; canceled accounts keep their usage
	// history.
	if err := r.store.SetSubscriptionStatus(ctx, accountID, e.Customer, model.SubscriptionStatusCanceled); err != nil {
		return fmt.Errorf("failed to cancel subscription for account %s: %w", accountID, err)
	}

	r.logger.InfoContext(ctx, "Subscription canceled", "account_id", accountID, "subscription_id", e.SubscriptionID)
	return nil
}

func (r *Reconciler) ApplyPaymentSucceeded(ctx context.Context, e PaymentSucceeded) error {
	accountID, err := r.resolver.Resolve(ctx, e.Customer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The only operation allowed to reset usage. Replaying the same invoice
	// event resets to zero again, which is the same stored state.
	if err := r.store.ResetWordsUsed(ctx, accountID, e.Customer); err != nil {
		return fmt.Errorf("failed to reset word usage for account %s: %w", accountID, err)
	}

	r.logger.InfoContext(ctx, "Word usage reset for new billing period", "account_id", accountID, "invoice_id", e.InvoiceID)
	return nil
}

func (r *Reconciler) ApplyPaymentFailed(ctx context.Context, e PaymentFailed) error {
	accountID, err := r.resolver.Resolve(ctx, e.Customer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.SetSubscriptionStatus(ctx, accountID, e.Customer, model.SubscriptionStatusPastDue); err != nil {
		return fmt.Errorf("failed to mark subscription past due for account %s: %w", accountID, err)
	}

	r.logger.WarnContext(ctx, "Payment failed, subscription past due", "account_id", accountID, "invoice_id", e.InvoiceID)
	return nil
}

// mapStatus converts the provider's status vocabulary into the local enum.
// Statuses outside the known set map to active with a warning.
func (r *Reconciler) mapStatus(ctx context.Context, providerStatus, subscriptionID string) model.SubscriptionStatus {
	switch providerStatus {
	case "trialing":
		return model.SubscriptionStatusTrialing
	case "active":
		return model.SubscriptionStatusActive
	case "past_due":
		return model.SubscriptionStatusPastDue
	case "canceled":
		return model.SubscriptionStatusCanceled
	default:
		r.logger.WarnContext(ctx, "Unmapped provider subscription status, defaulting to active",
			"provider_status", providerStatus,
			"subscription_id", subscriptionID)
		return model.SubscriptionStatusActive
	}
}
