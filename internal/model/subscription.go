package model

import (
	"time"

	"github.com/google/uuid"
)

type PlanTier string

const (
	PlanTierFree PlanTier = "free"
	PlanTierPro  PlanTier = "pro"
	PlanTierTeam PlanTier = "team"
)

// Word quotas per billing period.
const (
	WordLimitFree = 5000
	WordLimitPro  = 50000
	WordLimitTeam = 100000
)

// WordLimit returns the per-period word quota for the tier.
func (t PlanTier) WordLimit() int {
	switch t {
	case PlanTierPro:
		return WordLimitPro
	case PlanTierTeam:
		return WordLimitTeam
	default:
		return WordLimitFree
	}
}

type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is the persisted billing state for one account. There is at
// most one row per account; it is created lazily by the first billing event
// that references the account and is never hard-deleted.
type Subscription struct {
	AccountID            uuid.UUID
	StripeCustomerID     *string
	StripeSubscriptionID *string
	PlanTier             PlanTier
	Status               SubscriptionStatus
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	WordLimit            int
	WordsUsed            int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SubscriptionUpdate carries the fields a subscription change event wants to
// apply. The persistence gateway applies it as a single conditional write:
// period fields only land when they do not regress the stored period for the
// same provider subscription id.
type SubscriptionUpdate struct {
	AccountID            uuid.UUID
	StripeCustomerID     string
	StripeSubscriptionID string
	PlanTier             PlanTier
	Status               SubscriptionStatus
	WordLimit            int
	PeriodStart          time.Time
	PeriodEnd            time.Time
}
