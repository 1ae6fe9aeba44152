package database

import (
	"context"
	"sync"
	"time"

	"inkwell/internal/model"

	"github.com/google/uuid"
)

// MemoryStore implements the same subscription gateway contract as Database
// against an in-process map. It exists so the reconciler can be exercised
// deterministically without Postgres; its conditional-write semantics mirror
// the SQL statements in database.go.
type MemoryStore struct {
	mu            sync.Mutex
	subscriptions map[uuid.UUID]model.Subscription

	// FailWrites makes every write return the given error, for simulating a
	// transient store outage.
	FailWrites error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subscriptions: make(map[uuid.UUID]model.Subscription)}
}

func (s *MemoryStore) UpsertSubscription(_ context.Context, update model.SubscriptionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}

	now := time.Now().UTC()
	sub, ok := s.subscriptions[update.AccountID]
	if !ok {
		sub = model.Subscription{
			AccountID: update.AccountID,
			PlanTier:  model.PlanTierFree,
			Status:    model.SubscriptionStatusNone,
			WordLimit: model.PlanTierFree.WordLimit(),
			CreatedAt: now,
		}
	}

	if sub.StripeCustomerID == nil {
		customerID := update.StripeCustomerID
		sub.StripeCustomerID = &customerID
	}

	applyPeriod := sub.StripeSubscriptionID == nil ||
		*sub.StripeSubscriptionID != update.StripeSubscriptionID ||
		sub.CurrentPeriodEnd == nil ||
		!update.PeriodEnd.Before(*sub.CurrentPeriodEnd)
	if applyPeriod {
		periodStart, periodEnd := update.PeriodStart, update.PeriodEnd
		sub.CurrentPeriodStart = &periodStart
		sub.CurrentPeriodEnd = &periodEnd
	}

	subscriptionID := update.StripeSubscriptionID
	sub.StripeSubscriptionID = &subscriptionID
	sub.PlanTier = update.PlanTier
	sub.Status = update.Status
	sub.WordLimit = update.WordLimit
	sub.UpdatedAt = now

	s.subscriptions[update.AccountID] = sub
	return nil
}

func (s *MemoryStore) SetSubscriptionStatus(_ context.Context, accountID uuid.UUID, customerID string, status model.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}

	sub := s.getOrCreateLocked(accountID, customerID)
	sub.Status = status
	sub.UpdatedAt = time.Now().UTC()
	s.subscriptions[accountID] = sub
	return nil
}

func (s *MemoryStore) ResetWordsUsed(_ context.Context, accountID uuid.UUID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}

	sub := s.getOrCreateLocked(accountID, customerID)
	sub.WordsUsed = 0
	sub.UpdatedAt = time.Now().UTC()
	s.subscriptions[accountID] = sub
	return nil
}

func (s *MemoryStore) AddWordsUsed(_ context.Context, accountID uuid.UUID, words int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}

	sub := s.getOrCreateLocked(accountID, "")
	if sub.WordsUsed+words > sub.WordLimit {
		return ErrWordQuotaExceeded
	}
	sub.WordsUsed += words
	sub.UpdatedAt = time.Now().UTC()
	s.subscriptions[accountID] = sub
	return nil
}

func (s *MemoryStore) RefundWordsUsed(_ context.Context, accountID uuid.UUID, words int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}

	sub, ok := s.subscriptions[accountID]
	if !ok {
		return nil
	}
	sub.WordsUsed -= words
	if sub.WordsUsed < 0 {
		sub.WordsUsed = 0
	}
	sub.UpdatedAt = time.Now().UTC()
	s.subscriptions[accountID] = sub
	return nil
}

func (s *MemoryStore) GetSubscriptionByAccountID(_ context.Context, accountID uuid.UUID) (model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[accountID]
	if !ok {
		return model.Subscription{}, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *MemoryStore) getOrCreateLocked(accountID uuid.UUID, customerID string) model.Subscription {
	sub, ok := s.subscriptions[accountID]
	if !ok {
		now := time.Now().UTC()
		sub = model.Subscription{
			AccountID: accountID,
			PlanTier:  model.PlanTierFree,
			Status:    model.SubscriptionStatusNone,
			WordLimit: model.PlanTierFree.WordLimit(),
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if sub.StripeCustomerID == nil && customerID != "" {
		sub.StripeCustomerID = &customerID
	}
	return sub
}
