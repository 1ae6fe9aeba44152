package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CustomerDirectory looks up the internal account id stored in a provider
// customer's metadata at customer-creation time.
type CustomerDirectory interface {
	AccountIDForCustomer(ctx context.Context, customerID string) (uuid.UUID, error)
}

// Cache stores resolved customer → account mappings. The linkage is assigned
// once when the customer is created and never changes, so entries are safe to
// keep for the lifetime of the process.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

type Resolver struct {
	logger    *slog.Logger
	directory CustomerDirectory
	cache     Cache
	timeout   time.Duration
}

func NewResolver(logger *slog.Logger, directory CustomerDirectory, cache Cache, timeout time.Duration) *Resolver {
	return &Resolver{logger: logger, directory: directory, cache: cache, timeout: timeout}
}

// Resolve maps a provider customer id to the internal account id. Lookup
// failures and missing metadata both surface as ErrUnresolvedAccount; the
// dispatcher treats that as retryable because a customer update elsewhere may
// repair the linkage before the provider redelivers. Only successful
// resolutions are cached.
func (r *Resolver) Resolve(ctx context.Context, customerID string) (uuid.UUID, error) {
	if cached, ok := r.cache.Get(ctx, customerID); ok {
		accountID, err := uuid.Parse(cached)
		if err == nil {
			return accountID, nil
		}
		r.logger.WarnContext(ctx, "Discarding unparseable cached account id", "customer_id", customerID, "cached", cached)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	accountID, err := r.directory.AccountIDForCustomer(ctx, customerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: customer %s: %v", ErrUnresolvedAccount, customerID, err)
	}

	r.cache.Set(ctx, customerID, accountID.String())
	return accountID, nil
}
