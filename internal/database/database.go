package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inkwell/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrWordQuotaExceeded    = errors.New("word quota exceeded")
)

type Database struct {
	Pool *pgxpool.Pool
}

func NewDatabase() Database {
	return Database{}
}

func (db *Database) Connect(ctx context.Context, connString string) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("unable to parse database configuration: %w", err)
	}

	db.Pool, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("unable to create database pool: %w", err)
	}

	if err := db.Pool.Ping(ctx); err != nil {
		db.Pool.Close()
		return fmt.Errorf("unable to ping database: %w", err)
	}

	return nil
}

func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *Database) CreateAccount(ctx context.Context, account model.Account) error {
	if _, err := db.Pool.Exec(ctx,
		`INSERT INTO tbl_account (id, name, email, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		account.ID, account.Name, account.Email, account.CreatedAt, account.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (db *Database) GetAccountByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	var account model.Account
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, email, created_at, updated_at FROM tbl_account WHERE id = $1`, id).Scan(
		&account.ID, &account.Name, &account.Email, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account, ErrAccountNotFound
		}
		return account, fmt.Errorf("failed to get account by id: %w", err)
	}
	return account, nil
}

func (db *Database) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	var account model.Account
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, email, created_at, updated_at FROM tbl_account WHERE email = $1`, email).Scan(
		&account.ID, &account.Name, &account.Email, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return account, ErrAccountNotFound
		}
		return account, fmt.Errorf("failed to get account by email: %w", err)
	}
	return account, nil
}

func (db *Database) GetSubscriptionByAccountID(ctx context.Context, accountID uuid.UUID) (model.Subscription, error) {
	var sub model.Subscription
	err := db.Pool.QueryRow(ctx,
		`SELECT account_id, stripe_customer_id, stripe_subscription_id, plan_tier, status,
		        current_period_start, current_period_end, word_limit, words_used, created_at, updated_at
		 FROM tbl_subscription WHERE account_id = $1`, accountID).Scan(
		&sub.AccountID, &sub.StripeCustomerID, &sub.StripeSubscriptionID, &sub.PlanTier, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.WordLimit, &sub.WordsUsed, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sub, ErrSubscriptionNotFound
		}
		return sub, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// UpsertSubscription applies a subscription change as a single conditional
// write. The period columns only move when the provider subscription id
// changed (a fresh cycle replaces them wholesale) or when the incoming
// period_end does not regress the stored one; a delayed duplicate therefore
// cannot stomp a newer period with stale data. The customer id is written
// once and kept afterwards, and words_used is never touched here.
func (db *Database) UpsertSubscription(ctx context.Context, update model.SubscriptionUpdate) error {
	now := time.Now().UTC()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO tbl_subscription
			(account_id, stripe_customer_id, stripe_subscription_id, plan_tier, status,
			 current_period_start, current_period_end, word_limit, words_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $9)
		ON CONFLICT (account_id) DO UPDATE SET
			stripe_customer_id     = COALESCE(tbl_subscription.stripe_customer_id, EXCLUDED.stripe_customer_id),
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			plan_tier              = EXCLUDED.plan_tier,
			status                 = EXCLUDED.status,
			word_limit             = EXCLUDED.word_limit,
			current_period_start   = CASE
				WHEN tbl_subscription.stripe_subscription_id IS DISTINCT FROM EXCLUDED.stripe_subscription_id
					OR tbl_subscription.current_period_end IS NULL
					OR EXCLUDED.current_period_end >= tbl_subscription.current_period_end
				THEN EXCLUDED.current_period_start
				ELSE tbl_subscription.current_period_start
			END,
			current_period_end     = CASE
				WHEN tbl_subscription.stripe_subscription_id IS DISTINCT FROM EXCLUDED.stripe_subscription_id
					OR tbl_subscription.current_period_end IS NULL
					OR EXCLUDED.current_period_end >= tbl_subscription.current_period_end
				THEN EXCLUDED.current_period_end
				ELSE tbl_subscription.current_period_end
			END,
			updated_at             = EXCLUDED.updated_at`,
		update.AccountID, update.StripeCustomerID, update.StripeSubscriptionID, update.PlanTier, update.Status,
		update.PeriodStart, update.PeriodEnd, update.WordLimit, now)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// SetSubscriptionStatus updates only the status, creating a free-tier record
// first if the account has none yet.
func (db *Database) SetSubscriptionStatus(ctx context.Context, accountID uuid.UUID, customerID string, status model.SubscriptionStatus) error {
	now := time.Now().UTC()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO tbl_subscription
			(account_id, stripe_customer_id, plan_tier, status, word_limit, words_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			stripe_customer_id = COALESCE(tbl_subscription.stripe_customer_id, EXCLUDED.stripe_customer_id),
			status             = EXCLUDED.status,
			updated_at         = EXCLUDED.updated_at`,
		accountID, customerID, model.PlanTierFree, status, model.PlanTierFree.WordLimit(), now)
	if err != nil {
		return fmt.Errorf("failed to set subscription status: %w", err)
	}
	return nil
}

// ResetWordsUsed zeroes the usage counter. Resetting an already-zero counter
// is the same stored state, which keeps payment-succeeded replays idempotent.
func (db *Database) ResetWordsUsed(ctx context.Context, accountID uuid.UUID, customerID string) error {
	now := time.Now().UTC()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO tbl_subscription
			(account_id, stripe_customer_id, plan_tier, status, word_limit, words_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			stripe_customer_id = COALESCE(tbl_subscription.stripe_customer_id, EXCLUDED.stripe_customer_id),
			words_used         = 0,
			updated_at         = EXCLUDED.updated_at`,
		accountID, customerID, model.PlanTierFree, model.SubscriptionStatusNone, model.PlanTierFree.WordLimit(), now)
	if err != nil {
		return fmt.Errorf("failed to reset word usage: %w", err)
	}
	return nil
}

// AddWordsUsed charges words against the account's quota as one conditional
// increment. Accounts without a record yet get a free-tier row first, so the
// free quota is enforced before any billing event has arrived.
func (db *Database) AddWordsUsed(ctx context.Context, accountID uuid.UUID, words int) error {
	now := time.Now().UTC()
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO tbl_subscription
			(account_id, plan_tier, status, word_limit, words_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
		ON CONFLICT (account_id) DO NOTHING`,
		accountID, model.PlanTierFree, model.SubscriptionStatusNone, model.PlanTierFree.WordLimit(), now); err != nil {
		return fmt.Errorf("failed to ensure subscription record: %w", err)
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE tbl_subscription
		SET words_used = words_used + $2, updated_at = $3
		WHERE account_id = $1 AND words_used + $2 <= word_limit`,
		accountID, words, now)
	if err != nil {
		return fmt.Errorf("failed to add word usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWordQuotaExceeded
	}
	return nil
}

// RefundWordsUsed returns words charged for work that never happened. The
// decrement clamps at zero so a refund racing a period reset cannot drive
// the counter negative.
func (db *Database) RefundWordsUsed(ctx context.Context, accountID uuid.UUID, words int) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE tbl_subscription
		SET words_used = GREATEST(words_used - $2, 0), updated_at = $3
		WHERE account_id = $1`,
		accountID, words, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to refund word usage: %w", err)
	}
	return nil
}
