package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"inkwell/internal/ai"
	"inkwell/internal/billing"
	"inkwell/internal/database"
	"inkwell/internal/model"
	"inkwell/internal/stripe"
	"inkwell/internal/telemetry"
)

// Store is the persistence surface the handlers need. *database.Database
// satisfies it.
type Store interface {
	CreateAccount(ctx context.Context, account model.Account) error
	GetAccountByID(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetSubscriptionByAccountID(ctx context.Context, accountID uuid.UUID) (model.Subscription, error)
	AddWordsUsed(ctx context.Context, accountID uuid.UUID, words int) error
	RefundWordsUsed(ctx context.Context, accountID uuid.UUID, words int) error
}

type Handler struct {
	logger        *slog.Logger
	store         Store
	stripeClient  *stripe.Client
	dispatcher    *billing.Dispatcher
	aiService     *ai.Service
	telemetry     *telemetry.Telemetry
	validate      *validator.Validate
	webhookSecret string
}

func NewHandler(
	logger *slog.Logger,
	store Store,
	stripeClient *stripe.Client,
	dispatcher *billing.Dispatcher,
	aiService *ai.Service,
	tel *telemetry.Telemetry,
	webhookSecret string,
) *Handler {
	return &Handler{
		logger:        logger,
		store:         store,
		stripeClient:  stripeClient,
		dispatcher:    dispatcher,
		aiService:     aiService,
		telemetry:     tel,
		validate:      validator.New(),
		webhookSecret: webhookSecret,
	}
}

func (h *Handler) RegisterRoutes(app *fiber.App) {
	apiGroup := app.Group("/api")
	apiGroup.Post("/webhooks/stripe", h.HandleStripeWebhook)
	apiGroup.Post("/accounts", h.CreateAccount)
	apiGroup.Post("/checkout/sessions", h.CreateCheckoutSession)
	apiGroup.Get("/accounts/:id/usage", h.GetAccountUsage)
	apiGroup.Post("/ai", h.GenerateContent)
}

// HandleStripeWebhook verifies and applies a billing event. Stripe retries
// on any non-2xx response, so the status code distinguishes terminal
// rejections (400) from failures worth retrying (500).
func (h *Handler) HandleStripeWebhook(c *fiber.Ctx) error {
	ctx := c.Context()

	event, err := billing.VerifyPayload(c.Body(), c.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.logger.WarnContext(ctx, "Rejected webhook with invalid signature", "error", err)
		h.telemetry.RecordBillingEvent(ctx, "unknown", "rejected")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid signature",
		})
	}

	eventType := string(event.Type)

	if err := h.dispatcher.Dispatch(ctx, event); err != nil {
		if billing.Retryable(err) {
			h.logger.ErrorContext(ctx, "Failed to apply webhook event", "type", eventType, "error", err)
			h.telemetry.RecordBillingEvent(ctx, eventType, "failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Event processing failed",
			})
		}

		h.logger.WarnContext(ctx, "Rejected malformed webhook event", "type", eventType, "error", err)
		h.telemetry.RecordBillingEvent(ctx, eventType, "rejected")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Malformed payload",
		})
	}

	h.telemetry.RecordBillingEvent(ctx, eventType, "ok")
	return c.JSON(fiber.Map{
		"received": true,
	})
}

type createAccountRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	ctx := c.Context()

	var req createAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	now := time.Now().UTC()
	account := model.Account{
		ID:        uuid.New(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateAccount(ctx, account); err != nil {
		h.logger.ErrorContext(ctx, "Failed to create account", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create account",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    account.ID,
		"name":  account.Name,
		"email": account.Email,
	})
}

type createCheckoutSessionRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid4"`
	PriceID   string `json:"price_id" validate:"required,startswith=price_"`
}

func (h *Handler) CreateCheckoutSession(c *fiber.Ctx) error {
	ctx := c.Context()

	var req createCheckoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account id",
		})
	}

	account, err := h.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Account not found",
			})
		}
		h.logger.ErrorContext(ctx, "Failed to load account", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load account",
		})
	}

	// Reuse the customer a previous billing event recorded, otherwise
	// create one tagged with the account id so webhook events resolve back.
	var customerID string
	sub, err := h.store.GetSubscriptionByAccountID(ctx, accountID)
	switch {
	case err == nil && sub.StripeCustomerID != nil:
		customerID = *sub.StripeCustomerID
	case err == nil, errors.Is(err, database.ErrSubscriptionNotFound):
		customerID, err = h.stripeClient.CreateCustomer(ctx, account.Email, accountID)
		if err != nil {
			h.logger.ErrorContext(ctx, "Failed to create customer", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create checkout session",
			})
		}
	default:
		h.logger.ErrorContext(ctx, "Failed to load subscription", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create checkout session",
		})
	}

	session, err := h.stripeClient.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		CustomerID: customerID,
		AccountID:  accountID,
		PriceID:    req.PriceID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to create checkout session", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create checkout session",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": session.ID,
		"url":        session.URL,
	})
}

func (h *Handler) GetAccountUsage(c *fiber.Ctx) error {
	ctx := c.Context()

	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account id",
		})
	}

	sub, err := h.store.GetSubscriptionByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, database.ErrSubscriptionNotFound) {
			// No billing event has touched this account yet.
			return c.JSON(fiber.Map{
				"account_id": accountID,
				"plan_tier":  model.PlanTierFree,
				"status":     model.SubscriptionStatusNone,
				"word_limit": model.WordLimitFree,
				"words_used": 0,
			})
		}
		h.logger.ErrorContext(ctx, "Failed to load subscription", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load usage",
		})
	}

	return c.JSON(fiber.Map{
		"account_id":           sub.AccountID,
		"plan_tier":            sub.PlanTier,
		"status":               sub.Status,
		"word_limit":           sub.WordLimit,
		"words_used":           sub.WordsUsed,
		"current_period_start": sub.CurrentPeriodStart,
		"current_period_end":   sub.CurrentPeriodEnd,
	})
}

type generateContentRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid4"`
	ai.Request
}

// GenerateContent proxies a writing request to an AI backend. The word
// quota is charged for the input before the upstream call so an account
// over its limit never reaches the backend; the charge is refunded when the
// backend fails.
func (h *Handler) GenerateContent(c *fiber.Ctx) error {
	ctx := c.Context()

	var req generateContentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid account id",
		})
	}

	words := ai.CountWords(req.Content)
	if err := h.store.AddWordsUsed(ctx, accountID, words); err != nil {
		if errors.Is(err, database.ErrWordQuotaExceeded) {
			h.telemetry.RecordAIGeneration(ctx, req.Provider, false)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Word limit reached for the current plan",
			})
		}
		h.logger.ErrorContext(ctx, "Failed to record word usage", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record word usage",
		})
	}

	result, err := h.aiService.Generate(ctx, req.Request)
	if err != nil {
		if refundErr := h.store.RefundWordsUsed(ctx, accountID, words); refundErr != nil {
			h.logger.ErrorContext(ctx, "Failed to refund word usage", "account_id", accountID, "words", words, "error", refundErr)
		}
		h.logger.ErrorContext(ctx, "Failed to generate content", "provider", req.Provider, "error", err)
		h.telemetry.RecordAIGeneration(ctx, req.Provider, false)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Content generation failed",
		})
	}

	h.telemetry.RecordAIGeneration(ctx, req.Provider, true)
	return c.JSON(result)
}
