package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"inkwell/internal/ai"
	"inkwell/internal/api"
	"inkwell/internal/billing"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/model"
	"inkwell/internal/telemetry"
)

const testWebhookSecret = "whsec_test"

type fakeStore struct {
	*database.MemoryStore
	mu       sync.Mutex
	accounts map[uuid.UUID]model.Account
}

func (s *fakeStore) CreateAccount(_ context.Context, account model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
	return nil
}

func (s *fakeStore) GetAccountByID(_ context.Context, id uuid.UUID) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return model.Account{}, database.ErrAccountNotFound
	}
	return account, nil
}

type staticDirectory struct {
	accounts map[string]uuid.UUID
}

func (d *staticDirectory) AccountIDForCustomer(_ context.Context, customerID string) (uuid.UUID, error) {
	accountID, ok := d.accounts[customerID]
	if !ok {
		return uuid.Nil, errors.New("customer has no account metadata")
	}
	return accountID, nil
}

type testApp struct {
	app       *fiber.App
	store     *fakeStore
	accountID uuid.UUID
}

func newTestApp(t *testing.T, aiService *ai.Service) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	accountID := uuid.New()
	store := &fakeStore{
		MemoryStore: database.NewMemoryStore(),
		accounts:    map[uuid.UUID]model.Account{},
	}
	directory := &staticDirectory{accounts: map[string]uuid.UUID{"cus_123": accountID}}

	resolver := billing.NewResolver(logger, directory, cache.NewMemory(), time.Second)
	reconciler := billing.NewReconciler(logger, resolver, store.MemoryStore, time.Second)
	dispatcher := billing.NewDispatcher(logger, reconciler)

	tel, err := telemetry.New(config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)

	handler := api.NewHandler(logger, store, nil, dispatcher, aiService, tel, testWebhookSecret)
	app := fiber.New()
	handler.RegisterRoutes(app)

	return &testApp{app: app, store: store, accountID: accountID}
}

func signedWebhookRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	now := time.Now()
	signature := webhook.ComputeSignature(now, payload, testWebhookSecret)
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%x", now.Unix(), signature))
	return req
}

func subscriptionEventPayload(customerID, priceID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_123",
			"customer": %q,
			"status": "active",
			"current_period_start": 1700000000,
			"current_period_end": 1702592000,
			"items": {"data": [{"price": {"id": %q}}]}
		}}
	}`, customerID, priceID))
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandleStripeWebhook_AppliesSubscriptionEvent(t *testing.T) {
	ta := newTestApp(t, nil)

	resp, err := ta.app.Test(signedWebhookRequest(t, subscriptionEventPayload("cus_123", "price_pro_monthly")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["received"])

	sub, err := ta.store.GetSubscriptionByAccountID(context.Background(), ta.accountID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanTierPro, sub.PlanTier)
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
}

func TestHandleStripeWebhook_RejectsTamperedBody(t *testing.T) {
	ta := newTestApp(t, nil)

	req := signedWebhookRequest(t, subscriptionEventPayload("cus_123", "price_pro_monthly"))
	tampered := subscriptionEventPayload("cus_123", "price_team_monthly")
	req.Body = io.NopCloser(bytes.NewReader(tampered))
	req.ContentLength = int64(len(tampered))

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The event must not have been applied.
	_, err = ta.store.GetSubscriptionByAccountID(context.Background(), ta.accountID)
	assert.ErrorIs(t, err, database.ErrSubscriptionNotFound)
}

func TestHandleStripeWebhook_MissingSignature(t *testing.T) {
	ta := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(subscriptionEventPayload("cus_123", "price_pro_monthly")))
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleStripeWebhook_AcknowledgesUnknownKind(t *testing.T) {
	ta := newTestApp(t, nil)

	payload := []byte(`{"id": "evt_2", "type": "charge.succeeded", "data": {"object": {"id": "ch_1"}}}`)
	resp, err := ta.app.Test(signedWebhookRequest(t, payload), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp)["received"])
}

func TestHandleStripeWebhook_MalformedPayloadIsTerminal(t *testing.T) {
	ta := newTestApp(t, nil)

	payload := []byte(`{"id": "evt_3", "type": "customer.subscription.updated", "data": {"object": {"status": "active"}}}`)
	resp, err := ta.app.Test(signedWebhookRequest(t, payload), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleStripeWebhook_UnresolvedCustomerIsRetryable(t *testing.T) {
	ta := newTestApp(t, nil)

	resp, err := ta.app.Test(signedWebhookRequest(t, subscriptionEventPayload("cus_unknown", "price_pro_monthly")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCreateAccount(t *testing.T) {
	ta := newTestApp(t, nil)

	body := []byte(`{"name": "Ada Lovelace", "email": "ada@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	decoded := decodeBody(t, resp)
	assert.Equal(t, "Ada Lovelace", decoded["name"])
	assert.Equal(t, "ada@example.com", decoded["email"])

	accountID, err := uuid.Parse(decoded["id"].(string))
	require.NoError(t, err)
	stored, err := ta.store.GetAccountByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", stored.Email)
}

func TestCreateAccount_InvalidEmail(t *testing.T) {
	ta := newTestApp(t, nil)

	body := []byte(`{"name": "Ada", "email": "not-an-email"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAccountUsage_DefaultsBeforeAnyBillingEvent(t *testing.T) {
	ta := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/"+ta.accountID.String()+"/usage", nil)
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	decoded := decodeBody(t, resp)
	assert.Equal(t, string(model.PlanTierFree), decoded["plan_tier"])
	assert.Equal(t, string(model.SubscriptionStatusNone), decoded["status"])
	assert.Equal(t, float64(model.WordLimitFree), decoded["word_limit"])
	assert.Equal(t, float64(0), decoded["words_used"])
}

func TestGetAccountUsage_ReflectsStoredState(t *testing.T) {
	ta := newTestApp(t, nil)
	ctx := context.Background()
	require.NoError(t, ta.store.AddWordsUsed(ctx, ta.accountID, 1234))

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/"+ta.accountID.String()+"/usage", nil)
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	decoded := decodeBody(t, resp)
	assert.Equal(t, float64(1234), decoded["words_used"])
}

func TestGenerateContent(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": [{"text": "polished prose"}]}`))
	}))
	defer backend.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	aiService := ai.NewService(logger, config.AIConfig{
		AnthropicBaseURL: backend.URL,
		RequestTimeout:   5 * time.Second,
	})
	ta := newTestApp(t, aiService)

	body := []byte(fmt.Sprintf(`{"account_id": %q, "content": "rough draft", "action": "improve"}`, ta.accountID.String()))
	req := httptest.NewRequest(http.MethodPost, "/api/ai", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	decoded := decodeBody(t, resp)
	assert.Equal(t, "polished prose", decoded["content"])

	// Input words were charged against the quota.
	sub, err := ta.store.GetSubscriptionByAccountID(context.Background(), ta.accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.WordsUsed)
}

func TestGenerateContent_BackendFailureRefundsQuota(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
	}))
	defer backend.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	aiService := ai.NewService(logger, config.AIConfig{
		AnthropicBaseURL: backend.URL,
		RequestTimeout:   5 * time.Second,
	})
	ta := newTestApp(t, aiService)

	body := []byte(fmt.Sprintf(`{"account_id": %q, "content": "rough draft", "action": "improve"}`, ta.accountID.String()))
	req := httptest.NewRequest(http.MethodPost, "/api/ai", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// The charge for the failed request was returned.
	sub, err := ta.store.GetSubscriptionByAccountID(context.Background(), ta.accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, sub.WordsUsed)
}

func TestGenerateContent_QuotaExceeded(t *testing.T) {
	ta := newTestApp(t, nil)
	ctx := context.Background()
	require.NoError(t, ta.store.AddWordsUsed(ctx, ta.accountID, model.WordLimitFree))

	body := []byte(fmt.Sprintf(`{"account_id": %q, "content": "rough draft", "action": "improve"}`, ta.accountID.String()))
	req := httptest.NewRequest(http.MethodPost, "/api/ai", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGenerateContent_InvalidAction(t *testing.T) {
	ta := newTestApp(t, nil)

	body := []byte(fmt.Sprintf(`{"account_id": %q, "content": "rough draft", "action": "translate"}`, ta.accountID.String()))
	req := httptest.NewRequest(http.MethodPost, "/api/ai", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
