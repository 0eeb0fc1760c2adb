package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marminbh/billing-gateway/internal/config"
	"github.com/marminbh/billing-gateway/internal/stripe"
)

const (
	testSecret  = "whsec_test_secret"
	webhookPath = "/webhooks/stripe"
)

type mockProfileStore struct {
	err   error
	calls []string
}

func (m *mockProfileStore) SetPremium(ctx context.Context, userID string) error {
	m.calls = append(m.calls, userID)
	return m.err
}

type mockRecorder struct {
	events  []stripe.Event
	handled []bool
	errs    []error
}

func (m *mockRecorder) Record(ctx context.Context, event stripe.Event, handled bool, processingErr error) {
	m.events = append(m.events, event)
	m.handled = append(m.handled, handled)
	m.errs = append(m.errs, processingErr)
}

type mockNotifier struct {
	err   error
	calls [][2]string
}

func (m *mockNotifier) NotifyPremiumActivated(userID, providerEventID string) error {
	m.calls = append(m.calls, [2]string{userID, providerEventID})
	return m.err
}

func testConfig() *config.Config {
	return &config.Config{
		Stripe: config.StripeConfig{WebhookSecret: testSecret},
		Supabase: config.SupabaseConfig{
			URL:            "http://localhost:54321",
			ServiceRoleKey: "service-role-key",
		},
	}
}

func newTestApp(cfg *config.Config, store ProfileStore, recorder EventRecorder, notifier ActivationNotifier) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(zap.NewNop()),
	})
	app.Use(CORS())

	handler := NewWebhookHandler(cfg, store, recorder, notifier, zap.NewNop())
	app.All(webhookPath, handler.HandleStripeWebhook)
	return app
}

func signedRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, webhookPath, strings.NewReader(body))
	timestamp := "1714000000"
	signature := stripe.ComputeSignature(timestamp, []byte(body), testSecret)
	req.Header.Set(stripe.SignatureHeader, "t="+timestamp+",v1="+signature)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return body
}

func TestHandleStripeWebhook_Options(t *testing.T) {
	app := newTestApp(testConfig(), &mockProfileStore{}, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, webhookPath, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, "POST, OPTIONS")
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); !strings.Contains(got, "stripe-signature") {
		t.Errorf("Access-Control-Allow-Headers = %q, want it to include stripe-signature", got)
	}
}

func TestHandleStripeWebhook_MethodNotAllowed(t *testing.T) {
	app := newTestApp(testConfig(), &mockProfileStore{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, webhookPath, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandleStripeWebhook_MissingConfiguration(t *testing.T) {
	cfg := testConfig()
	cfg.Stripe.WebhookSecret = ""
	app := newTestApp(cfg, &mockProfileStore{}, nil, nil)

	req := signedRequest(`{"type":"invoice.paid"}`)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Missing server configuration" {
		t.Errorf("error = %v, want %q", body["error"], "Missing server configuration")
	}
}

func TestHandleStripeWebhook_MissingSignatureHeader(t *testing.T) {
	app := newTestApp(testConfig(), &mockProfileStore{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, webhookPath, strings.NewReader(`{}`))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Missing stripe-signature header" {
		t.Errorf("error = %v, want %q", body["error"], "Missing stripe-signature header")
	}
}

func TestHandleStripeWebhook_BadSignatureFormat(t *testing.T) {
	app := newTestApp(testConfig(), &mockProfileStore{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, webhookPath, strings.NewReader(`{}`))
	req.Header.Set(stripe.SignatureHeader, "t=123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Bad stripe-signature format" {
		t.Errorf("error = %v, want %q", body["error"], "Bad stripe-signature format")
	}
}

func TestHandleStripeWebhook_InvalidSignature(t *testing.T) {
	app := newTestApp(testConfig(), &mockProfileStore{}, nil, nil)

	body := `{"type":"checkout.session.completed"}`
	req := httptest.NewRequest(http.MethodPost, webhookPath, strings.NewReader(body))
	wrongSig := stripe.ComputeSignature("1714000000", []byte(body), "whsec_wrong_secret")
	req.Header.Set(stripe.SignatureHeader, "t=1714000000,v1="+wrongSig)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	respBody := decodeBody(t, resp)
	if respBody["error"] != "Invalid signature" {
		t.Errorf("error = %v, want %q", respBody["error"], "Invalid signature")
	}
}

func TestHandleStripeWebhook_CheckoutCompleted(t *testing.T) {
	store := &mockProfileStore{}
	recorder := &mockRecorder{}
	notifier := &mockNotifier{}
	app := newTestApp(testConfig(), store, recorder, notifier)

	req := signedRequest(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "client_reference_id": "user-1"}}
	}`)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["received"] != true {
		t.Errorf("received = %v, want true", body["received"])
	}

	if len(store.calls) != 1 || store.calls[0] != "user-1" {
		t.Errorf("store calls = %v, want exactly one for user-1", store.calls)
	}
	if len(recorder.events) != 1 || !recorder.handled[0] {
		t.Errorf("recorder = %d events (handled=%v), want one handled event", len(recorder.events), recorder.handled)
	}
	if len(notifier.calls) != 1 || notifier.calls[0] != [2]string{"user-1", "evt_1"} {
		t.Errorf("notifier calls = %v, want one for user-1/evt_1", notifier.calls)
	}
}

func TestHandleStripeWebhook_MetadataFallback(t *testing.T) {
	store := &mockProfileStore{}
	app := newTestApp(testConfig(), store, nil, nil)

	req := signedRequest(`{
		"id": "evt_2",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_2", "metadata": {"supabase_user_id": "user-2"}}}
	}`)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if len(store.calls) != 1 || store.calls[0] != "user-2" {
		t.Errorf("store calls = %v, want exactly one for user-2", store.calls)
	}
}

func TestHandleStripeWebhook_NoUserID(t *testing.T) {
	store := &mockProfileStore{}
	app := newTestApp(testConfig(), store, nil, nil)

	req := signedRequest(`{
		"id": "evt_3",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_3"}}
	}`)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "No user id in session." {
		t.Errorf("error = %v, want %q", body["error"], "No user id in session.")
	}
	if len(store.calls) != 0 {
		t.Errorf("store calls = %v, want none", store.calls)
	}
}

func TestHandleStripeWebhook_UnhandledEventType(t *testing.T) {
	store := &mockProfileStore{}
	recorder := &mockRecorder{}
	app := newTestApp(testConfig(), store, recorder, nil)

	req := signedRequest(`{
		"id": "evt_4",
		"type": "invoice.paid",
		"data": {"object": {"id": "in_1"}}
	}`)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["received"] != true {
		t.Errorf("received = %v, want true", body["received"])
	}
	if len(store.calls) != 0 {
		t.Errorf("store calls = %v, want none for unhandled event type", store.calls)
	}
	// Unhandled types are still recorded, never silently swallowed
	if len(recorder.events) != 1 || recorder.handled[0] {
		t.Errorf("recorder = %d events (handled=%v), want one unhandled event", len(recorder.events), recorder.handled)
	}
}

func TestHandleStripeWebhook_StoreFailure(t *testing.T) {
	store := &mockProfileStore{err: errors.New("profiles update returned status 403: permission denied")}
	app := newTestApp(testConfig(), store, nil, nil)

	req := signedRequest(`{
		"id": "evt_5",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_5", "client_reference_id": "user-1"}}
	}`)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "DB update failed" {
		t.Errorf("error = %v, want %q", body["error"], "DB update failed")
	}
	details, _ := body["details"].(string)
	if !strings.Contains(details, "permission denied") {
		t.Errorf("details = %q, want store failure detail embedded", details)
	}
}

func TestHandleStripeWebhook_MalformedJSON(t *testing.T) {
	app := newTestApp(testConfig(), &mockProfileStore{}, nil, nil)

	// Correct signature over a body that is not valid JSON: the outer
	// boundary reports it as an unhandled error.
	req := signedRequest(`{"type": "checkout`)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Unhandled error" {
		t.Errorf("error = %v, want %q", body["error"], "Unhandled error")
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q on error responses", got, "*")
	}
}

func TestHandleStripeWebhook_NotifierFailureDoesNotChangeResponse(t *testing.T) {
	store := &mockProfileStore{}
	notifier := &mockNotifier{err: errors.New("broker unavailable")}
	app := newTestApp(testConfig(), store, nil, notifier)

	req := signedRequest(`{
		"id": "evt_6",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_6", "client_reference_id": "user-1"}}
	}`)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 despite notifier failure", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["received"] != true {
		t.Errorf("received = %v, want true", body["received"])
	}
}
