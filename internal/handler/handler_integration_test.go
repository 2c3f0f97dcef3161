package handler

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
	"github.com/kursadbilgin/newsletter-dispatch/internal/service"
	"github.com/kursadbilgin/newsletter-dispatch/internal/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestSubscriptionIntegration_Subscribe(t *testing.T) {
	t.Parallel()

	svc := &stubSubscriptionService{
		subscribeFn: func(ctx context.Context, req service.SubscribeRequest) (*domain.Subscriber, error) {
			email := domain.NormalizeEmail(req.Email)
			if err := domain.ValidateEmail(email); err != nil {
				return nil, err
			}
			if email == "taken@example.com" {
				return nil, domain.ErrConflict
			}
			if req.FirstName == nil || *req.FirstName != "Ada" {
				t.Errorf("firstName = %v, want Ada", req.FirstName)
			}
			if req.LastName != nil {
				t.Errorf("blank lastName should be nil, got %q", *req.LastName)
			}
			return &domain.Subscriber{ID: "sub-1", Email: email, IsActive: true}, nil
		},
	}
	app := newSubscriptionTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/subscriptions", `{"email":"ada@example.com","firstName":" Ada ","lastName":"  "}`)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(body))
	}
	if parsed := decodeBody(t, body); parsed["success"] != true {
		t.Fatalf("body = %s, want success true", string(body))
	}

	resp, body = performRequest(t, app, http.MethodPost, "/v1/subscriptions", `{"email":"taken@example.com","firstName":"Ada"}`)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if parsed := decodeBody(t, body); parsed["error"] != "already subscribed" {
		t.Fatalf("error = %v, want already subscribed", parsed["error"])
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/subscriptions", `{"email":"not-an-email","firstName":"Ada"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for invalid email", resp.StatusCode)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/subscriptions", `{"email":`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed body", resp.StatusCode)
	}
}

func TestSubscriptionIntegration_StoreFailureIsGeneric500(t *testing.T) {
	t.Parallel()

	svc := &stubSubscriptionService{
		subscribeFn: func(ctx context.Context, req service.SubscribeRequest) (*domain.Subscriber, error) {
			return nil, errors.New("failed to store subscriber: dial tcp 10.0.0.5:5432: connect: connection refused")
		},
	}
	app := newSubscriptionTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/subscriptions", `{"email":"ada@example.com"}`)
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if strings.Contains(string(body), "10.0.0.5") {
		t.Fatalf("internal details leaked: %s", string(body))
	}
}

func TestSubscriptionIntegration_Unsubscribe(t *testing.T) {
	t.Parallel()

	svc := &stubSubscriptionService{
		unsubscribeFn: func(ctx context.Context, token string) (string, error) {
			switch strings.TrimSpace(token) {
			case "":
				return "", fmt.Errorf("%w: token is required", domain.ErrValidation)
			case "tok-1":
				return "ada@example.com", nil
			default:
				return "", fmt.Errorf("%w: invalid unsubscribe token", domain.ErrNotFound)
			}
		},
	}
	app := newSubscriptionTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/unsubscribe", `{"token":"tok-1"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if parsed := decodeBody(t, body); parsed["email"] != "ada@example.com" {
		t.Fatalf("email = %v, want ada@example.com", parsed["email"])
	}

	resp, body = performRequest(t, app, http.MethodPost, "/v1/unsubscribe", `{"token":"tok-unknown"}`)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if parsed := decodeBody(t, body); parsed["error"] == nil {
		t.Fatal("404 response should carry an error message")
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/unsubscribe", `{}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing token", resp.StatusCode)
	}
}

func TestSubscriptionIntegration_SendWelcome(t *testing.T) {
	t.Parallel()

	svc := &stubSubscriptionService{
		sendWelcomeFn: func(ctx context.Context, req service.WelcomeRequest) (string, error) {
			if req.Email == "down@example.com" {
				return "", fmt.Errorf("failed to send welcome email: %w: resend returned 401: {\"message\":\"API key is invalid\"}", domain.ErrDelivery)
			}
			return "re_123", nil
		},
	}
	app := newSubscriptionTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/welcome", `{"email":"ada@example.com","firstName":"Ada"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if parsed := decodeBody(t, body); parsed["messageId"] != "re_123" {
		t.Fatalf("messageId = %v, want re_123", parsed["messageId"])
	}

	resp, body = performRequest(t, app, http.MethodPost, "/v1/welcome", `{"email":"down@example.com"}`)
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("status = %d, want 502 for provider failure", resp.StatusCode)
	}
	if parsed := decodeBody(t, body); parsed["error"] != "email delivery failed" {
		t.Fatalf("error = %v, want generic delivery message", parsed["error"])
	}
	if strings.Contains(string(body), "API key is invalid") {
		t.Fatalf("provider detail leaked to client: %s", string(body))
	}
}

func TestCampaignIntegration_SendCampaign(t *testing.T) {
	t.Parallel()

	var received []domain.Campaign
	dispatcher := &stubCampaignDispatcher{
		dispatchFn: func(ctx context.Context, campaign domain.Campaign) (domain.DispatchSummary, error) {
			if err := campaign.Validate(); err != nil {
				return domain.DispatchSummary{}, err
			}
			received = append(received, campaign)
			return domain.DispatchSummary{Total: 3, Sent: 2, Failed: 1}, nil
		},
	}
	app := newCampaignTestApp(t, dispatcher, &stubAttemptLister{})

	resp, body := performAdminRequest(t, app, http.MethodPost, "/v1/campaigns/send",
		`{"blogPost":{"title":"Scaling Smart","slug":"scaling-smart","excerpt":"How to grow"}}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	parsed := decodeBody(t, body)
	if parsed["total"] != float64(3) || parsed["sent"] != float64(2) || parsed["failed"] != float64(1) {
		t.Fatalf("summary = %s, want total 3 sent 2 failed 1", string(body))
	}
	if _, ok := parsed["skipped"]; ok {
		t.Fatal("skipped should be omitted when zero")
	}

	resp, _ = performAdminRequest(t, app, http.MethodPost, "/v1/campaigns/send",
		`{"campaign":{"title":"Second","slug":"second"}}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 for campaign key", resp.StatusCode)
	}
	if len(received) != 2 || received[1].Slug != "second" {
		t.Fatalf("received = %+v", received)
	}

	resp, _ = performAdminRequest(t, app, http.MethodPost, "/v1/campaigns/send", `{}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing content", resp.StatusCode)
	}

	resp, _ = performAdminRequest(t, app, http.MethodPost, "/v1/campaigns/send", `{"blogPost":{"title":"No slug"}}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing slug", resp.StatusCode)
	}
}

func TestCampaignIntegration_SendCampaignInterrupted(t *testing.T) {
	t.Parallel()

	dispatcher := &stubCampaignDispatcher{
		dispatchFn: func(ctx context.Context, campaign domain.Campaign) (domain.DispatchSummary, error) {
			return domain.DispatchSummary{Total: 100, Sent: 50, Skipped: 50},
				fmt.Errorf("campaign dispatch interrupted: %w", context.Canceled)
		},
	}
	app := newCampaignTestApp(t, dispatcher, &stubAttemptLister{})

	resp, body := performAdminRequest(t, app, http.MethodPost, "/v1/campaigns/send", `{"blogPost":{"title":"T","slug":"t"}}`)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	parsed := decodeBody(t, body)
	if parsed["sent"] != float64(50) || parsed["skipped"] != float64(50) {
		t.Fatalf("partial summary = %s", string(body))
	}
}

func TestCampaignIntegration_ListAttempts(t *testing.T) {
	t.Parallel()

	failure := "provider returned 422"
	messageID := "re_1"
	lister := &stubAttemptLister{
		listFn: func(ctx context.Context, campaignSlug string) ([]domain.DeliveryAttempt, error) {
			if campaignSlug != "scaling-smart" {
				return nil, nil
			}
			return []domain.DeliveryAttempt{
				{ID: "a-1", CampaignSlug: campaignSlug, RecipientEmail: "a@example.com", Success: true, ProviderMessageID: &messageID},
				{ID: "a-2", CampaignSlug: campaignSlug, RecipientEmail: "b@example.com", Error: &failure},
			}, nil
		},
	}
	app := newCampaignTestApp(t, &stubCampaignDispatcher{}, lister)

	resp, body := performAdminRequest(t, app, http.MethodGet, "/v1/campaigns/scaling-smart/attempts", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var parsed listAttemptsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(parsed.Data) != 2 {
		t.Fatalf("attempts = %d, want 2", len(parsed.Data))
	}
	if parsed.Meta.Sent != 1 || parsed.Meta.Failed != 1 || parsed.Meta.Total != 2 {
		t.Fatalf("meta = %+v", parsed.Meta)
	}
	if parsed.Data[1].Error == nil || *parsed.Data[1].Error != failure {
		t.Fatalf("failed attempt error = %v", parsed.Data[1].Error)
	}

	resp, body = performAdminRequest(t, app, http.MethodGet, "/v1/campaigns/unknown/attempts", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 for empty history", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if parsed.Data == nil || len(parsed.Data) != 0 {
		t.Fatalf("data = %v, want empty list", parsed.Data)
	}
}

func TestCampaignIntegration_RequiresAdminKey(t *testing.T) {
	t.Parallel()

	dispatched := 0
	dispatcher := &stubCampaignDispatcher{
		dispatchFn: func(ctx context.Context, campaign domain.Campaign) (domain.DispatchSummary, error) {
			dispatched++
			return domain.DispatchSummary{Total: 1, Sent: 1}, nil
		},
	}
	app := newCampaignTestApp(t, dispatcher, &stubAttemptLister{})
	sendBody := `{"blogPost":{"title":"T","slug":"t"}}`

	tests := []struct {
		name          string
		method        string
		path          string
		body          string
		authorization string
		wantStatus    int
	}{
		{name: "send without key", method: http.MethodPost, path: "/v1/campaigns/send", body: sendBody, wantStatus: fiber.StatusUnauthorized},
		{name: "send with wrong key", method: http.MethodPost, path: "/v1/campaigns/send", body: sendBody, authorization: "Bearer wrong-key", wantStatus: fiber.StatusUnauthorized},
		{name: "send with key but no scheme", method: http.MethodPost, path: "/v1/campaigns/send", body: sendBody, authorization: testAdminAPIKey, wantStatus: fiber.StatusUnauthorized},
		{name: "attempts without key", method: http.MethodGet, path: "/v1/campaigns/t/attempts", wantStatus: fiber.StatusUnauthorized},
		{name: "send with valid key", method: http.MethodPost, path: "/v1/campaigns/send", body: sendBody, authorization: "Bearer " + testAdminAPIKey, wantStatus: fiber.StatusOK},
		{name: "attempts with valid key", method: http.MethodGet, path: "/v1/campaigns/t/attempts", authorization: "Bearer " + testAdminAPIKey, wantStatus: fiber.StatusOK},
	}

	for _, tt := range tests {
		headers := map[string]string{}
		if tt.authorization != "" {
			headers[fiber.HeaderAuthorization] = tt.authorization
		}
		resp, body := performRequestWithHeaders(t, app, tt.method, tt.path, tt.body, headers)
		if resp.StatusCode != tt.wantStatus {
			t.Fatalf("%s: status = %d, want %d, body=%s", tt.name, resp.StatusCode, tt.wantStatus, string(body))
		}
		if tt.wantStatus == fiber.StatusUnauthorized {
			if parsed := decodeBody(t, body); parsed["error"] != "unauthorized" {
				t.Fatalf("%s: error = %v, want unauthorized", tt.name, parsed["error"])
			}
		}
	}

	if dispatched != 1 {
		t.Fatalf("dispatched = %d, want only the authorized send to reach the dispatcher", dispatched)
	}
}

func TestRegisterCampaignRoutesRequiresAdminKey(t *testing.T) {
	t.Parallel()

	err := RegisterCampaignRoutes(newTestApp(), &stubCampaignDispatcher{}, &stubAttemptLister{}, "  ")
	if err == nil {
		t.Fatal("expected error for blank admin key")
	}
}

func TestContactIntegration_Submit(t *testing.T) {
	t.Parallel()

	svc := &stubContactService{
		submitFn: func(ctx context.Context, submission domain.ContactSubmission) (int, error) {
			submission.Normalize()
			if err := submission.Validate(); err != nil {
				return 0, err
			}
			if submission.Company == nil || *submission.Company != "Analytical Engines" {
				t.Errorf("company = %v", submission.Company)
			}
			if submission.AIQuestion2 == nil {
				t.Error("aiQuestion2 should be passed through")
			}
			if submission.FirstName == "Down" {
				return 1, fmt.Errorf("%w: 1 of 2 contact emails failed", domain.ErrDelivery)
			}
			return 2, nil
		},
	}
	app := newContactTestApp(t, svc)

	validBody := `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","company":"Analytical Engines",` +
		`"message":"Hello","aiQuestion2":"Reporting"}`
	resp, body := performRequest(t, app, http.MethodPost, "/v1/contact", validBody)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if parsed := decodeBody(t, body); parsed["sent"] != float64(2) {
		t.Fatalf("sent = %v, want 2", parsed["sent"])
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/contact",
		`{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","company":"Analytical Engines","aiQuestion2":"x"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing message", resp.StatusCode)
	}

	resp, body = performRequest(t, app, http.MethodPost, "/v1/contact",
		`{"firstName":"Down","lastName":"Lovelace","email":"ada@example.com","company":"Analytical Engines","message":"Hi","aiQuestion2":"x"}`)
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("status = %d, want 502 for relay failure", resp.StatusCode)
	}
	if parsed := decodeBody(t, body); parsed["error"] != "email delivery failed" {
		t.Fatalf("error = %v, want generic delivery message", parsed["error"])
	}
}

func TestHandlerConstructorsRequireDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewSubscriptionHandler(nil); err == nil {
		t.Fatal("expected error for nil subscription service")
	}
	if _, err := NewCampaignHandler(nil, &stubAttemptLister{}); err == nil {
		t.Fatal("expected error for nil dispatcher")
	}
	if _, err := NewCampaignHandler(&stubCampaignDispatcher{}, nil); err == nil {
		t.Fatal("expected error for nil attempt lister")
	}
	if _, err := NewContactHandler(nil); err == nil {
		t.Fatal("expected error for nil contact service")
	}
}

func TestHealthIntegration(t *testing.T) {
	t.Parallel()

	t.Run("livez returns 200", func(t *testing.T) {
		t.Parallel()

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		app.Get("/livez", LivezHandler())

		resp, body := performRequest(t, app, http.MethodGet, "/livez", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz returns 200 when dependencies up", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb, stubBroker{healthy: true})

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz stays ready when broker is down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb, stubBroker{healthy: false})

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
		checks, _ := decodeBody(t, body)["checks"].(map[string]any)
		if checks["rabbitmq"] != "down" {
			t.Fatalf("rabbitmq check = %v, want down", checks["rabbitmq"])
		}
	})

	t.Run("readyz returns 503 when dependencies down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{pingErr: errors.New("postgres down")})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(errors.New("redis down"))
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New(fiber.Config{ErrorHandler: transport.ErrorHandler(zap.NewNop())})
		RegisterHealthRoutes(app, sqlDB, rdb, nil)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz", "")
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(body))
		}
	})
}

type stubSubscriptionService struct {
	subscribeFn   func(ctx context.Context, req service.SubscribeRequest) (*domain.Subscriber, error)
	unsubscribeFn func(ctx context.Context, token string) (string, error)
	sendWelcomeFn func(ctx context.Context, req service.WelcomeRequest) (string, error)
}

func (s *stubSubscriptionService) Subscribe(ctx context.Context, req service.SubscribeRequest) (*domain.Subscriber, error) {
	if s.subscribeFn != nil {
		return s.subscribeFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (s *stubSubscriptionService) Unsubscribe(ctx context.Context, token string) (string, error) {
	if s.unsubscribeFn != nil {
		return s.unsubscribeFn(ctx, token)
	}
	return "", domain.ErrNotFound
}

func (s *stubSubscriptionService) SendWelcome(ctx context.Context, req service.WelcomeRequest) (string, error) {
	if s.sendWelcomeFn != nil {
		return s.sendWelcomeFn(ctx, req)
	}
	return "", errors.New("not implemented")
}

type stubCampaignDispatcher struct {
	dispatchFn func(ctx context.Context, campaign domain.Campaign) (domain.DispatchSummary, error)
}

func (s *stubCampaignDispatcher) Dispatch(ctx context.Context, campaign domain.Campaign) (domain.DispatchSummary, error) {
	if s.dispatchFn != nil {
		return s.dispatchFn(ctx, campaign)
	}
	return domain.DispatchSummary{}, nil
}

type stubAttemptLister struct {
	listFn func(ctx context.Context, campaignSlug string) ([]domain.DeliveryAttempt, error)
}

func (s *stubAttemptLister) ListByCampaign(ctx context.Context, campaignSlug string) ([]domain.DeliveryAttempt, error) {
	if s.listFn != nil {
		return s.listFn(ctx, campaignSlug)
	}
	return nil, nil
}

type stubContactService struct {
	submitFn func(ctx context.Context, submission domain.ContactSubmission) (int, error)
}

func (s *stubContactService) Submit(ctx context.Context, submission domain.ContactSubmission) (int, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, submission)
	}
	return 0, errors.New("not implemented")
}

type stubBroker struct {
	healthy bool
}

func (b stubBroker) Healthy() bool { return b.healthy }

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})
}

func newSubscriptionTestApp(t *testing.T, svc SubscriptionService) *fiber.App {
	t.Helper()

	app := newTestApp()
	if err := RegisterSubscriptionRoutes(app, svc); err != nil {
		t.Fatalf("RegisterSubscriptionRoutes() error = %v", err)
	}
	return app
}

const testAdminAPIKey = "admin-test-key-0123456789"

func newCampaignTestApp(t *testing.T, dispatcher CampaignDispatcher, attempts AttemptLister) *fiber.App {
	t.Helper()

	app := newTestApp()
	if err := RegisterCampaignRoutes(app, dispatcher, attempts, testAdminAPIKey); err != nil {
		t.Fatalf("RegisterCampaignRoutes() error = %v", err)
	}
	return app
}

func newContactTestApp(t *testing.T, svc ContactService) *fiber.App {
	t.Helper()

	app := newTestApp()
	if err := RegisterContactRoutes(app, svc); err != nil {
		t.Fatalf("RegisterContactRoutes() error = %v", err)
	}
	return app
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("json unmarshal error = %v, body=%s", err, string(body))
	}
	return parsed
}

func performRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()
	return performRequestWithHeaders(t, app, method, path, body, nil)
}

func performAdminRequest(t *testing.T, app *fiber.App, method string, path string, body string) (*http.Response, []byte) {
	t.Helper()
	return performRequestWithHeaders(t, app, method, path, body, map[string]string{
		fiber.HeaderAuthorization: "Bearer " + testAdminAPIKey,
	})
}

func performRequestWithHeaders(t *testing.T, app *fiber.App, method string, path string, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") && h.pingErr != nil {
			cmd.SetErr(h.pingErr)
			return h.pingErr
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
