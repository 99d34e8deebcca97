package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/config"
	"github.com/sangkips/bursar-api/internal/domain/tenancy"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/internal/infrastructure/memory"
	"github.com/sangkips/bursar-api/internal/presentation/http/middleware"
	"github.com/sangkips/bursar-api/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

type api struct {
	t      *testing.T
	router *gin.Engine
	jwt    *utils.JWTManager
	tenant uuid.UUID
}

func newAPI(t *testing.T, ready func(context.Context) error) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App:       config.AppConfig{Name: "bursar-api", Env: "test"},
		RateLimit: config.RateLimitConfig{Requests: 1000, Duration: 1},
		Billing: config.BillingConfig{
			Currency:         "KES",
			Timezone:         "UTC",
			SequenceWidth:    6,
			LockTimeout:      time.Second,
			LockRetries:      2,
			SweepConcurrency: 2,
		},
	}

	repos := memory.NewRegistry(memory.Open())
	clock := service.NewFixedClock(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	core := service.NewCore(repos, lock.NewManager(cfg.Billing.LockTimeout), clock, zap.NewNop(), cfg.Billing)
	svc := service.NewServices(core, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	jwt := utils.NewJWTManager("test-secret", "test", time.Hour)
	router := Setup(NewHandlers(svc, zap.NewNop()), &Deps{
		JWTManager:      jwt,
		Cfg:             cfg,
		Log:             zap.NewNop(),
		IdempotencyRepo: repos.Idempotency,
		RateLimiter:     middleware.NewTenantRateLimiter(ctx, middleware.RateLimiterConfigFrom(cfg.RateLimit)),
		Now:             clock.Now,
		Ready:           ready,
	})

	return &api{t: t, router: router, jwt: jwt, tenant: uuid.New()}
}

func (a *api) token(tenantID uuid.UUID, role string) string {
	a.t.Helper()
	tok, err := a.jwt.GenerateAccessToken(uuid.New(), tenantID, role)
	require.NoError(a.t, err)
	return tok
}

func (a *api) do(method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

// ok issues a request that must answer with status and returns its data.
func (a *api) ok(status int, method, path, token string, body interface{}) json.RawMessage {
	a.t.Helper()
	w, env := a.do(method, path, token, body)
	require.Equal(a.t, status, w.Code, w.Body.String())
	require.True(a.t, env.Success)
	return env.Data
}

type resource struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// billedInvoice walks the catalog and billing routes to a single issued invoice of 300.
func (a *api) billedInvoice(bursar string) (uuid.UUID, uuid.UUID) {
	a.t.Helper()
	category := decode[resource](a.t, a.ok(201, "POST", "/api/v1/fee-categories", bursar, gin.H{
		"name": "Tuition", "code": "tuition", "mandatory": true,
	}))
	structure := decode[resource](a.t, a.ok(201, "POST", "/api/v1/fee-structures", bursar, gin.H{
		"name": "Grade 4", "academic_year": "2026", "grade_levels": []string{"4"}, "effective_from": "2026-01-01",
	}))
	a.ok(201, "POST", "/api/v1/fee-structures/"+structure.ID.String()+"/items", bursar, gin.H{
		"category_id": category.ID, "name": "Tuition", "base_amount": "300", "frequency": "term",
	})
	active := decode[resource](a.t, a.ok(200, "POST", "/api/v1/fee-structures/"+structure.ID.String()+"/transition", bursar, gin.H{
		"status": "active",
	}))
	require.Equal(a.t, "active", active.Status)

	studentID := uuid.New()
	a.ok(201, "POST", "/api/v1/assignments", bursar, gin.H{"student_id": studentID, "structure_id": structure.ID})

	result := decode[struct {
		Invoices []resource `json:"invoices"`
	}](a.t, a.ok(201, "POST", "/api/v1/invoices/generate", bursar, gin.H{
		"period_key":   "2026-T1",
		"period_type":  "term",
		"period_start": "2026-01-05",
		"period_end":   "2026-04-03",
		"invoice_date": "2026-01-10",
		"due_date":     "2026-01-20",
	}))
	require.Len(a.t, result.Invoices, 1)
	return studentID, result.Invoices[0].ID
}

func TestBillingFlowOverHTTP(t *testing.T) {
	a := newAPI(t, nil)
	admin := a.token(a.tenant, tenancy.RoleAdmin)
	bursar := a.token(a.tenant, tenancy.RoleBursar)

	studentID, invoiceID := a.billedInvoice(bursar)

	method := decode[resource](t, a.ok(201, "POST", "/api/v1/payment-methods", admin, gin.H{
		"code": "cash", "name": "Cash", "channel": "cash",
	}))

	payment := decode[resource](t, a.ok(201, "POST", "/api/v1/payments", bursar, gin.H{
		"student_id": studentID, "amount": "300", "method_id": method.ID, "auto_allocate": true,
	}))
	assert.Equal(t, "pending", payment.Status)

	confirmed := decode[resource](t, a.ok(200, "POST", "/api/v1/payments/"+payment.ID.String()+"/confirm", bursar, gin.H{
		"result": "success",
	}))
	assert.Equal(t, "completed", confirmed.Status)

	invoice := decode[struct {
		Status      string `json:"status"`
		Outstanding string `json:"outstanding"`
	}](t, a.ok(200, "GET", "/api/v1/invoices/"+invoiceID.String(), bursar, nil))
	assert.Equal(t, "paid", invoice.Status)
	assert.Equal(t, "0", invoice.Outstanding)

	allocations := decode[[]struct {
		InvoiceID uuid.UUID `json:"invoice_id"`
	}](t, a.ok(200, "GET", "/api/v1/payments/"+payment.ID.String()+"/allocations", bursar, nil))
	require.Len(t, allocations, 1)
	assert.Equal(t, invoiceID, allocations[0].InvoiceID)

	feed := decode[struct {
		Items []struct {
			ID   uuid.UUID `json:"id"`
			Type string    `json:"type"`
		} `json:"items"`
	}](t, a.ok(200, "GET", "/api/v1/events", admin, nil))
	types := make([]string, 0, len(feed.Items))
	ids := make([]uuid.UUID, 0, len(feed.Items))
	for _, e := range feed.Items {
		types = append(types, e.Type)
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"InvoiceCreated", "PaymentAllocated"}, types)

	acked := decode[struct {
		Acknowledged int64 `json:"acknowledged"`
	}](t, a.ok(200, "POST", "/api/v1/events/ack", admin, gin.H{"ids": ids}))
	assert.Equal(t, int64(2), acked.Acknowledged)
}

func TestAuthAndRoles(t *testing.T) {
	a := newAPI(t, nil)

	w, _ := a.do("GET", "/api/v1/invoices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = a.do("GET", "/api/v1/invoices", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auditor := a.token(a.tenant, tenancy.RoleAuditor)
	w, _ = a.do("GET", "/api/v1/invoices", auditor, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.do("POST", "/api/v1/fee-categories", auditor, gin.H{"name": "Tuition", "code": "tuition"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do("GET", "/api/v1/events", a.token(a.tenant, tenancy.RoleBursar), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTenantIsolationOverHTTP(t *testing.T) {
	a := newAPI(t, nil)
	_, invoiceID := a.billedInvoice(a.token(a.tenant, tenancy.RoleBursar))

	other := a.token(uuid.New(), tenancy.RoleBursar)
	w, env := a.do("GET", "/api/v1/invoices/"+invoiceID.String(), other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)

	listed := decode[struct {
		Items []resource `json:"items"`
	}](t, a.ok(200, "GET", "/api/v1/invoices", other, nil))
	assert.Empty(t, listed.Items)
}

func TestRequestValidation(t *testing.T) {
	a := newAPI(t, nil)
	bursar := a.token(a.tenant, tenancy.RoleBursar)

	w, env := a.do("POST", "/api/v1/fee-categories", bursar, gin.H{"code": "tuition"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, string(env.Errors), `"field":"name"`)

	w, _ = a.do("POST", "/api/v1/fee-structures", bursar, gin.H{
		"name": "Grade 4", "academic_year": "2026", "effective_from": "01/01/2026",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = a.do("GET", "/api/v1/invoices/not-a-uuid", bursar, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = a.do("GET", "/api/v1/invoices/"+uuid.NewString(), bursar, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.do("POST", "/api/v1/payments/"+uuid.NewString()+"/confirm", bursar, gin.H{"result": "maybe"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestIdempotentReplay(t *testing.T) {
	a := newAPI(t, nil)
	bursar := a.token(a.tenant, tenancy.RoleBursar)
	body := gin.H{"name": "Tuition", "code": "tuition"}

	first, firstEnv := a.do("POST", "/api/v1/fee-categories", bursar, body, "Idempotency-Key", "cat-1")
	require.Equal(t, http.StatusCreated, first.Code)

	again, againEnv := a.do("POST", "/api/v1/fee-categories", bursar, body, "Idempotency-Key", "cat-1")
	require.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get("X-Idempotency-Replayed"))
	assert.JSONEq(t, string(firstEnv.Data), string(againEnv.Data))

	changed, _ := a.do("POST", "/api/v1/fee-categories", bursar, gin.H{"name": "Transport", "code": "transport"}, "Idempotency-Key", "cat-1")
	assert.Equal(t, http.StatusUnprocessableEntity, changed.Code)

	// Keys are scoped to the tenant.
	other, _ := a.do("POST", "/api/v1/fee-categories", a.token(uuid.New(), tenancy.RoleBursar), body, "Idempotency-Key", "cat-1")
	assert.Equal(t, http.StatusCreated, other.Code)
	assert.Empty(t, other.Header().Get("X-Idempotency-Replayed"))
}

func TestHealthAndWebhookWithoutGateway(t *testing.T) {
	a := newAPI(t, nil)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status    string         `json:"status"`
		RateLimit map[string]any `json:"rate_limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Contains(t, health.RateLimit, "active_tenants")
	assert.Contains(t, health.RateLimit, "burst_size")

	w, _ = a.do("POST", "/api/v1/webhooks/midtrans", "", gin.H{"order_id": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	down := newAPI(t, func(context.Context) error { return errors.New("db down") })
	w = httptest.NewRecorder()
	down.router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
