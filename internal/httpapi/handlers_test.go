package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/invoicegen/platform/internal/auth"
	"github.com/invoicegen/platform/internal/domain"
	"github.com/invoicegen/platform/internal/domain/assistant"
	"github.com/invoicegen/platform/internal/domain/users"
	"github.com/invoicegen/platform/internal/logger"
	"github.com/invoicegen/platform/internal/ratelimit"
	"github.com/invoicegen/platform/internal/storage/memory"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	reply   string
	genErr  error
}

func newTestAPI(t *testing.T, withAI bool) *testAPI {
	t.Helper()
	api := &testAPI{t: t}

	opts := domain.Options{
		UserRepo:    memory.NewUserRepository(),
		InvoiceRepo: memory.NewInvoiceRepository(),
		Logger:      logger.Discard(),
		BcryptCost:  bcrypt.MinCost,
	}
	if withAI {
		opts.Generator = assistant.GeneratorFunc(func(context.Context, string) (string, error) {
			return api.reply, api.genErr
		})
	}
	container := domain.New(opts)

	issuer := auth.NewIssuer("test-secret", time.Hour)
	lookup := auth.UserLookupFunc(func(ctx context.Context, id string) (bool, error) {
		_, err := container.Users.Get(ctx, id)
		if errors.Is(err, users.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	})

	router := mux.NewRouter()
	Register(router, Dependencies{
		Logger:    logger.Discard(),
		Domain:    container,
		Issuer:    issuer,
		Auth:      auth.NewMiddleware(issuer, lookup, logger.Discard()),
		AILimiter: ratelimit.New(100, 100, nil, logger.Discard()),
		Version:   "test",
	})
	api.handler = router
	return api
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(name, email string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "password123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp map[string]any
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["token"].(string)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sampleInvoice() map[string]any {
	return map[string]any{
		"invoiceNumber": "INV-001",
		"billFrom":      map[string]any{"businessName": "My Biz"},
		"billTo":        map[string]any{"clientName": "Client Corp", "email": "client@test.com"},
		"items":         []map[string]any{{"name": "Design Service", "quantity": 2, "unitPrice": 100, "taxPercent": 10}},
		"dueDate":       "2030-01-15",
	}
}

func TestAuthRegisterLoginAndProfile(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Test User", "email": "test@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "test@example.com", body["email"])
	assert.NotEmpty(t, body["_id"])
	assert.NotEmpty(t, body["token"])

	rec = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Again", "email": "TEST@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", decode(t, rec)["message"])

	rec = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["errors"], "password")

	rec = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "test@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", decode(t, rec)["message"])

	rec = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "test@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode(t, rec)["token"].(string)

	rec = api.do(http.MethodPut, "/api/auth/me", token, map[string]string{"businessName": "Test Co", "phone": "555"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Test Co", decode(t, rec)["businessName"])

	rec = api.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode(t, rec)
	assert.Equal(t, "Test User", me["name"])
	assert.Equal(t, "555", me["phone"])
	assert.NotContains(t, me, "token")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(http.MethodGet, "/api/invoices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized, no token", decode(t, rec)["message"])

	rec = api.do(http.MethodGet, "/api/invoices", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized, token failed", decode(t, rec)["message"])
}

func TestInvoiceLifecycle(t *testing.T) {
	api := newTestAPI(t, false)
	token := api.register("Owner", "owner@example.com")

	rec := api.do(http.MethodPost, "/api/invoices", token, sampleInvoice())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.EqualValues(t, 200, created["subtotal"])
	assert.EqualValues(t, 20, created["taxTotal"])
	assert.EqualValues(t, 220, created["total"])
	assert.Equal(t, "Unpaid", created["status"])
	id := created["_id"].(string)

	rec = api.do(http.MethodGet, "/api/invoices", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = api.do(http.MethodPut, "/api/invoices/"+id, token, map[string]any{"status": "Paid"})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode(t, rec)
	assert.Equal(t, "Paid", updated["status"])
	assert.EqualValues(t, 220, updated["total"])
	assert.Equal(t, "INV-001", updated["invoiceNumber"])

	rec = api.do(http.MethodPut, "/api/invoices/"+id, token, map[string]any{
		"items": []map[string]any{{"name": "Web Design", "quantity": 10, "unitPrice": 50, "taxPercent": 10}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 550, decode(t, rec)["total"])

	rec = api.do(http.MethodGet, "/api/invoices?status=Unpaid", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/invoices?status=Lost", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodDelete, "/api/invoices/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Invoice deleted successfully", decode(t, rec)["message"])

	rec = api.do(http.MethodGet, "/api/invoices/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invoice not found", decode(t, rec)["message"])
}

func TestInvoiceValidationAndOwnership(t *testing.T) {
	api := newTestAPI(t, false)
	owner := api.register("Owner", "owner@example.com")
	intruder := api.register("Intruder", "intruder@example.com")

	bad := sampleInvoice()
	bad["items"] = []map[string]any{}
	rec := api.do(http.MethodPost, "/api/invoices", owner, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["errors"], "items")

	rec = api.do(http.MethodPost, "/api/invoices", owner, `{"items": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	badDate := sampleInvoice()
	badDate["dueDate"] = "15/01/2030"
	rec = api.do(http.MethodPost, "/api/invoices", owner, badDate)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodPost, "/api/invoices", owner, sampleInvoice())
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["_id"].(string)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		var body any
		if method == http.MethodPut {
			body = map[string]any{"status": "Paid"}
		}
		rec = api.do(method, "/api/invoices/"+id, intruder, body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, method)
		assert.Equal(t, "Not authorized", decode(t, rec)["message"], method)
	}

	rec = api.do(http.MethodGet, "/api/invoices", intruder, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAIEndpoints(t *testing.T) {
	api := newTestAPI(t, true)
	token := api.register("Owner", "owner@example.com")

	api.reply = "```json\n{\"clientName\":\"Budi\",\"items\":[{\"name\":\"Jasa\",\"unitPrice\":500000}]}\n```"
	rec := api.do(http.MethodPost, "/api/ai/parse-text", token, map[string]string{"text": "Buatkan invoice untuk Budi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	parsed := decode(t, rec)["parsedData"].(map[string]any)
	assert.Equal(t, "Budi", parsed["clientName"])

	api.genErr = errors.New("API Overload")
	rec = api.do(http.MethodPost, "/api/ai/parse-text", token, map[string]string{"text": "Buatkan invoice untuk Budi"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to parse invoice data from text", decode(t, rec)["message"])
	api.genErr = nil

	rec = api.do(http.MethodPost, "/api/ai/parse-text", token, map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(http.MethodGet, "/api/ai/dashboard-summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"insights":["No invoice data available to generate insights yet."]}`, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/invoices", token, sampleInvoice())
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["_id"].(string)

	api.reply = "Subject: Reminder for INV-001"
	rec = api.do(http.MethodPost, "/api/ai/generate-reminder", token, map[string]string{"invoiceId": id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reminderText":"Subject: Reminder for INV-001","clientEmail":"client@test.com"}`, rec.Body.String())

	rec = api.do(http.MethodPost, "/api/ai/generate-reminder", token, map[string]string{"invoiceId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	api.reply = `["Collect outstanding payments", "Nice work"]`
	rec = api.do(http.MethodGet, "/api/ai/dashboard-summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"insights":["Collect outstanding payments","Nice work"]}`, rec.Body.String())
}

func TestAIDisabled(t *testing.T) {
	api := newTestAPI(t, false)
	token := api.register("Owner", "owner@example.com")

	rec := api.do(http.MethodPost, "/api/ai/parse-text", token, map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPing(t *testing.T) {
	api := newTestAPI(t, false)
	rec := api.do(http.MethodGet, "/api/ping", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}
