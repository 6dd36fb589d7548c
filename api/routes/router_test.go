package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursevault/coursevault-backend/internal/access"
	"github.com/coursevault/coursevault-backend/internal/activation"
	"github.com/coursevault/coursevault-backend/internal/bindings"
	"github.com/coursevault/coursevault-backend/internal/fingerprint"
	"github.com/coursevault/coursevault-backend/internal/orders"
	"github.com/coursevault/coursevault-backend/internal/payments"
	"github.com/coursevault/coursevault-backend/pkg/config"
	"github.com/coursevault/coursevault-backend/pkg/kv"
	"github.com/coursevault/coursevault-backend/pkg/logger"
	"github.com/coursevault/coursevault-backend/pkg/metrics"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	ctx := context.Background()
	store := kv.NewMemory()
	logg := logger.New(logger.Options{Level: zerolog.Disabled})
	licensingMetrics := metrics.NewLicensingMetrics(nil)

	bindingStore, err := bindings.NewStore(ctx, store, "test:bindings")
	require.NoError(t, err)

	ordersRepo, err := orders.NewRepository(ctx, store, "test:orders")
	require.NoError(t, err)

	ledger, err := payments.NewLedger(ctx, store, "test:payments", ordersRepo)
	require.NoError(t, err)

	redeemer, err := activation.NewRedeemer(ctx, store, "test:codes", []string{"SEED-1"})
	require.NoError(t, err)

	verifier, err := access.NewVerifier(bindingStore, licensingMetrics)
	require.NoError(t, err)

	ordersSvc, err := orders.NewService(ordersRepo, ledger, bindingStore, redeemer, licensingMetrics, logg, decimal.NewFromInt(99))
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Env = "test"

	return NewRouter(cfg, logg, nil, nil, nil, fingerprint.NewProvider(), verifier, bindingStore, ordersSvc, ledger)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, handler http.Handler, method, path, userID string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthAndIdentityGuard(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := doJSON(t, router, http.MethodGet, "/api/v1/licenses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestPurchaseAndPlaybackFlow(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/device/fingerprint", "", map[string]string{
		"user_agent": "player/1.0",
		"language":   "zh-CN",
		"timezone":   "Asia/Shanghai",
		"screen":     "1920x1080",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var fp struct {
		DeviceFingerprint string `json:"device_fingerprint"`
		Degraded          bool   `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fp))
	assert.False(t, fp.Degraded)

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/orders", "u1", map[string]string{
		"course_id":      "c1",
		"payment_method": "wechat",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		Amount  string `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, "99", order.Amount)

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderID+"/payment", "u1", map[string]any{
		"transaction_id": "txn-1",
		"amount":         "99",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "paid", order.Status)

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderID+"/complete", "u1", map[string]string{
		"device_fingerprint": fp.DeviceFingerprint,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "completed", order.Status)

	var decision struct {
		Granted bool   `json:"granted"`
		Reason  string `json:"reason"`
	}

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/access/verify", "u1", map[string]string{
		"course_id":          "c1",
		"device_fingerprint": fp.DeviceFingerprint,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.True(t, decision.Granted)

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/access/verify", "u1", map[string]string{
		"course_id":          "c1",
		"device_fingerprint": "fp_someone_else",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.False(t, decision.Granted)
	assert.Equal(t, "DEVICE_MISMATCH", decision.Reason)

	rec, env = doJSON(t, router, http.MethodGet, "/api/v1/licenses", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var licenses []struct {
		CourseID string `json:"course_id"`
		IsValid  bool   `json:"is_valid"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &licenses))
	require.Len(t, licenses, 1)
	assert.True(t, licenses[0].IsValid)

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/licenses/c1/revoke", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var revoke struct {
		Revoked bool `json:"revoked"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &revoke))
	assert.True(t, revoke.Revoked)

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/access/verify", "u1", map[string]string{
		"course_id":          "c1",
		"device_fingerprint": fp.DeviceFingerprint,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.False(t, decision.Granted)
	assert.Equal(t, "REVOKED", decision.Reason)

	rec, env = doJSON(t, router, http.MethodGet, "/api/v1/payments", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []struct {
		TransactionID string `json:"transaction_id"`
		Amount        string `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "txn-1", records[0].TransactionID)
}

func TestAccessDeniedWithoutPurchase(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/access/verify", "u1", map[string]string{
		"course_id":          "c1",
		"device_fingerprint": "fp_anything",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var decision struct {
		Granted bool   `json:"granted"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.False(t, decision.Granted)
	assert.Equal(t, "NO_LICENSE", decision.Reason)
}

func TestCancelledOrderCannotComplete(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doJSON(t, router, http.MethodPost, "/api/v1/orders", "u1", map[string]string{
		"course_id":      "c1",
		"payment_method": "wechat",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order struct {
		OrderID string `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderID+"/cancel", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, router, http.MethodPost, "/api/v1/orders/"+order.OrderID+"/complete", "u1", map[string]string{
		"device_fingerprint": "fp_aaa",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)
}
