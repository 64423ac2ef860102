package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/api"
	"github.com/ryfty/ryfty-payments/internal/fees"
	"github.com/ryfty/ryfty-payments/internal/payment"
	"github.com/ryfty/ryfty-payments/internal/platform/draftstore"
	"github.com/ryfty/ryfty-payments/internal/platform/ryfty"
	"github.com/ryfty/ryfty-payments/internal/platform/sse"
	"github.com/ryfty/ryfty-payments/internal/wizard"
)

const waitFor = 3 * time.Second

// fakeRyfty stands in for the remote Ryfty API and its event stream.
type fakeRyfty struct {
	frames chan string
}

func (f *fakeRyfty) push(state, txn, description string) {
	f.frames <- fmt.Sprintf(
		"data: {\"type\":\"payment_status\",\"data\":{\"state\":%q,\"transaction_id\":%q,\"description\":%q}}\n\n",
		state, txn, description)
}

func (f *fakeRyfty) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /reservations/{id}/payments", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["mpesa_number"] == "0799999999" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"message":"Reservation already fully paid"}`)
			return
		}
		_, _ = io.WriteString(w, `{"request_id":"ws_CO_1","stream_key":"flow-key"}`)
	})
	mux.HandleFunc("POST /wallet/withdrawals", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"disbursement_id":"dsb-1"}`)
	})
	mux.HandleFunc("POST /wallet/withdrawals/{id}/verify", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"verified","stream_key":"flow-key"}`)
	})
	mux.HandleFunc("POST /experiences", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"exp-1"}`)
	})
	mux.HandleFunc("GET /events/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		flusher.Flush()
		for {
			select {
			case frame := <-f.frames:
				_, _ = io.WriteString(w, frame)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
	return mux
}

type testEnv struct {
	server *httptest.Server
	ryfty  *fakeRyfty
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	remote := &fakeRyfty{frames: make(chan string, 8)}
	upstream := httptest.NewServer(remote.handler())
	t.Cleanup(upstream.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := ryfty.NewClient(upstream.URL, 5*time.Second, logger)
	payments := payment.NewService(client, client, sse.NewListener(upstream.URL, time.Second, logger),
		fees.NewCalculator(fees.DefaultPlatformRate, false),
		nil, logger,
		payment.ServiceConfig{Timeout: time.Minute, SuccessDelay: time.Millisecond},
	)
	t.Cleanup(payments.Shutdown)
	drafts := wizard.NewService(draftstore.New(rdb, 0), client, logger)

	router := api.SetupRouter(api.NewHandler(payments, drafts, logger), api.RouterConfig{
		GinMode:       "test",
		AllowedOrigin: "*",
		Metrics:       http.NotFoundHandler(),
	}, logger)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, ryfty: remote, redis: mr}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer tok-"+user)
		req.Header.Set("X-User-ID", user)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (e *testEnv) waitFlow(t *testing.T, flowID, state string) map[string]any {
	t.Helper()
	var snap map[string]any
	require.Eventually(t, func() bool {
		_, snap = e.do(t, http.MethodGet, "/api/v1/flows/"+flowID, "user-1", nil)
		return snap["state"] == state
	}, waitFor, 10*time.Millisecond, "flow never reached %s", state)
	return snap
}

func (e *testEnv) startPayment(t *testing.T, number string) string {
	t.Helper()
	status, snap := e.do(t, http.MethodPost, "/api/v1/reservations/res-1/payments", "user-1", map[string]any{
		"mpesa_number": number,
		"amount":       1500,
	})
	require.Equal(t, http.StatusAccepted, status, snap)
	assert.Equal(t, "awaiting_initiation", snap["state"])
	return snap["flow_id"].(string)
}

func Test_Health(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func Test_QuoteFees(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/fees/quote?amount=1000", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "50", body["platform_fee"])
	assert.Equal(t, "5", body["gateway_fee"])
	assert.Equal(t, "945", body["net_amount"])
	assert.Equal(t, true, body["in_schedule"])

	status, body = env.do(t, http.MethodGet, "/api/v1/fees/quote?amount=1000&account_type=business", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "937", body["net_amount"])

	status, body = env.do(t, http.MethodGet, "/api/v1/fees/quote?amount=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func Test_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodPost, "/api/v1/reservations/res-1/payments", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func Test_ReservationPaymentSucceeds(t *testing.T) {
	env := newTestEnv(t)
	flowID := env.startPayment(t, "0712 345 678")

	env.waitFlow(t, flowID, "waiting_for_confirmation")
	env.ryfty.push("pending_confirmation", "", "")
	env.ryfty.push("success", "TXN123", "")

	snap := env.waitFlow(t, flowID, "succeeded")
	assert.Equal(t, "TXN123", snap["transaction_id"])
	assert.Equal(t, "Payment successful", snap["status_text"])

	t.Run("Hidden from other users", func(t *testing.T) {
		status, _ := env.do(t, http.MethodGet, "/api/v1/flows/"+flowID, "user-2", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
	t.Run("Close", func(t *testing.T) {
		status, _ := env.do(t, http.MethodDelete, "/api/v1/flows/"+flowID, "user-1", nil)
		assert.Equal(t, http.StatusNoContent, status)
		status, _ = env.do(t, http.MethodGet, "/api/v1/flows/"+flowID, "user-1", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func Test_ReservationPaymentRejected(t *testing.T) {
	env := newTestEnv(t)
	flowID := env.startPayment(t, "0799999999")

	snap := env.waitFlow(t, flowID, "failed")
	assert.Equal(t, "Reservation already fully paid", snap["error"])
}

func Test_ReservationPaymentValidation(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.do(t, http.MethodPost, "/api/v1/reservations/res-1/payments", "user-1", map[string]any{
		"mpesa_number": "254712345678",
		"amount":       1500,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "Kenyan mobile number")
}

func Test_FlowTransitions(t *testing.T) {
	env := newTestEnv(t)
	flowID := env.startPayment(t, "0712345678")
	env.waitFlow(t, flowID, "waiting_for_confirmation")

	status, body := env.do(t, http.MethodPost, "/api/v1/reservations/res-1/payments", "user-1", map[string]any{
		"mpesa_number": "0712345678",
		"amount":       1500,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "FLOW_IN_PROGRESS", body["code"])

	status, body = env.do(t, http.MethodPost, "/api/v1/flows/"+flowID+"/retry", "user-1", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", body["code"])

	env.ryfty.push("failed", "", "Request cancelled by user")
	snap := env.waitFlow(t, flowID, "failed")
	assert.Equal(t, "Request cancelled by user", snap["error"])

	status, snap = env.do(t, http.MethodPost, "/api/v1/flows/"+flowID+"/retry", "user-1", nil)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, float64(2), snap["attempt"])
	env.waitFlow(t, flowID, "waiting_for_confirmation")
}

func Test_StreamFlow(t *testing.T) {
	env := newTestEnv(t)
	flowID := env.startPayment(t, "0712345678")
	env.waitFlow(t, flowID, "waiting_for_confirmation")

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/flows/"+flowID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer tok-user-1")
	req.Header.Set("X-User-ID", "user-1")

	client := &http.Client{Timeout: waitFor}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	env.ryfty.push("pending_confirmation", "", "")
	env.ryfty.push("success", "TXN7", "")

	// The relay ends by itself once the flow settles.
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "event:flow")
	assert.Contains(t, body, "Processing payment...")
	assert.Contains(t, body, `"state":"succeeded"`)
	assert.True(t, strings.Index(body, "Processing payment...") < strings.Index(body, `"state":"succeeded"`))
}

func Test_Withdrawal(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/wallet/withdrawals", "user-1", map[string]any{"amount": 2500})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "dsb-1", body["disbursement_id"])

	status, body = env.do(t, http.MethodPost, "/api/v1/wallet/withdrawals/dsb-1/verify", "user-1", map[string]any{"code": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodPost, "/api/v1/wallet/withdrawals/dsb-1/verify", "user-1", map[string]any{
		"code":   "123456",
		"amount": 2500,
	})
	require.Equal(t, http.StatusAccepted, status, body)
	flowID := body["flow_id"].(string)

	env.waitFlow(t, flowID, "waiting_for_confirmation")
	env.ryfty.push("success", "B2C9", "")
	env.waitFlow(t, flowID, "succeeded")
}

func Test_ExperienceDraft(t *testing.T) {
	env := newTestEnv(t)
	const base = "/api/v1/experience-drafts"

	status, body := env.do(t, http.MethodGet, base, "user-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "basics", body["step"])
	assert.Equal(t, true, body["is_first"])

	status, body = env.do(t, http.MethodPost, base+"/next", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "title is required", body["error"])

	status, _ = env.do(t, http.MethodPut, base+"/steps/basics", "user-1", map[string]any{
		"title": "Hell's Gate hike", "description": "Gorge walk", "status": "draft",
	})
	require.Equal(t, http.StatusOK, status)
	status, body = env.do(t, http.MethodPost, base+"/next", "user-1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "destinations", body["step"])

	status, _ = env.do(t, http.MethodPut, base+"/steps/unknown", "user-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPut, base+"/steps/destinations", "user-1", map[string]any{
		"destinations": []string{"Naivasha"}, "activities": []string{"hiking"},
	})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPut, base+"/steps/schedule", "user-1", map[string]any{
		"start_date": "2025-01-10", "end_date": "2025-01-11",
		"meeting_point": map[string]any{"name": "Archives", "address": "Moi Avenue"},
	})
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodPost, base+"/submit", "user-1", nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "exp-1", body["experience_id"])
	assert.False(t, env.redis.Exists("ryfty:draft:user-1"))

	status, _ = env.do(t, http.MethodPost, base+"/back", "user-1", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = env.do(t, http.MethodDelete, base, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, status)
}
