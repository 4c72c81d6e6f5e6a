package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-pay-server/gateway"
	"github.com/jrsteele09/go-pay-server/identity"
	"github.com/jrsteele09/go-pay-server/internal/config"
	"github.com/jrsteele09/go-pay-server/payments"
	"github.com/jrsteele09/go-pay-server/server"
	"github.com/jrsteele09/go-pay-server/sessions"
	fakesessionrepo "github.com/jrsteele09/go-pay-server/sessions/repofakes"
	"github.com/jrsteele09/go-pay-server/status"
	"github.com/jrsteele09/go-pay-server/token"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	config.Config
	exposeMerchantKey bool
}

func (c testConfig) GetEnv() string { return "TEST" }

func (c testConfig) GetExposeMerchantKey() bool { return c.exposeMerchantKey }

func (c testConfig) GetAllowedOrigins() config.AllowedOrigins {
	return config.AllowedOrigins{"https://shop.example": {}}
}

type serverFixture struct {
	gatewayServer *httptest.Server
	repo          *fakesessionrepo.FakeSessionRepo
	verifier      *identity.HMACVerifier
	pollers       *status.Registry
	server        *server.Server

	mu          sync.Mutex
	statusReply string
	lastBearer  string
	healthErr   error
}

func setupServerFixture(t *testing.T, cfg testConfig) *serverFixture {
	t.Helper()
	f := &serverFixture{statusReply: `{"data":{"status":"PROCESSING"}}`}

	f.gatewayServer = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastBearer = r.Header.Get(gateway.BearerHeader)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/order/create":
			_, _ = io.WriteString(w, `{"data":{"id":"tx-1","payUrl":"https://pay.example/tx-1"}}`)
		case "/order/status/tx-1":
			_, _ = io.WriteString(w, f.statusReply)
		case "/pinpad/remote/token":
			_, _ = io.WriteString(w, `{"token":"gw-token"}`)
		case "/pinpad/terminals":
			_, _ = io.WriteString(w, `{"data":[{"id":"T1"}]}`)
		default:
			w.WriteHeader(http.StatusTeapot)
			_, _ = io.WriteString(w, `{"message":"no such route"}`)
		}
	}))
	t.Cleanup(f.gatewayServer.Close)

	f.repo = fakesessionrepo.NewFakeSessionRepo()
	f.verifier = identity.NewHMACVerifier("secret", "https://idp.test", "pay-server")
	proxy := gateway.NewProxy(f.repo, gateway.BaseURLs{Sandbox: f.gatewayServer.URL, Production: f.gatewayServer.URL})
	tokens := token.New(proxy)
	f.pollers = status.NewRegistry(status.NewPoller(status.WithInterval(time.Millisecond), status.WithMaxAttempts(100000)))
	t.Cleanup(func() { _ = f.pollers.Shutdown(context.Background()) })

	if cfg.Config == nil {
		cfg.Config = config.New()
	}
	srv, err := server.New(cfg, server.Services{
		Sessions: f.repo,
		Identity: f.verifier,
		Proxy:    proxy,
		Tokens:   tokens,
		Creator:  payments.NewCreator(proxy, tokens, f.repo, payments.NewBrandTable()),
		Pollers:  f.pollers,
		Health: func(context.Context) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.healthErr
		},
	})
	require.NoError(t, err)
	f.server = srv
	return f
}

func (f *serverFixture) do(t *testing.T, method, path, body string, cookie *http.Cookie, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *serverFixture) signIn(t *testing.T) *http.Cookie {
	t.Helper()
	raw, err := f.verifier.Sign(identity.Claims{
		Subject:      "merchant-user",
		Environment:  sessions.EnvironmentSandbox,
		APIKey:       "api-key",
		APISecret:    "api-secret",
		MerchantKey:  "merchant-1234",
		MerchantName: "Loja",
	}, time.Minute)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, server.RouteSession, `{"idToken":"`+raw+`"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "paygate_session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSession_IssueMeDestroy(t *testing.T) {
	f := setupServerFixture(t, testConfig{})

	cookie := f.signIn(t)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, int((8 * time.Hour).Seconds()), cookie.MaxAge)
	require.Equal(t, 1, f.repo.Len())

	stored, err := f.repo.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	require.Equal(t, "api-secret", stored.APISecret)

	rec := f.do(t, http.MethodGet, server.RouteSessionMe, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	me := decode[map[string]any](t, rec)
	require.Equal(t, "sandbox", me["environment"])
	require.Equal(t, "Loja", me["merchantName"])
	require.Equal(t, "*********1234", me["merchantKey"])
	require.NotContains(t, rec.Body.String(), "api-secret")

	rec = f.do(t, http.MethodDelete, server.RouteSession, "", cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, -1, sessionCookie(t, rec).MaxAge)
	require.Zero(t, f.repo.Len())

	rec = f.do(t, http.MethodDelete, server.RouteSession, "", cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteSessionMe, "", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSession_ExposeMerchantKey(t *testing.T) {
	f := setupServerFixture(t, testConfig{exposeMerchantKey: true})
	cookie := f.signIn(t)

	me := decode[map[string]any](t, f.do(t, http.MethodGet, server.RouteSessionMe, "", cookie))
	require.Equal(t, "merchant-1234", me["merchantKey"])
}

func TestSession_IssueRejected(t *testing.T) {
	f := setupServerFixture(t, testConfig{})

	testCases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"nothing to exchange", `{}`, http.StatusBadRequest},
		{"forged token", `{"idToken":"a.b.c"}`, http.StatusUnauthorized},
		{"code flow not configured", `{"code":"abc","codeVerifier":"xyz"}`, http.StatusNotImplemented},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, server.RouteSession, tc.body, nil)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
	require.Zero(t, f.repo.Len())
}

func TestSession_ReissueReplacesPrevious(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	first := f.signIn(t)

	raw, err := f.verifier.Sign(identity.Claims{Environment: sessions.EnvironmentProduction, APIKey: "k", APISecret: "s"}, time.Minute)
	require.NoError(t, err)
	rec := f.do(t, http.MethodPost, server.RouteSession, `{"idToken":"`+raw+`"}`, first)
	require.Equal(t, http.StatusCreated, rec.Code)

	second := sessionCookie(t, rec)
	require.NotEqual(t, first.Value, second.Value)
	require.Equal(t, 1, f.repo.Len())
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	unknown := &http.Cookie{Name: "paygate_session", Value: "unknown"}

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, server.RouteSessionMe},
		{http.MethodGet, "/api/gateway/order/anything"},
		{http.MethodPost, "/api/transactions/order"},
		{http.MethodGet, "/api/transactions/tx-1"},
		{http.MethodDelete, "/api/transactions/tx-1"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.path, "", nil)
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			rec = f.do(t, tc.method, tc.path, "", unknown)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestGatewayProxy(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	cookie := f.signIn(t)

	t.Run("token call", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/gateway/pinpad/remote/token", `{"ignored":true}`, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"token":"gw-token"}`, rec.Body.String())
	})

	t.Run("bearer channel without token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/gateway/pinpad/terminals", "", cookie)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "bearer_required", decode[map[string]any](t, rec)["error"])
	})

	t.Run("bearer channel with token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/gateway/pinpad/terminals", "", cookie, "X-Gateway-Token", "gw-token")
		require.Equal(t, http.StatusOK, rec.Code)
		f.mu.Lock()
		require.Equal(t, "gw-token", f.lastBearer)
		f.mu.Unlock()
	})

	t.Run("remote error passed through", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/gateway/order/unknown", "", cookie)
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.JSONEq(t, `{"message":"no such route"}`, rec.Body.String())
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})

	t.Run("unknown channel", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/gateway/fax/anything", "", cookie)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

const linkTransaction = `{
	"amount": 9000,
	"paymentKind": "credit",
	"installmentCount": 1,
	"customerName": "Maria da Silva",
	"customerDocument": "123.456.789-09",
	"customerEmail": "maria@example.com"
}`

func TestTransactions(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	cookie := f.signIn(t)

	rec := f.do(t, http.MethodPost, "/api/transactions/order", linkTransaction, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	require.Equal(t, "tx-1", created["transactionId"])
	require.Equal(t, "https://pay.example/tx-1", created["payUrl"])

	require.Eventually(t, func() bool {
		snap := decode[status.Snapshot](t, f.do(t, http.MethodGet, "/api/transactions/tx-1", "", cookie))
		return snap.Status == status.Processing
	}, 5*time.Second, time.Millisecond)

	f.mu.Lock()
	f.statusReply = `{"data":{"status":"APPROVED","payments":[{"value":"90.00"}]}}`
	f.mu.Unlock()

	require.Eventually(t, func() bool {
		snap := decode[status.Snapshot](t, f.do(t, http.MethodGet, "/api/transactions/tx-1", "", cookie))
		return snap.Status == status.Approved && snap.Total.StringFixed(2) == "90.00"
	}, 5*time.Second, time.Millisecond)

	rec = f.do(t, http.MethodGet, "/api/transactions/other", "", cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactions_Cancel(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	cookie := f.signIn(t)

	rec := f.do(t, http.MethodPost, "/api/transactions/order", linkTransaction, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/transactions/tx-1", "", cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	snap := decode[status.Snapshot](t, f.do(t, http.MethodGet, "/api/transactions/tx-1", "", cookie))
	require.True(t, snap.Cancelled)

	rec = f.do(t, http.MethodDelete, "/api/transactions/unknown", "", cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactions_ExpiredSessionReleasesPoller(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	cookie := f.signIn(t)

	rec := f.do(t, http.MethodPost, "/api/transactions/order", linkTransaction, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, 1, f.pollers.Len())

	later := time.Now().Add(9 * time.Hour)
	f.repo.SetNowFunc(func() time.Time { return later })

	rec = f.do(t, http.MethodGet, "/api/transactions/tx-1", "", cookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, -1, sessionCookie(t, rec).MaxAge)
	require.Zero(t, f.pollers.Len())
}

func TestTransactions_Validation(t *testing.T) {
	f := setupServerFixture(t, testConfig{})
	cookie := f.signIn(t)

	rec := f.do(t, http.MethodPost, "/api/transactions/order", `{"amount":0}`, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](t, rec)
	require.Equal(t, "invalid_request", body["error"])
	require.Equal(t, "amount", body["field"])
	require.NotEmpty(t, body["title"])
	require.Zero(t, f.pollers.Len())

	rec = f.do(t, http.MethodPost, "/api/transactions/fax", linkTransaction, cookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCors(t *testing.T) {
	f := setupServerFixture(t, testConfig{})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		rec := f.do(t, http.MethodOptions, "/api/gateway/pinpad/remote/charge", "", nil, "Origin", "https://shop.example")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Gateway-Token")
	})

	t.Run("preflight from other origin", func(t *testing.T) {
		rec := f.do(t, http.MethodOptions, server.RouteSession, "", nil, "Origin", "https://evil.example")
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHealthAndRequestID(t *testing.T) {
	f := setupServerFixture(t, testConfig{})

	rec := f.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	f.mu.Lock()
	f.healthErr = errors.New("redis down")
	f.mu.Unlock()
	rec = f.do(t, http.MethodGet, server.RouteHealth, "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteMetrics, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
