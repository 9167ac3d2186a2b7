package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jdcruz/wmsgate/internal/backend"
	"github.com/jdcruz/wmsgate/internal/config"
	"github.com/jdcruz/wmsgate/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		Port:              "0",
		Env:               "development",
		LogLevel:          "error",
		BackendURL:        backendURL,
		BackendObjectCode: "WMSDASH",
		AllowedOrigins:    []string{"*"},
		RateLimitRPM:      10000,
		LoginRateRPM:      10000,
	}
}

// newTestServer builds a full server against a fake PHP backend.
func newTestServer(t *testing.T, backendFn http.HandlerFunc) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := httptest.NewServer(backendFn)
	t.Cleanup(fake.Close)

	srv, err := New(testConfig(fake.URL))
	require.NoError(t, err)
	return srv
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["backend"])
	_, hasDB := body.Checks["reports_db"]
	assert.False(t, hasDB, "no reports check without a configured database")

	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthDegradedWhenBackendDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	fake.Close() // refuse connections

	srv, err := New(testConfig(fake.URL))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Contains(t, body.Checks["backend"], "unhealthy")
}

func TestHealthBackendRejectionStillHealthy(t *testing.T) {
	// The PHP side refusing the ping command still proves it is up.
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"unknown command"}`))
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wmsgate_")
}

func TestRootRedirectsToDashboard(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestEdgeGateGuardsPages(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	t.Run("anonymous dashboard redirects to login", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/dashboard", nil))
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("anonymous dashboard subpage redirects too", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/dashboard/receiving", nil))
		require.Equal(t, http.StatusFound, w.Code)
	})

	t.Run("anonymous login page renders", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/login", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	})

	t.Run("cookie-holding login visit bounces to dashboard", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/login", nil)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "opaque-session"})
		srv.Router().ServeHTTP(w, req)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	})

	t.Run("cookie-holding dashboard visit renders", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "opaque-session"})
		srv.Router().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	for _, path := range []string{
		"/api/rooms?company=C1&branch=B1",
		"/api/inventory?company=C1&branch=B1",
		"/api/items?company=C1&branch=B1",
		"/api/branches?company=C1",
		"/api/receiving?company=C1&branch=B1",
		"/api/reports/activity",
	} {
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestProtectedRouteWithSessionProxiesBackend(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"ROOMCODE":"CR1","BarcodeTotalQty":"12"}]`))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/rooms?company=C1&branch=B1", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "opaque-session"})
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, 12.0, body.Rows[0]["palletTotalQty"])
}

func TestLoginFlowThroughFullStack(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["type"] == "login" {
			_, _ = w.Write([]byte(`{"success":true,"jwt":"issued-token"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	raw, _ := json.Marshal(map[string]string{"username": "jd", "password": "pw"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var sessionCookie string
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			sessionCookie = c.Value
		}
	}
	require.Equal(t, "issued-token", sessionCookie)
}

func TestLoginRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"Bad password"}`))
	}))
	t.Cleanup(fake.Close)

	cfg := testConfig(fake.URL)
	cfg.LoginRateRPM = 1 // burst of 5, near-zero replenishment
	srv, err := New(cfg)
	require.NoError(t, err)

	raw, _ := json.Marshal(map[string]string{"username": "jd", "password": "nope"})
	var last int
	for i := 0; i < 6; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		srv.Router().ServeHTTP(w, req)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRequestIDPropagation(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-from-lb")
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, "req-from-lb", w.Header().Get("X-Request-ID"))
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Frame-Options"))
}

func TestShutdownSkipsDrainOutsideProduction(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	srv.httpSrv = &http.Server{}

	start := time.Now()
	require.NoError(t, srv.Shutdown())
	assert.Less(t, time.Since(start), time.Second, "non-production shutdown must not sit in the drain delay")
}

func TestWithBackendClientOption(t *testing.T) {
	gin.SetMode(gin.TestMode)
	client := backend.New(backend.Config{}) // unconfigured on purpose

	srv, err := New(testConfig("http://ignored.example.com"), WithBackendClient(client))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/rooms?company=C1&branch=B1", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "opaque-session"})
	srv.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "missing_config"))
}
