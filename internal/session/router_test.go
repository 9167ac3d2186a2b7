package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	valid := tokenWithPayload(t, map[string]any{"exp": float64(now.Add(time.Hour).Unix())})
	expired := tokenWithPayload(t, map[string]any{"exp": float64(now.Add(-time.Hour).Unix())})

	tests := []struct {
		name    string
		path    string
		token   string
		present bool
		want    Decision
	}{
		{"login without cookie", "/login", "", false, Decision{Action: ActionAllow}},
		{"login with live session", "/login", valid, true, Decision{Action: ActionRedirectDashboard}},
		{"login with expired session", "/login", expired, true, Decision{Action: ActionAllow, ClearCookie: true}},
		{"dashboard with live session", "/dashboard", valid, true, Decision{Action: ActionAllow}},
		{"dashboard subpage with live session", "/dashboard/inventory", valid, true, Decision{Action: ActionAllow}},
		{"dashboard without cookie", "/dashboard", "", false, Decision{Action: ActionRedirectLogin}},
		{"dashboard with expired session", "/dashboard", expired, true, Decision{Action: ActionRedirectLogin, ClearCookie: true}},
		{"opaque token passes the gate", "/dashboard", "opaque-credential", true, Decision{Action: ActionAllow}},
		{"unrelated path ignores cookie state", "/api/health", expired, true, Decision{Action: ActionAllow}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.path, tt.token, tt.present)
			assert.Equal(t, tt.want, got)
		})
	}
}

func setupGateRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(EdgeGate(false))
	r.GET("/login", func(c *gin.Context) { c.String(http.StatusOK, "login page") })
	r.GET("/dashboard", func(c *gin.Context) { c.String(http.StatusOK, "dashboard page") })
	return r
}

func TestEdgeGateRedirectsAnonymousDashboard(t *testing.T) {
	router := setupGateRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/dashboard", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestEdgeGateRedirectsAuthenticatedLogin(t *testing.T) {
	now := time.Now()
	valid := tokenWithPayload(t, map[string]any{"exp": float64(now.Add(time.Hour).Unix())})
	router := setupGateRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/login", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: valid})
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestEdgeGateClearsStaleCookieOnLogin(t *testing.T) {
	now := time.Now()
	expired := tokenWithPayload(t, map[string]any{"exp": float64(now.Add(-time.Hour).Unix())})
	router := setupGateRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/login", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: expired})
	router.ServeHTTP(w, req)

	// The stale cookie is cleared but the login page still renders.
	require.Equal(t, http.StatusOK, w.Code)

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "expected a delete instruction for the session cookie")
}

func TestEdgeGateLeavesOtherPathsAlone(t *testing.T) {
	router := setupGateRouter()
	router.GET("/api/thing", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/thing", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "whatever"})
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies(), "no cookie mutation expected off the gated paths")
}

func TestRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequireSession())
	r.GET("/protected", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	t.Run("no cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), "unauthorized"))
	})

	t.Run("opaque cookie passes", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "opaque"})
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("expired cookie rejected", func(t *testing.T) {
		expired := tokenWithPayload(t, map[string]any{"exp": float64(time.Now().Add(-time.Hour).Unix())})
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: expired})
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
