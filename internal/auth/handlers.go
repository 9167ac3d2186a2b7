// Package auth bridges the dashboard's login flow to the legacy backend.
//
// The backend owns the credentials and the token signing key; the gateway
// only relays the login call, stores the issued token in the session
// cookie, and answers local validity questions about it.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jdcruz/wmsgate/internal/backend"
	"github.com/jdcruz/wmsgate/internal/logging"
	"github.com/jdcruz/wmsgate/internal/metrics"
	"github.com/jdcruz/wmsgate/internal/retry"
	"github.com/jdcruz/wmsgate/internal/session"
)

// profilePolicy is the documented two-phase profile fetch: one anonymous
// attempt, then exactly one retry carrying the token. Strictly sequential.
var profilePolicy = retry.Policy{MaxAttempts: 2}

// Handler provides the auth endpoints.
type Handler struct {
	client       *backend.Client
	cookieSecure bool
}

// NewHandler creates an auth handler.
func NewHandler(client *backend.Client, cookieSecure bool) *Handler {
	return &Handler{client: client, cookieSecure: cookieSecure}
}

// RegisterRoutes sets up the auth routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/auth/session", h.Session)
	r.GET("/auth/me", h.Me)
	r.POST("/auth/logout", h.Logout)
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login.
// The backend answers {success:true, jwt:"..."} or {success:false,
// message:"..."} — both with HTTP 200, so success is read from the body.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "username and password are required",
		})
		return
	}

	res := h.client.Call(c.Request.Context(), backend.Command{
		Type: "login",
		Params: map[string]any{
			"username": req.Username,
			"password": req.Password,
		},
	})
	if !res.OK {
		metrics.LoginsTotal.WithLabelValues("backend_error").Inc()
		backend.AbortWithResult(c, res)
		return
	}

	obj, _ := res.Parsed.(map[string]any)
	success, _ := obj["success"].(bool)
	if !success {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		res.Kind = backend.KindAuthInvalid
		backend.AbortWithResult(c, res)
		return
	}

	token, _ := obj["jwt"].(string)
	if token == "" {
		// Backend said success but sent no token; nothing to store.
		metrics.LoginsTotal.WithLabelValues("shape_invalid").Inc()
		res.Kind = backend.KindShapeInvalid
		backend.AbortWithResult(c, res)
		return
	}

	session.SetCookie(c, token, h.cookieSecure)
	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	logging.L(c.Request.Context()).Info("login succeeded", "username", req.Username)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Logout handles POST /api/auth/logout. The token itself stays valid until
// the backend expires it; the gateway can only drop the cookie.
func (h *Handler) Logout(c *gin.Context) {
	session.ClearCookie(c, h.cookieSecure)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Session handles GET /api/auth/session: a pure local check, no backend call.
func (h *Handler) Session(c *gin.Context) {
	token, _ := session.TokenFromRequest(c)
	c.JSON(http.StatusOK, gin.H{"valid": session.IsValid(token)})
}

// Me handles GET /api/auth/me via the two-phase profile fetch: the first
// attempt is anonymous; if it fails, lacks a resolvable user object, or
// carries an error field, one retry goes out with the token attached. Only
// after both attempts fail does the caller see an error.
func (h *Handler) Me(c *gin.Context) {
	token, _ := session.TokenFromRequest(c)

	var user map[string]any
	var last backend.Result

	err := profilePolicy.Do(c.Request.Context(), func(ctx context.Context, attempt int) error {
		params := map[string]any{}
		if attempt > 0 {
			params["token"] = token
		}

		res := h.client.Call(ctx, backend.Command{Type: "fetchprofile", Params: params})
		last = res

		if !res.OK {
			if res.Kind == backend.KindMissingConfig {
				// No base URL; the second attempt cannot do better.
				return retry.Permanent(errors.New("backend not configured"))
			}
			return errors.New("profile call failed")
		}
		if hasErrorField(res.Parsed) {
			return errors.New("profile response carried an error")
		}

		resolved, ok := resolveUser(res.Parsed)
		if !ok {
			return errors.New("no user object in profile response")
		}
		user = resolved
		return nil
	})

	if err != nil {
		if last.OK {
			// Both attempts returned parseable JSON without a user in it.
			last.Kind = backend.KindShapeInvalid
		}
		backend.AbortWithResult(c, last)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// resolveUser accepts the three envelope shapes the backend has been seen
// to use for profiles: {user:{...}}, {rows:[{...},...]}, or a bare array.
func resolveUser(parsed any) (map[string]any, bool) {
	switch v := parsed.(type) {
	case map[string]any:
		if user, ok := v["user"].(map[string]any); ok {
			return user, true
		}
		if rows, ok := v["rows"].([]any); ok && len(rows) > 0 {
			if user, ok := rows[0].(map[string]any); ok {
				return user, true
			}
		}
	case []any:
		if len(v) > 0 {
			if user, ok := v[0].(map[string]any); ok {
				return user, true
			}
		}
	}
	return nil, false
}

func hasErrorField(parsed any) bool {
	obj, ok := parsed.(map[string]any)
	if !ok {
		return false
	}
	_, has := obj["error"]
	return has
}
