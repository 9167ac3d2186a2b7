package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Action is the routing outcome for a request passing the edge gate.
type Action int

const (
	// ActionAllow lets the request continue to its handler.
	ActionAllow Action = iota
	// ActionRedirectLogin sends the caller to the login page.
	ActionRedirectLogin
	// ActionRedirectDashboard sends an already-authenticated caller to the dashboard.
	ActionRedirectDashboard
)

// Decision is the edge-gate outcome: what to do with the request and
// whether the (stale) session cookie should be cleared on the way.
type Decision struct {
	Action      Action
	ClearCookie bool
}

// Decide computes the access decision from the request path and cookie state.
// Pure routing: no backend calls, computed once per request.
//
//	/login     + valid token   → redirect to /dashboard
//	/login     + invalid token → clear cookie, continue
//	/login     + no token      → continue
//	/dashboard + valid token   → continue
//	/dashboard otherwise       → redirect to /login, clearing any stale cookie
//	any other path             → continue, no cookie mutation
func Decide(path, token string, present bool) Decision {
	switch {
	case strings.HasPrefix(path, "/login"):
		if present && IsValid(token) {
			return Decision{Action: ActionRedirectDashboard}
		}
		if present {
			return Decision{Action: ActionAllow, ClearCookie: true}
		}
		return Decision{Action: ActionAllow}

	case strings.HasPrefix(path, "/dashboard"):
		if present && IsValid(token) {
			return Decision{Action: ActionAllow}
		}
		return Decision{Action: ActionRedirectLogin, ClearCookie: present}

	default:
		return Decision{Action: ActionAllow}
	}
}

// EdgeGate returns a middleware that applies Decide to every request.
// It runs before any page or API handler.
func EdgeGate(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present := TokenFromRequest(c)
		d := Decide(c.Request.URL.Path, token, present)

		if d.ClearCookie {
			ClearCookie(c, secure)
		}

		switch d.Action {
		case ActionRedirectLogin:
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
		case ActionRedirectDashboard:
			c.Redirect(http.StatusFound, "/dashboard")
			c.Abort()
		default:
			c.Next()
		}
	}
}

// RequireSession rejects API requests whose session token fails IsValid.
// Note the fail-open token rules apply here too: only an absent cookie or
// a decodable-but-expired token produces a 401.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := TokenFromRequest(c)
		if !IsValid(token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Session is missing or expired. Log in again.",
			})
			return
		}
		c.Next()
	}
}
