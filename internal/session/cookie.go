package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CookieName is the session cookie set on login and read on every request.
const CookieName = "session"

// cookieMaxAge matches the backend's token lifetime (3 days).
const cookieMaxAge = 3 * 24 * 60 * 60

// SetCookie stores the backend-issued token in the session cookie.
func SetCookie(c *gin.Context, token string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, cookieMaxAge, "/", "", secure, true)
}

// ClearCookie writes a delete instruction for the session cookie
// (empty value, immediate expiry, path /).
func ClearCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", secure, true)
}

// TokenFromRequest returns the session token and whether the cookie was present.
func TokenFromRequest(c *gin.Context) (string, bool) {
	token, err := c.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	return token, token != ""
}
