// Package validation provides input validation helpers for the gateway API.
package validation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20

// MaxStringLength is the maximum length for free-text fields
const MaxStringLength = 2000

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// Scope is the (company, branch) pair that disambiguates which dataset a
// backend call targets. It is client-held and non-authoritative: the
// gateway only requires both parts to be present, the backend decides
// entitlement.
type Scope struct {
	Company string
	Branch  string
}

// RequireScope reads company and branch from the query string and aborts
// with 400 when either is empty. No backend call happens past a failed
// scope check.
func RequireScope(c *gin.Context) (Scope, bool) {
	scope := Scope{
		Company: strings.TrimSpace(c.Query("company")),
		Branch:  strings.TrimSpace(c.Query("branch")),
	}
	if scope.Company == "" || scope.Branch == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "missing_scope",
			"message": "company and branch query parameters are required",
		})
		return Scope{}, false
	}
	return scope, true
}

// RequireCompany is RequireScope for the one read (branch listing) that
// happens before a branch is selected.
func RequireCompany(c *gin.Context) (string, bool) {
	company := strings.TrimSpace(c.Query("company"))
	if company == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "missing_scope",
			"message": "company query parameter is required",
		})
		return "", false
	}
	return company, true
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// NonEmpty reports whether every given value is non-blank.
func NonEmpty(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}
