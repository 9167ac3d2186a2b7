package backend

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AbortWithResult translates a failed Result into the HTTP response the
// gateway's callers see. The user-facing message stays generic; the raw
// body and parsed payload ride along in `raw`/`php` so operators can see
// exactly what the legacy side said.
func AbortWithResult(c *gin.Context, r Result) {
	status, msg := statusMessage(r)

	body := gin.H{
		"error":   string(r.Kind),
		"message": msg,
	}
	if r.RawBody != "" {
		body["raw"] = r.RawBody
	}
	if r.Parsed != nil {
		body["php"] = r.Parsed
	}

	c.AbortWithStatusJSON(status, body)
}

func statusMessage(r Result) (int, string) {
	switch r.Kind {
	case KindMissingConfig:
		return http.StatusInternalServerError, "Backend URL is not configured"
	case KindUnreachable:
		return http.StatusServiceUnavailable, "Backend is unreachable"
	case KindNonJSON:
		return http.StatusBadGateway, "Backend returned a non-JSON response"
	case KindShapeInvalid:
		return http.StatusBadGateway, "Backend response did not match the expected shape"
	case KindAuthInvalid:
		return http.StatusUnauthorized, r.Message("Authentication failed")
	case KindRejected:
		// Pass the backend's status through untouched.
		return r.Status, r.Message("Backend rejected the request")
	default:
		return http.StatusInternalServerError, "Unexpected backend state"
	}
}
