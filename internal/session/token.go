// Package session reads and routes on the backend-issued session token.
//
// The token is minted and signed by the legacy backend; the gateway never
// holds the signing key and therefore never verifies signatures. All it can
// do locally is decode the payload and time-check the expiry claim.
package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// IsValid reports whether a session token should be treated as live.
//
// The rules are deliberately fail-open: the backend also issues opaque
// non-JWT credentials that cannot be time-checked locally, so anything the
// gateway cannot decode is accepted and left for the backend to reject.
// Do not tighten this to fail-closed without product sign-off.
//
//   - empty token → invalid
//   - not three dot-separated segments → valid (opaque credential)
//   - payload fails base64url decode or JSON parse → valid
//   - no exp claim → valid
//   - non-numeric exp claim → invalid
//   - numeric exp → valid iff it is still in the future
//
// Never panics; every decode failure maps to one of the outcomes above.
func IsValid(token string) bool {
	if token == "" {
		return false
	}

	if strings.Count(token, ".") != 2 {
		return true
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		// exp is present but not a number
		return false
	}
	if exp == nil {
		return true
	}

	return timeNow().UnixMilli() < exp.UnixMilli()
}
