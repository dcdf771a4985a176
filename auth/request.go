package auth

import (
	"net/http"
	"strings"
)

const DefaultCookieName = "token"

// TokenFromRequest extracts the session token the same way for the websocket
// handshake and plain requests: cookie first, then the Authorization header.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if r == nil {
		return ""
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}

	// Expecting the standard "Bearer <token>" format
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
