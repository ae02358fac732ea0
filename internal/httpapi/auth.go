package httpapi

import (
	"crypto/subtle"
	"net/http"
)

// checkAuth compares the configured header byte-for-byte, in constant
// time, against the inbound request (spec §4.1/§6). If no auth header
// name is configured, the check is skipped — AUTH_HEADER_NAME/VALUE are
// optional per spec §6's table.
func (h *Handler) checkAuth(r *http.Request) bool {
	if h.authHeaderName == "" {
		return true
	}
	got := r.Header.Get(h.authHeaderName)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.authHeaderValue)) == 1
}
