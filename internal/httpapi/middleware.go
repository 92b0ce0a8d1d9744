package httpapi

import (
	"net/http"
	"strings"

	"github.com/xbyte-labs/byte-gateway/internal/adminauth"
	"github.com/xbyte-labs/byte-gateway/internal/apperr"
)

// requireAdmin gates a route group behind a valid admin bearer token.
func requireAdmin(issuer *adminauth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeEnvelope(w, apperr.AdminStatus(apperr.ConfigError), apperr.Fail("missing bearer token"))
				return
			}
			if _, err := issuer.Validate(token); err != nil {
				writeEnvelope(w, apperr.AdminStatus(apperr.ConfigError), apperr.Fail("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
