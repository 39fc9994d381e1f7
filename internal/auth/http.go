package auth

import (
	"net/http"

	"scrapPickup/internal/logging"
)

// ErrorWriter renders an authentication or authorisation failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware verifies the Authorization bearer token and stores the Principal
// in the request context. Requests without a valid credential are rejected.
func Middleware(v Verifier, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				onError(w, r, err)
				return
			}
			p, err := v.Verify(r.Context(), tok)
			if err != nil {
				onError(w, r, err)
				return
			}
			ctx := logging.WithUserID(WithPrincipal(r.Context(), p), p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly rejects callers that RequireAdmin does not accept. It must run after Middleware.
func AdminOnly(admins AdminLookup, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := RequireAdmin(r.Context(), admins); err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
