// Package requesttime pins a single observation of the clock per request.
package requesttime

import (
	"net/http"
	"time"

	"registrar/pkg/requestcontext"
)

// Middleware stamps the request context with the arrival time. Downstream
// services read it via requestcontext.Now, so one request sees one "today"
// even if it spans a midnight boundary.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
