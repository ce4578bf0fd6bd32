// Package requesttime pins one "now" per HTTP request so audit events, decision
// timestamps and monitoring windows computed during the request agree.
package requesttime

import (
	"net/http"
	"time"

	"kycdesk/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
