// Package requestid propagates X-Request-ID, generating one when the caller sent none.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"kycdesk/pkg/requestcontext"
)

const Header = "X-Request-ID"

const maxLength = 128

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(Header)
		if reqID == "" || len(reqID) > maxLength {
			reqID = uuid.NewString()
		}
		w.Header().Set(Header, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
