package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"creditgate/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID attaches a request ID to the context and echoes it in the
// response. An incoming header wins so IDs survive proxy hops.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
