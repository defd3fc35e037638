package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/indigo423/kuwaiba-sub029/internal/appcontext"
)

const CorrelationIdHeader = "X-Correlation-Id"

// CorrelationId stores the correlation id of the request in its context, requests without one get a new uuid.
// The id is echoed in the response.
func CorrelationId() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationIdHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(CorrelationIdHeader, id)
			next.ServeHTTP(w, r.WithContext(appcontext.WithCorrelationId(r.Context(), id)))
		})
	}
}
