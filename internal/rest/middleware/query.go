package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// NormalizeQueryParams trims the query values and drops the blank ones, so a filter like
// "?processDefinitionId=&page=2" behaves as if the filter was not sent.
// The raw query is kept as sent when there is nothing to drop.
func NormalizeQueryParams() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawQuery == "" {
				next.ServeHTTP(w, r)
				return
			}
			query := r.URL.Query()
			changed := false
			for key, values := range query {
				kept := values[:0]
				for _, v := range values {
					trimmed := strings.TrimSpace(v)
					if trimmed != v {
						changed = true
					}
					if trimmed == "" {
						changed = true
						continue
					}
					kept = append(kept, trimmed)
				}
				if len(kept) == 0 {
					delete(query, key)
					continue
				}
				query[key] = kept
			}
			if changed {
				r.URL.RawQuery = url.Values(query).Encode()
			}
			next.ServeHTTP(w, r)
		})
	}
}
