package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func serveQuery(t *testing.T, target string) string {
	var seen string
	handler := NormalizeQueryParams()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.RawQuery
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequestWithContext(t.Context(), http.MethodGet, target, nil))
	return seen
}

func TestNormalizeQueryParams(t *testing.T) {
	assert.Equal(t, "", serveQuery(t, "/v1/process-instances"))
	assert.Equal(t, "size=5&page=2", serveQuery(t, "/v1/process-instances?size=5&page=2"))
	assert.Equal(t, "page=2", serveQuery(t, "/v1/process-instances?processDefinitionId=&page=2"))
	assert.Equal(t, "format=xml&processDefinitionId=gated", serveQuery(t, "/v1/process-definitions/gated?processDefinitionId=%20gated%20&format=xml&format="))
	assert.Equal(t, "", serveQuery(t, "/v1/process-instances?page=%20"))
}
