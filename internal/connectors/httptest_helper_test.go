package connectors_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// newStaticHTTPServer serves body for every request, standing in for a
// seed loaded over http(s) so relative-link resolution can be exercised
// against a real base URL.
func newStaticHTTPServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	return server
}
