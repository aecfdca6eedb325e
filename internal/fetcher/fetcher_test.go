package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rohmanhakim/author-index/internal/fetcher"
	"github.com/rohmanhakim/author-index/internal/robots"
	"github.com/rohmanhakim/author-index/internal/robots/cache"
)

func defaultLimits() (map[string]int64, int64) {
	return map[string]int64{
		"text/html":        5_000_000,
		"application/json":  2_000_000,
		"application/pdf":   0,
	}, 500_000
}

func defaultSchemes() map[string]struct{} {
	return map[string]struct{}{"http": {}, "https": {}}
}

func newFetcher(blockedCIDRs []string, opts ...fetcher.Option) *fetcher.Fetcher {
	byType, defaultLimit := defaultLimits()
	return fetcher.New("author-index-test/1", 3, 5*time.Second, byType, defaultLimit, blockedCIDRs, defaultSchemes(), opts...)
}

func TestFetch_SuccessReturnsBodyAndHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>hello</html>"))
	}))
	defer server.Close()

	f := newFetcher(nil)
	result, logEntry := f.Fetch(context.Background(), "run-1", server.URL)

	if result == nil {
		t.Fatalf("expected a result, got error code %q", logEntry.ErrorCode)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", result.StatusCode)
	}
	if result.BodySHA256 == "" {
		t.Fatalf("expected a non-empty body hash")
	}
	if string(result.Body) != "<html>hello</html>" {
		t.Fatalf("body = %q", result.Body)
	}
	if logEntry.ErrorCode != "" {
		t.Fatalf("unexpected error code %q", logEntry.ErrorCode)
	}
}

func TestFetch_DisallowedSchemeBlocked(t *testing.T) {
	f := newFetcher(nil)
	result, logEntry := f.Fetch(context.Background(), "run-1", "ftp://example.com/file")

	if result != nil {
		t.Fatalf("expected no result for a disallowed scheme")
	}
	if logEntry.ErrorCode != fetcher.ErrCodeSecurityBlocked {
		t.Fatalf("error code = %q, want SECURITY_BLOCKED", logEntry.ErrorCode)
	}
}

func TestFetch_BlockedIPRangeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("should never be reached"))
	}))
	defer server.Close()

	f := newFetcher([]string{"127.0.0.0/8"})
	result, logEntry := f.Fetch(context.Background(), "run-1", server.URL)

	if result != nil {
		t.Fatalf("expected no result for a blocked IP range")
	}
	if logEntry.ErrorCode != fetcher.ErrCodeSecurityBlocked {
		t.Fatalf("error code = %q, want SECURITY_BLOCKED", logEntry.ErrorCode)
	}
}

func TestFetch_RedirectFollowedToFinalURL(t *testing.T) {
	var finalPath = "/landed"
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, finalPath, http.StatusFound)
	})
	mux.HandleFunc(finalPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newFetcher(nil)
	result, logEntry := f.Fetch(context.Background(), "run-1", server.URL+"/start")

	if result == nil {
		t.Fatalf("expected a result, got error code %q", logEntry.ErrorCode)
	}
	if result.FinalURL != server.URL+finalPath {
		t.Fatalf("final url = %q, want %q", result.FinalURL, server.URL+finalPath)
	}
	if string(result.Body) != "landed" {
		t.Fatalf("body = %q", result.Body)
	}
}

func TestFetch_RedirectLimitExceeded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	byType, defaultLimit := defaultLimits()
	f := fetcher.New("author-index-test/1", 1, 5*time.Second, byType, defaultLimit, nil, defaultSchemes())
	result, logEntry := f.Fetch(context.Background(), "run-1", server.URL+"/loop")

	if result != nil {
		t.Fatalf("expected no result for an infinite redirect loop")
	}
	if logEntry.ErrorCode != fetcher.ErrCodeRedirectLimit {
		t.Fatalf("error code = %q, want REDIRECT_LIMIT", logEntry.ErrorCode)
	}
}

func TestFetch_BodyTooLargeAborts(t *testing.T) {
	big := make([]byte, 1000)
	for i := range big {
		big[i] = 'x'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(big)
	}))
	defer server.Close()

	f := fetcher.New("author-index-test/1", 3, 5*time.Second, map[string]int64{"text/html": 10}, 10, nil, defaultSchemes())
	result, logEntry := f.Fetch(context.Background(), "run-1", server.URL)

	if result != nil {
		t.Fatalf("expected no result when body exceeds the policy limit")
	}
	if logEntry.ErrorCode != fetcher.ErrCodeBodyTooLarge {
		t.Fatalf("error code = %q, want BODY_TOO_LARGE", logEntry.ErrorCode)
	}
}

func TestFetch_ContentTypeDisabledByPolicy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	f := newFetcher(nil)
	result, logEntry := f.Fetch(context.Background(), "run-1", server.URL)

	if result != nil {
		t.Fatalf("expected no result for a policy-disabled content type")
	}
	if logEntry.ErrorCode != fetcher.ErrCodeBodyTooLarge {
		t.Fatalf("error code = %q, want BODY_TOO_LARGE", logEntry.ErrorCode)
	}
}

func TestFetch_NotModifiedReturnsNoBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	f := newFetcher(nil)
	result, logEntry := f.Fetch(context.Background(), "run-1", server.URL)

	if result == nil {
		t.Fatalf("expected a result for a 304 response, got error code %q", logEntry.ErrorCode)
	}
	if result.StatusCode != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", result.StatusCode)
	}
	if len(result.Body) != 0 {
		t.Fatalf("expected an empty body for 304, got %q", result.Body)
	}
}

func TestFetch_RobotsDisallowBlocks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	checker := robots.NewChecker("author-index-test/1", server.Client(), cache.NewMemoryCache())
	f := newFetcher(nil, fetcher.WithRobotsChecker(checker))

	result, logEntry := f.Fetch(context.Background(), "run-1", server.URL+"/private/page")

	if result != nil {
		t.Fatalf("expected no result for a robots-disallowed path")
	}
	if logEntry.ErrorCode != fetcher.ErrCodeBlockedByRobots {
		t.Fatalf("error code = %q, want BLOCKED_BY_ROBOTS", logEntry.ErrorCode)
	}
}

func TestFetch_RobotsAllowsPermittedPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/public/page", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("public"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	checker := robots.NewChecker("author-index-test/1", server.Client(), cache.NewMemoryCache())
	f := newFetcher(nil, fetcher.WithRobotsChecker(checker))

	result, logEntry := f.Fetch(context.Background(), "run-1", server.URL+"/public/page")

	if result == nil {
		t.Fatalf("expected a result, got error code %q", logEntry.ErrorCode)
	}
	if string(result.Body) != "public" {
		t.Fatalf("body = %q", result.Body)
	}
}
