package robots_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rohmanhakim/author-index/internal/robots"
	"github.com/rohmanhakim/author-index/internal/robots/cache"
)

func setupRobotsServer(statusCode int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(statusCode)
		if body != "" {
			w.Write([]byte(body))
		}
	}))
}

func TestEvaluate_AllowedWhenNoDisallowMatches(t *testing.T) {
	server := setupRobotsServer(http.StatusOK, "User-agent: *\nAllow: /\n")
	defer server.Close()

	checker := robots.NewChecker("test-agent/1.0", server.Client(), cache.NewMemoryCache())
	decision, err := checker.Evaluate(context.Background(), server.URL+"/page.html")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Error("expected URL to be allowed")
	}
	if decision.Mode != robots.ModeParsed {
		t.Errorf("expected parsed mode, got %s", decision.Mode)
	}
}

func TestEvaluate_BlockedByDisallow(t *testing.T) {
	server := setupRobotsServer(http.StatusOK, "User-agent: *\nDisallow: /private/\n")
	defer server.Close()

	checker := robots.NewChecker("test-agent/1.0", server.Client(), cache.NewMemoryCache())
	decision, err := checker.Evaluate(context.Background(), server.URL+"/private/page.html")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Error("expected URL to be blocked")
	}
	if decision.ErrorCode != robots.ErrBlockedByRobots {
		t.Errorf("expected BLOCKED_BY_ROBOTS, got %s", decision.ErrorCode)
	}
}

func TestEvaluate_AllowOverridesLongerDisallowTie(t *testing.T) {
	server := setupRobotsServer(http.StatusOK, "User-agent: *\nDisallow: /docs/\nAllow: /docs/public/\n")
	defer server.Close()

	checker := robots.NewChecker("test-agent/1.0", server.Client(), cache.NewMemoryCache())

	allowed, err := checker.Evaluate(context.Background(), server.URL+"/docs/public/page.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed.Allowed {
		t.Error("expected /docs/public/ to be allowed, longer allow prefix wins")
	}

	blocked, err := checker.Evaluate(context.Background(), server.URL+"/docs/private/page.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blocked.Allowed {
		t.Error("expected /docs/private/ to remain blocked")
	}
}

func TestEvaluate_NotFoundAllowsAllWithWarning(t *testing.T) {
	server := setupRobotsServer(http.StatusNotFound, "")
	defer server.Close()

	checker := robots.NewChecker("test-agent/1.0", server.Client(), cache.NewMemoryCache())
	decision, err := checker.Evaluate(context.Background(), server.URL+"/page.html")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Error("expected 404 robots.txt to allow all")
	}
	if decision.Mode != robots.ModeAllowAll {
		t.Errorf("expected allow_all mode, got %s", decision.Mode)
	}
	if decision.Warning == "" {
		t.Error("expected a warning to be set")
	}
	if decision.DelayMultiplier != 1.0 {
		t.Errorf("expected delay multiplier 1.0, got %v", decision.DelayMultiplier)
	}
}

func TestEvaluate_ServerErrorAllowsWithCautionAndBackoff(t *testing.T) {
	server := setupRobotsServer(http.StatusInternalServerError, "")
	defer server.Close()

	checker := robots.NewChecker("test-agent/1.0", server.Client(), cache.NewMemoryCache())
	decision, err := checker.Evaluate(context.Background(), server.URL+"/page.html")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Error("expected 5xx robots.txt to still allow with caution")
	}
	if decision.Mode != robots.ModeAllowWithCaution {
		t.Errorf("expected allow_with_caution mode, got %s", decision.Mode)
	}
	if decision.DelayMultiplier != 2.0 {
		t.Errorf("expected 2.0 delay multiplier backoff, got %v", decision.DelayMultiplier)
	}
}

func TestEvaluate_CachesWithinTTL(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	checker := robots.NewChecker("test-agent/1.0", server.Client(), cache.NewMemoryCache())
	for i := 0; i < 3; i++ {
		if _, err := checker.Evaluate(context.Background(), server.URL+"/a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if requestCount != 1 {
		t.Errorf("expected 1 fetch due to caching, got %d", requestCount)
	}
}

func TestEvaluate_RefetchesAfterTTLExpiry(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	checker := robots.NewChecker("test-agent/1.0", server.Client(), cache.NewMemoryCache()).
		WithClock(func() time.Time { return now })

	if _, err := checker.Evaluate(context.Background(), server.URL+"/a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := checker.Evaluate(context.Background(), server.URL+"/a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if requestCount != 2 {
		t.Errorf("expected refetch after TTL expiry, got %d requests", requestCount)
	}
}

func TestEvaluate_RejectsInvalidURL(t *testing.T) {
	checker := robots.NewChecker("test-agent/1.0", nil, cache.NewMemoryCache())
	_, err := checker.Evaluate(context.Background(), "not a url")
	if err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestParseRobotsTxt_UserAgentSpecificGroupWins(t *testing.T) {
	response := robots.ParseRobotsTxt("User-agent: bad-bot\nDisallow: /\n\nUser-agent: *\nAllow: /\n", "example.com")

	badBotGroup := response.GetGroupForUserAgent("bad-bot")
	if badBotGroup == nil || len(badBotGroup.Disallows) != 1 {
		t.Fatal("expected bad-bot group with a disallow rule")
	}

	wildcardGroup := response.GetGroupForUserAgent("good-bot")
	if wildcardGroup == nil || len(wildcardGroup.Allows) != 1 {
		t.Fatal("expected good-bot to fall back to the wildcard group")
	}
}
