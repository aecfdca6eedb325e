package robots

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/author-index/internal/robots/cache"
)

/*
Checker

Responsibilities:
- Fetch robots.txt per host using net/http
- Parse robots.txt content into a structured response
- Cache the resulting mode/TTL/delay_multiplier decision per host
- Decide, per URL, whether the configured user agent may fetch it

Robots checks occur before a URL enters the politeness gate. A Checker
never blocks on its own cache: an expired or missing entry triggers one
synchronous refetch, never a background refresh.
*/

// TTLs and delay multipliers per response outcome, matching the five
// branches of the evaluation table: success, not-found, server error,
// timeout/redirect-loop, and any other response.
const (
	ttlSuccess        = time.Hour
	ttlNotFound       = 4 * time.Hour
	ttlServerError    = 15 * time.Minute
	ttlTimeout        = time.Hour
	ttlOther          = time.Hour
	multiplierNormal  = 1.0
	multiplierBackoff = 2.0

	maxRobotsBodyBytes = 500 * 1024
)

// Checker fetches, caches, and evaluates robots.txt policy per host.
type Checker struct {
	httpClient *http.Client
	userAgent  string
	cache      cache.Cache
	clock      func() time.Time
}

// NewChecker constructs a Checker with the given user agent and cache. A
// nil cache disables caching (every Evaluate refetches). A nil httpClient
// gets a client with a 30s timeout, matching the fetch timeout default.
func NewChecker(userAgent string, httpClient *http.Client, robotsCache cache.Cache) *Checker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Checker{
		httpClient: httpClient,
		userAgent:  userAgent,
		cache:      robotsCache,
		clock:      time.Now,
	}
}

// WithClock overrides the time source, for deterministic TTL tests.
func (c *Checker) WithClock(clock func() time.Time) *Checker {
	c.clock = clock
	return c
}

func cacheKey(scheme, host string) string {
	return scheme + "://" + host + "/robots.txt"
}

// Evaluate decides whether rawURL may be fetched by the configured user
// agent, fetching and caching the host's robots.txt policy as needed.
func (c *Checker) Evaluate(ctx context.Context, rawURL string) (Decision, *RobotsError) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return Decision{}, &RobotsError{
			Message:   fmt.Sprintf("invalid URL for robots evaluation: %q", rawURL),
			Retryable: false,
			Cause:     ErrCauseInvalidRobotsURL,
		}
	}

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := parsed.Hostname()
	if parsed.Port() != "" {
		host = host + ":" + parsed.Port()
	}
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	entry, cacheHit, robotsErr := c.getOrFetch(ctx, scheme, host, robotsURL)
	if robotsErr != nil {
		return Decision{}, robotsErr
	}

	decision := Decision{
		DelayMultiplier: entry.DelayMultiplier,
		Mode:            entry.Mode,
		Warning:         entry.Warning,
		RobotsURL:       entry.RobotsURL,
		StatusCode:      entry.StatusCode,
		CacheHit:        cacheHit,
		Allowed:         true,
	}

	if entry.Mode == ModeParsed {
		group := entry.Response.GetGroupForUserAgent(c.userAgent)
		if group != nil && group.disallowsPath(parsed.EscapedPath()) {
			decision.Allowed = false
			decision.ErrorCode = ErrBlockedByRobots
		}
	}

	return decision, nil
}

func (c *Checker) getOrFetch(ctx context.Context, scheme, host, robotsURL string) (cacheEntry, bool, *RobotsError) {
	key := cacheKey(scheme, host)
	now := c.clock()

	if c.cache != nil {
		if raw, found := c.cache.Get(key); found {
			var entry cacheEntry
			if err := json.Unmarshal([]byte(raw), &entry); err == nil && !entry.expired(now) {
				return entry, true, nil
			}
		}
	}

	entry, robotsErr := c.fetchEntry(ctx, scheme, host, robotsURL, now)
	if robotsErr != nil {
		return cacheEntry{}, false, robotsErr
	}

	if c.cache != nil {
		if raw, err := json.Marshal(entry); err == nil {
			c.cache.Put(key, string(raw))
		}
	}
	return entry, false, nil
}

// fetchEntry performs the actual HTTP fetch and classifies the response
// into a mode/TTL/delay_multiplier cache entry per the evaluation table.
func (c *Checker) fetchEntry(ctx context.Context, scheme, host, robotsURL string, now time.Time) (cacheEntry, *RobotsError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return cacheEntry{}, &RobotsError{
			Message:   fmt.Sprintf("failed to build robots.txt request: %v", err),
			Retryable: false,
			Cause:     ErrCausePreFetchFailure,
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return cacheEntry{
				Mode:            ModeAllowAll,
				ExpiresAt:       now.Add(ttlTimeout),
				DelayMultiplier: multiplierNormal,
				Warning:         "robots.txt fetch timed out; allowing with default delay",
				RobotsURL:       robotsURL,
			}, nil
		}
		return cacheEntry{}, &RobotsError{
			Message:   fmt.Sprintf("failed to fetch robots.txt: %v", err),
			Retryable: true,
			Cause:     ErrCauseHTTPFetchFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		response, parseErr := parseRobotsBody(resp.Body, host)
		if parseErr != nil {
			return cacheEntry{}, parseErr
		}
		return cacheEntry{
			Mode:            ModeParsed,
			ExpiresAt:       now.Add(ttlSuccess),
			DelayMultiplier: multiplierNormal,
			Response:        response,
			StatusCode:      resp.StatusCode,
			RobotsURL:       robotsURL,
		}, nil

	case resp.StatusCode == http.StatusNotFound:
		return cacheEntry{
			Mode:            ModeAllowAll,
			ExpiresAt:       now.Add(ttlNotFound),
			DelayMultiplier: multiplierNormal,
			StatusCode:      resp.StatusCode,
			Warning:         "robots.txt not found; allowing with default delay",
			RobotsURL:       robotsURL,
		}, nil

	case resp.StatusCode >= 500:
		return cacheEntry{
			Mode:            ModeAllowWithCaution,
			ExpiresAt:       now.Add(ttlServerError),
			DelayMultiplier: multiplierBackoff,
			StatusCode:      resp.StatusCode,
			Warning:         fmt.Sprintf("robots.txt server error (%d); allowing with caution", resp.StatusCode),
			RobotsURL:       robotsURL,
		}, nil

	default:
		return cacheEntry{
			Mode:            ModeAllowAll,
			ExpiresAt:       now.Add(ttlOther),
			DelayMultiplier: multiplierNormal,
			StatusCode:      resp.StatusCode,
			Warning:         fmt.Sprintf("unexpected robots.txt status (%d); allowing with default delay", resp.StatusCode),
			RobotsURL:       robotsURL,
		}, nil
	}
}

// isTimeoutErr reports whether err (typically *url.Error wrapping a
// transport failure) signals a timeout. *url.Error implements net.Error by
// delegating Timeout() to the wrapped error.
func isTimeoutErr(err error) bool {
	te, ok := err.(net.Error)
	return ok && te.Timeout()
}

func parseRobotsBody(body io.Reader, host string) (RobotsResponse, *RobotsError) {
	limited := io.LimitReader(body, maxRobotsBodyBytes+1)
	content, err := io.ReadAll(limited)
	if err != nil {
		return RobotsResponse{}, &RobotsError{
			Message:   fmt.Sprintf("failed to read robots.txt body: %v", err),
			Retryable: true,
			Cause:     ErrCauseParseError,
		}
	}
	if len(content) > maxRobotsBodyBytes {
		content = content[:maxRobotsBodyBytes]
	}
	return ParseRobotsTxt(string(content), host), nil
}

// ParseRobotsTxt parses robots.txt content into a structured response.
// Exported for testing.
func ParseRobotsTxt(content, host string) RobotsResponse {
	response := RobotsResponse{Host: host}

	scanner := bufio.NewScanner(strings.NewReader(content))

	var currentGroup *UserAgentGroup
	var globalGroup UserAgentGroup
	hasGlobalGroup := false

	flushCurrent := func() {
		if currentGroup != nil {
			response.UserAgents = append(response.UserAgents, *currentGroup)
			currentGroup = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx != -1 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(line[:colonIdx]))
		value := strings.TrimSpace(line[colonIdx+1:])

		switch field {
		case "user-agent":
			if currentGroup == nil {
				currentGroup = &UserAgentGroup{UserAgents: []string{value}}
			} else if len(currentGroup.Allows) == 0 && len(currentGroup.Disallows) == 0 && currentGroup.CrawlDelay == nil {
				currentGroup.UserAgents = append(currentGroup.UserAgents, value)
			} else {
				flushCurrent()
				currentGroup = &UserAgentGroup{UserAgents: []string{value}}
			}

		case "allow":
			if currentGroup != nil {
				currentGroup.Allows = append(currentGroup.Allows, PathRule{Path: value})
			} else {
				globalGroup.Allows = append(globalGroup.Allows, PathRule{Path: value})
				hasGlobalGroup = true
			}

		case "disallow":
			if currentGroup != nil {
				currentGroup.Disallows = append(currentGroup.Disallows, PathRule{Path: value})
			} else {
				globalGroup.Disallows = append(globalGroup.Disallows, PathRule{Path: value})
				hasGlobalGroup = true
			}

		case "crawl-delay":
			if currentGroup != nil {
				var seconds float64
				if _, err := fmt.Sscanf(value, "%f", &seconds); err == nil && seconds >= 0 {
					delay := time.Duration(seconds * float64(time.Second))
					currentGroup.CrawlDelay = &delay
				}
			}

		case "sitemap":
			if value != "" {
				response.Sitemaps = append(response.Sitemaps, value)
			}
		}
	}
	flushCurrent()

	if hasGlobalGroup {
		globalGroup.UserAgents = []string{"*"}
		response.UserAgents = append([]UserAgentGroup{globalGroup}, response.UserAgents...)
	}

	return response
}
