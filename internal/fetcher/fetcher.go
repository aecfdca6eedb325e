package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/internal/politeness"
	"github.com/rohmanhakim/author-index/internal/robots"
)

/*
Fetcher

Responsibilities:
- Validate scheme and resolve hostname before dialing, rejecting anything
  that resolves into a blocked (private/loopback/link-local/multicast) IP
  range
- Consult the robots checker and politeness gate once, before the first
  request (redirect hops are not re-checked against them)
- Follow redirects manually, one hop at a time, revalidating scheme and IP
  on every hop instead of trusting net/http's automatic follower
- Cap the response body by content-type, streaming a SHA-256 digest as it
  reads instead of buffering first and hashing after

The fetcher never retries on its own; pkg/retry wraps it for that.
*/

// bodyLimiter resolves the byte cap for a response's content-type.
type bodyLimiter struct {
	byType  map[string]int64
	defaultLimit int64
}

func (b bodyLimiter) limitFor(contentType string) int64 {
	normalized := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if limit, ok := b.byType[normalized]; ok {
		return limit
	}
	return b.defaultLimit
}

// Fetcher performs SSRF-safe, politeness-gated HTTP fetches.
type Fetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxRedirects int
	timeout      time.Duration
	limits       bodyLimiter
	blockedNets  []*net.IPNet
	allowedSchemes map[string]struct{}

	robotsChecker *robots.Checker
	politeness    *politeness.Controller
	sink          metadata.Sink

	resolveHost func(ctx context.Context, host string) ([]net.IP, error)
}

// Option configures optional collaborators on a Fetcher.
type Option func(*Fetcher)

func WithRobotsChecker(checker *robots.Checker) Option {
	return func(f *Fetcher) { f.robotsChecker = checker }
}

func WithPoliteness(controller *politeness.Controller) Option {
	return func(f *Fetcher) { f.politeness = controller }
}

func WithSink(sink metadata.Sink) Option {
	return func(f *Fetcher) { f.sink = sink }
}

// New builds a Fetcher. blockedCIDRs entries that fail to parse are
// skipped silently: they come from a validated Config, never user input.
func New(userAgent string, maxRedirects int, timeout time.Duration, maxBodyBytesByType map[string]int64, maxBodyBytesDefault int64, blockedCIDRs []string, allowedSchemes map[string]struct{}, opts ...Option) *Fetcher {
	var nets []*net.IPNet
	for _, cidr := range blockedCIDRs {
		if _, n, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, n)
		}
	}

	f := &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:      userAgent,
		maxRedirects:   maxRedirects,
		timeout:        timeout,
		limits:         bodyLimiter{byType: maxBodyBytesByType, defaultLimit: maxBodyBytesDefault},
		blockedNets:    nets,
		allowedSchemes: allowedSchemes,
		resolveHost: func(ctx context.Context, host string) ([]net.IP, error) {
			addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			ips := make([]net.IP, len(addrs))
			for i, a := range addrs {
				ips[i] = a.IP
			}
			return ips, nil
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) isBlockedIP(ip net.IP) bool {
	for _, n := range f.blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (f *Fetcher) validateHost(ctx context.Context, host string) *FetchError {
	ips, err := f.resolveHost(ctx, host)
	if err != nil {
		return &FetchError{
			Message:   fmt.Sprintf("failed to resolve host %q: %v", host, err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
			Code:      ErrCodeFetchError,
		}
	}
	for _, ip := range ips {
		if f.isBlockedIP(ip) {
			return &FetchError{
				Message:   fmt.Sprintf("host %q resolves to a blocked IP range", host),
				Retryable: false,
				Cause:     ErrCauseBlockedIP,
				Code:      ErrCodeSecurityBlocked,
			}
		}
	}
	return nil
}

// Fetch retrieves rawURL, consulting robots policy and the politeness gate
// first, then following redirects manually up to the configured limit.
func (f *Fetcher) Fetch(ctx context.Context, runID, rawURL string) (*Result, Log) {
	start := time.Now()
	logEntry := Log{URL: rawURL, RunID: runID, FetchedAt: start}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		logEntry.ErrorCode = ErrCodeFetchError
		logEntry.LatencyMs = time.Since(start).Milliseconds()
		return nil, logEntry
	}
	if parsed.Scheme == "" {
		logEntry.ErrorCode = ErrCodeSecurityBlocked
		logEntry.LatencyMs = time.Since(start).Milliseconds()
		return nil, logEntry
	}
	scheme := strings.ToLower(parsed.Scheme)
	if _, ok := f.allowedSchemes[scheme]; !ok {
		logEntry.ErrorCode = ErrCodeSecurityBlocked
		logEntry.LatencyMs = time.Since(start).Milliseconds()
		return nil, logEntry
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		logEntry.ErrorCode = ErrCodeFetchError
		logEntry.LatencyMs = time.Since(start).Milliseconds()
		return nil, logEntry
	}

	if blockedErr := f.validateHost(ctx, hostname); blockedErr != nil {
		logEntry.ErrorCode = blockedErr.Code
		logEntry.LatencyMs = time.Since(start).Milliseconds()
		f.recordError(runID, rawURL, blockedErr)
		return nil, logEntry
	}

	delayMultiplier := 1.0
	if f.robotsChecker != nil {
		decision, robotsErr := f.robotsChecker.Evaluate(ctx, rawURL)
		if robotsErr != nil {
			logEntry.ErrorCode = ErrCodeFetchError
			logEntry.LatencyMs = time.Since(start).Milliseconds()
			return nil, logEntry
		}
		delayMultiplier = decision.DelayMultiplier
		if decision.Warning != "" {
			f.recordEvent(metadata.EventRobotsWarning, runID, map[string]any{
				"url": rawURL, "robots_url": decision.RobotsURL, "robots_mode": string(decision.Mode),
				"robots_status_code": decision.StatusCode, "delay_multiplier": decision.DelayMultiplier,
				"cache_hit": decision.CacheHit, "message": decision.Warning,
			})
		}
		if decision.DelayMultiplier > 1.0 {
			f.recordEvent(metadata.EventRobotsSlowdown, runID, map[string]any{
				"url": rawURL, "domain": hostname, "robots_mode": string(decision.Mode),
				"delay_multiplier": decision.DelayMultiplier,
			})
		}
		if !decision.Allowed && decision.ErrorCode == robots.ErrBlockedByRobots {
			logEntry.ErrorCode = ErrCodeBlockedByRobots
			logEntry.LatencyMs = time.Since(start).Milliseconds()
			return nil, logEntry
		}
	}

	if f.politeness != nil {
		release, err := f.politeness.RequestSlot(ctx, hostname, delayMultiplier)
		if err != nil {
			logEntry.ErrorCode = ErrCodeFetchError
			logEntry.LatencyMs = time.Since(start).Milliseconds()
			return nil, logEntry
		}
		defer release()
	}

	resp, finalURL, fetchErr := f.followRedirects(ctx, rawURL)
	if fetchErr != nil {
		logEntry.ErrorCode = fetchErr.Code
		logEntry.LatencyMs = time.Since(start).Milliseconds()
		f.recordError(runID, rawURL, fetchErr)
		return nil, logEntry
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		logEntry.StatusCode = resp.StatusCode
		logEntry.LatencyMs = time.Since(start).Milliseconds()
		return &Result{StatusCode: resp.StatusCode, FinalURL: finalURL, Headers: flattenHeaders(resp.Header), LatencyMs: logEntry.LatencyMs}, logEntry
	}

	limit := f.limits.limitFor(resp.Header.Get("Content-Type"))
	body, sum, readErr := readBodyWithLimit(resp.Body, limit)
	if readErr != nil {
		logEntry.ErrorCode = readErr.Code
		logEntry.LatencyMs = time.Since(start).Milliseconds()
		f.recordError(runID, rawURL, readErr)
		return nil, logEntry
	}

	logEntry.StatusCode = resp.StatusCode
	logEntry.BytesReceived = int64(len(body))
	logEntry.LatencyMs = time.Since(start).Milliseconds()

	return &Result{
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
		Headers:    flattenHeaders(resp.Header),
		Body:       body,
		BodySHA256: sum,
		LatencyMs:  logEntry.LatencyMs,
	}, logEntry
}

// followRedirects performs the request manually, hop by hop, revalidating
// scheme and resolved IP before following each redirect.
func (f *Fetcher) followRedirects(ctx context.Context, startURL string) (*http.Response, string, *FetchError) {
	current := startURL

	for hop := 0; hop <= f.maxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, "", &FetchError{Message: err.Error(), Retryable: false, Cause: ErrCauseNetworkFailure, Code: ErrCodeFetchError}
		}
		req.Header.Set("User-Agent", f.userAgent)

		resp, err := f.httpClient.Do(req)
		if err != nil {
			if isTimeout(err) {
				return nil, "", &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseTimeout, Code: ErrCodeTimeout}
			}
			return nil, "", &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseNetworkFailure, Code: ErrCodeFetchError}
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 && resp.Header.Get("Location") != "" {
			if hop >= f.maxRedirects {
				resp.Body.Close()
				return nil, "", &FetchError{Message: "redirect limit exceeded", Retryable: false, Cause: ErrCauseRedirectExceeded, Code: ErrCodeRedirectLimit}
			}

			next, err := resolveRedirect(current, resp.Header.Get("Location"))
			resp.Body.Close()
			if err != nil {
				return nil, "", &FetchError{Message: err.Error(), Retryable: false, Cause: ErrCauseRedirectUnsafe, Code: ErrCodeRedirectLimit}
			}

			nextParsed, err := url.Parse(next)
			if err != nil {
				return nil, "", &FetchError{Message: "invalid redirect target", Retryable: false, Cause: ErrCauseRedirectUnsafe, Code: ErrCodeRedirectLimit}
			}
			if _, ok := f.allowedSchemes[strings.ToLower(nextParsed.Scheme)]; !ok {
				return nil, "", &FetchError{Message: "redirected to disallowed protocol", Retryable: false, Cause: ErrCauseRedirectUnsafe, Code: ErrCodeRedirectLimit}
			}
			if blockedErr := f.validateHost(ctx, nextParsed.Hostname()); blockedErr != nil {
				return nil, "", &FetchError{Message: "redirected to blocked IP range", Retryable: false, Cause: ErrCauseRedirectUnsafe, Code: ErrCodeRedirectLimit}
			}

			current = next
			continue
		}

		return resp, current, nil
	}

	return nil, "", &FetchError{Message: "redirect limit exceeded", Retryable: false, Cause: ErrCauseRedirectExceeded, Code: ErrCodeRedirectLimit}
}

func resolveRedirect(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// readBodyWithLimit reads body up to limit bytes while streaming a SHA-256
// digest, never buffering more than limit+1 bytes. limit == 0 rejects the
// content type outright (used for PDF, which the policy disables).
func readBodyWithLimit(body io.Reader, limit int64) ([]byte, string, *FetchError) {
	if limit == 0 {
		return nil, "", &FetchError{Message: "content type is disabled by policy", Retryable: false, Cause: ErrCauseBodyTooLarge, Code: ErrCodeBodyTooLarge}
	}

	hasher := sha256.New()
	limited := io.LimitReader(body, limit+1)
	buf, err := io.ReadAll(io.TeeReader(limited, hasher))
	if err != nil {
		return nil, "", &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseReadBodyFailed, Code: ErrCodeFetchError}
	}
	if int64(len(buf)) > limit {
		return nil, "", &FetchError{Message: fmt.Sprintf("response exceeds %d bytes", limit), Retryable: false, Cause: ErrCauseBodyTooLarge, Code: ErrCodeBodyTooLarge}
	}
	if len(buf) == 0 {
		return buf, "", nil
	}
	return buf, hex.EncodeToString(hasher.Sum(nil)), nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

func isTimeout(err error) bool {
	te, ok := err.(net.Error)
	return ok && te.Timeout()
}

func (f *Fetcher) recordEvent(eventType, runID string, fields map[string]any) {
	if f.sink == nil {
		return
	}
	f.sink.RecordEvent(eventType, &runID, fields)
}

func (f *Fetcher) recordError(runID, rawURL string, err *FetchError) {
	if f.sink == nil {
		return
	}
	f.sink.RecordEvent(metadata.EventPipelineStageErr, &runID, map[string]any{
		"url": rawURL, "error_code": string(err.Code), "cause": mapFetchErrorToMetadataCause(err).String(), "message": err.Error(),
	})
}
