package connectors

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// isHTTPURL reports whether value parses as an absolute http(s) URL.
func isHTTPURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

// isPDFLink reports whether url points at a PDF resource, by suffix or by
// the arXiv /pdf/ path convention.
func isPDFLink(value string) bool {
	lowered := strings.ToLower(value)
	return strings.HasSuffix(lowered, ".pdf") || strings.Contains(lowered, "/pdf/")
}

// seedLoader fetches feed/listing documents from a local path or an
// http(s) URL, the same dual-mode seed resolution every connector uses.
type seedLoader struct {
	client    *http.Client
	userAgent string
}

func newSeedLoader(userAgent string, timeout time.Duration) seedLoader {
	return seedLoader{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// load reads seed as a local file when it exists on disk, otherwise as an
// http(s) GET. sourceURL is empty for local files and equal to seed for
// HTTP loads, letting callers resolve relative links against it.
func (l seedLoader) load(ctx context.Context, seed string) (text string, sourceURL string, err error) {
	if info, statErr := os.Stat(seed); statErr == nil && !info.IsDir() {
		raw, readErr := os.ReadFile(seed)
		if readErr != nil {
			return "", "", &DiscoverError{Cause: ErrCauseLoadFailed, Message: readErr.Error()}
		}
		return string(raw), "", nil
	}

	if !isHTTPURL(seed) {
		return "", "", &DiscoverError{Cause: ErrCauseUnsupportedSeed, Message: fmt.Sprintf("unsupported seed: %s", seed)}
	}
	return l.get(ctx, seed)
}

// get performs a plain HTTP(S) GET of url, independent of the
// compliance-gated internal/fetcher: discovery seeds are feed/listing
// pages supplied directly by the operator, not crawled article links.
func (l seedLoader) get(ctx context.Context, target string) (text string, sourceURL string, err error) {
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if reqErr != nil {
		return "", "", &DiscoverError{Cause: ErrCauseLoadFailed, Message: reqErr.Error()}
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, doErr := l.client.Do(req)
	if doErr != nil {
		return "", "", &DiscoverError{Cause: ErrCauseLoadFailed, Message: doErr.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", &DiscoverError{Cause: ErrCauseLoadFailed, Message: fmt.Sprintf("seed request failed with status %d", resp.StatusCode)}
	}

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", "", &DiscoverError{Cause: ErrCauseLoadFailed, Message: readErr.Error()}
	}
	return string(body), target, nil
}
