// Package canonical implements the pure, deterministic URL normalization
// that produces the dedup key component (canonical_url, source_id) used
// throughout storage. See Canonicalize for the exact rule set.
package canonical

import (
	"net"
	"net/url"
	"sort"
	"strings"
)

var removableQueryParams = map[string]struct{}{
	"session":    {},
	"sessionid":  {},
	"sid":        {},
	"phpsessid":  {},
	"jsessionid": {},
}

// Canonicalize produces a stable dedup-key URL from a raw URL string.
//
// Rules: reject non-http(s) (return input unchanged); force scheme to
// https; lowercase host and path; strip fragment; drop default ports; drop
// any query parameter whose lowercased key starts with "utm_" or is a
// known session-id key; sort remaining query pairs lexicographically by
// (key, value); ensure path begins with "/" (empty path -> "/").
//
// Pure, deterministic, idempotent: Canonicalize(Canonicalize(u)) == Canonicalize(u).
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return raw
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return raw
	}

	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	netloc := host
	if port != "" && port != "80" && port != "443" {
		netloc = net.JoinHostPort(host, port)
	}

	path := strings.ToLower(parsed.EscapedPath())
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	query := parsed.Query()
	type pair struct{ key, value string }
	var pairs []pair
	for key, values := range query {
		lowerKey := strings.ToLower(key)
		if strings.HasPrefix(lowerKey, "utm_") {
			continue
		}
		if _, blocked := removableQueryParams[lowerKey]; blocked {
			continue
		}
		for _, v := range values {
			pairs = append(pairs, pair{key, v})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	values := url.Values{}
	for _, p := range pairs {
		values.Add(p.key, p.value)
	}

	out := url.URL{
		Scheme:   "https",
		Host:     netloc,
		Path:     path,
		RawQuery: values.Encode(),
	}
	return out.String()
}
