package robots

import (
	"strings"
	"time"
)

// RobotsResponse represents the parsed content of a robots.txt file.
type RobotsResponse struct {
	Host       string           `json:"host"`
	Sitemaps   []string         `json:"sitemaps,omitempty"`
	UserAgents []UserAgentGroup `json:"user_agents,omitempty"`
}

// UserAgentGroup represents a set of rules for one or more user agents.
type UserAgentGroup struct {
	UserAgents []string        `json:"user_agents"`
	Allows     []PathRule      `json:"allows,omitempty"`
	Disallows  []PathRule      `json:"disallows,omitempty"`
	CrawlDelay *time.Duration  `json:"crawl_delay,omitempty"`
}

// PathRule represents a single allow or disallow rule.
type PathRule struct {
	Path string `json:"path"`
}

// IsEmpty returns true if the response contains no rules or sitemaps.
func (r RobotsResponse) IsEmpty() bool {
	if len(r.Sitemaps) > 0 {
		return false
	}
	for _, group := range r.UserAgents {
		if len(group.Allows) > 0 || len(group.Disallows) > 0 {
			return false
		}
	}
	return true
}

// GetGroupForUserAgent returns the most specific user agent group for the
// given user agent, preferring an exact match, then the longest matching
// prefix, then the wildcard group. Returns nil if no group matches at all.
func (r RobotsResponse) GetGroupForUserAgent(userAgent string) *UserAgentGroup {
	userAgentLower := strings.ToLower(userAgent)

	for i, group := range r.UserAgents {
		for _, ua := range group.UserAgents {
			if strings.ToLower(ua) == userAgentLower {
				return &r.UserAgents[i]
			}
		}
	}

	var bestMatch *UserAgentGroup
	bestMatchLength := 0
	for i, group := range r.UserAgents {
		for _, ua := range group.UserAgents {
			uaLower := strings.ToLower(ua)
			if ua == "*" {
				if bestMatch == nil {
					bestMatch = &r.UserAgents[i]
				}
				continue
			}
			if strings.HasPrefix(userAgentLower, uaLower) && len(uaLower) > bestMatchLength {
				bestMatch = &r.UserAgents[i]
				bestMatchLength = len(uaLower)
			}
		}
	}

	return bestMatch
}

// disallowsPath reports whether path is blocked by this group, using the
// standard REP tie-break: the longest matching allow/disallow prefix wins;
// ties favor allow.
func (g UserAgentGroup) disallowsPath(path string) bool {
	bestAllow, bestDisallow := -1, -1
	for _, rule := range g.Allows {
		if n := matchLength(rule.Path, path); n > bestAllow {
			bestAllow = n
		}
	}
	for _, rule := range g.Disallows {
		if n := matchLength(rule.Path, path); n > bestDisallow {
			bestDisallow = n
		}
	}
	if bestDisallow < 0 {
		return false
	}
	return bestDisallow > bestAllow
}

// matchLength returns the length of pattern if path starts with it, or -1
// if pattern does not match path. An empty pattern never matches.
func matchLength(pattern, path string) int {
	if pattern == "" {
		return -1
	}
	if strings.HasPrefix(path, pattern) {
		return len(pattern)
	}
	return -1
}
