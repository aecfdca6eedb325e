package robots

import "time"

// Mode describes how confidently the checker can enforce robots.txt rules
// for a host. A non-parsed mode still yields an allowed decision but carries
// a Warning explaining why enforcement was relaxed.
type Mode string

const (
	ModeParsed           Mode = "parsed"
	ModeAllowAll         Mode = "allow_all"
	ModeAllowWithCaution Mode = "allow_with_caution"
)

// Decision is the outcome of evaluating a single URL against the cached (or
// freshly fetched) robots.txt policy for its host.
type Decision struct {
	Allowed         bool
	ErrorCode       string
	DelayMultiplier float64
	Mode            Mode
	Warning         string
	RobotsURL       string
	StatusCode      int
	CacheHit        bool
}

// cacheEntry is the serializable snapshot stored behind a host's cache key.
// ExpiresAt makes the otherwise TTL-less cache.Cache port TTL-aware: a hit
// whose ExpiresAt has passed is treated as a miss and refetched.
type cacheEntry struct {
	Mode            Mode           `json:"mode"`
	ExpiresAt       time.Time      `json:"expires_at"`
	DelayMultiplier float64        `json:"delay_multiplier"`
	Response        RobotsResponse `json:"response,omitempty"`
	StatusCode      int            `json:"status_code"`
	Warning         string         `json:"warning,omitempty"`
	RobotsURL       string         `json:"robots_url"`
}

func (e cacheEntry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
