package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the immutable, validated-at-startup compliance configuration.
// It is built exclusively through WithDefault(...).With*(...).Build() so
// that an invalid configuration can never be constructed silently.
type Config struct {
	//===============
	// Politeness / fetch-layer constraints (non-negotiable in v0)
	//===============
	// robotsRequired is always true; Build refuses a Config where it is false.
	robotsRequired bool
	// storeFullBody is always false: the system never persists article bodies.
	storeFullBody bool
	// autoMergeEnabled is always false: all author merges require manual review.
	autoMergeEnabled bool

	// perDomainDelay is the minimum gap between requests to the same host.
	perDomainDelay time.Duration
	// globalConcurrency is the size of the politeness gate's global slot pool.
	globalConcurrency int
	// maxRedirects is the bound on manual redirect hops per fetch.
	maxRedirects int
	// fetchTimeout covers socket connect+read for fetches and robots lookups.
	fetchTimeout time.Duration
	// maxBodyBytesByType maps a content-type prefix to its byte cap.
	maxBodyBytesByType map[string]int64
	// maxBodyBytesDefault is the cap for content-types absent from the map.
	maxBodyBytesDefault int64
	// blockedCIDRs enumerates the SSRF-blocked IP ranges.
	blockedCIDRs []string
	// allowedSchemes enumerates the protocols the fetcher will ever dial.
	allowedSchemes map[string]struct{}
	// userAgent is sent on every outbound HTTP request (fetches and robots).
	userAgent string

	//===============
	// Content constraints (non-negotiable)
	//===============
	snippetMaxChars         int
	evidenceSnippetMaxChars int

	//===============
	// Retry / backoff (used by the pipeline's fetch retry)
	//===============
	baseDelay              time.Duration
	jitter                 time.Duration
	randomSeed             int64
	maxAttempt             int
	backoffInitialDuration time.Duration
	backoffMultiplier      float64
	backoffMaxDuration     time.Duration

	//===============
	// Storage / run
	//===============
	dbPath        string
	dryRun        bool
	maxURLsPerRun int

	// extractorVersion is exposed through ExtractorVersion(); the pipeline
	// stamps Evidence rows with build.FullVersion() and does not read it.
	extractorVersion string
}

type configDTO struct {
	PerDomainDelaySeconds   float64          `json:"perDomainDelaySeconds,omitempty"`
	GlobalConcurrency       int              `json:"globalConcurrency,omitempty"`
	MaxRedirects            int              `json:"maxRedirects,omitempty"`
	FetchTimeoutSeconds     float64          `json:"fetchTimeoutSeconds,omitempty"`
	MaxBodyBytesByType      map[string]int64 `json:"maxBodyBytesByType,omitempty"`
	MaxBodyBytesDefault     int64            `json:"maxBodyBytesDefault,omitempty"`
	UserAgent               string           `json:"userAgent,omitempty"`
	SnippetMaxChars         int              `json:"snippetMaxChars,omitempty"`
	EvidenceSnippetMaxChars int              `json:"evidenceSnippetMaxChars,omitempty"`
	BaseDelay               time.Duration    `json:"baseDelay,omitempty"`
	Jitter                  time.Duration    `json:"jitter,omitempty"`
	RandomSeed              int64            `json:"randomSeed,omitempty"`
	MaxAttempt              int              `json:"maxAttempt,omitempty"`
	BackoffInitialDuration  time.Duration    `json:"backoffInitialDuration,omitempty"`
	BackoffMultiplier       float64          `json:"backoffMultiplier,omitempty"`
	BackoffMaxDuration      time.Duration    `json:"backoffMaxDuration,omitempty"`
	DBPath                  string           `json:"dbPath,omitempty"`
	DryRun                  bool             `json:"dryRun,omitempty"`
	MaxURLsPerRun           int              `json:"maxUrlsPerRun,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := WithDefault()

	if dto.PerDomainDelaySeconds != 0 {
		cfg.perDomainDelay = time.Duration(dto.PerDomainDelaySeconds * float64(time.Second))
	}
	if dto.GlobalConcurrency != 0 {
		cfg.globalConcurrency = dto.GlobalConcurrency
	}
	if dto.MaxRedirects != 0 {
		cfg.maxRedirects = dto.MaxRedirects
	}
	if dto.FetchTimeoutSeconds != 0 {
		cfg.fetchTimeout = time.Duration(dto.FetchTimeoutSeconds * float64(time.Second))
	}
	if len(dto.MaxBodyBytesByType) > 0 {
		cfg.maxBodyBytesByType = dto.MaxBodyBytesByType
	}
	if dto.MaxBodyBytesDefault != 0 {
		cfg.maxBodyBytesDefault = dto.MaxBodyBytesDefault
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.SnippetMaxChars != 0 {
		cfg.snippetMaxChars = dto.SnippetMaxChars
	}
	if dto.EvidenceSnippetMaxChars != 0 {
		cfg.evidenceSnippetMaxChars = dto.EvidenceSnippetMaxChars
	}
	if dto.BaseDelay != 0 {
		cfg.baseDelay = dto.BaseDelay
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}
	if dto.DBPath != "" {
		cfg.dbPath = dto.DBPath
	}
	cfg.dryRun = dto.DryRun
	if dto.MaxURLsPerRun != 0 {
		cfg.maxURLsPerRun = dto.MaxURLsPerRun
	}

	return cfg.Build()
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	err = json.Unmarshal(configContent, &cfgDTO)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault returns the "safe and slow" default configuration. Per spec,
// speed is a non-goal; every default favors compliance over throughput.
func WithDefault() *Config {
	return &Config{
		robotsRequired:    true,
		storeFullBody:     false,
		autoMergeEnabled:  false,
		perDomainDelay:    5 * time.Second,
		globalConcurrency: 1,
		maxRedirects:      5,
		fetchTimeout:      30 * time.Second,
		maxBodyBytesByType: map[string]int64{
			"text/html":            5_000_000,
			"application/xml":      5_000_000,
			"text/xml":             5_000_000,
			"application/atom+xml": 5_000_000,
			"application/rss+xml":  5_000_000,
			"application/json":     2_000_000,
			"text/plain":           2_000_000,
			"application/pdf":      0,
			"application/x-pdf":    0,
		},
		maxBodyBytesDefault: 500_000,
		blockedCIDRs: []string{
			"127.0.0.0/8",
			"10.0.0.0/8",
			"172.16.0.0/12",
			"192.168.0.0/16",
			"169.254.0.0/16",
			"169.254.169.254/32",
			"224.0.0.0/4",
			"255.255.255.255/32",
			"0.0.0.0/8",
			"::1/128",
			"fe80::/10",
			"fc00::/7",
			"ff00::/8",
		},
		allowedSchemes:          map[string]struct{}{"http": {}, "https": {}},
		userAgent:               "author-index/0.1 (+https://github.com/rohmanhakim/author-index)",
		snippetMaxChars:         1500,
		evidenceSnippetMaxChars: 800,
		baseDelay:               5 * time.Second,
		jitter:                  500 * time.Millisecond,
		randomSeed:              1,
		maxAttempt:              3,
		backoffInitialDuration:  1 * time.Second,
		backoffMultiplier:       2.0,
		backoffMaxDuration:      30 * time.Second,
		dbPath:                  "authorindex.db",
		dryRun:                  false,
		maxURLsPerRun:           10000,
		extractorVersion:        "author-index-extractor/1",
	}
}

func (c *Config) WithPerDomainDelay(delay time.Duration) *Config {
	c.perDomainDelay = delay
	return c
}

func (c *Config) WithGlobalConcurrency(n int) *Config {
	c.globalConcurrency = n
	return c
}

func (c *Config) WithMaxRedirects(n int) *Config {
	c.maxRedirects = n
	return c
}

func (c *Config) WithFetchTimeout(d time.Duration) *Config {
	c.fetchTimeout = d
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithSnippetMaxChars(n int) *Config {
	c.snippetMaxChars = n
	return c
}

func (c *Config) WithEvidenceSnippetMaxChars(n int) *Config {
	c.evidenceSnippetMaxChars = n
	return c
}

func (c *Config) WithDBPath(path string) *Config {
	c.dbPath = path
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) WithMaxURLsPerRun(n int) *Config {
	c.maxURLsPerRun = n
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

// Build validates every non-negotiable invariant and refuses to construct
// an unsafe configuration.
func (c *Config) Build() (Config, error) {
	if !c.robotsRequired {
		return Config{}, fmt.Errorf("%w: robots checking cannot be disabled", ErrInvalidConfig)
	}
	if c.storeFullBody {
		return Config{}, fmt.Errorf("%w: full-body storage is forbidden", ErrInvalidConfig)
	}
	if c.autoMergeEnabled {
		return Config{}, fmt.Errorf("%w: automatic author merging is forbidden", ErrInvalidConfig)
	}
	if c.globalConcurrency < 1 {
		return Config{}, fmt.Errorf("%w: globalConcurrency must be >= 1", ErrInvalidConfig)
	}
	if c.perDomainDelay < 0 {
		return Config{}, fmt.Errorf("%w: perDomainDelay must be >= 0", ErrInvalidConfig)
	}
	if c.snippetMaxChars <= 0 {
		return Config{}, fmt.Errorf("%w: snippetMaxChars must be > 0", ErrInvalidConfig)
	}
	if c.evidenceSnippetMaxChars <= 0 {
		return Config{}, fmt.Errorf("%w: evidenceSnippetMaxChars must be > 0", ErrInvalidConfig)
	}
	if c.maxBodyBytesDefault <= 0 {
		return Config{}, fmt.Errorf("%w: maxBodyBytesDefault must be > 0", ErrInvalidConfig)
	}
	for contentType, limit := range c.maxBodyBytesByType {
		if limit < 0 {
			return Config{}, fmt.Errorf("%w: maxBodyBytesByType[%s] must be >= 0", ErrInvalidConfig, contentType)
		}
	}
	return *c, nil
}

func (c Config) RobotsRequired() bool        { return c.robotsRequired }
func (c Config) StoreFullBody() bool         { return c.storeFullBody }
func (c Config) AutoMergeEnabled() bool      { return c.autoMergeEnabled }
func (c Config) PerDomainDelay() time.Duration { return c.perDomainDelay }
func (c Config) GlobalConcurrency() int      { return c.globalConcurrency }
func (c Config) MaxRedirects() int           { return c.maxRedirects }
func (c Config) FetchTimeout() time.Duration { return c.fetchTimeout }

func (c Config) MaxBodyBytesByType() map[string]int64 {
	out := make(map[string]int64, len(c.maxBodyBytesByType))
	for k, v := range c.maxBodyBytesByType {
		out[k] = v
	}
	return out
}

func (c Config) MaxBodyBytesDefault() int64 { return c.maxBodyBytesDefault }

func (c Config) BlockedCIDRs() []string {
	out := make([]string, len(c.blockedCIDRs))
	copy(out, c.blockedCIDRs)
	return out
}

func (c Config) AllowedSchemes() map[string]struct{} {
	out := make(map[string]struct{}, len(c.allowedSchemes))
	for k, v := range c.allowedSchemes {
		out[k] = v
	}
	return out
}

func (c Config) UserAgent() string                { return c.userAgent }
func (c Config) SnippetMaxChars() int             { return c.snippetMaxChars }
func (c Config) EvidenceSnippetMaxChars() int     { return c.evidenceSnippetMaxChars }
func (c Config) BaseDelay() time.Duration         { return c.baseDelay }
func (c Config) Jitter() time.Duration            { return c.jitter }
func (c Config) RandomSeed() int64                { return c.randomSeed }
func (c Config) MaxAttempt() int                  { return c.maxAttempt }
func (c Config) BackoffInitialDuration() time.Duration { return c.backoffInitialDuration }
func (c Config) BackoffMultiplier() float64       { return c.backoffMultiplier }
func (c Config) BackoffMaxDuration() time.Duration { return c.backoffMaxDuration }
func (c Config) DBPath() string                   { return c.dbPath }
func (c Config) DryRun() bool                      { return c.dryRun }
func (c Config) MaxURLsPerRun() int                { return c.maxURLsPerRun }
func (c Config) ExtractorVersion() string          { return c.extractorVersion }
