package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rohmanhakim/author-index/internal/config"
	"github.com/rohmanhakim/author-index/internal/connectors"
	"github.com/rohmanhakim/author-index/internal/extractor"
	"github.com/rohmanhakim/author-index/internal/fetcher"
	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/internal/parser"
	"github.com/rohmanhakim/author-index/internal/pipeline"
	"github.com/rohmanhakim/author-index/internal/politeness"
	"github.com/rohmanhakim/author-index/internal/robots"
	"github.com/rohmanhakim/author-index/internal/robots/cache"
	"github.com/rohmanhakim/author-index/pkg/retry"
	"github.com/rohmanhakim/author-index/pkg/timeutil"
)

// buildDiscoverer picks the connector by the source_id prefix (the same
// convention the CLI's sync operation documents: "rss:example_feed",
// "html:author-a", "arxiv:jane-doe").
func buildDiscoverer(sourceID, userAgent string, timeout time.Duration, sink metadata.Sink) (pipeline.Discoverer, error) {
	switch {
	case strings.HasPrefix(sourceID, "rss:"):
		return connectors.NewRSSDiscoverer(userAgent, timeout, connectors.WithRSSSink(sink)), nil
	case strings.HasPrefix(sourceID, "html:"):
		return connectors.NewHTMLAuthorPageDiscoverer(userAgent, timeout, connectors.WithHTMLSink(sink)), nil
	case strings.HasPrefix(sourceID, "arxiv:"):
		return connectors.NewArxivDiscoverer(userAgent, timeout, connectors.WithArxivSink(sink)), nil
	default:
		return nil, fmt.Errorf("unsupported source_id for sync: %s", sourceID)
	}
}

// buildFetcher assembles the SSRF-safe, robots/politeness-gated fetcher
// from cfg. httpClient goes to the robots checker only; the fetcher builds
// its own client, which does not follow redirects itself.
func buildFetcher(cfg config.Config, sink metadata.Sink) (*fetcher.Fetcher, error) {
	httpClient := &http.Client{Timeout: cfg.FetchTimeout()}
	robotsChecker := robots.NewChecker(cfg.UserAgent(), httpClient, cache.NewMemoryCache())

	politenessController, cfgErr := politeness.NewController(cfg.PerDomainDelay(), cfg.GlobalConcurrency())
	if cfgErr != nil {
		return nil, cfgErr
	}

	return fetcher.New(
		cfg.UserAgent(),
		cfg.MaxRedirects(),
		cfg.FetchTimeout(),
		cfg.MaxBodyBytesByType(),
		cfg.MaxBodyBytesDefault(),
		cfg.BlockedCIDRs(),
		cfg.AllowedSchemes(),
		fetcher.WithRobotsChecker(robotsChecker),
		fetcher.WithPoliteness(politenessController),
		fetcher.WithSink(sink),
	), nil
}

// buildRetryParam turns cfg's retry/backoff fields into the RetryParam
// internal/pipeline wraps each fetch in, so a transient timeout or
// connection failure gets a bounded number of backed-off retries before
// the URL is counted as an error.
func buildRetryParam(cfg config.Config) retry.RetryParam {
	backoff := timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration())
	return retry.NewRetryParam(cfg.BaseDelay(), cfg.Jitter(), cfg.RandomSeed(), cfg.MaxAttempt(), backoff)
}

func buildParser() *parser.Parser {
	return parser.New(parser.MarkdownReadableExtractor{}, 0)
}

func buildExtractor(cfg config.Config, sourceID string) *extractor.Extractor {
	return extractor.New(sourceID, cfg.SnippetMaxChars(), cfg.EvidenceSnippetMaxChars(), nil)
}
