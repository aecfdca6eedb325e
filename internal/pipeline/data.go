package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/rohmanhakim/author-index/internal/extractor"
	"github.com/rohmanhakim/author-index/internal/fetcher"
	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/internal/parser"
	"github.com/rohmanhakim/author-index/internal/storage"
	"github.com/rohmanhakim/author-index/pkg/retry"
)

// Discoverer turns a seed (an RSS/Atom feed URL, an HTML author-listing
// URL, or an arXiv query) into the set of candidate article URLs to
// fetch. Each internal/connectors implementation satisfies this for its
// own seed kind.
type Discoverer interface {
	Discover(ctx context.Context, seed, runID string) ([]string, error)
}

// FetchStage performs one compliance-gated HTTP fetch. *fetcher.Fetcher
// satisfies this directly.
type FetchStage interface {
	Fetch(ctx context.Context, runID, rawURL string) (*fetcher.Result, fetcher.Log)
}

// ParseStage turns a fetched body into a normalized Document.
// *parser.Parser satisfies this directly.
type ParseStage interface {
	Parse(body []byte, contentType, finalURL string) parser.Document
}

// ExtractStage turns a parsed Document into a draft plus its per-claim
// evidence chain. *extractor.Extractor satisfies this directly.
type ExtractStage interface {
	Extract(doc parser.Document, runID string) (extractor.ArticleDraft, []extractor.Evidence)
}

// Store is the persistence surface the pipeline needs. *storage.Engine
// satisfies this directly.
type Store interface {
	CreateRunLog(ctx context.Context, log storage.RunLog) error
	UpdateRunLog(ctx context.Context, log storage.RunLog) error
	SaveFetchLog(ctx context.Context, log storage.FetchLog) error
	UpsertArticle(ctx context.Context, draft storage.ArticleDraft, evidenceList []storage.Evidence, runID string) (storage.Article, bool, bool, error)
}

// Exporter is kept here only as a type for documentation; nothing uses it,
// and internal/export.Export does not match it (Export also takes an
// ExportSource). The export subcommand calls export.Export directly rather
// than through Pipeline.Run, since sync and export are distinct CLI
// subcommands, not stages of one run.
type Exporter func(ctx context.Context, w io.Writer, sink metadata.Sink, runID string) (int, error)

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

func WithSink(sink metadata.Sink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithRetry enables bounded-attempt retry with exponential backoff and
// jitter around each URL's fetch, for transient transport errors only
// (ErrCodeTimeout, ErrCodeFetchError). A RetryParam with MaxAttempts <= 1
// (the zero value) disables retrying: each URL is fetched exactly once,
// matching the pipeline's behavior before WithRetry is applied.
func WithRetry(param retry.RetryParam) Option {
	return func(p *Pipeline) { p.retryParam = param }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}
