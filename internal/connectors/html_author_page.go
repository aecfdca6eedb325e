package connectors

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/author-index/internal/frontier"
	"github.com/rohmanhakim/author-index/internal/metadata"
)

// HTMLAuthorPageDiscoverer discovers article URLs from the anchors of a
// single HTML author-listing page, either a local file path or an
// http(s) URL.
type HTMLAuthorPageDiscoverer struct {
	loader seedLoader
	sink   metadata.Sink
}

type HTMLOption func(*HTMLAuthorPageDiscoverer)

func WithHTMLSink(sink metadata.Sink) HTMLOption {
	return func(d *HTMLAuthorPageDiscoverer) { d.sink = sink }
}

func NewHTMLAuthorPageDiscoverer(userAgent string, timeout time.Duration, opts ...HTMLOption) *HTMLAuthorPageDiscoverer {
	d := &HTMLAuthorPageDiscoverer{
		loader: newSeedLoader(userAgent, timeout),
		sink:   metadata.NopSink{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover yields the unique http(s) anchors on the listing page, in
// document order, resolving relative hrefs against the page's own URL
// when it was loaded over HTTP(S); local-file seeds have no base and so
// only already-absolute http(s) hrefs are kept.
func (d *HTMLAuthorPageDiscoverer) Discover(ctx context.Context, seed, runID string) ([]string, error) {
	text, sourceURL, err := d.loader.load(ctx, seed)
	if err != nil {
		de := err.(*DiscoverError)
		recordDiscoverError(d.sink, runID, seed, de)
		return nil, de
	}

	doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(text))
	if parseErr != nil {
		de := &DiscoverError{Cause: ErrCauseParseFailed, Message: parseErr.Error()}
		recordDiscoverError(d.sink, runID, seed, de)
		return nil, de
	}

	var base *url.URL
	if sourceURL != "" {
		base, _ = url.Parse(sourceURL)
	}

	seen := frontier.NewSet[string]()
	var urls []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}

		candidate := href
		if base != nil {
			if ref, refErr := url.Parse(href); refErr == nil {
				candidate = base.ResolveReference(ref).String()
			}
		}
		if !isHTTPURL(candidate) || seen.Contains(candidate) {
			return
		}
		seen.Add(candidate)
		urls = append(urls, candidate)
	})
	return urls, nil
}
