package connectors

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rohmanhakim/author-index/internal/frontier"
	"github.com/rohmanhakim/author-index/internal/metadata"
)

// RSSDiscoverer discovers article URLs from an RSS or Atom feed seed,
// either a local file path or an http(s) URL.
type RSSDiscoverer struct {
	loader seedLoader
	sink   metadata.Sink
}

// RSSOption configures an RSSDiscoverer at construction time.
type RSSOption func(*RSSDiscoverer)

func WithRSSSink(sink metadata.Sink) RSSOption {
	return func(d *RSSDiscoverer) { d.sink = sink }
}

func NewRSSDiscoverer(userAgent string, timeout time.Duration, opts ...RSSOption) *RSSDiscoverer {
	d := &RSSDiscoverer{
		loader: newSeedLoader(userAgent, timeout),
		sink:   metadata.NopSink{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover yields the unique article links carried by feed entries, in
// document order, preferring each entry's canonical alternate link.
func (d *RSSDiscoverer) Discover(ctx context.Context, seed, runID string) ([]string, error) {
	text, _, err := d.loader.load(ctx, seed)
	if err != nil {
		de := err.(*DiscoverError)
		recordDiscoverError(d.sink, runID, seed, de)
		return nil, de
	}

	feed, parseErr := gofeed.NewParser().ParseString(text)
	if parseErr != nil {
		de := &DiscoverError{Cause: ErrCauseParseFailed, Message: parseErr.Error()}
		recordDiscoverError(d.sink, runID, seed, de)
		return nil, de
	}

	seen := frontier.NewSet[string]()
	var urls []string
	for _, item := range feed.Items {
		link := entryLink(item)
		if link == "" || seen.Contains(link) {
			continue
		}
		seen.Add(link)
		urls = append(urls, link)
	}
	return urls, nil
}

// entryLink picks the preferred http(s) link carried by a feed item,
// falling back through its full link list when the parser's chosen
// Link field is empty or non-http(s).
func entryLink(item *gofeed.Item) string {
	if isHTTPURL(item.Link) {
		return item.Link
	}
	for _, link := range item.Links {
		if isHTTPURL(link) {
			return link
		}
	}
	return ""
}
