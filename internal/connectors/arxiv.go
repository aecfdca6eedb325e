package connectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rohmanhakim/author-index/internal/frontier"
	"github.com/rohmanhakim/author-index/internal/metadata"
)

const arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivDiscoverer discovers non-PDF article URLs from arXiv Atom API
// feeds. Its seed is a local Atom file, an http(s) URL, or a raw search
// query string which gets mapped onto the official query API.
type ArxivDiscoverer struct {
	loader    seedLoader
	userAgent string
	sink      metadata.Sink
}

type ArxivOption func(*ArxivDiscoverer)

func WithArxivSink(sink metadata.Sink) ArxivOption {
	return func(d *ArxivDiscoverer) { d.sink = sink }
}

func NewArxivDiscoverer(userAgent string, timeout time.Duration, opts ...ArxivOption) *ArxivDiscoverer {
	d := &ArxivDiscoverer{
		loader:    newSeedLoader(userAgent, timeout),
		userAgent: userAgent,
		sink:      metadata.NopSink{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover yields the unique non-PDF entry links from the resolved Atom
// feed, preferring each entry's alternate link and falling back to its
// <id> when no usable link element survives PDF filtering.
func (d *ArxivDiscoverer) Discover(ctx context.Context, seed, runID string) ([]string, error) {
	text, err := d.loadSeed(ctx, seed)
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
		link := arxivEntryLink(item)
		if link == "" || seen.Contains(link) {
			continue
		}
		seen.Add(link)
		urls = append(urls, link)
	}
	return urls, nil
}

// loadSeed extends seedLoader.load with arXiv's third mode: a seed that
// is neither a local path nor an http(s) URL is treated as a raw search
// query and mapped onto the export.arxiv.org query API.
func (d *ArxivDiscoverer) loadSeed(ctx context.Context, seed string) (string, error) {
	text, _, err := d.loader.load(ctx, seed)
	if err == nil {
		return text, nil
	}
	de, ok := err.(*DiscoverError)
	if !ok || de.Cause != ErrCauseUnsupportedSeed {
		return "", err
	}

	query := strings.TrimSpace(seed)
	if query == "" {
		return "", &DiscoverError{Cause: ErrCauseUnsupportedSeed, Message: fmt.Sprintf("unsupported seed for arxiv connector: %s", seed)}
	}
	apiURL := fmt.Sprintf("%s?search_query=%s&start=0&max_results=100", arxivAPIBase, url.QueryEscape(query))
	text, _, getErr := d.loader.get(ctx, apiURL)
	return text, getErr
}

func arxivEntryLink(item *gofeed.Item) string {
	if isHTTPURL(item.Link) && !isPDFLink(item.Link) {
		return item.Link
	}
	for _, link := range item.Links {
		if isHTTPURL(link) && !isPDFLink(link) {
			return link
		}
	}
	if isHTTPURL(item.GUID) && !isPDFLink(item.GUID) {
		return item.GUID
	}
	return ""
}
