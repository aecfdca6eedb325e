package parser_test

import (
	"strings"
	"testing"

	"github.com/rohmanhakim/author-index/internal/parser"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<head>
<title>Fallback Title</title>
<meta property="og:title" content="OG Title">
<meta name="author" content="Jane Doe, John Smith and Ada Lovelace">
<meta property="article:published_time" content="2026-01-15T10:00:00Z">
<link rel="canonical" href="/articles/1">
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Article","headline":"JSON-LD Headline","datePublished":"2026-01-10T08:00:00Z","author":{"name":"Ada Lovelace"}}
</script>
</head>
<body>
<article><h1>Title</h1><p>First paragraph of real content.</p><p>Second paragraph.</p></article>
</body>
</html>`

func TestParse_TitlePriorityPrefersJSONLD(t *testing.T) {
	p := parser.New(nil, 1500)
	doc := p.Parse([]byte(sampleHTML), "text/html; charset=utf-8", "https://example.com/page")

	if doc.Title != "JSON-LD Headline" {
		t.Fatalf("title = %q, want JSON-LD Headline", doc.Title)
	}
}

func TestParse_CanonicalURLResolvedAgainstPageURL(t *testing.T) {
	p := parser.New(nil, 1500)
	doc := p.Parse([]byte(sampleHTML), "text/html", "https://example.com/page")

	if doc.CanonicalURL != "https://example.com/articles/1" {
		t.Fatalf("canonical url = %q", doc.CanonicalURL)
	}
}

func TestParse_DatePublishedPrefersJSONLD(t *testing.T) {
	p := parser.New(nil, 1500)
	doc := p.Parse([]byte(sampleHTML), "text/html", "https://example.com/page")

	if doc.DatePublished == nil {
		t.Fatalf("expected a published date")
	}
	if doc.DatePublished.Year() != 2026 || doc.DatePublished.Month() != 1 || doc.DatePublished.Day() != 10 {
		t.Fatalf("date published = %v, want 2026-01-10", doc.DatePublished)
	}
}

func TestParse_AuthorNamesMergeAndDeduplicate(t *testing.T) {
	p := parser.New(nil, 1500)
	doc := p.Parse([]byte(sampleHTML), "text/html", "https://example.com/page")

	if len(doc.AuthorNames) == 0 {
		t.Fatalf("expected at least one author name")
	}
	if doc.AuthorNames[0] != "Ada Lovelace" {
		t.Fatalf("first author = %q, want JSON-LD author first", doc.AuthorNames[0])
	}

	seen := map[string]int{}
	for _, name := range doc.AuthorNames {
		seen[name]++
	}
	for name, count := range seen {
		if count > 1 {
			t.Fatalf("author %q appears %d times, want unique", name, count)
		}
	}
}

func TestParse_TextContainsBodyParagraphs(t *testing.T) {
	p := parser.New(nil, 1500)
	doc := p.Parse([]byte(sampleHTML), "text/html", "https://example.com/page")

	if !strings.Contains(doc.Text, "First paragraph of real content.") {
		t.Fatalf("text = %q, missing first paragraph", doc.Text)
	}
	if !strings.Contains(doc.Text, "Second paragraph.") {
		t.Fatalf("text = %q, missing second paragraph", doc.Text)
	}
}

func TestParse_TextTruncatedWithEllipsisOnWordBoundary(t *testing.T) {
	html := `<html><body><p>` + strings.Repeat("word ", 100) + `</p></body></html>`
	p := parser.New(nil, 20)
	doc := p.Parse([]byte(html), "text/html", "https://example.com/page")

	if !strings.HasSuffix(doc.Text, "…") {
		t.Fatalf("text = %q, want ellipsis suffix", doc.Text)
	}
	if strings.Contains(doc.Text, "word word word word word word word word word word word word word") {
		t.Fatalf("text = %q, expected truncation", doc.Text)
	}
}

func TestParse_MalformedJSONLDBlockSkippedSilently(t *testing.T) {
	html := `<html><head><script type="application/ld+json">{not valid json</script>
<title>Fallback</title></head><body><p>content</p></body></html>`
	p := parser.New(nil, 1500)
	doc := p.Parse([]byte(html), "text/html", "https://example.com/page")

	if len(doc.JSONLDBlocks) != 0 {
		t.Fatalf("expected no JSON-LD blocks from malformed input, got %d", len(doc.JSONLDBlocks))
	}
	if doc.Title != "Fallback" {
		t.Fatalf("title = %q, want fallback to HTML title", doc.Title)
	}
}

func TestParse_IsDeterministic(t *testing.T) {
	p := parser.New(nil, 1500)
	first := p.Parse([]byte(sampleHTML), "text/html", "https://example.com/page")
	second := p.Parse([]byte(sampleHTML), "text/html", "https://example.com/page")

	if first.Title != second.Title || first.Text != second.Text || first.CanonicalURL != second.CanonicalURL {
		t.Fatalf("parse was not deterministic across identical input")
	}
}
