package extractor_test

import (
	"testing"
	"time"

	"github.com/rohmanhakim/author-index/internal/extractor"
	"github.com/rohmanhakim/author-index/internal/parser"
)

func TestExtract_TitlePrefersJSONLDOverMeta(t *testing.T) {
	doc := parser.Document{
		URL:          "https://example.com/a",
		CanonicalURL: "https://example.com/a",
		MetaTags:     map[string]string{"og:title": "Meta Title"},
		JSONLDBlocks: []map[string]any{{"@type": "Article", "headline": "JSON-LD Title"}},
	}
	e := extractor.New("source-1", 1500, 800, nil)
	draft, evidence := e.Extract(doc, "run-1")

	if draft.Title != "JSON-LD Title" {
		t.Fatalf("title = %q, want JSON-LD Title", draft.Title)
	}
	if len(evidence) != 1 || evidence[0].ExtractionMethod != "json_ld.headline" {
		t.Fatalf("evidence = %+v", evidence)
	}
}

func TestExtract_FallsBackThroughPriorityChain(t *testing.T) {
	doc := parser.Document{
		URL:          "https://example.com/a",
		CanonicalURL: "https://example.com/a",
		Title:        "Parsed Title",
	}
	e := extractor.New("source-1", 1500, 800, nil)
	draft, evidence := e.Extract(doc, "run-1")

	if draft.Title != "Parsed Title" {
		t.Fatalf("title = %q, want Parsed Title", draft.Title)
	}
	if len(evidence) != 1 || evidence[0].ExtractionMethod != "parsed.title" {
		t.Fatalf("evidence = %+v", evidence)
	}
}

func TestExtract_AuthorHintSplitsMetaOnFirstNonEmpty(t *testing.T) {
	doc := parser.Document{
		URL:          "https://example.com/a",
		CanonicalURL: "https://example.com/a",
		MetaTags:     map[string]string{"author": "Jane Doe and John Smith"},
	}
	e := extractor.New("source-1", 1500, 800, nil)
	draft, evidence := e.Extract(doc, "run-1")

	if draft.AuthorHint != "Jane Doe" {
		t.Fatalf("author hint = %q, want Jane Doe", draft.AuthorHint)
	}
	found := false
	for _, ev := range evidence {
		if ev.ClaimPath == "/author_hint" && ev.ExtractionMethod == "meta.author" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected author_hint evidence, got %+v", evidence)
	}
}

func TestExtract_PublishedAtParsesISODatePreferringJSONLD(t *testing.T) {
	doc := parser.Document{
		URL:          "https://example.com/a",
		CanonicalURL: "https://example.com/a",
		JSONLDBlocks: []map[string]any{{"datePublished": "2026-02-01T00:00:00Z"}},
	}
	e := extractor.New("source-1", 1500, 800, nil)
	draft, _ := e.Extract(doc, "run-1")

	if draft.PublishedAt == nil || draft.PublishedAt.Year() != 2026 {
		t.Fatalf("published at = %v", draft.PublishedAt)
	}
}

func TestExtract_NoSourcesYieldsNoClaimsEvidenceOrWarnings(t *testing.T) {
	var warnings []string
	doc := parser.Document{
		URL:          "https://example.com/a",
		CanonicalURL: "https://example.com/a",
	}
	e := extractor.New("source-1", 1500, 800, func(msg string) { warnings = append(warnings, msg) })
	draft, evidence := e.Extract(doc, "run-1")

	if draft.Title != "" {
		t.Fatalf("expected empty title with no sources")
	}
	if len(evidence) != 0 {
		t.Fatalf("expected no evidence, got %+v", evidence)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings when there were never any claims to null out, got %v", warnings)
	}
}

func TestExtract_SnippetTruncatedToArticleCap(t *testing.T) {
	longText := ""
	for i := 0; i < 200; i++ {
		longText += "word "
	}
	doc := parser.Document{
		URL:          "https://example.com/a",
		CanonicalURL: "https://example.com/a",
		Text:         longText,
	}
	e := extractor.New("source-1", 20, 800, nil)
	draft, _ := e.Extract(doc, "run-1")

	if len([]rune(draft.Snippet)) > 21 {
		t.Fatalf("snippet too long: %q", draft.Snippet)
	}
}

func TestExtract_IsDeterministicAcrossRuns(t *testing.T) {
	doc := parser.Document{
		URL:          "https://example.com/a",
		CanonicalURL: "https://example.com/a",
		MetaTags:     map[string]string{"og:title": "Stable Title"},
		Text:         "some readable body text",
	}
	e := extractor.New("source-1", 1500, 800, nil)
	draft1, evidence1 := e.Extract(doc, "run-1")
	draft2, evidence2 := e.Extract(doc, "run-1")

	if draft1.Title != draft2.Title || draft1.Snippet != draft2.Snippet {
		t.Fatalf("draft not deterministic: %+v vs %+v", draft1, draft2)
	}
	if len(evidence1) != len(evidence2) {
		t.Fatalf("evidence count not deterministic")
	}
	for i := range evidence1 {
		if evidence1[i].ClaimPath != evidence2[i].ClaimPath || evidence1[i].ExtractedText != evidence2[i].ExtractedText {
			t.Fatalf("evidence tuple not deterministic at %d", i)
		}
	}
}

func TestExtract_UsesInjectableClockForEvidenceTimestamp(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	doc := parser.Document{
		URL:          "https://example.com/a",
		CanonicalURL: "https://example.com/a",
		Title:        "Some Title",
	}
	e := extractor.New("source-1", 1500, 800, nil).WithClock(func() time.Time { return fixed })
	_, evidence := e.Extract(doc, "run-1")

	if len(evidence) != 1 || !evidence[0].CreatedAt.Equal(fixed) {
		t.Fatalf("evidence timestamp = %+v, want %v", evidence, fixed)
	}
}
