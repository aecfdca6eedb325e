package export

import (
	"time"

	"github.com/rohmanhakim/author-index/internal/storage"
)

// ValidateSchemas is the self-check behind the validate-schemas command: it
// round-trips a small set of embedded article/evidence fixtures through
// Validate and reports the first failure. It never touches a database or
// filesystem, so it can run before any Store exists, letting an operator
// catch a schema regression introduced in this package itself.
func ValidateSchemas() error {
	for _, fixture := range sampleFixtures() {
		if err := Validate(fixture); err != nil {
			return err
		}
	}
	return nil
}

func sampleFixtures() []storage.Article {
	now := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)
	return []storage.Article{
		{
			ID:           "fixture-article-001",
			CanonicalURL: "https://example.com/article",
			SourceID:     "rss:example",
			Title:        "Example Article Title",
			AuthorHint:   "John Doe",
			PublishedAt:  &now,
			Snippet:      "This is an example article snippet.",
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
			Evidence: []storage.Evidence{
				{
					ID:            "fixture-evidence-title",
					ArticleID:     "fixture-article-001",
					ClaimPath:     claimPathTitle,
					EvidenceType:  storage.EvidenceMetaTag,
					SourceURL:     "https://example.com/article",
					ExtractedText: "Example Article Title",
					Confidence:    1.0,
					RetrievedAt:   now,
					RunID:         "fixture-run",
				},
				{
					ID:            "fixture-evidence-author",
					ArticleID:     "fixture-article-001",
					ClaimPath:     claimPathAuthorHint,
					EvidenceType:  storage.EvidenceJSONLD,
					SourceURL:     "https://example.com/article",
					ExtractedText: "John Doe",
					Confidence:    0.9,
					RetrievedAt:   now,
					RunID:         "fixture-run",
				},
				{
					ID:            "fixture-evidence-published",
					ArticleID:     "fixture-article-001",
					ClaimPath:     claimPathPublishedAt,
					EvidenceType:  storage.EvidenceExtracted,
					SourceURL:     "https://example.com/article",
					ExtractedText: now.Format(time.RFC3339),
					Confidence:    0.8,
					RetrievedAt:   now,
					RunID:         "fixture-run",
				},
			},
		},
		{
			// Minimal fixture: no title/author/published claims at all, so
			// the missing-evidence check has nothing to enforce.
			ID:           "fixture-article-002",
			CanonicalURL: "https://example.com/minimal",
			SourceID:     "rss:example",
			Snippet:      "",
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}
