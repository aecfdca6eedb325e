package export_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rohmanhakim/author-index/internal/export"
	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/internal/storage"
)

func validArticle(id string) storage.Article {
	now := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)
	return storage.Article{
		ID:           id,
		CanonicalURL: "https://example.com/" + id,
		SourceID:     "rss:test",
		Title:        "Valid Title",
		AuthorHint:   "Jane Doe",
		PublishedAt:  &now,
		Snippet:      "a short snippet",
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
		Evidence: []storage.Evidence{
			{
				ID:            id + "-ev-title",
				ArticleID:     id,
				ClaimPath:     "/title",
				EvidenceType:  storage.EvidenceMetaTag,
				SourceURL:     "https://example.com/" + id,
				ExtractedText: "Valid Title",
				Confidence:    1.0,
				RetrievedAt:   now,
				RunID:         "run-1",
			},
			{
				ID:            id + "-ev-author",
				ArticleID:     id,
				ClaimPath:     "/author_hint",
				EvidenceType:  storage.EvidenceMetaTag,
				SourceURL:     "https://example.com/" + id,
				ExtractedText: "Jane Doe",
				Confidence:    1.0,
				RetrievedAt:   now,
				RunID:         "run-1",
			},
			{
				ID:            id + "-ev-pub",
				ArticleID:     id,
				ClaimPath:     "/published_at",
				EvidenceType:  storage.EvidenceExtracted,
				SourceURL:     "https://example.com/" + id,
				ExtractedText: now.Format(time.RFC3339),
				Confidence:    0.5,
				RetrievedAt:   now,
				RunID:         "run-1",
			},
		},
	}
}

func TestValidate_ValidArticlePasses(t *testing.T) {
	if err := export.Validate(validArticle("art-1")); err != nil {
		t.Fatalf("expected valid article to pass, got %v", err)
	}
}

func TestValidate_VersionBelowMinimumFails(t *testing.T) {
	a := validArticle("art-1")
	a.Version = 0
	if err := export.Validate(a); err == nil {
		t.Fatalf("expected version=0 to fail validation")
	}
}

func TestValidate_SnippetTooLongFails(t *testing.T) {
	a := validArticle("art-1")
	a.Snippet = strings.Repeat("x", 1501)
	if err := export.Validate(a); err == nil {
		t.Fatalf("expected oversized snippet to fail validation")
	}
}

func TestValidate_EvidenceTextTooLongFails(t *testing.T) {
	a := validArticle("art-1")
	a.Evidence[0].ExtractedText = strings.Repeat("x", 801)
	if err := export.Validate(a); err == nil {
		t.Fatalf("expected oversized extracted_text to fail validation")
	}
}

func TestValidate_TitleWithoutEvidenceFails(t *testing.T) {
	a := validArticle("art-1")
	a.Evidence = a.Evidence[1:] // drop the /title evidence
	if err := export.Validate(a); err == nil {
		t.Fatalf("expected title without backing evidence to fail validation")
	}
}

func TestValidate_UnknownClaimPathFails(t *testing.T) {
	a := validArticle("art-1")
	a.Evidence[0].ClaimPath = "/bogus"
	if err := export.Validate(a); err == nil {
		t.Fatalf("expected unrecognized claim_path to fail validation")
	}
}

func TestValidate_ConfidenceOutOfRangeFails(t *testing.T) {
	a := validArticle("art-1")
	a.Evidence[0].Confidence = 1.5
	if err := export.Validate(a); err == nil {
		t.Fatalf("expected confidence > 1.0 to fail validation")
	}
}

type fakeSource struct {
	articles []storage.Article
}

func (f *fakeSource) ForEachExportArticle(ctx context.Context, fn func(storage.Article) error) error {
	for _, a := range f.articles {
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

func TestExport_WritesOneJSONObjectPerLine(t *testing.T) {
	src := &fakeSource{articles: []storage.Article{validArticle("art-1"), validArticle("art-2")}}
	var buf bytes.Buffer
	written, err := export.Export(context.Background(), src, &buf, metadata.NopSink{}, "run-export-1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if written != 2 {
		t.Fatalf("expected 2 rows written, got %d", written)
	}

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var row map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if _, hasBody := row["body"]; hasBody {
			t.Fatalf("exported row must never contain a body field")
		}
		if _, hasFullText := row["full_text"]; hasFullText {
			t.Fatalf("exported row must never contain a full_text field")
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 output lines, got %d", lines)
	}
}

func TestExport_FailsFastAndLeavesPriorRowsWritten(t *testing.T) {
	invalid := validArticle("art-bad")
	invalid.Version = 0
	src := &fakeSource{articles: []storage.Article{validArticle("art-good"), invalid, validArticle("art-unreached")}}
	var buf bytes.Buffer
	written, err := export.Export(context.Background(), src, &buf, metadata.NopSink{}, "run-export-2")
	if err == nil {
		t.Fatalf("expected export to fail on the invalid row")
	}
	if written != 1 {
		t.Fatalf("expected exactly 1 row written before the failure, got %d", written)
	}
	ve, ok := err.(*export.ValidationError)
	if !ok {
		t.Fatalf("expected *export.ValidationError, got %T", err)
	}
	if ve.ArticleID != "art-bad" {
		t.Fatalf("expected failing article id art-bad, got %s", ve.ArticleID)
	}

	lines := strings.Count(buf.String(), "\n")
	if lines != 1 {
		t.Fatalf("expected 1 line retained in the output before abort, got %d", lines)
	}
}

func TestValidateSchemas_EmbeddedFixturesPass(t *testing.T) {
	if err := export.ValidateSchemas(); err != nil {
		t.Fatalf("embedded fixtures should validate cleanly, got %v", err)
	}
}
