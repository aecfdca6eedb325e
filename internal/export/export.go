package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rohmanhakim/author-index/internal/metadata"
	"github.com/rohmanhakim/author-index/internal/storage"
)

// Validate checks a single article against the article and evidence
// schemas: UNIQUE-able (canonical_url, source_id), snippet <= 1500 chars,
// version >= 1, and every non-null {title, author_hint, published_at}
// backed by at least one Evidence row whose claim_path matches. Every
// evidence item is checked against the evidence schema in turn.
//
// storage.Article has no body/full_text field, so that constraint is
// enforced structurally upstream of this function rather than here.
func Validate(article storage.Article) error {
	if article.CanonicalURL == "" || article.SourceID == "" {
		return &ValidationError{
			ArticleID: article.ID,
			Cause:     ErrCauseDuplicateKey,
			Detail:    "canonical_url and source_id must both be non-empty",
		}
	}
	if article.Version < minArticleVersion {
		return &ValidationError{
			ArticleID: article.ID,
			Cause:     ErrCauseInvalidVersion,
			Detail:    fmt.Sprintf("version %d is below minimum %d", article.Version, minArticleVersion),
		}
	}
	if n := len([]rune(article.Snippet)); n > maxSnippetChars {
		return &ValidationError{
			ArticleID: article.ID,
			Cause:     ErrCauseFieldTooLong,
			Detail:    fmt.Sprintf("snippet has %d chars, exceeds %d", n, maxSnippetChars),
		}
	}

	evidenceByClaim := make(map[string]bool, len(article.Evidence))
	for _, ev := range article.Evidence {
		if err := validateEvidence(article.ID, ev); err != nil {
			return err
		}
		evidenceByClaim[ev.ClaimPath] = true
	}

	if article.Title != "" && !evidenceByClaim[claimPathTitle] {
		return &ValidationError{ArticleID: article.ID, Cause: ErrCauseMissingEvidence, Detail: claimPathTitle}
	}
	if article.AuthorHint != "" && !evidenceByClaim[claimPathAuthorHint] {
		return &ValidationError{ArticleID: article.ID, Cause: ErrCauseMissingEvidence, Detail: claimPathAuthorHint}
	}
	if article.PublishedAt != nil && !evidenceByClaim[claimPathPublishedAt] {
		return &ValidationError{ArticleID: article.ID, Cause: ErrCauseMissingEvidence, Detail: claimPathPublishedAt}
	}
	return nil
}

func validateEvidence(articleID string, ev storage.Evidence) error {
	if !allowedClaimPaths[ev.ClaimPath] {
		return &ValidationError{
			ArticleID: articleID,
			Cause:     ErrCauseInvalidClaimPath,
			Detail:    ev.ClaimPath,
		}
	}
	if !allowedEvidenceTypes[string(ev.EvidenceType)] {
		return &ValidationError{
			ArticleID: articleID,
			Cause:     ErrCauseInvalidEvidence,
			Detail:    string(ev.EvidenceType),
		}
	}
	if ev.Confidence < minConfidence || ev.Confidence > maxConfidence {
		return &ValidationError{
			ArticleID: articleID,
			Cause:     ErrCauseConfidenceOutOfRange,
			Detail:    fmt.Sprintf("confidence=%v", ev.Confidence),
		}
	}
	if n := len([]rune(ev.ExtractedText)); n > maxEvidenceTextChars {
		return &ValidationError{
			ArticleID: articleID,
			Cause:     ErrCauseFieldTooLong,
			Detail:    fmt.Sprintf("extracted_text has %d chars, exceeds %d", n, maxEvidenceTextChars),
		}
	}
	return nil
}

func toWire(article storage.Article) wireArticle {
	w := wireArticle{
		ID:           article.ID,
		CanonicalURL: article.CanonicalURL,
		SourceID:     article.SourceID,
		PublishedAt:  article.PublishedAt,
		Version:      article.Version,
		CreatedAt:    article.CreatedAt,
		UpdatedAt:    article.UpdatedAt,
		Evidence:     make([]wireEvidence, 0, len(article.Evidence)),
	}
	if article.Title != "" {
		t := article.Title
		w.Title = &t
	}
	if article.AuthorHint != "" {
		a := article.AuthorHint
		w.AuthorHint = &a
	}
	if article.Snippet != "" {
		s := article.Snippet
		w.Snippet = &s
	}
	for _, ev := range article.Evidence {
		w.Evidence = append(w.Evidence, wireEvidence{
			ID:                     ev.ID,
			ArticleID:              ev.ArticleID,
			ClaimPath:              ev.ClaimPath,
			EvidenceType:           string(ev.EvidenceType),
			SourceURL:              ev.SourceURL,
			ExtractionMethod:       ev.ExtractionMethod,
			ExtractedText:          ev.ExtractedText,
			Confidence:             ev.Confidence,
			RetrievedAt:            ev.RetrievedAt,
			ExtractorVersion:       ev.ExtractorVersion,
			InputRef:               ev.InputRef,
			SnippetMaxCharsApplied: ev.SnippetMaxCharsApplied,
			RunID:                  ev.RunID,
		})
	}
	return w
}

// ExportSource is the read side Export streams from. storage.Engine
// satisfies it directly.
type ExportSource interface {
	ForEachExportArticle(ctx context.Context, fn func(storage.Article) error) error
}

// Export streams every stored article to w as one JSON object per line,
// ordered by (canonical_url, source_id) as ExportSource guarantees. The
// first row that fails schema validation aborts the whole export with a
// fatal *ValidationError identifying the offending article id; rows
// already written to w before that point are left in place (fail-fast,
// not transactional — Export does not remove them; that is left to the
// caller).
func Export(ctx context.Context, src ExportSource, w io.Writer, sink metadata.Sink, runID string) (int, error) {
	if sink == nil {
		sink = metadata.NopSink{}
	}
	written := 0
	enc := json.NewEncoder(w)
	err := src.ForEachExportArticle(ctx, func(article storage.Article) error {
		if err := Validate(article); err != nil {
			if ve, ok := err.(*ValidationError); ok {
				sink.RecordEvent(metadata.EventPipelineExportErr, &runID, map[string]any{
					string(metadata.AttrArticleID): ve.ArticleID,
					string(metadata.AttrCause):     mapValidationErrorToMetadataCause(ve).String(),
					string(metadata.AttrMessage):   ve.Error(),
				})
			}
			return err
		}
		if err := enc.Encode(toWire(article)); err != nil {
			return &ValidationError{ArticleID: article.ID, Cause: ErrCauseSerialization, Detail: err.Error()}
		}
		written++
		return nil
	})
	if err != nil {
		return written, err
	}
	return written, nil
}
