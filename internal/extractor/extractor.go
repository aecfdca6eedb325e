package extractor

import (
	"regexp"
	"strings"
	"time"

	"github.com/rohmanhakim/author-index/internal/parser"
	"github.com/rohmanhakim/author-index/pkg/uuidutil"
)

/*
Extractor

Walks a priority chain for each of three claims — title, author_hint,
published_at — stopping at the first available source and recording one
Evidence entry per claim that was actually populated. Any claim with no
backing evidence is nulled out after the draft is built: every published
field must be citable.

Pure and deterministic: identical parser.Document input yields a
semantically identical (ArticleDraft, []Evidence) pair, modulo the
generated Evidence id/CreatedAt.
*/

var authorSplitPattern = regexp.MustCompile(`,|\||\band\b`)

// WarningHook receives one message per claim whose value was dropped for
// lacking evidence. May be nil.
type WarningHook func(message string)

// Extractor builds article drafts and their supporting evidence from
// parsed documents.
type Extractor struct {
	sourceID              string
	snippetMaxChars       int
	evidenceSnippetMaxChars int
	warningHook           WarningHook
	now                   func() time.Time
}

func New(sourceID string, snippetMaxChars, evidenceSnippetMaxChars int, warningHook WarningHook) *Extractor {
	return &Extractor{
		sourceID:                sourceID,
		snippetMaxChars:         snippetMaxChars,
		evidenceSnippetMaxChars: evidenceSnippetMaxChars,
		warningHook:             warningHook,
		now:                     time.Now,
	}
}

// WithClock overrides the time source used to stamp Evidence.CreatedAt.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Extract builds an ArticleDraft and its Evidence chain from doc.
func (e *Extractor) Extract(doc parser.Document, runID string) (ArticleDraft, []Evidence) {
	sourceURL := doc.CanonicalURL
	if sourceURL == "" {
		sourceURL = doc.URL
	}
	bestBlock := pickBestJSONLDBlock(doc.JSONLDBlocks)

	var evidence []Evidence

	title, titleEvidence := e.extractTitle(doc, bestBlock, sourceURL, runID)
	if titleEvidence != nil {
		evidence = append(evidence, *titleEvidence)
	}

	authorHint, authorEvidence := e.extractAuthorHint(doc, bestBlock, sourceURL, runID)
	if authorEvidence != nil {
		evidence = append(evidence, *authorEvidence)
	}

	publishedAt, publishedEvidence := e.extractPublishedAt(doc, bestBlock, sourceURL, runID)
	if publishedEvidence != nil {
		evidence = append(evidence, *publishedEvidence)
	}

	var snippet string
	if doc.Text != "" {
		snippet = truncateWithEllipsis(doc.Text, e.snippetMaxChars)
	}

	draft := ArticleDraft{
		CanonicalURL: sourceURL,
		SourceID:     e.sourceID,
		Title:        title,
		AuthorHint:   authorHint,
		PublishedAt:  publishedAt,
		Snippet:      snippet,
	}

	e.enforceEvidenceCoverage(&draft, evidence)

	return draft, evidence
}

func (e *Extractor) extractTitle(doc parser.Document, block map[string]any, sourceURL, runID string) (string, *Evidence) {
	if block != nil {
		if headline, ok := stringField(block, "headline"); ok {
			return e.evidence("/title", EvidenceJSONLD, sourceURL, headline, runID, "json_ld.headline", "headline")
		}
		if name, ok := stringField(block, "name"); ok {
			return e.evidence("/title", EvidenceJSONLD, sourceURL, name, runID, "json_ld.headline", "name")
		}
	}
	if doc.MetaTags["og:title"] != "" {
		return e.evidence("/title", EvidenceMetaTag, sourceURL, doc.MetaTags["og:title"], runID, "meta.og:title", "og:title")
	}
	if doc.MetaTags["twitter:title"] != "" {
		return e.evidence("/title", EvidenceMetaTag, sourceURL, doc.MetaTags["twitter:title"], runID, "meta.twitter:title", "twitter:title")
	}
	if doc.Title != "" {
		return e.evidence("/title", EvidenceExtracted, sourceURL, doc.Title, runID, "parsed.title", "title")
	}
	if doc.HTMLTitle != "" {
		return e.evidence("/title", EvidenceExtracted, sourceURL, doc.HTMLTitle, runID, "parsed.title", "html_title")
	}
	return "", nil
}

func (e *Extractor) extractAuthorHint(doc parser.Document, block map[string]any, sourceURL, runID string) (string, *Evidence) {
	if block != nil {
		names := extractAuthorNames(block["author"])
		if len(names) > 0 {
			_, ev := e.evidence("/author_hint", EvidenceJSONLD, sourceURL, strings.Join(names, ", "), runID, "json_ld.author", "author")
			return names[0], ev
		}
	}
	for _, key := range []string{"author", "article:author", "og:article:author"} {
		raw := doc.MetaTags[key]
		if raw == "" {
			continue
		}
		for _, part := range authorSplitPattern.Split(raw, -1) {
			normalized := strings.TrimSpace(part)
			if normalized == "" {
				continue
			}
			_, ev := e.evidence("/author_hint", EvidenceMetaTag, sourceURL, raw, runID, "meta."+key, key)
			return normalized, ev
		}
	}
	if len(doc.AuthorNames) > 0 {
		_, ev := e.evidence("/author_hint", EvidenceExtracted, sourceURL, doc.AuthorNames[0], runID, "parsed.author_names", "author_names")
		return doc.AuthorNames[0], ev
	}
	return "", nil
}

func (e *Extractor) extractPublishedAt(doc parser.Document, block map[string]any, sourceURL, runID string) (*time.Time, *Evidence) {
	if block != nil {
		raw, ok := stringField(block, "datePublished")
		if !ok {
			raw, ok = stringField(block, "dateCreated")
		}
		if ok {
			if parsed := parseDatetime(raw); parsed != nil {
				_, ev := e.evidence("/published_at", EvidenceJSONLD, sourceURL, parsed.Format(time.RFC3339), runID, "json_ld.datePublished", "datePublished")
				return parsed, ev
			}
		}
	}
	for _, key := range []string{"article:published_time", "pubdate", "publish-date", "dc.date", "date"} {
		raw := doc.MetaTags[key]
		if raw == "" {
			continue
		}
		if parsed := parseDatetime(raw); parsed != nil {
			_, ev := e.evidence("/published_at", EvidenceMetaTag, sourceURL, raw, runID, "meta."+key, key)
			return parsed, ev
		}
	}
	if doc.DatePublished != nil {
		_, ev := e.evidence("/published_at", EvidenceExtracted, sourceURL, doc.DatePublished.Format(time.RFC3339), runID, "parsed.date_published", "date_published")
		return doc.DatePublished, ev
	}
	return nil, nil
}

func (e *Extractor) evidence(claimPath string, evidenceType EvidenceType, sourceURL, extractedText, runID, extractionMethod, field string) (string, *Evidence) {
	clipped := truncateWithEllipsis(extractedText, e.evidenceSnippetMaxChars)
	ev := &Evidence{
		ID:               uuidutil.NewV4(),
		ClaimPath:        claimPath,
		EvidenceType:     evidenceType,
		SourceURL:        sourceURL,
		ExtractedText:    clipped,
		ExtractionMethod: extractionMethod,
		Confidence:       1.0,
		Metadata:         map[string]any{"field": field},
		CreatedAt:        e.now(),
		RunID:            runID,
	}
	return clipped, ev
}

// enforceEvidenceCoverage nulls out any non-empty claim that lacks a
// matching Evidence entry, warning through the injected hook.
func (e *Extractor) enforceEvidenceCoverage(draft *ArticleDraft, evidence []Evidence) {
	hasEvidence := func(claimPath string) bool {
		for _, ev := range evidence {
			if ev.ClaimPath == claimPath {
				return true
			}
		}
		return false
	}

	if draft.Title != "" && !hasEvidence(claimPathByField["title"]) {
		draft.Title = ""
		e.warn("title")
	}
	if draft.AuthorHint != "" && !hasEvidence(claimPathByField["author_hint"]) {
		draft.AuthorHint = ""
		e.warn("author_hint")
	}
	if draft.PublishedAt != nil && !hasEvidence(claimPathByField["published_at"]) {
		draft.PublishedAt = nil
		e.warn("published_at")
	}
}

func (e *Extractor) warn(field string) {
	if e.warningHook == nil {
		return
	}
	e.warningHook("field '" + field + "' had no evidence for claim_path '" + claimPathByField[field] + "', value dropped")
}

func truncateWithEllipsis(text string, maxChars int) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if maxChars <= 0 || len([]rune(normalized)) <= maxChars {
		return normalized
	}
	runes := []rune(normalized)
	prefix := string(runes[:maxChars])
	if idx := strings.LastIndex(prefix, " "); idx > 0 {
		prefix = prefix[:idx]
	}
	return strings.TrimRight(prefix, " ") + "…"
}

func parseDatetime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	normalized := strings.Replace(value, "Z", "+00:00", 1)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, normalized); err == nil {
			return &parsed
		}
	}
	return nil
}

var articleTypes = map[string]struct{}{
	"article": {}, "newsarticle": {}, "blogposting": {}, "scholarlyarticle": {}, "report": {},
}

func pickBestJSONLDBlock(blocks []map[string]any) map[string]any {
	if len(blocks) == 0 {
		return nil
	}
	for _, block := range blocks {
		if isArticleType(block) {
			return block
		}
	}
	return blocks[0]
}

func isArticleType(block map[string]any) bool {
	switch v := block["@type"].(type) {
	case string:
		_, ok := articleTypes[strings.ToLower(v)]
		return ok
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if _, ok := articleTypes[strings.ToLower(s)]; ok {
					return true
				}
			}
		}
	}
	return false
}

func stringField(block map[string]any, key string) (string, bool) {
	v, ok := block[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func extractAuthorNames(raw any) []string {
	var names []string
	add := func(name string) {
		normalized := strings.Join(strings.Fields(name), " ")
		if normalized == "" {
			return
		}
		for _, existing := range names {
			if existing == normalized {
				return
			}
		}
		names = append(names, normalized)
	}

	switch v := raw.(type) {
	case string:
		add(v)
	case map[string]any:
		if name, ok := v["name"].(string); ok {
			add(name)
		}
	case []any:
		for _, item := range v {
			switch entry := item.(type) {
			case string:
				add(entry)
			case map[string]any:
				if name, ok := entry["name"].(string); ok {
					add(name)
				}
			}
		}
	}
	return names
}
