package export

import "time"

// wireArticle is the on-disk JSONL shape for an exported article. Field
// names and ordering follow the article schema: id, canonical_url,
// source_id, title, author_hint, published_at, snippet, version,
// created_at, updated_at, evidence. No body/full_text field exists here
// or anywhere upstream of it.
type wireArticle struct {
	ID           string         `json:"id"`
	CanonicalURL string         `json:"canonical_url"`
	SourceID     string         `json:"source_id"`
	Title        *string        `json:"title"`
	AuthorHint   *string        `json:"author_hint"`
	PublishedAt  *time.Time     `json:"published_at"`
	Snippet      *string        `json:"snippet"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Evidence     []wireEvidence `json:"evidence"`
}

// wireEvidence is the on-disk JSONL shape for an evidence item, matching
// the evidence schema's additionalProperties=false field set.
type wireEvidence struct {
	ID                     string    `json:"id"`
	ArticleID              string    `json:"article_id"`
	ClaimPath              string    `json:"claim_path"`
	EvidenceType           string    `json:"evidence_type"`
	SourceURL              string    `json:"source_url"`
	ExtractionMethod       string    `json:"extraction_method,omitempty"`
	ExtractedText          string    `json:"extracted_text"`
	Confidence             float64   `json:"confidence"`
	RetrievedAt            time.Time `json:"retrieved_at"`
	ExtractorVersion       string    `json:"extractor_version,omitempty"`
	InputRef               string    `json:"input_ref,omitempty"`
	SnippetMaxCharsApplied int       `json:"snippet_max_chars_applied,omitempty"`
	RunID                  string    `json:"run_id"`
}

const (
	maxSnippetChars      = 1500
	maxEvidenceTextChars = 800
	minConfidence        = 0.0
	maxConfidence        = 1.0
	minArticleVersion    = 1
	claimPathTitle       = "/title"
	claimPathAuthorHint  = "/author_hint"
	claimPathPublishedAt = "/published_at"
)

var allowedClaimPaths = map[string]bool{
	claimPathTitle:       true,
	claimPathAuthorHint:  true,
	claimPathPublishedAt: true,
}

var allowedEvidenceTypes = map[string]bool{
	"json_ld":         true,
	"meta_tag":        true,
	"extracted":       true,
	"fetched_content": true,
}
