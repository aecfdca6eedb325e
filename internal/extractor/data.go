package extractor

import "time"

// EvidenceType enumerates where an extracted claim came from.
type EvidenceType string

const (
	EvidenceJSONLD   EvidenceType = "json_ld"
	EvidenceMetaTag  EvidenceType = "meta_tag"
	EvidenceExtracted EvidenceType = "extracted"
)

// Evidence backs exactly one claim on an ArticleDraft. ArticleID is left
// empty until storage assigns the real article id the evidence rows are
// rewritten against.
type Evidence struct {
	ID              string
	ArticleID       string
	ClaimPath       string
	EvidenceType    EvidenceType
	SourceURL       string
	ExtractedText   string
	ExtractionMethod string
	Confidence      float64
	Metadata        map[string]any
	CreatedAt       time.Time
	RunID           string
}

// ArticleDraft is the extractor's output before storage assigns an id,
// version, and content hash.
type ArticleDraft struct {
	CanonicalURL string
	SourceID     string
	Title        string
	AuthorHint   string
	PublishedAt  *time.Time
	Snippet      string
}

// claimPathByField is the fixed JSON-Pointer path for each claim the
// extractor may populate, used both to tag Evidence and to enforce
// coverage after the draft is built.
var claimPathByField = map[string]string{
	"title":        "/title",
	"author_hint":  "/author_hint",
	"published_at": "/published_at",
}
