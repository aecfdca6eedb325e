package storage

import "time"

// RunStatus is the terminal/in-flight state of one orchestrator run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// EvidenceType mirrors extractor.EvidenceType at the persistence boundary,
// plus fetched_content, which the export validator accepts but no code in
// this repository assigns.
type EvidenceType string

const (
	EvidenceJSONLD         EvidenceType = "json_ld"
	EvidenceMetaTag        EvidenceType = "meta_tag"
	EvidenceExtracted      EvidenceType = "extracted"
	EvidenceFetchedContent EvidenceType = "fetched_content"
)

// Evidence is one persisted citation backing exactly one claim on one
// article.
type Evidence struct {
	ID                     string
	ArticleID              string
	ClaimPath              string
	EvidenceType           EvidenceType
	SourceURL              string
	ExtractionMethod       string
	ExtractedText          string
	Confidence             float64
	Metadata               map[string]any
	RetrievedAt            time.Time
	ExtractorVersion       string
	InputRef               string
	SnippetMaxCharsApplied int
	CreatedAt              time.Time
	RunID                  string
}

// ArticleDraft is the extractor's output before an id, version, and
// content hash are assigned.
type ArticleDraft struct {
	CanonicalURL string
	SourceID     string
	Title        string
	AuthorHint   string
	PublishedAt  *time.Time
	Snippet      string
}

// Article is the final indexed unit.
type Article struct {
	ID           string
	CanonicalURL string
	SourceID     string
	Title        string
	AuthorHint   string
	PublishedAt  *time.Time
	Snippet      string
	Evidence     []Evidence
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RunLog is one orchestrator run's progress and terminal state.
type RunLog struct {
	ID                   string
	SourceID             string
	StartedAt            time.Time
	EndedAt              *time.Time
	Status               RunStatus
	ErrorMessage         string
	FetchedCount         int
	NewArticlesCount     int
	UpdatedArticlesCount int
	ErrorCount           int
}

// FetchLog is one fetch attempt.
type FetchLog struct {
	ID            string
	URL           string
	StatusCode    *int
	LatencyMS     int64
	BytesReceived *int64
	ErrorCode     string
	CreatedAt     time.Time
	RunID         string
}

// MergeDecision is the audit record for a manual author merge.
type MergeDecision struct {
	ID               string
	FromAuthorID     string
	ToAuthorID       string
	EvidenceIDs      []string
	DecisionCriteria string
	CreatedAt        time.Time
	CreatedBy        string
	RunID            string
	RevertedAt       *time.Time
	RevertedBy       string
	RevertedReason   string
}

// AuthorProfile is one deterministic per-source author grouping exposed
// for manual-review candidate generation.
type AuthorProfile struct {
	ID            string
	CanonicalName string
	SourceID      string
	Domains       []string
	Accounts      []string
	ProfileURLs   []string
}

// RollbackSummary reports row counts affected by RollbackRun.
type RollbackSummary struct {
	FetchLogDeleted       int
	EvidenceDeleted       int
	VersionsDeleted       int
	MergeDecisionsDeleted int
	ArticlesDeleted       int
	ArticlesReverted      int
}

// claimPathByField is the fixed JSON-Pointer path for each claim that
// participates in content-hash versioning.
var claimPathByField = map[string]string{
	"title":        "/title",
	"author_hint":  "/author_hint",
	"published_at": "/published_at",
}
