package resolver

// Author is one deterministic per-source author grouping a candidate
// pair is scored against. It mirrors storage.AuthorProfile's shape so a
// caller can convert straight from Engine.ListResolutionAuthorProfiles.
type Author struct {
	ID            string
	CanonicalName string
	SourceID      string
	Domains       []string
	Accounts      []string
	ProfileURLs   []string
}

// Confidence buckets a Candidate's score for the review-queue UX.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Decision is the reviewer's verdict once a Candidate is surfaced in the
// review queue; an empty Decision means "not yet decided".
type Decision string

const (
	DecisionPending Decision = ""
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
)

// Candidate is one human-review merge suggestion, scored cumulatively
// across the fixed rule set in score.go and capped at 1.0.
type Candidate struct {
	ID               string
	FromAuthor       Author
	ToAuthor         Author
	Score            float64
	ScoringBreakdown map[string]float64
	Evidence         []string
	Decision         Decision
}

// Confidence buckets Score per the fixed thresholds: >=0.75 HIGH,
// >=0.5 MEDIUM, otherwise LOW (candidates below 0.5 never survive
// ScoreCandidatePair, even with a MinScore below 0.5, so LOW applies only
// to a Candidate whose Score was set by other means).
func (c Candidate) Confidence() Confidence {
	switch {
	case c.Score >= 0.75:
		return ConfidenceHigh
	case c.Score >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// DefaultMinScore is the floor BuildCandidates applies when the caller
// does not override it via the CLI's --min-score flag.
const DefaultMinScore = 0.6

// scoreFloor is the absolute minimum any rule combination must clear for
// ScoreCandidatePair to return a Candidate at all, independent of the
// caller's MinScore threshold.
const scoreFloor = 0.5
