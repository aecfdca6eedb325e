package cmd

import "github.com/rohmanhakim/author-index/internal/resolver"

// authorWire is the review.json representation of one resolver.Author,
// shared between review-queue (write) and review apply (read).
type authorWire struct {
	ID            string   `json:"id"`
	CanonicalName string   `json:"canonical_name"`
	SourceID      string   `json:"source_id,omitempty"`
	Domains       []string `json:"domains,omitempty"`
	Accounts      []string `json:"accounts,omitempty"`
	ProfileURLs   []string `json:"profile_urls,omitempty"`
}

func toAuthorWire(a resolver.Author) authorWire {
	return authorWire{
		ID:            a.ID,
		CanonicalName: a.CanonicalName,
		SourceID:      a.SourceID,
		Domains:       a.Domains,
		Accounts:      a.Accounts,
		ProfileURLs:   a.ProfileURLs,
	}
}

func fromAuthorWire(a authorWire) resolver.Author {
	return resolver.Author{
		ID:            a.ID,
		CanonicalName: a.CanonicalName,
		SourceID:      a.SourceID,
		Domains:       a.Domains,
		Accounts:      a.Accounts,
		ProfileURLs:   a.ProfileURLs,
	}
}

// candidateWire is one review.json candidate row. Decision starts empty
// ("pending") and the reviewer fills in "accept"/"reject"/"hold" before
// the file is handed to review apply.
type candidateWire struct {
	ID               string             `json:"id"`
	FromAuthor       authorWire         `json:"from_author"`
	ToAuthor         authorWire         `json:"to_author"`
	Score            float64            `json:"score"`
	Confidence       string             `json:"confidence"`
	ScoringBreakdown map[string]float64 `json:"scoring_breakdown,omitempty"`
	Evidence         []string           `json:"evidence,omitempty"`
	Decision         string             `json:"decision"`
}

func toCandidateWire(c resolver.Candidate) candidateWire {
	return candidateWire{
		ID:               c.ID,
		FromAuthor:       toAuthorWire(c.FromAuthor),
		ToAuthor:         toAuthorWire(c.ToAuthor),
		Score:            c.Score,
		Confidence:       string(c.Confidence()),
		ScoringBreakdown: c.ScoringBreakdown,
		Evidence:         c.Evidence,
		Decision:         string(c.Decision),
	}
}

// reviewQueueFile is review.json's top-level shape.
type reviewQueueFile struct {
	GeneratedAt string          `json:"generated_at"`
	MinScore    float64         `json:"min_score"`
	Candidates  []candidateWire `json:"candidates"`
}
