package resolver_test

import (
	"testing"

	"github.com/rohmanhakim/author-index/internal/resolver"
)

func TestNormalizedLevenshteinDistance_MatchesRoadmapExamples(t *testing.T) {
	got := resolver.NormalizedLevenshteinDistance("Jane Doe", "Jane Do")
	if want := 0.125; got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if d := resolver.NormalizedLevenshteinDistance("Jane Doe", "John Smith"); d <= 0.15 {
		t.Fatalf("expected dissimilar names to exceed 0.15, got %v", d)
	}
}

func TestScoreCandidatePair_SamePersonIsNil(t *testing.T) {
	a := resolver.Author{ID: "same"}
	if c := resolver.ScoreCandidatePair(a, a); c != nil {
		t.Fatalf("expected nil for identical author ids, got %+v", c)
	}
}

func TestScoreCandidatePair_ExactAccountMatchScoresOne(t *testing.T) {
	left := resolver.Author{ID: "a1", CanonicalName: "Jane Doe", Accounts: []string{"@janedoe"}}
	right := resolver.Author{ID: "a2", CanonicalName: "J. Doe", Accounts: []string{"@janedoe"}}

	c := resolver.ScoreCandidatePair(left, right)
	if c == nil {
		t.Fatalf("expected a candidate for a shared account")
	}
	if c.Score != 1.0 {
		t.Fatalf("expected score 1.0, got %v", c.Score)
	}
	if c.Confidence() != resolver.ConfidenceHigh {
		t.Fatalf("expected HIGH confidence, got %s", c.Confidence())
	}
}

func TestScoreCandidatePair_ExactNameSameDomainScoresPointEight(t *testing.T) {
	left := resolver.Author{ID: "a1", CanonicalName: "Jane Doe", Domains: []string{"techblog.com"}}
	right := resolver.Author{ID: "a2", CanonicalName: "Jane Doe", Domains: []string{"techblog.com"}}

	c := resolver.ScoreCandidatePair(left, right)
	if c == nil {
		t.Fatalf("expected a candidate for same-name same-domain authors")
	}
	if c.Score != 0.8 {
		t.Fatalf("expected score 0.8, got %v", c.Score)
	}
	if _, ok := c.ScoringBreakdown["rule_3_exact_name_same_domain"]; !ok {
		t.Fatalf("expected rule_3 to fire, got %v", c.ScoringBreakdown)
	}
}

func TestScoreCandidatePair_SimilarNameSameDomainScoresPointSix(t *testing.T) {
	left := resolver.Author{ID: "a1", CanonicalName: "Jane Doe", Domains: []string{"techblog.com"}}
	right := resolver.Author{ID: "a2", CanonicalName: "Jane Do", Domains: []string{"techblog.com"}}

	c := resolver.ScoreCandidatePair(left, right)
	if c == nil {
		t.Fatalf("expected a candidate for a similar name on shared domain")
	}
	if c.Score != 0.6 {
		t.Fatalf("expected score 0.6, got %v", c.Score)
	}
}

func TestScoreCandidatePair_SameDomainOnlyScoresPointThreeAndIsBelowFloor(t *testing.T) {
	left := resolver.Author{ID: "a1", CanonicalName: "Jane Doe", Domains: []string{"techblog.com"}}
	right := resolver.Author{ID: "a2", CanonicalName: "Someone Else", Domains: []string{"techblog.com"}}

	c := resolver.ScoreCandidatePair(left, right)
	if c != nil {
		t.Fatalf("expected nil: 0.3 alone is below the 0.5 floor, got %+v", c)
	}
}

func TestScoreCandidatePair_NoSharedSignalIsNil(t *testing.T) {
	left := resolver.Author{ID: "a1", CanonicalName: "Jane Doe", Domains: []string{"techblog.com"}}
	right := resolver.Author{ID: "a2", CanonicalName: "Bob Smith", Domains: []string{"other.com"}}

	if c := resolver.ScoreCandidatePair(left, right); c != nil {
		t.Fatalf("expected nil for unrelated authors, got %+v", c)
	}
}

func TestScoreCandidatePair_IDIsDeterministicAcrossCalls(t *testing.T) {
	left := resolver.Author{ID: "a1", CanonicalName: "Jane Doe", Accounts: []string{"@janedoe"}}
	right := resolver.Author{ID: "a2", CanonicalName: "Jane Doe", Accounts: []string{"@janedoe"}}

	first := resolver.ScoreCandidatePair(left, right)
	second := resolver.ScoreCandidatePair(left, right)
	if first.ID != second.ID {
		t.Fatalf("expected deterministic candidate id, got %s vs %s", first.ID, second.ID)
	}
}

func TestBuildCandidates_SortsByScoreDescThenID(t *testing.T) {
	authors := []resolver.Author{
		{ID: "a1", CanonicalName: "Jane Doe", Domains: []string{"techblog.com"}},
		{ID: "a2", CanonicalName: "Jane Doe", Domains: []string{"techblog.com"}},
		{ID: "a3", CanonicalName: "Jane Doe", Accounts: []string{"@janedoe"}},
		{ID: "a4", CanonicalName: "Jane Doe", Accounts: []string{"@janedoe"}},
	}

	candidates := resolver.BuildCandidates(authors, resolver.DefaultMinScore)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 surfaced candidates, got %d: %+v", len(candidates), candidates)
	}
	if candidates[0].Score < candidates[1].Score {
		t.Fatalf("expected descending score order, got %v then %v", candidates[0].Score, candidates[1].Score)
	}
	// a3/a4's exact-account match (1.0) outranks a1/a2's exact-name-same-domain (0.8).
	if candidates[0].FromAuthor.ID != "a3" || candidates[0].ToAuthor.ID != "a4" {
		t.Fatalf("expected the account-match pair first, got %+v", candidates[0])
	}
}

func TestBuildCandidates_AbsoluteScoreFloorBeatsALowMinScore(t *testing.T) {
	// rule_5_same_domain_only alone scores 0.3, below ScoreCandidatePair's
	// own 0.5 floor; a caller-supplied MinScore of 0.2 cannot surface it.
	authors := []resolver.Author{
		{ID: "a1", CanonicalName: "Jane Doe", Domains: []string{"techblog.com"}},
		{ID: "a2", CanonicalName: "Someone Else", Domains: []string{"techblog.com"}},
	}
	if c := resolver.BuildCandidates(authors, 0.2); len(c) != 0 {
		t.Fatalf("expected the 0.5 absolute floor to suppress a 0.3 pair even with MinScore=0.2, got %+v", c)
	}
}
