package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/rohmanhakim/author-index/internal/frontier"
	"github.com/rohmanhakim/author-index/pkg/uuidutil"
)

// scoreExactAccountMatch is the strongest signal: the two authors share an
// identical account identifier (handle, email, canonicalized URL).
const (
	scoreExactAccountMatch     = 1.0
	scoreSameDomainProfileLink = 0.9
	scoreExactNameSameDomain   = 0.8
	scoreSimilarNameSameDomain = 0.6
	scoreSameDomainOnly        = 0.3

	similarNameMaxDistance = 0.15
)

func normalizeName(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(value))), " ")
}

// NormalizedLevenshteinDistance returns the classic edit distance between
// the normalized forms of left and right, divided by the longer
// normalized name's rune length (0 when both are empty).
func NormalizedLevenshteinDistance(left, right string) float64 {
	normalizedLeft := normalizeName(left)
	normalizedRight := normalizeName(right)
	if normalizedLeft == "" && normalizedRight == "" {
		return 0.0
	}

	leftRunes := []rune(normalizedLeft)
	rightRunes := []rune(normalizedRight)
	denominator := len(leftRunes)
	if len(rightRunes) > denominator {
		denominator = len(rightRunes)
	}
	if denominator == 0 {
		denominator = 1
	}

	distance := levenshtein.DistanceForStrings(leftRunes, rightRunes, levenshtein.Options{
		InsCost: 1,
		DelCost: 1,
		SubCost: 1,
		Matches: levenshtein.IdenticalRunes,
	})
	return float64(distance) / float64(denominator)
}

// profileDomains extracts the host component of every profile URL.
func profileDomains(profileURLs []string) frontier.Set[string] {
	domains := frontier.NewSet[string]()
	for _, raw := range profileURLs {
		lower := strings.ToLower(raw)
		idx := strings.Index(lower, "://")
		if idx < 0 {
			continue
		}
		rest := lower[idx+3:]
		host := rest
		if slash := strings.Index(rest, "/"); slash >= 0 {
			host = rest[:slash]
		}
		host = strings.TrimSpace(host)
		if host != "" {
			domains.Add(host)
		}
	}
	return domains
}

func sharedSorted(a, b []string) []string {
	left := frontier.NewSet[string]()
	for _, item := range a {
		left.Add(item)
	}
	var shared []string
	right := frontier.NewSet[string]()
	for _, item := range b {
		right.Add(item)
	}
	for item := range left {
		if right.Contains(item) {
			shared = append(shared, item)
		}
	}
	sort.Strings(shared)
	return shared
}

// ScoreCandidatePair applies the fixed v0 rule set (cumulative, capped at
// 1.0) to one author pair. It returns nil when the pair is the same
// author or the cumulative score does not clear scoreFloor.
func ScoreCandidatePair(left, right Author) *Candidate {
	if left.ID == right.ID {
		return nil
	}

	breakdown := map[string]float64{}
	var evidence []string
	score := 0.0

	sharedAccounts := sharedSorted(left.Accounts, right.Accounts)
	sharedDomains := sharedSorted(left.Domains, right.Domains)

	if len(sharedAccounts) > 0 {
		breakdown["rule_1_exact_account_match"] = scoreExactAccountMatch
		evidence = append(evidence, fmt.Sprintf("exact account match: %s", strings.Join(sharedAccounts, ", ")))
		score += scoreExactAccountMatch
	}

	leftProfileDomains := profileDomains(left.ProfileURLs)
	rightProfileDomains := profileDomains(right.ProfileURLs)
	var sharedProfileDomains []string
	for _, domain := range sharedDomains {
		if leftProfileDomains.Contains(domain) && rightProfileDomains.Contains(domain) {
			sharedProfileDomains = append(sharedProfileDomains, domain)
		}
	}
	if len(sharedProfileDomains) > 0 {
		breakdown["rule_2_same_domain_profile_link"] = scoreSameDomainProfileLink
		evidence = append(evidence, fmt.Sprintf("profile links on shared domain: %s", strings.Join(sharedProfileDomains, ", ")))
		score += scoreSameDomainProfileLink
	}

	normalizedLeft := normalizeName(left.CanonicalName)
	normalizedRight := normalizeName(right.CanonicalName)

	if len(sharedDomains) > 0 && normalizedLeft != "" && normalizedLeft == normalizedRight {
		breakdown["rule_3_exact_name_same_domain"] = scoreExactNameSameDomain
		evidence = append(evidence, fmt.Sprintf("exact name match on shared domain: %s", strings.Join(sharedDomains, ", ")))
		score += scoreExactNameSameDomain
	}

	if len(sharedDomains) > 0 && normalizedLeft != "" && normalizedRight != "" && normalizedLeft != normalizedRight {
		distance := NormalizedLevenshteinDistance(normalizedLeft, normalizedRight)
		if distance <= similarNameMaxDistance {
			breakdown["rule_4_similar_name_same_domain"] = scoreSimilarNameSameDomain
			evidence = append(evidence, fmt.Sprintf("similar names on shared domain (%.3f): %s", distance, strings.Join(sharedDomains, ", ")))
			score += scoreSimilarNameSameDomain
		}
	}

	_, hasRule3 := breakdown["rule_3_exact_name_same_domain"]
	_, hasRule4 := breakdown["rule_4_similar_name_same_domain"]
	if len(sharedDomains) > 0 && !hasRule3 && !hasRule4 {
		breakdown["rule_5_same_domain_only"] = scoreSameDomainOnly
		evidence = append(evidence, fmt.Sprintf("shared publishing domain: %s", strings.Join(sharedDomains, ", ")))
		score += scoreSameDomainOnly
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < scoreFloor {
		return nil
	}

	return &Candidate{
		ID:               uuidutil.NewV5(fmt.Sprintf("candidate|%s|%s", left.ID, right.ID)),
		FromAuthor:       left,
		ToAuthor:         right,
		Score:            score,
		ScoringBreakdown: breakdown,
		Evidence:         evidence,
	}
}

// BuildCandidates scores every unordered author pair and returns those
// clearing minScore, sorted by score descending then by id for a
// deterministic, replay-stable queue ordering.
func BuildCandidates(authors []Author, minScore float64) []Candidate {
	sorted := make([]Author, len(authors))
	copy(sorted, authors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var candidates []Candidate
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			candidate := ScoreCandidatePair(sorted[i], sorted[j])
			if candidate != nil && candidate.Score >= minScore {
				candidates = append(candidates, *candidate)
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates
}
