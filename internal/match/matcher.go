// Package match implements the candidate deduplication core: a cascade of
// matching strategies that score one incoming candidate against the pool of
// previously stored candidates, and a batch categorizer that buckets each
// incoming record as new, auto-update, or needs-review.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// Method identifies which strategy produced a match.
type Method string

const (
	MethodExternalID      Method = "external_id"
	MethodNameOfficeExact Method = "name_office_exact"
	MethodNameOffice      Method = "name_office"
	MethodFuzzyName       Method = "fuzzy_name"
	MethodNoMatch         Method = "no_match"
)

// Config holds the matching thresholds. Values are fixed per deployment and
// passed in at construction so tests can override them without process-wide
// state.
type Config struct {
	// ExactMatchThreshold is the confidence assigned to identity-level
	// matches (external id, or exact name+office+party).
	ExactMatchThreshold float64
	// HighConfidenceThreshold: equal-or-above means eligible for automatic
	// update.
	HighConfidenceThreshold float64
	// ReviewThreshold: equal-or-above (but below high confidence) means a
	// human review; below means no match at all.
	ReviewThreshold float64
	// UseExternalIDs enables Strategy A. The state sources ingested today
	// carry no persistent filing identifiers, so it is off by default.
	UseExternalIDs bool
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		ExactMatchThreshold:     100,
		HighConfidenceThreshold: 95,
		ReviewThreshold:         85,
	}
}

// Result is the outcome of matching one incoming candidate.
type Result struct {
	Candidate  *model.ExistingCandidate
	Confidence float64
	Method     Method
}

// scoredMatch is the optional output of a single strategy.
type scoredMatch struct {
	candidate *model.ExistingCandidate
	score     float64
}

// Matcher finds the best existing-candidate match for incoming candidates.
// It performs no I/O; the pool is an immutable snapshot supplied by the
// caller.
type Matcher struct {
	cfg Config
	sim Similarity
}

// New creates a Matcher. A nil similarity function defaults to
// LevenshteinRatio.
func New(cfg Config, sim Similarity) *Matcher {
	if sim == nil {
		sim = LevenshteinRatio
	}
	return &Matcher{cfg: cfg, sim: sim}
}

// FindMatch runs the strategy cascade and returns the single best match.
// "No match" is a normal outcome, returned with a nil candidate and method
// no_match, never an error.
func (m *Matcher) FindMatch(c model.NormalizedCandidate, pool []model.ExistingCandidate) Result {
	// Strategy A: external identifier, highest trust, short-circuits.
	if ext := m.matchByExternalID(c, pool); ext != nil {
		return Result{Candidate: ext.candidate, Confidence: ext.score, Method: MethodExternalID}
	}

	// Strategy B: name + office. A high-confidence result is accepted
	// without consulting Strategy C, which uses more permissive criteria
	// and could surface a competing lower-quality match.
	nameOffice := m.matchByNameAndOffice(c, pool)
	if nameOffice != nil && nameOffice.score >= m.cfg.HighConfidenceThreshold {
		return Result{Candidate: nameOffice.candidate, Confidence: nameOffice.score, Method: MethodNameOfficeExact}
	}

	// Strategy C: fuzzy last name + context.
	fuzzy := m.matchByFuzzyName(c, pool)

	switch {
	case nameOffice != nil && fuzzy != nil:
		// Ties favor name+office; fuzzy must strictly beat it.
		if fuzzy.score > nameOffice.score {
			return Result{Candidate: fuzzy.candidate, Confidence: fuzzy.score, Method: MethodFuzzyName}
		}
		return Result{Candidate: nameOffice.candidate, Confidence: nameOffice.score, Method: MethodNameOffice}
	case nameOffice != nil:
		return Result{Candidate: nameOffice.candidate, Confidence: nameOffice.score, Method: MethodNameOffice}
	case fuzzy != nil:
		return Result{Candidate: fuzzy.candidate, Confidence: fuzzy.score, Method: MethodFuzzyName}
	}

	return Result{Method: MethodNoMatch}
}

// matchByExternalID matches on a shared externally-sourced identifier
// (e.g. a filing-authority id). Disabled unless the deployment opts in,
// since most state listings publish no stable id.
func (m *Matcher) matchByExternalID(c model.NormalizedCandidate, pool []model.ExistingCandidate) *scoredMatch {
	if !m.cfg.UseExternalIDs || c.ExternalIDType == "" || c.ExternalIDValue == "" {
		return nil
	}
	for i := range pool {
		for _, ext := range pool[i].ExternalIDs {
			if ext.Authority == c.ExternalIDType && ext.Value == c.ExternalIDValue {
				return &scoredMatch{candidate: &pool[i], score: m.cfg.ExactMatchThreshold}
			}
		}
	}
	return nil
}

// matchByNameAndOffice scores full-name similarity weighted with office
// similarity and a party-mismatch penalty, restricted to the same election
// year (a missing year on either side acts as a wildcard).
func (m *Matcher) matchByNameAndOffice(c model.NormalizedCandidate, pool []model.ExistingCandidate) *scoredMatch {
	name := normalize(c.FullName)
	office := normalize(c.OfficeName)
	party := normalize(c.Party)

	var best *scoredMatch
	bestScore := 0.0

	for i := range pool {
		existing := &pool[i]

		if c.ElectionYear != 0 && existing.ElectionYear != 0 && c.ElectionYear != existing.ElectionYear {
			continue
		}

		nameScore := m.sim(name, normalize(existing.FullName))
		if nameScore < 70 {
			continue
		}

		officeScore := m.sim(office, normalize(existing.OfficeName))

		partyMatch := 1.0
		if party != "" && existing.Party != "" && party != normalize(existing.Party) {
			partyMatch = 0.5
		}

		combined := (nameScore*0.6 + officeScore*0.3) * partyMatch

		// Identical name, office, and compatible party is treated as the
		// same candidate outright; the weighted formula tops out at 90 and
		// can never reach the exact threshold on its own.
		if nameScore == 100 && officeScore == 100 && partyMatch == 1.0 {
			return &scoredMatch{candidate: existing, score: m.cfg.ExactMatchThreshold}
		}

		if combined > bestScore {
			bestScore = combined
			best = &scoredMatch{candidate: existing, score: combined}
		}
	}

	if best != nil && bestScore >= m.cfg.ReviewThreshold {
		return best
	}
	return nil
}

// leadingRune returns the first rune of s, or 0 for an empty string.
func leadingRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// runeLen counts runes, so a one-character initial is detected even for
// non-ASCII names.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// matchByFuzzyName scores last-name similarity with first-name and
// office-level/district context, for records whose full names diverge too
// much for Strategy B (nicknames, initials, reordered names).
func (m *Matcher) matchByFuzzyName(c model.NormalizedCandidate, pool []model.ExistingCandidate) *scoredMatch {
	first := normalize(c.FirstName)
	last := normalize(c.LastName)
	if last == "" {
		return nil
	}

	var best *scoredMatch
	bestScore := 0.0

	for i := range pool {
		existing := &pool[i]

		existingFirst := normalize(existing.FirstName)
		existingLast := normalize(existing.LastName)
		if existingLast == "" {
			continue
		}

		// Last name alone carries less disambiguating power, so the floor
		// is stricter than Strategy B's.
		lastScore := m.sim(last, existingLast)
		if lastScore < 85 {
			continue
		}

		firstScore := 0.0
		if first != "" && existingFirst != "" {
			firstScore = m.sim(first, existingFirst)
			// "J. Smith" vs "John Smith": a single-letter initial agreeing
			// on the leading character counts as a strong first-name match.
			if leadingRune(first) == leadingRune(existingFirst) &&
				(runeLen(first) == 1 || runeLen(existingFirst) == 1) &&
				firstScore < 85 {
				firstScore = 85
			}
		}

		contextScore := 0.0
		if normalize(string(c.OfficeLevel)) == normalize(string(existing.OfficeLevel)) {
			contextScore += 50
		}
		// Substring containment is heuristic: district "1" appears inside
		// many longer division ids. Known weakness, kept for recall.
		if c.DistrictNumber != "" && existing.OCDDivisionID != "" &&
			strings.Contains(existing.OCDDivisionID, c.DistrictNumber) {
			contextScore += 50
		}

		combined := lastScore*0.4 + firstScore*0.3 + contextScore*0.3

		if combined > bestScore {
			bestScore = combined
			best = &scoredMatch{candidate: existing, score: combined}
		}
	}

	if best != nil && bestScore >= m.cfg.ReviewThreshold {
		return best
	}
	return nil
}
