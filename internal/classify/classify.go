// Package classify normalizes heterogeneous per-source study metadata into a
// canonical taxonomy. All functions are pure and deterministic; both the
// filter engine and the statistics path go through Classify so the two can
// never disagree about a record.
package classify

import (
	"strings"

	"github.com/medfuse/medfuse/internal/domain/record"
)

// Canonical study types.
const (
	Interventional = "INTERVENTIONAL"
	Observational  = "OBSERVATIONAL"
	ExpandedAccess = "EXPANDED_ACCESS"
	// NA marks an absent or unrecognized value in any dimension.
	NA = "NA"
)

// Canonical allocation values.
const (
	Randomized    = "RANDOMIZED"
	NonRandomized = "NON_RANDOMIZED"
)

// phaseTable maps canonicalized free-text phase strings to registry values.
var phaseTable = map[string]string{
	"PHASE1":       "PHASE1",
	"PHASE2":       "PHASE2",
	"PHASE3":       "PHASE3",
	"PHASE4":       "PHASE4",
	"EARLYPHASE1":  "EARLY_PHASE1",
	"EARLY_PHASE1": "EARLY_PHASE1",
}

// observationalModels is the fixed vocabulary, in match-priority order.
// First keyword hit wins.
var observationalModels = []string{
	"COHORT",
	"CASE_CONTROL",
	"CASE_ONLY",
	"CASE_CROSSOVER",
	"CROSS_SECTIONAL",
	"TIME_SERIES",
	"ECOLOGIC_OR_COMMUNITY_STUDY",
	"FAMILY_BASED",
	"OTHER",
}

// Classify derives the canonical classification for an item.
// Never fails: unknown values collapse to NA and an unparseable year to 0.
func Classify(it record.Item) record.Classification {
	switch it.Kind {
	case record.KindPaper:
		return classifyPaper(it.Paper)
	case record.KindTrial:
		return classifyTrial(it.Trial)
	case record.KindMerged:
		return mergeClassifications(classifyTrial(it.Trial), classifyPaper(it.Paper))
	}
	return record.Classification{SourceType: it.Kind, StudyType: NA}
}

func classifyPaper(p *record.Paper) record.Classification {
	c := record.Classification{SourceType: record.KindPaper, StudyType: NA}
	if p == nil {
		return c
	}

	// Papers carry precomputed study metadata from the extraction step.
	if st := normalizeStudyType(p.StudyType); st != NA {
		c.StudyType = st
	}
	if c.StudyType == Interventional {
		c.Phase = NormalizePhase(p.Phase)
		c.DesignAllocation = NormalizeAllocation(p.DesignAllocation)
	}

	if p.PubYear > 0 {
		c.Year = p.PubYear
	} else {
		c.Year = parseYear(p.PubDate)
	}
	return c
}

func classifyTrial(t *record.Trial) record.Classification {
	c := record.Classification{SourceType: record.KindTrial, StudyType: NA}
	if t == nil {
		return c
	}

	c.StudyType = normalizeStudyType(t.StudyType)
	switch c.StudyType {
	case Interventional:
		c.Phase = NormalizePhase(t.Phase)
		c.DesignAllocation = NormalizeAllocation(t.DesignAllocation)
	case Observational:
		c.ObservationalModel = NormalizeObservationalModel(t.ObservationalModel)
	}

	// Completion date is the best proxy for study year; fall back to
	// primary completion, then start.
	for _, d := range []string{t.CompletionDate, t.PrimaryCompletionDate, t.StartDate} {
		if y := parseYear(d); y > 0 {
			c.Year = y
			break
		}
	}
	return c
}

// mergeClassifications unions two classifications: trial values take
// priority, paper values fill the gaps.
func mergeClassifications(trial, paper record.Classification) record.Classification {
	c := trial
	c.SourceType = record.KindMerged
	if c.StudyType == NA {
		c.StudyType = paper.StudyType
	}
	if c.Phase == "" || c.Phase == NA {
		if paper.Phase != "" {
			c.Phase = paper.Phase
		}
	}
	if c.DesignAllocation == "" || c.DesignAllocation == NA {
		if paper.DesignAllocation != "" {
			c.DesignAllocation = paper.DesignAllocation
		}
	}
	if c.Year == 0 {
		c.Year = paper.Year
	}
	return c
}

// normalizeStudyType matches a raw study type string against the canonical
// set by substring, so both "INTERVENTIONAL" and "Interventional Study" map
// to the same value.
func normalizeStudyType(raw string) string {
	u := strings.ToUpper(strings.TrimSpace(raw))
	if u == "" {
		return NA
	}
	switch {
	case strings.Contains(u, Interventional):
		return Interventional
	case strings.Contains(u, Observational):
		return Observational
	case strings.Contains(u, "EXPANDED_ACCESS") || strings.Contains(u, "EXPANDED ACCESS"):
		return ExpandedAccess
	}
	return NA
}

// NormalizePhase maps free-text phase strings ("Phase 2", "PHASE2",
// "Early Phase 1") to the registry enum. Unknown input maps to NA.
func NormalizePhase(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "", "-", "").Replace(key)
	if key == "" {
		return NA
	}
	if v, ok := phaseTable[key]; ok {
		return v
	}
	return NA
}

// NormalizeAllocation reduces free allocation text to RANDOMIZED,
// NON_RANDOMIZED, or NA. "non" is checked first so "non-randomized" does not
// match the randomized branch.
func NormalizeAllocation(raw string) string {
	l := strings.ToLower(raw)
	switch {
	case strings.Contains(l, "non_randomized"),
		strings.Contains(l, "non-randomized"),
		strings.Contains(l, "non randomized"),
		strings.Contains(l, "nonrandomized"):
		return NonRandomized
	case strings.Contains(l, "randomized"):
		return Randomized
	}
	return NA
}

// NormalizeObservationalModel keyword-matches free text against the fixed
// vocabulary; the first match wins.
func NormalizeObservationalModel(raw string) string {
	u := strings.ToUpper(strings.TrimSpace(raw))
	if u == "" {
		return NA
	}
	u = strings.NewReplacer(" ", "_", "-", "_").Replace(u)
	for _, m := range observationalModels {
		if strings.Contains(u, m) {
			return m
		}
	}
	return NA
}

// parseYear extracts a four-digit year from a date-like string
// ("2021-05-03", "2021 May", "2021"). Returns 0 when absent or unparseable.
func parseYear(s string) int {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0
	}
	year := 0
	for i := 0; i < 4; i++ {
		ch := s[i]
		if ch < '0' || ch > '9' {
			return 0
		}
		year = year*10 + int(ch-'0')
	}
	if year < 1000 {
		return 0
	}
	return year
}
