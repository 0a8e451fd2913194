package classify

import "github.com/medfuse/medfuse/internal/domain/record"

// FilterSpec is the set of allowed values per classification dimension.
// An empty slice means "no constraint" for that dimension; a zero year bound
// means unbounded on that side.
type FilterSpec struct {
	SourceTypes         []string `json:"source_types,omitempty"`
	StudyTypes          []string `json:"study_types,omitempty"`
	Phases              []string `json:"phases,omitempty"`
	Allocations         []string `json:"allocations,omitempty"`
	ObservationalModels []string `json:"observational_models,omitempty"`
	YearFrom            int      `json:"year_from,omitempty"`
	YearTo              int      `json:"year_to,omitempty"`
}

// All possible values per dimension, used by the no-op fast-path check.
var (
	allSourceTypes = []string{string(record.KindPaper), string(record.KindTrial), string(record.KindMerged)}
	allStudyTypes  = []string{Interventional, Observational, ExpandedAccess, NA}
	allPhases      = []string{"PHASE1", "PHASE2", "PHASE3", "PHASE4", "EARLY_PHASE1", NA}
	allAllocations = []string{Randomized, NonRandomized, NA}
	allObsModels   = append(append([]string{}, observationalModels...), NA)
)

// Matches reports whether a classification passes the filter. Dimensions are
// ANDed. Phase and allocation only constrain interventional studies, the
// observational model only observational ones, and an unknown year always
// passes the year range.
func Matches(c record.Classification, spec FilterSpec) bool {
	if !allows(spec.SourceTypes, string(c.SourceType)) {
		return false
	}
	if !allows(spec.StudyTypes, c.StudyType) {
		return false
	}
	if c.StudyType == Interventional {
		if !allows(spec.Phases, c.Phase) {
			return false
		}
		if !allows(spec.Allocations, c.DesignAllocation) {
			return false
		}
	}
	if c.StudyType == Observational {
		if !allows(spec.ObservationalModels, c.ObservationalModel) {
			return false
		}
	}
	if c.Year != 0 {
		if spec.YearFrom != 0 && c.Year < spec.YearFrom {
			return false
		}
		if spec.YearTo != 0 && c.Year > spec.YearTo {
			return false
		}
	}
	return true
}

// IsNoOp reports whether the filter cannot exclude anything: every populated
// dimension covers all possible values and the year range is unbounded.
func IsNoOp(spec FilterSpec) bool {
	if spec.YearFrom != 0 || spec.YearTo != 0 {
		return false
	}
	return covers(spec.SourceTypes, allSourceTypes) &&
		covers(spec.StudyTypes, allStudyTypes) &&
		covers(spec.Phases, allPhases) &&
		covers(spec.Allocations, allAllocations) &&
		covers(spec.ObservationalModels, allObsModels)
}

func allows(allowed []string, v string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// covers reports whether the allowed set is absent or a superset of all.
func covers(allowed, all []string) bool {
	if len(allowed) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	for _, v := range all {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
