package classify

import (
	"testing"

	"github.com/medfuse/medfuse/internal/domain/record"
)

func interventionalClass(phase, alloc string, year int) record.Classification {
	return record.Classification{
		SourceType:       record.KindTrial,
		StudyType:        Interventional,
		Phase:            phase,
		DesignAllocation: alloc,
		Year:             year,
	}
}

func TestMatches_EmptySpecPassesEverything(t *testing.T) {
	classes := []record.Classification{
		interventionalClass("PHASE2", Randomized, 2020),
		{SourceType: record.KindPaper, StudyType: NA},
		{SourceType: record.KindMerged, StudyType: Observational, ObservationalModel: "COHORT"},
	}
	for _, c := range classes {
		if !Matches(c, FilterSpec{}) {
			t.Errorf("empty spec must pass %+v", c)
		}
	}
}

func TestMatches_StudyType(t *testing.T) {
	spec := FilterSpec{StudyTypes: []string{Interventional}}
	if !Matches(interventionalClass("PHASE1", NA, 0), spec) {
		t.Error("interventional must pass")
	}
	if Matches(record.Classification{SourceType: record.KindTrial, StudyType: Observational}, spec) {
		t.Error("observational must be rejected")
	}
}

func TestMatches_PhaseOnlyConstrainsInterventional(t *testing.T) {
	spec := FilterSpec{Phases: []string{"PHASE3"}}

	if Matches(interventionalClass("PHASE1", NA, 0), spec) {
		t.Error("wrong phase must be rejected for interventional")
	}
	if !Matches(interventionalClass("PHASE3", NA, 0), spec) {
		t.Error("matching phase must pass")
	}
	// Observational records ignore the phase dimension entirely.
	obs := record.Classification{SourceType: record.KindTrial, StudyType: Observational}
	if !Matches(obs, spec) {
		t.Error("phase filter must not constrain observational records")
	}
}

func TestMatches_ObservationalModelOnlyConstrainsObservational(t *testing.T) {
	spec := FilterSpec{ObservationalModels: []string{"COHORT"}}

	obs := record.Classification{
		SourceType: record.KindTrial, StudyType: Observational, ObservationalModel: "CASE_CONTROL",
	}
	if Matches(obs, spec) {
		t.Error("wrong model must be rejected for observational")
	}
	if !Matches(interventionalClass("PHASE1", NA, 0), spec) {
		t.Error("model filter must not constrain interventional records")
	}
}

func TestMatches_YearRange(t *testing.T) {
	spec := FilterSpec{YearFrom: 2015, YearTo: 2020}

	tests := []struct {
		year int
		want bool
	}{
		{2015, true},
		{2020, true},
		{2017, true},
		{2014, false},
		{2021, false},
		// Unknown year always passes the range.
		{0, true},
	}
	for _, tt := range tests {
		c := interventionalClass(NA, NA, tt.year)
		if got := Matches(c, spec); got != tt.want {
			t.Errorf("year %d: got %v, want %v", tt.year, got, tt.want)
		}
	}
}

func TestIsNoOp(t *testing.T) {
	if !IsNoOp(FilterSpec{}) {
		t.Error("empty spec is a no-op")
	}

	full := FilterSpec{
		SourceTypes:         allSourceTypes,
		StudyTypes:          allStudyTypes,
		Phases:              allPhases,
		Allocations:         allAllocations,
		ObservationalModels: allObsModels,
	}
	if !IsNoOp(full) {
		t.Error("spec covering every value in every dimension is a no-op")
	}

	bounded := full
	bounded.YearFrom = 2000
	if IsNoOp(bounded) {
		t.Error("year-bounded spec is not a no-op")
	}

	partial := FilterSpec{StudyTypes: []string{Interventional}}
	if IsNoOp(partial) {
		t.Error("partial study type coverage is not a no-op")
	}
}

func TestStats(t *testing.T) {
	items := []record.Item{
		{Kind: record.KindTrial, Class: interventionalClass("PHASE2", Randomized, 2020)},
		{Kind: record.KindTrial, Class: interventionalClass("PHASE2", NonRandomized, 2021)},
		{Kind: record.KindPaper, Class: record.Classification{
			SourceType: record.KindPaper, StudyType: Observational, ObservationalModel: "COHORT",
		}},
	}

	s := Stats(items)
	if s.Total != 3 {
		t.Fatalf("expected total 3, got %d", s.Total)
	}
	if s.Phases["PHASE2"] != 2 {
		t.Errorf("expected 2 PHASE2, got %d", s.Phases["PHASE2"])
	}
	if s.StudyTypes[Interventional] != 2 || s.StudyTypes[Observational] != 1 {
		t.Errorf("unexpected study type counts: %+v", s.StudyTypes)
	}
	if s.Years[2020] != 1 || s.Years[2021] != 1 {
		t.Errorf("unexpected year counts: %+v", s.Years)
	}
	if s.ObservationalModels["COHORT"] != 1 {
		t.Errorf("expected 1 COHORT, got %d", s.ObservationalModels["COHORT"])
	}
}
