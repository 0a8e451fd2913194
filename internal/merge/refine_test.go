package merge

import (
	"testing"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/classify"
	"github.com/medfuse/medfuse/internal/domain/record"
)

func cachedSet(e *Engine) []record.Item {
	papers := []record.Paper{
		{
			PMID: "1", RefNCTIDs: []string{"NCT001"},
			StudyType: "Interventional", Phase: "Phase 2", PubYear: 2020,
		},
		{PMID: "2", StudyType: "Interventional", Phase: "Phase 3", PubYear: 2015},
	}
	trials := []record.Trial{
		{
			NCTID: "NCT001", PMIDs: []string{"1"}, Score: 0.8,
			StudyType: "INTERVENTIONAL", Phase: "PHASE2", CompletionDate: "2020-01-01",
		},
		{
			NCTID: "NCT002", Score: 0.4,
			StudyType: "OBSERVATIONAL", ObservationalModel: "COHORT", StartDate: "2010-06-01",
		},
	}
	items, _ := e.Merge(papers, trials)
	return items
}

func TestRefine_NoOpKeepsMembershipAndOrder(t *testing.T) {
	e := New(zap.NewNop())
	cached := cachedSet(e)

	p, stats := e.Refine(cached, classify.FilterSpec{}, 1, 50)
	if len(p.Results) != len(cached) {
		t.Fatalf("no-op filter changed membership: %d vs %d", len(p.Results), len(cached))
	}
	for i := range cached {
		if p.Results[i].ID() != cached[i].ID() {
			t.Errorf("no-op filter reordered item %d: %s vs %s",
				i, p.Results[i].ID(), cached[i].ID())
		}
	}
	if stats.Total != len(cached) {
		t.Errorf("expected stats over full set, got total %d", stats.Total)
	}
}

func TestRefine_FilterByStudyType(t *testing.T) {
	e := New(zap.NewNop())
	cached := cachedSet(e)

	p, stats := e.Refine(cached, classify.FilterSpec{
		StudyTypes: []string{classify.Observational},
	}, 1, 50)

	if len(p.Results) != 1 {
		t.Fatalf("expected only the observational trial, got %d results", len(p.Results))
	}
	if p.Results[0].ID() != "NCT002" {
		t.Errorf("expected NCT002, got %s", p.Results[0].ID())
	}
	if stats.StudyTypes[classify.Observational] != 1 {
		t.Errorf("stats must cover the filtered set, got %+v", stats.StudyTypes)
	}
}

func TestRefine_SurvivingPairStaysMerged(t *testing.T) {
	e := New(zap.NewNop())
	cached := cachedSet(e)

	p, _ := e.Refine(cached, classify.FilterSpec{Phases: []string{"PHASE2"}}, 1, 50)

	it := findItem(t, p.Results, "1|NCT001")
	if it.Kind != record.KindMerged {
		t.Errorf("pair passing the filter must re-merge, got %s", it.Kind)
	}
	// PHASE3 paper and (phase-exempt) observational trial: the paper is
	// filtered out, the observational trial survives.
	if len(p.Results) != 2 {
		t.Errorf("expected merged pair plus observational trial, got %d results", len(p.Results))
	}
}

func TestRefine_YearRange(t *testing.T) {
	e := New(zap.NewNop())
	cached := cachedSet(e)

	p, _ := e.Refine(cached, classify.FilterSpec{YearFrom: 2016}, 1, 50)
	for _, it := range p.Results {
		if it.Class.Year != 0 && it.Class.Year < 2016 {
			t.Errorf("item %s with year %d must be excluded", it.ID(), it.Class.Year)
		}
	}
	if _, ok := idSet(p.Results)["2"]; ok {
		t.Error("2015 paper must be excluded by year_from=2016")
	}
}

func TestRefine_EmptySurvivorSet(t *testing.T) {
	e := New(zap.NewNop())
	cached := cachedSet(e)

	p, stats := e.Refine(cached, classify.FilterSpec{
		StudyTypes: []string{classify.ExpandedAccess},
	}, 1, 50)
	if len(p.Results) != 0 || p.Total != 0 {
		t.Errorf("expected empty page, got %d results total %d", len(p.Results), p.Total)
	}
	if stats.Total != 0 {
		t.Errorf("expected empty stats, got total %d", stats.Total)
	}
}

func idSet(items []record.Item) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it.ID()] = struct{}{}
	}
	return s
}
