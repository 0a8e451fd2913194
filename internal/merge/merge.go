// Package merge builds the unified, deduplicated, ranked result set from the
// two source lists and paginates over it. Reconciliation is deliberately
// strict: a paper and a trial merge only when each references exactly the
// other (1:1 in both directions). One-directional or multi-reference links
// stay standalone: precision over recall, because downstream statistics
// assume a record is consumed by at most one merged pair.
package merge

import (
	"sort"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/classify"
	"github.com/medfuse/medfuse/internal/domain/record"
)

// Bonus is added to a merged item's score on top of the better source score,
// so cross-confirmed studies rank above either source alone.
const Bonus = 0.3

// DefaultPageSize applies when the caller passes a non-positive page size.
const DefaultPageSize = 20

// Counts breaks the unified set down by variant.
type Counts struct {
	Total   int `json:"total"`
	Merged  int `json:"merged"`
	PMOnly  int `json:"pm_only"`
	CTGOnly int `json:"ctg_only"`
}

// Page is one slice of the unified result set.
type Page struct {
	Results    []record.Item `json:"results"`
	Counts     Counts        `json:"counts"`
	Total      int           `json:"total"`
	TotalPages int           `json:"totalPages"`
}

// Engine merges, ranks, and paginates source result lists.
// Stateless apart from the logger; safe for concurrent use.
type Engine struct {
	logger *zap.Logger
}

// New creates a merge engine.
func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// MergeAndPaginate builds the unified set from both source lists and returns
// the requested page. It never fails: any internal panic degrades to an
// empty well-formed page (a partial or empty response is always preferable
// to a hard failure here).
func (e *Engine) MergeAndPaginate(
	papers []record.Paper, trials []record.Trial, page, pageSize int,
) (p Page) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("merge engine panic, returning degraded empty page", zap.Any("panic", r))
			p = emptyPage()
		}
	}()

	items, counts := e.Merge(papers, trials)
	return Paginate(items, counts, page, pageSize)
}

// Merge builds the full unified set: merged pairs first detected, remaining
// records kept standalone, everything classified and sorted by descending
// score (stable, so equal scores keep merged/pm/ctg concatenation order).
func (e *Engine) Merge(papers []record.Paper, trials []record.Trial) ([]record.Item, Counts) {
	pmByID := make(map[string]*record.Paper, len(papers))
	for i := range papers {
		pmByID[papers[i].PMID] = &papers[i]
	}

	consumedPM := make(map[string]struct{})
	consumedNCT := make(map[string]struct{})

	var merged []record.Item
	for i := range trials {
		t := &trials[i]
		// Strict bidirectional 1:1 match: the trial references exactly one
		// paper, and that paper references exactly this trial.
		if len(t.PMIDs) != 1 {
			continue
		}
		p, ok := pmByID[t.PMIDs[0]]
		if !ok {
			continue
		}
		if len(p.RefNCTIDs) != 1 || p.RefNCTIDs[0] != t.NCTID {
			continue
		}
		if _, taken := consumedPM[p.PMID]; taken {
			continue
		}

		it := record.Item{
			Kind:  record.KindMerged,
			Paper: p,
			Trial: t,
			Score: mergedScore(p, t),
		}
		it.Class = classify.Classify(it)
		merged = append(merged, it)
		consumedPM[p.PMID] = struct{}{}
		consumedNCT[t.NCTID] = struct{}{}
	}

	items := merged
	pmOnly, ctgOnly := 0, 0
	for i := range papers {
		if _, taken := consumedPM[papers[i].PMID]; taken {
			continue
		}
		it := record.Item{
			Kind:  record.KindPaper,
			Paper: &papers[i],
			Score: derefScore(papers[i].Score),
		}
		it.Class = classify.Classify(it)
		items = append(items, it)
		pmOnly++
	}
	for i := range trials {
		if _, taken := consumedNCT[trials[i].NCTID]; taken {
			continue
		}
		it := record.Item{
			Kind:  record.KindTrial,
			Trial: &trials[i],
			Score: trials[i].Score,
		}
		it.Class = classify.Classify(it)
		items = append(items, it)
		ctgOnly++
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Score > items[b].Score
	})

	return items, Counts{
		Total:   len(items),
		Merged:  len(merged),
		PMOnly:  pmOnly,
		CTGOnly: ctgOnly,
	}
}

// Paginate slices the sorted unified set into the requested page.
// An empty set marshals as [], never null.
func Paginate(items []record.Item, counts Counts, page, pageSize int) Page {
	if items == nil {
		items = []record.Item{}
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	total := len(items)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return Page{
		Results:    items[start:end],
		Counts:     counts,
		Total:      total,
		TotalPages: totalPages,
	}
}

// CountItems recomputes variant counts from an already-built unified set.
func CountItems(items []record.Item) Counts {
	c := Counts{Total: len(items)}
	for _, it := range items {
		switch it.Kind {
		case record.KindMerged:
			c.Merged++
		case record.KindPaper:
			c.PMOnly++
		case record.KindTrial:
			c.CTGOnly++
		}
	}
	return c
}

func mergedScore(p *record.Paper, t *record.Trial) float64 {
	s := derefScore(p.Score)
	if t.Score > s {
		s = t.Score
	}
	return s + Bonus
}

func derefScore(s *float64) float64 {
	if s == nil {
		return 0
	}
	return *s
}

func emptyPage() Page {
	return Page{Results: []record.Item{}}
}
