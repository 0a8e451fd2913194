package merge

import (
	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/classify"
	"github.com/medfuse/medfuse/internal/domain/record"
)

// Refine re-applies classification filters to an already-merged cached
// result set and re-ranks the surviving subset, without touching the source
// APIs. Returns the requested page plus facet statistics over the full
// filtered set.
func (e *Engine) Refine(
	cached []record.Item, spec classify.FilterSpec, page, pageSize int,
) (p Page, stats classify.FilterStats) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("filter engine panic, returning degraded empty page", zap.Any("panic", r))
			p = emptyPage()
			stats = classify.Stats(nil)
		}
	}()

	// Fast path: a filter that cannot exclude anything returns the cached
	// set re-paginated as-is: same membership, same order.
	if classify.IsNoOp(spec) {
		return Paginate(cached, CountItems(cached), page, pageSize), classify.Stats(cached)
	}

	var papers []record.Paper
	var trials []record.Trial
	for _, it := range cached {
		// Classification is recomputed rather than trusted from the cache
		// entry, so stale entries written before a taxonomy change still
		// filter correctly.
		it.Class = classify.Classify(it)
		if !classify.Matches(it.Class, spec) {
			continue
		}
		// Survivors are split back into source lists; merged items split
		// into both halves. Re-running the merge keeps pair detection and
		// bonus/sort logic single-sourced.
		if it.Paper != nil {
			papers = append(papers, *it.Paper)
		}
		if it.Trial != nil {
			trials = append(trials, *it.Trial)
		}
	}

	items, counts := e.Merge(papers, trials)
	return Paginate(items, counts, page, pageSize), classify.Stats(items)
}
