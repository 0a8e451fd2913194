package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/cache"
	"github.com/medfuse/medfuse/internal/classify"
	"github.com/medfuse/medfuse/internal/domain"
	"github.com/medfuse/medfuse/internal/domain/record"
	"github.com/medfuse/medfuse/internal/merge"
	"github.com/medfuse/medfuse/internal/provider"
)

type paperSourceMock struct {
	searchFn func(ctx context.Context, q provider.Query) (provider.Papers, error)
	getFn    func(ctx context.Context, pmid string) (*record.Paper, error)
	calls    int
}

func (m *paperSourceMock) Search(ctx context.Context, q provider.Query) (provider.Papers, error) {
	m.calls++
	return m.searchFn(ctx, q)
}

func (m *paperSourceMock) GetPaper(ctx context.Context, pmid string) (*record.Paper, error) {
	return m.getFn(ctx, pmid)
}

type trialSourceMock struct {
	searchFn func(ctx context.Context, q provider.Query) (provider.Trials, error)
	getFn    func(ctx context.Context, nctid string) (*record.Trial, error)
	calls    int
}

func (m *trialSourceMock) Search(ctx context.Context, q provider.Query) (provider.Trials, error) {
	m.calls++
	return m.searchFn(ctx, q)
}

func (m *trialSourceMock) GetTrial(ctx context.Context, nctid string) (*record.Trial, error) {
	return m.getFn(ctx, nctid)
}

func score(v float64) *float64 { return &v }

func okSources() (*paperSourceMock, *trialSourceMock) {
	pm := &paperSourceMock{
		searchFn: func(context.Context, provider.Query) (provider.Papers, error) {
			return provider.Papers{
				Papers: []record.Paper{
					{PMID: "1", Title: "paper one", Score: score(0.4), RefNCTIDs: []string{"NCT001"}},
					{PMID: "2", Title: "paper two", Score: score(0.2)},
				},
				Total:        2,
				AppliedQuery: "aspirin[All Fields]",
			}, nil
		},
	}
	ctg := &trialSourceMock{
		searchFn: func(context.Context, provider.Query) (provider.Trials, error) {
			return provider.Trials{
				Trials: []record.Trial{
					{NCTID: "NCT001", Title: "trial one", Score: 0.6, PMIDs: []string{"1"}},
				},
				Total:        1,
				AppliedQuery: "aspirin",
			}, nil
		},
	}
	return pm, ctg
}

func newService(pm PaperSource, ctg TrialSource) *Service {
	return New(pm, ctg, cache.NewMemory(16), merge.New(zap.NewNop()),
		Config{KeyPrefix: "test:"}, zap.NewNop())
}

func TestSearch_EmptyQuery(t *testing.T) {
	pm, ctg := okSources()
	s := newService(pm, ctg)

	_, err := s.Search(context.Background(), Request{Query: "  "})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSearch_MergesBothSources(t *testing.T) {
	pm, ctg := okSources()
	s := newService(pm, ctg)

	res, err := s.Search(context.Background(), Request{Query: "aspirin"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if res.FromCache {
		t.Error("first call must not come from cache")
	}
	if res.Counts.Merged != 1 || res.Counts.PMOnly != 1 {
		t.Errorf("unexpected counts: %+v", res.Counts)
	}
	if res.Results[0].Kind != record.KindMerged {
		t.Errorf("merged pair must rank first, got %s", res.Results[0].Kind)
	}
	if res.AppliedQueries["pubmed"] != "aspirin[All Fields]" || res.AppliedQueries["ctgov"] != "aspirin" {
		t.Errorf("unexpected applied queries: %v", res.AppliedQueries)
	}
	if res.Stats.Total != 2 {
		t.Errorf("expected stats over full set, got %d", res.Stats.Total)
	}
}

func TestSearch_SecondCallServedFromCache(t *testing.T) {
	pm, ctg := okSources()
	s := newService(pm, ctg)
	ctx := context.Background()

	if _, err := s.Search(ctx, Request{Query: "aspirin"}); err != nil {
		t.Fatalf("first search: %v", err)
	}
	res, err := s.Search(ctx, Request{Query: "aspirin", Page: 1})
	if err != nil {
		t.Fatalf("second search: %v", err)
	}

	if !res.FromCache {
		t.Error("second identical search must hit the cache")
	}
	if pm.calls != 1 || ctg.calls != 1 {
		t.Errorf("sources must be queried once, got pm=%d ctg=%d", pm.calls, ctg.calls)
	}
}

func TestSearch_DifferentParamsMissCache(t *testing.T) {
	pm, ctg := okSources()
	s := newService(pm, ctg)
	ctx := context.Background()

	s.Search(ctx, Request{Query: "aspirin"})
	s.Search(ctx, Request{Query: "aspirin", YearFrom: 2020})

	if pm.calls != 2 {
		t.Errorf("year bounds are part of the cache key, got %d source calls", pm.calls)
	}

	// Pagination is not part of the key: a different page reuses the entry.
	res, _ := s.Search(ctx, Request{Query: "aspirin", Page: 2, PageSize: 1})
	if !res.FromCache {
		t.Error("different page of the same search must hit the cache")
	}
	if pm.calls != 2 {
		t.Errorf("pagination must not trigger a refetch, got %d calls", pm.calls)
	}
}

func TestSearch_OneSourceFailingDegrades(t *testing.T) {
	pm, _ := okSources()
	ctg := &trialSourceMock{
		searchFn: func(context.Context, provider.Query) (provider.Trials, error) {
			return provider.Trials{}, fmt.Errorf("registry down")
		},
	}
	s := newService(pm, ctg)

	res, err := s.Search(context.Background(), Request{Query: "aspirin"})
	if err != nil {
		t.Fatalf("single source failure must not error: %v", err)
	}
	if res.Counts.PMOnly != 2 || res.Counts.CTGOnly != 0 {
		t.Errorf("expected papers only, got %+v", res.Counts)
	}
	if _, ok := res.AppliedQueries["ctgov"]; ok {
		t.Error("failed source must not report an applied query")
	}
}

func TestSearch_BothSourcesFailing(t *testing.T) {
	pm := &paperSourceMock{
		searchFn: func(context.Context, provider.Query) (provider.Papers, error) {
			return provider.Papers{}, fmt.Errorf("pubmed down")
		},
	}
	ctg := &trialSourceMock{
		searchFn: func(context.Context, provider.Query) (provider.Trials, error) {
			return provider.Trials{}, fmt.Errorf("ctgov down")
		},
	}
	s := newService(pm, ctg)

	_, err := s.Search(context.Background(), Request{Query: "aspirin"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestRefine_UsesCachedEntry(t *testing.T) {
	pm, ctg := okSources()
	s := newService(pm, ctg)
	ctx := context.Background()

	if _, err := s.Search(ctx, Request{Query: "aspirin"}); err != nil {
		t.Fatalf("search: %v", err)
	}

	res, err := s.Refine(ctx, RefineRequest{
		Request: Request{Query: "aspirin"},
		Filters: classify.FilterSpec{SourceTypes: []string{string(record.KindMerged)}},
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if !res.FromCache {
		t.Error("refine after search must use the cached entry")
	}
	if pm.calls != 1 {
		t.Errorf("refine must not re-query sources, got %d calls", pm.calls)
	}
	if res.Counts.Total != 1 || res.Counts.Merged != 1 {
		t.Errorf("expected only the merged pair, got %+v", res.Counts)
	}
}

func TestRefine_RebuildsOnCacheMiss(t *testing.T) {
	pm, ctg := okSources()
	s := newService(pm, ctg)

	res, err := s.Refine(context.Background(), RefineRequest{
		Request: Request{Query: "aspirin"},
	})
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if res.FromCache {
		t.Error("refine on a cold cache must rebuild")
	}
	if pm.calls != 1 || ctg.calls != 1 {
		t.Errorf("rebuild must query both sources, got pm=%d ctg=%d", pm.calls, ctg.calls)
	}
	if res.Counts.Total != 2 {
		t.Errorf("unexpected counts: %+v", res.Counts)
	}
}

func TestPaperAndTrialPassthrough(t *testing.T) {
	pm, ctg := okSources()
	pm.getFn = func(_ context.Context, pmid string) (*record.Paper, error) {
		return &record.Paper{PMID: pmid}, nil
	}
	ctg.getFn = func(_ context.Context, nctid string) (*record.Trial, error) {
		return nil, fmt.Errorf("%w: nctid %s", domain.ErrNotFound, nctid)
	}
	s := newService(pm, ctg)
	ctx := context.Background()

	p, err := s.Paper(ctx, "42")
	if err != nil || p.PMID != "42" {
		t.Errorf("paper passthrough: %v, %v", p, err)
	}
	if _, err := s.Trial(ctx, "NCT404"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("trial passthrough must preserve the error, got %v", err)
	}
}

func TestClearCache(t *testing.T) {
	pm, ctg := okSources()
	s := newService(pm, ctg)
	ctx := context.Background()

	s.Search(ctx, Request{Query: "aspirin"})
	s.Search(ctx, Request{Query: "metformin"})

	n, err := s.ClearCache(ctx, "")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 entries cleared, got %d", n)
	}

	// Cleared entries are refetched on the next search.
	s.Search(ctx, Request{Query: "aspirin"})
	if pm.calls != 3 {
		t.Errorf("expected refetch after clear, got %d calls", pm.calls)
	}
}

func TestCacheInfo(t *testing.T) {
	pm, ctg := okSources()
	s := newService(pm, ctg)
	ctx := context.Background()

	s.Search(ctx, Request{Query: "aspirin"})
	info := s.CacheInfo(ctx)
	if !info.BackendAvailable || info.Size != 1 {
		t.Errorf("unexpected cache info: %+v", info)
	}
}
