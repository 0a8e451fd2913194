// Package search is the aggregation usecase: it queries both literature
// sources concurrently, merges and ranks the union, caches the full result
// set, and serves pagination and filter refinement from that cache.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/cache"
	"github.com/medfuse/medfuse/internal/classify"
	"github.com/medfuse/medfuse/internal/domain"
	"github.com/medfuse/medfuse/internal/domain/record"
	"github.com/medfuse/medfuse/internal/logger"
	"github.com/medfuse/medfuse/internal/merge"
	"github.com/medfuse/medfuse/internal/metrics"
	"github.com/medfuse/medfuse/internal/provider"
)

// Config holds search service settings.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	TTL             time.Duration
	KeyPrefix       string
}

// Service coordinates providers, merge engine, and result cache.
type Service struct {
	pm     PaperSource
	ctg    TrialSource
	store  cache.Store
	engine *merge.Engine
	cfg    Config
	logger *zap.Logger
}

// New creates a search service.
func New(pm PaperSource, ctg TrialSource, store cache.Store, engine *merge.Engine,
	cfg Config, log *zap.Logger,
) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = merge.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultTTL
	}
	return &Service{pm: pm, ctg: ctg, store: store, engine: engine, cfg: cfg, logger: log}
}

// Request is one search call.
type Request struct {
	Query    string
	Page     int
	PageSize int
	YearFrom int
	YearTo   int
}

// RefineRequest re-filters a cached search without re-querying the sources.
type RefineRequest struct {
	Request
	Filters classify.FilterSpec
}

// Response is one page of merged results plus facet statistics over the
// full (unpaginated) set.
type Response struct {
	merge.Page
	Stats          classify.FilterStats `json:"stats"`
	AppliedQueries map[string]string    `json:"applied_queries,omitempty"`
	FromCache      bool                 `json:"from_cache"`
}

// Search serves the requested page, populating the cache with the full
// merged set on a miss.
func (s *Service) Search(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	if strings.TrimSpace(req.Query) == "" {
		return Response{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	page, pageSize := s.clampPage(req.Page, req.PageSize)

	key := s.entryKey(req)
	if entry, ok := s.lookup(ctx, key); ok {
		metrics.SearchesTotal.WithLabelValues("search", "cache_hit").Inc()
		return Response{
			Page:      merge.Paginate(entry.Items, merge.CountItems(entry.Items), page, pageSize),
			Stats:     entry.Stats,
			FromCache: true,
		}, nil
	}

	entry, applied, err := s.fetchAndMerge(ctx, req)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("search", "error").Inc()
		return Response{}, err
	}
	s.storeEntry(ctx, key, entry)

	metrics.SearchesTotal.WithLabelValues("search", "success").Inc()
	metrics.SearchDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())

	return Response{
		Page:           merge.Paginate(entry.Items, merge.CountItems(entry.Items), page, pageSize),
		Stats:          entry.Stats,
		AppliedQueries: applied,
	}, nil
}

// Refine applies classification filters to the cached result set for the
// same search parameters. A missing or expired entry is rebuilt from the
// sources first, so refinement never fails on cache eviction.
func (s *Service) Refine(ctx context.Context, req RefineRequest) (Response, error) {
	start := time.Now()
	if strings.TrimSpace(req.Query) == "" {
		return Response{}, fmt.Errorf("%w: query is required", domain.ErrInvalidRequest)
	}
	page, pageSize := s.clampPage(req.Page, req.PageSize)

	key := s.entryKey(req.Request)
	entry, ok := s.lookup(ctx, key)
	if !ok {
		rebuilt, _, err := s.fetchAndMerge(ctx, req.Request)
		if err != nil {
			metrics.SearchesTotal.WithLabelValues("refine", "error").Inc()
			return Response{}, err
		}
		s.storeEntry(ctx, key, rebuilt)
		entry = rebuilt
	}

	pg, stats := s.engine.Refine(entry.Items, req.Filters, page, pageSize)
	metrics.SearchesTotal.WithLabelValues("refine", "success").Inc()
	metrics.SearchDuration.WithLabelValues("refine").Observe(time.Since(start).Seconds())
	return Response{Page: pg, Stats: stats, FromCache: ok}, nil
}

// Paper fetches one article by pmid from the source.
func (s *Service) Paper(ctx context.Context, pmid string) (*record.Paper, error) {
	return s.pm.GetPaper(ctx, pmid)
}

// Trial fetches one registration by nctid from the source.
func (s *Service) Trial(ctx context.Context, nctid string) (*record.Trial, error) {
	return s.ctg.GetTrial(ctx, nctid)
}

// ClearCache drops cached search entries matching the glob pattern. An
// empty pattern clears all search entries.
func (s *Service) ClearCache(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		pattern = "*"
	}
	count, err := s.store.ClearPattern(ctx, s.cfg.KeyPrefix+"search:"+pattern)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return count, nil
}

// CacheInfo reports backend availability and entry count.
func (s *Service) CacheInfo(ctx context.Context) cache.Info {
	return s.store.Info(ctx)
}

// fetchAndMerge queries both sources concurrently and merges the result. A
// failed source degrades to an empty list; the call errors only when both
// sources fail.
func (s *Service) fetchAndMerge(
	ctx context.Context, req Request,
) (cache.SearchEntry, map[string]string, error) {
	log := logger.FromContext(ctx)
	q := provider.Query{Term: req.Query, YearFrom: req.YearFrom, YearTo: req.YearTo}

	var (
		papers provider.Papers
		trials provider.Trials
		pmErr  error
		ctgErr error
		wg     sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		papers, pmErr = s.pm.Search(ctx, q)
	}()
	go func() {
		defer wg.Done()
		trials, ctgErr = s.ctg.Search(ctx, q)
	}()
	wg.Wait()

	if pmErr != nil && ctgErr != nil {
		return cache.SearchEntry{}, nil, fmt.Errorf(
			"%w: pubmed: %s; ctgov: %s", domain.ErrProviderUnavailable, pmErr, ctgErr)
	}
	if pmErr != nil {
		log.Warn("pubmed search failed, proceeding with trials only", zap.Error(pmErr))
	}
	if ctgErr != nil {
		log.Warn("ctgov search failed, proceeding with papers only", zap.Error(ctgErr))
	}

	items, counts := s.engine.Merge(papers.Papers, trials.Trials)
	metrics.MergedResultsTotal.WithLabelValues("merged").Add(float64(counts.Merged))
	metrics.MergedResultsTotal.WithLabelValues("pm_only").Add(float64(counts.PMOnly))
	metrics.MergedResultsTotal.WithLabelValues("ctg_only").Add(float64(counts.CTGOnly))

	entry := cache.SearchEntry{
		Params:    s.entryParams(req),
		Query:     req.Query,
		Items:     items,
		Stats:     classify.Stats(items),
		CreatedAt: time.Now().UTC(),
	}

	applied := make(map[string]string)
	if pmErr == nil {
		applied["pubmed"] = papers.AppliedQuery
	}
	if ctgErr == nil {
		applied["ctgov"] = trials.AppliedQuery
	}
	return entry, applied, nil
}

// entryParams is the canonical parameter map hashed into the cache key.
// Page and page size are deliberately excluded: one entry serves every page.
func (s *Service) entryParams(req Request) map[string]any {
	return map[string]any{
		"query":     req.Query,
		"year_from": req.YearFrom,
		"year_to":   req.YearTo,
	}
}

func (s *Service) entryKey(req Request) string {
	return cache.Key(s.cfg.KeyPrefix+"search:", s.entryParams(req))
}

func (s *Service) lookup(ctx context.Context, key string) (cache.SearchEntry, bool) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.FromContext(ctx).Warn("cache get failed", zap.Error(err))
		}
		return cache.SearchEntry{}, false
	}
	entry, err := cache.DecodeEntry(data)
	if err != nil {
		// A corrupt entry behaves like a miss and will be overwritten.
		logger.FromContext(ctx).Warn("corrupt cache entry ignored", zap.Error(err))
		return cache.SearchEntry{}, false
	}
	return entry, true
}

func (s *Service) storeEntry(ctx context.Context, key string, entry cache.SearchEntry) {
	data, err := cache.EncodeEntry(entry)
	if err != nil {
		logger.FromContext(ctx).Warn("cache encode failed", zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, key, data, s.cfg.TTL); err != nil {
		logger.FromContext(ctx).Warn("cache set failed", zap.Error(err))
	}
}

func (s *Service) clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}
	return page, pageSize
}
