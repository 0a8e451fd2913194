// Package pubmed is the NCBI E-utilities source provider: esearch for id
// discovery, efetch for article details, reranked before returning.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/domain"
	"github.com/medfuse/medfuse/internal/domain/record"
	"github.com/medfuse/medfuse/internal/metrics"
	"github.com/medfuse/medfuse/internal/provider"
	"github.com/medfuse/medfuse/internal/rank"
)

const (
	// DefaultBaseURL is the NCBI E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	// DefaultTool identifies this application to NCBI.
	DefaultTool = "medfuse"
	// DefaultEmail is the contact email sent to NCBI.
	DefaultEmail = "medfuse@users.noreply.github.com"

	// Rate limits per NCBI policy.
	RateWithoutKey = 3  // requests per second without API key
	RateWithKey    = 10 // requests per second with API key

	// fetchChunkSize is the maximum ids per efetch request.
	fetchChunkSize = 200

	// DefaultMaxFetch caps how many ids one search will hydrate.
	DefaultMaxFetch = 200
)

// Config holds PubMed provider settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Tool     string
	Email    string
	Timeout  time.Duration
	MaxFetch int
	Logger   *zap.Logger
}

// Client queries PubMed through NCBI E-utilities. All requests, including
// concurrent detail chunks, share one rate limiter.
type Client struct {
	base     *provider.BaseClient
	apiKey   string
	tool     string
	email    string
	maxFetch int
	logger   *zap.Logger
}

// NewClient creates a PubMed client. The rate limit follows NCBI policy:
// 3 rps without an API key, 10 rps with one.
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rps := float64(RateWithoutKey)
	if cfg.APIKey != "" {
		rps = float64(RateWithKey)
	}
	tool := cfg.Tool
	if tool == "" {
		tool = DefaultTool
	}
	email := cfg.Email
	if email == "" {
		email = DefaultEmail
	}
	maxFetch := cfg.MaxFetch
	if maxFetch <= 0 {
		maxFetch = DefaultMaxFetch
	}
	return &Client{
		base:     provider.NewBaseClient(baseURL, rps, cfg.Timeout),
		apiKey:   cfg.APIKey,
		tool:     tool,
		email:    email,
		maxFetch: maxFetch,
		logger:   cfg.Logger,
	}
}

type esearchResponse struct {
	Result esearchResult `json:"esearchresult"`
}

type esearchResult struct {
	Count            string   `json:"count"`
	IDList           []string `json:"idlist"`
	QueryTranslation string   `json:"querytranslation"`
}

// Search runs esearch, hydrates the id list via chunked concurrent efetch
// calls, and reranks the papers against the query. An empty upstream result
// is not an error.
func (c *Client) Search(ctx context.Context, q provider.Query) (provider.Papers, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", q.Term)
	params.Set("retmode", "json")
	if q.YearFrom > 0 || q.YearTo > 0 {
		params.Set("datetype", "pdat")
		params.Set("mindate", yearBound(q.YearFrom, 1800))
		params.Set("maxdate", yearBound(q.YearTo, 3000))
	}
	limit := q.PageSize
	if limit <= 0 || limit > c.maxFetch {
		limit = c.maxFetch
	}
	params.Set("retmax", strconv.Itoa(limit))

	body, err := c.doGet(ctx, "esearch.fcgi", params)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("pubmed", "search", "error").Inc()
		return provider.Papers{}, fmt.Errorf("pubmed search: %w", err)
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("pubmed", "search", "error").Inc()
		return provider.Papers{}, fmt.Errorf("parsing esearch response: %w", err)
	}

	total, _ := strconv.Atoi(resp.Result.Count)
	out := provider.Papers{Total: total, AppliedQuery: resp.Result.QueryTranslation}
	if out.AppliedQuery == "" {
		out.AppliedQuery = q.Term
	}

	if len(resp.Result.IDList) == 0 {
		metrics.ProviderRequestsTotal.WithLabelValues("pubmed", "search", "success").Inc()
		return out, nil
	}

	papers, err := c.fetchAll(ctx, resp.Result.IDList)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("pubmed", "search", "error").Inc()
		return provider.Papers{}, fmt.Errorf("pubmed fetch: %w", err)
	}

	out.Papers = rerank(q.Term, papers)
	metrics.ProviderRequestsTotal.WithLabelValues("pubmed", "search", "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues("pubmed", "search").Observe(time.Since(start).Seconds())
	return out, nil
}

// GetPaper fetches one article by pmid.
func (c *Client) GetPaper(ctx context.Context, pmid string) (*record.Paper, error) {
	if pmid == "" {
		return nil, fmt.Errorf("%w: pmid is required", domain.ErrInvalidRequest)
	}
	papers, err := c.fetchChunk(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("%w: pmid %s", domain.ErrNotFound, pmid)
	}
	return &papers[0], nil
}

// fetchAll hydrates pmids via concurrent chunked efetch calls. Chunk order
// is restored afterwards so reranking sees the source's original ranking.
func (c *Client) fetchAll(ctx context.Context, pmids []string) ([]record.Paper, error) {
	chunks := chunkIDs(pmids, fetchChunkSize)

	results := make([][]record.Paper, len(chunks))
	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk []string) {
			defer wg.Done()
			results[i], errs[i] = c.fetchChunk(ctx, chunk)
		}(i, chunk)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	// Restore esearch order across and within chunks.
	byID := make(map[string]record.Paper)
	for _, chunk := range results {
		for _, p := range chunk {
			byID[p.PMID] = p
		}
	}
	papers := make([]record.Paper, 0, len(byID))
	for _, id := range pmids {
		if p, ok := byID[id]; ok {
			papers = append(papers, p)
		}
	}
	return papers, nil
}

func (c *Client) fetchChunk(ctx context.Context, pmids []string) ([]record.Paper, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("rettype", "xml")
	params.Set("retmode", "xml")

	start := time.Now()
	body, err := c.doGet(ctx, "efetch.fcgi", params)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("pubmed", "fetch", "error").Inc()
		return nil, err
	}
	metrics.ProviderRequestsTotal.WithLabelValues("pubmed", "fetch", "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues("pubmed", "fetch").Observe(time.Since(start).Seconds())

	return parsePapers(body)
}

// doGet injects the common NCBI parameters before delegating to the base
// client.
func (c *Client) doGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	params.Set("tool", c.tool)
	params.Set("email", c.email)
	return c.base.DoGet(ctx, endpoint, params)
}

// rerank scores papers against the query and reorders them. Scores stay nil
// when the query is empty.
func rerank(query string, papers []record.Paper) []record.Paper {
	docs := make([]string, len(papers))
	for i, p := range papers {
		docs[i] = p.Title + " " + strings.Join(p.Keywords, " ") + " " + abstractText(p.Abstract)
	}
	scores := rank.Scores(query, docs)
	if scores == nil {
		return papers
	}
	for i := range papers {
		s := scores[i]
		papers[i].Score = &s
	}
	ordered := make([]record.Paper, len(papers))
	for rankPos, idx := range rank.Order(scores) {
		ordered[rankPos] = papers[idx]
	}
	return ordered
}

func abstractText(abstract map[string]string) string {
	if len(abstract) == 0 {
		return ""
	}
	labels := make([]string, 0, len(abstract))
	for label := range abstract {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, abstract[label])
	}
	return strings.Join(parts, " ")
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

func yearBound(year, def int) string {
	if year <= 0 {
		year = def
	}
	return strconv.Itoa(year)
}
