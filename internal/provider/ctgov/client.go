// Package ctgov is the ClinicalTrials.gov v2 API source provider.
package ctgov

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/domain"
	"github.com/medfuse/medfuse/internal/domain/record"
	"github.com/medfuse/medfuse/internal/metrics"
	"github.com/medfuse/medfuse/internal/provider"
	"github.com/medfuse/medfuse/internal/rank"
)

const (
	// DefaultBaseURL is the ClinicalTrials.gov v2 API base URL.
	DefaultBaseURL = "https://clinicaltrials.gov/api/v2"
	// DefaultRPS is a polite request budget; the API publishes no hard
	// limit but throttles aggressive clients.
	DefaultRPS = 3

	// DefaultMaxFetch caps studies returned per search.
	DefaultMaxFetch = 100
)

// requestedFields limits study payloads to the modules we map.
var requestedFields = strings.Join([]string{
	"IdentificationModule",
	"StatusModule",
	"DescriptionModule",
	"DesignModule",
	"SponsorCollaboratorsModule",
	"ConditionsModule",
	"ContactsLocationsModule",
	"ReferencesModule",
}, "|")

// Config holds ClinicalTrials.gov provider settings.
type Config struct {
	BaseURL  string
	RPS      float64
	Timeout  time.Duration
	MaxFetch int
	Logger   *zap.Logger
}

// Client queries the ClinicalTrials.gov v2 studies API.
type Client struct {
	base     *provider.BaseClient
	maxFetch int
	logger   *zap.Logger
}

// NewClient creates a ClinicalTrials.gov client.
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = DefaultRPS
	}
	maxFetch := cfg.MaxFetch
	if maxFetch <= 0 {
		maxFetch = DefaultMaxFetch
	}
	return &Client{
		base:     provider.NewBaseClient(baseURL, rps, cfg.Timeout),
		maxFetch: maxFetch,
		logger:   cfg.Logger,
	}
}

type studiesResponse struct {
	TotalCount    int     `json:"totalCount"`
	NextPageToken string  `json:"nextPageToken"`
	Studies       []study `json:"studies"`
}

type study struct {
	ProtocolSection protocolSection `json:"protocolSection"`
}

type protocolSection struct {
	Identification identificationModule `json:"identificationModule"`
	Status         statusModule         `json:"statusModule"`
	Description    descriptionModule    `json:"descriptionModule"`
	Design         designModule         `json:"designModule"`
	Sponsor        sponsorModule        `json:"sponsorCollaboratorsModule"`
	Conditions     conditionsModule     `json:"conditionsModule"`
	Locations      locationsModule      `json:"contactsLocationsModule"`
	References     referencesModule     `json:"referencesModule"`
}

type identificationModule struct {
	NCTID         string `json:"nctId"`
	BriefTitle    string `json:"briefTitle"`
	OfficialTitle string `json:"officialTitle"`
}

type statusModule struct {
	OverallStatus         string     `json:"overallStatus"`
	StartDate             dateStruct `json:"startDateStruct"`
	CompletionDate        dateStruct `json:"completionDateStruct"`
	PrimaryCompletionDate dateStruct `json:"primaryCompletionDateStruct"`
}

type dateStruct struct {
	Date string `json:"date"`
}

type descriptionModule struct {
	BriefSummary string `json:"briefSummary"`
}

type designModule struct {
	StudyType  string         `json:"studyType"`
	Phases     []string       `json:"phases"`
	DesignInfo designInfo     `json:"designInfo"`
	Enrollment enrollmentInfo `json:"enrollmentInfo"`
}

type designInfo struct {
	Allocation         string `json:"allocation"`
	ObservationalModel string `json:"observationalModel"`
}

type enrollmentInfo struct {
	Count int `json:"count"`
}

type sponsorModule struct {
	LeadSponsor leadSponsor `json:"leadSponsor"`
}

type leadSponsor struct {
	Name string `json:"name"`
}

type conditionsModule struct {
	Conditions []string `json:"conditions"`
}

type locationsModule struct {
	Locations []location `json:"locations"`
}

type location struct {
	Country string `json:"country"`
}

type referencesModule struct {
	References []reference `json:"references"`
}

type reference struct {
	PMID string `json:"pmid"`
	Type string `json:"type"`
}

// Search queries the studies endpoint and reranks the trials against the
// query term. An empty upstream result is not an error.
func (c *Client) Search(ctx context.Context, q provider.Query) (provider.Trials, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("query.term", q.Term)
	params.Set("countTotal", "true")
	params.Set("fields", requestedFields)
	limit := q.PageSize
	if limit <= 0 || limit > c.maxFetch {
		limit = c.maxFetch
	}
	params.Set("pageSize", strconv.Itoa(limit))
	if q.PageToken != "" {
		params.Set("pageToken", q.PageToken)
	}

	body, err := c.base.DoGet(ctx, "studies", params)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("ctgov", "search", "error").Inc()
		return provider.Trials{}, fmt.Errorf("ctgov search: %w", err)
	}

	var resp studiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("ctgov", "search", "error").Inc()
		return provider.Trials{}, fmt.Errorf("parsing studies response: %w", err)
	}

	trials := make([]record.Trial, 0, len(resp.Studies))
	for _, st := range resp.Studies {
		trials = append(trials, convertTrial(st))
	}

	out := provider.Trials{
		Trials:        rerank(q.Term, trials),
		Total:         resp.TotalCount,
		NextPageToken: resp.NextPageToken,
		AppliedQuery:  q.Term,
	}
	metrics.ProviderRequestsTotal.WithLabelValues("ctgov", "search", "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues("ctgov", "search").Observe(time.Since(start).Seconds())
	return out, nil
}

// GetTrial fetches one study by nctid.
func (c *Client) GetTrial(ctx context.Context, nctid string) (*record.Trial, error) {
	if nctid == "" {
		return nil, fmt.Errorf("%w: nctid is required", domain.ErrInvalidRequest)
	}

	start := time.Now()
	body, err := c.base.DoGet(ctx, "studies/"+url.PathEscape(nctid), url.Values{})
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("ctgov", "detail", "error").Inc()
		return nil, fmt.Errorf("ctgov detail: %w", err)
	}
	metrics.ProviderRequestsTotal.WithLabelValues("ctgov", "detail", "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues("ctgov", "detail").Observe(time.Since(start).Seconds())

	var st study
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("parsing study response: %w", err)
	}
	if st.ProtocolSection.Identification.NCTID == "" {
		return nil, fmt.Errorf("%w: nctid %s", domain.ErrNotFound, nctid)
	}
	t := convertTrial(st)
	return &t, nil
}

func convertTrial(st study) record.Trial {
	ps := st.ProtocolSection

	t := record.Trial{
		NCTID:                 ps.Identification.NCTID,
		Title:                 ps.Identification.BriefTitle,
		OfficialTitle:         ps.Identification.OfficialTitle,
		Status:                ps.Status.OverallStatus,
		BriefSummary:          ps.Description.BriefSummary,
		Phase:                 strings.Join(ps.Design.Phases, ", "),
		Sponsor:               ps.Sponsor.LeadSponsor.Name,
		Enrollment:            ps.Design.Enrollment.Count,
		Conditions:            ps.Conditions.Conditions,
		StudyType:             ps.Design.StudyType,
		DesignAllocation:      ps.Design.DesignInfo.Allocation,
		ObservationalModel:    ps.Design.DesignInfo.ObservationalModel,
		CompletionDate:        ps.Status.CompletionDate.Date,
		PrimaryCompletionDate: ps.Status.PrimaryCompletionDate.Date,
		StartDate:             ps.Status.StartDate.Date,
	}

	seen := make(map[string]struct{})
	for _, loc := range ps.Locations.Locations {
		if loc.Country == "" {
			continue
		}
		if _, dup := seen[loc.Country]; dup {
			continue
		}
		seen[loc.Country] = struct{}{}
		t.Countries = append(t.Countries, loc.Country)
	}

	for _, ref := range ps.References.References {
		if ref.PMID != "" {
			t.PMIDs = append(t.PMIDs, ref.PMID)
		}
	}

	return t
}

// rerank scores trials against the query and reorders them.
func rerank(query string, trials []record.Trial) []record.Trial {
	docs := make([]string, len(trials))
	for i, t := range trials {
		docs[i] = t.Title + " " + strings.Join(t.Conditions, " ") + " " + t.BriefSummary
	}
	scores := rank.Scores(query, docs)
	if scores == nil {
		return trials
	}
	for i := range trials {
		trials[i].Score = scores[i]
	}
	ordered := make([]record.Trial, len(trials))
	for rankPos, idx := range rank.Order(scores) {
		ordered[rankPos] = trials[idx]
	}
	return ordered
}
