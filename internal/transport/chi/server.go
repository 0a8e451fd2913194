// Package chi is the HTTP transport: hand-written handlers over the chi
// router, translating the domain error taxonomy into status codes.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/classify"
	"github.com/medfuse/medfuse/internal/domain"
	"github.com/medfuse/medfuse/internal/extract"
	"github.com/medfuse/medfuse/internal/metrics"
	healthuc "github.com/medfuse/medfuse/internal/usecase/health"
	qauc "github.com/medfuse/medfuse/internal/usecase/qa"
	searchuc "github.com/medfuse/medfuse/internal/usecase/search"
	"github.com/medfuse/medfuse/internal/validate"
)

// Error response codes.
const (
	codeBadRequest        = "bad_request"
	codeNotFound          = "not_found"
	codeRateLimited       = "rate_limited"
	codeProviderError     = "provider_error"
	codeLLMError          = "llm_error"
	codeSchemaUnavailable = "schema_unavailable"
	codeInternalError     = "internal_error"
)

// errorResponse is the JSON error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server routes HTTP requests to the usecase services.
type Server struct {
	search        *searchuc.Service
	extract       *extract.Service
	validator     *validate.Validator
	qa            *qauc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. extract, validator, and qa can be
// nil when the completion provider is not configured; their routes then
// return 501.
func NewServer(
	search *searchuc.Service,
	ext *extract.Service,
	validator *validate.Validator,
	qa *qauc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:    search,
		extract:   ext,
		validator: validator,
		qa:        qa,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrLLMUnavailable, http.StatusBadGateway, codeLLMError),
		sentinelHandler(domain.ErrSchemaUnavailable, http.StatusServiceUnavailable, codeSchemaUnavailable),
	}
	return s
}

// Routes builds the route tree. Middleware is attached by the caller.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Post("/search/refine", s.Refine)
		r.Get("/papers/{pmid}", s.GetPaper)
		r.Get("/trials/{nctid}", s.GetTrial)
		r.Post("/extract", s.Extract)
		r.Post("/validate", s.Validate)
		r.Post("/qa", s.Answer)
		r.Get("/cache", s.CacheInfo)
		r.Delete("/cache", s.ClearCache)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type searchRequest struct {
	Query    string `json:"query"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	YearFrom int    `json:"year_from"`
	YearTo   int    `json:"year_to"`
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), searchuc.Request{
		Query:    req.Query,
		Page:     req.Page,
		PageSize: req.PageSize,
		YearFrom: req.YearFrom,
		YearTo:   req.YearTo,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

type refineRequest struct {
	searchRequest
	Filters filterSpec `json:"filters"`
}

type filterSpec struct {
	SourceTypes         []string `json:"source_types,omitempty"`
	StudyTypes          []string `json:"study_types,omitempty"`
	Phases              []string `json:"phases,omitempty"`
	Allocations         []string `json:"allocations,omitempty"`
	ObservationalModels []string `json:"observational_models,omitempty"`
	YearFrom            int      `json:"year_from,omitempty"`
	YearTo              int      `json:"year_to,omitempty"`
}

// Refine handles POST /api/v1/search/refine.
func (s *Server) Refine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := s.search.Refine(r.Context(), searchuc.RefineRequest{
		Request: searchuc.Request{
			Query:    req.Query,
			Page:     req.Page,
			PageSize: req.PageSize,
			YearFrom: req.YearFrom,
			YearTo:   req.YearTo,
		},
		Filters: classify.FilterSpec{
			SourceTypes:         req.Filters.SourceTypes,
			StudyTypes:          req.Filters.StudyTypes,
			Phases:              req.Filters.Phases,
			Allocations:         req.Filters.Allocations,
			ObservationalModels: req.Filters.ObservationalModels,
			YearFrom:            req.Filters.YearFrom,
			YearTo:              req.Filters.YearTo,
		},
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetPaper handles GET /api/v1/papers/{pmid}.
func (s *Server) GetPaper(w http.ResponseWriter, r *http.Request) {
	paper, err := s.search.Paper(r.Context(), chi.URLParam(r, "pmid"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

// GetTrial handles GET /api/v1/trials/{nctid}.
func (s *Server) GetTrial(w http.ResponseWriter, r *http.Request) {
	trial, err := s.search.Trial(r.Context(), chi.URLParam(r, "nctid"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trial)
}

type extractRequest struct {
	Document string   `json:"document"`
	Sections []string `json:"sections,omitempty"`
}

type extractResponse struct {
	Raw        map[string]any  `json:"raw"`
	Failed     []string        `json:"failed_sections,omitempty"`
	Validation validate.Result `json:"validation"`
}

// Extract handles POST /api/v1/extract: section extraction followed by
// schema validation of the assembled document.
func (s *Server) Extract(w http.ResponseWriter, r *http.Request) {
	if s.extract == nil {
		writeError(w, http.StatusNotImplemented, codeLLMError, "extraction is not configured")
		return
	}

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := s.extract.Extract(r.Context(), extract.Request{
		Document: req.Document,
		Sections: req.Sections,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	vres := s.validator.Validate(r.Context(), res.Data)
	metrics.ValidationsTotal.WithLabelValues(string(vres.Status)).Inc()

	writeJSON(w, http.StatusOK, extractResponse{
		Raw:        res.Data,
		Failed:     res.Failed,
		Validation: vres,
	})
}

type validateRequest struct {
	Data map[string]any `json:"data"`
}

// Validate handles POST /api/v1/validate.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	if s.validator == nil {
		writeError(w, http.StatusNotImplemented, codeSchemaUnavailable, "validation is not configured")
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Data) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "data is required")
		return
	}

	res := s.validator.Validate(r.Context(), req.Data)
	metrics.ValidationsTotal.WithLabelValues(string(res.Status)).Inc()
	writeJSON(w, http.StatusOK, res)
}

// Answer handles POST /api/v1/qa.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	if s.qa == nil {
		writeError(w, http.StatusNotImplemented, codeLLMError, "question answering is not configured")
		return
	}

	var req qauc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	answer, err := s.qa.Answer(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// CacheInfo handles GET /api/v1/cache.
func (s *Server) CacheInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.search.CacheInfo(r.Context()))
}

// ClearCache handles DELETE /api/v1/cache. The optional pattern query
// parameter is a glob over the hashed key suffix.
func (s *Server) ClearCache(w http.ResponseWriter, r *http.Request) {
	count, err := s.search.ClearCache(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": count})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrNotFound,
		domain.ErrRateLimited,
		domain.ErrProviderUnavailable,
		domain.ErrLLMUnavailable,
		domain.ErrSchemaUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
