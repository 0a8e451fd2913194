// Package extract orchestrates structured extraction: one completion call
// per schema section, issued in parallel, assembled into a raw document for
// the validation pipeline.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/domain"
	"github.com/medfuse/medfuse/internal/validate"
)

// Request is one extraction job: free-text source material plus an optional
// subset of schema sections to extract. Empty Sections means all.
type Request struct {
	Document string
	Sections []string
}

// Result is the assembled raw document. Failed lists sections whose
// completion call failed or returned unparseable JSON; their keys are absent
// from Data.
type Result struct {
	Data   map[string]any `json:"data"`
	Failed []string       `json:"failed,omitempty"`
}

// Service runs per-section extraction against a completion provider.
type Service struct {
	completer Completer
	schema    *validate.Schema
	logger    *zap.Logger
}

// New creates an extraction service.
func New(completer Completer, schema *validate.Schema, logger *zap.Logger) *Service {
	return &Service{completer: completer, schema: schema, logger: logger}
}

// Extract issues one completion call per section concurrently and assembles
// the section payloads into a single document. A failed section is recorded
// and skipped rather than failing the whole job; the job errors only when
// every section fails.
func (s *Service) Extract(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Document) == "" {
		return Result{}, fmt.Errorf("%w: document is required", domain.ErrInvalidRequest)
	}

	sections := req.Sections
	if len(sections) == 0 {
		sections = s.schema.Sections()
	}
	if len(sections) == 0 {
		return Result{}, fmt.Errorf("%w: schema has no sections", domain.ErrSchemaUnavailable)
	}

	payloads := make([]map[string]any, len(sections))
	errs := make([]error, len(sections))
	var wg sync.WaitGroup
	for i, name := range sections {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			payloads[i], errs[i] = s.extractSection(ctx, name, req.Document)
		}(i, name)
	}
	wg.Wait()

	res := Result{Data: make(map[string]any, len(sections))}
	for i, name := range sections {
		if errs[i] != nil {
			s.logger.Warn("section extraction failed",
				zap.String("section", name), zap.Error(errs[i]))
			res.Failed = append(res.Failed, name)
			continue
		}
		res.Data[name] = payloads[i]
	}
	if len(res.Data) == 0 {
		return Result{}, fmt.Errorf("all %d sections failed: %w", len(sections), domain.ErrLLMUnavailable)
	}
	sort.Strings(res.Failed)
	return res, nil
}

func (s *Service) extractSection(ctx context.Context, section, document string) (map[string]any, error) {
	out, err := s.completer.Complete(ctx, sectionPrompt(s.schema, section), document, true)
	if err != nil {
		return nil, fmt.Errorf("complete section %s: %w", section, err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		return nil, fmt.Errorf("parse section %s payload: %w", section, err)
	}
	return payload, nil
}

// sectionPrompt builds the system prompt for one section from its schema
// entries: field paths, declared types, and enum constraints.
func sectionPrompt(schema *validate.Schema, section string) string {
	var b strings.Builder
	b.WriteString("You extract structured clinical study data from text.\n")
	fmt.Fprintf(&b, "Return a JSON object holding only the %q fields below.\n", section)
	b.WriteString("Omit fields the text does not support. Do not invent values.\n\nFields:\n")

	for _, def := range schema.SectionFields(section) {
		path := strings.TrimPrefix(def.Path, section+".")
		if path == section {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s", path, def.SourceType)
		if def.IsArray {
			b.WriteString(" array")
		}
		if def.IsEnum {
			fmt.Fprintf(&b, ", one of: %s", strings.Join(schema.EnumValues(def.EnumType), ", "))
		}
		b.WriteString(")\n")
	}
	return b.String()
}
