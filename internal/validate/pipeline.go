package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls auto-correction policies.
type Config struct {
	// AutoFix wraps scalars into singleton arrays where an array is
	// declared and attempts case-insensitive/substring enum correction.
	AutoFix bool
	// AutoTruncate cuts oversized strings to MaxChars instead of
	// rejecting them.
	AutoTruncate bool
	// AllowUnknownFields preserves fields with no schema entry instead of
	// dropping them.
	AllowUnknownFields bool
	// MedicalTerms enables the secondary vocabulary pass.
	MedicalTerms bool
}

// Validator validates extracted documents against a loaded schema.
// Immutable after construction; safe for concurrent use.
type Validator struct {
	schema *Schema
	cfg    Config
	terms  TermLookup
	logger *zap.Logger
}

// New creates a validator. terms may be nil, which disables the
// medical-term pass regardless of config.
func New(schema *Schema, cfg Config, terms TermLookup, logger *zap.Logger) *Validator {
	return &Validator{schema: schema, cfg: cfg, terms: terms, logger: logger}
}

// Validate checks a document and returns the cleaned tree plus the finding
// report. Top-level sections are validated concurrently; a panic anywhere in
// the pipeline degrades to a single critical system-error entry instead of
// propagating.
func (v *Validator) Validate(ctx context.Context, doc map[string]any) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("validation pipeline panic", zap.Any("panic", r))
			res = Result{
				Status: StatusFailed,
				Errors: []FieldError{{
					FieldPath: "",
					Message:   fmt.Sprintf("validation system error: %v", r),
					Level:     LevelCritical,
				}},
				CleanedData: map[string]any{},
			}
		}
		res.Elapsed = time.Since(start)
	}()

	sections := make([]string, 0, len(doc))
	for name := range doc {
		sections = append(sections, name)
	}
	sort.Strings(sections)

	states := make([]*sectionState, len(sections))
	var wg sync.WaitGroup
	for i, name := range sections {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			st := newSectionState()
			states[i] = st
			defer func() {
				if r := recover(); r != nil {
					st.errors = append(st.errors, FieldError{
						FieldPath: name,
						Message:   fmt.Sprintf("section validation system error: %v", r),
						Level:     LevelCritical,
					})
					st.cleaned = nil
				}
			}()
			st.cleaned, st.keep = v.walk(st, name, doc[name])
		}(i, name)
	}
	wg.Wait()

	res = Result{CleanedData: make(map[string]any, len(sections))}
	for i, name := range sections {
		st := states[i]
		if st == nil {
			continue
		}
		if st.keep {
			res.CleanedData[name] = st.cleaned
		}
		res.Errors = append(res.Errors, st.errors...)
		res.Warnings = append(res.Warnings, st.warnings...)
		res.RemovedFields = append(res.RemovedFields, st.removed...)
		res.Stats.TotalFields += st.stats.TotalFields
		res.Stats.ValidFields += st.stats.ValidFields
		res.Stats.InvalidFields += st.stats.InvalidFields
		res.Stats.EnumViolations += st.stats.EnumViolations
		res.Stats.StructureViolations += st.stats.StructureViolations
	}

	if v.cfg.MedicalTerms && v.terms != nil {
		findings := v.checkMedicalTerms(ctx, res.CleanedData)
		res.Warnings = append(res.Warnings, findings...)
	}

	res.Status = resolveStatus(res.Errors, res.Warnings)
	return res
}

// sectionState accumulates findings for one top-level section. Sections
// share no mutable state, so the parallel walk needs no locking.
type sectionState struct {
	cleaned  any
	keep     bool
	errors   []FieldError
	warnings []FieldError
	removed  []string
	stats    Statistics
}

func newSectionState() *sectionState {
	return &sectionState{}
}

// walk validates a value depth-first, preserving document structure in the
// cleaned output. Returns the cleaned value and whether to keep it.
func (v *Validator) walk(st *sectionState, path string, val any) (any, bool) {
	switch tv := val.(type) {
	case map[string]any:
		cleaned := make(map[string]any, len(tv))
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child, keep := v.walk(st, path+"."+k, tv[k])
			if keep {
				cleaned[k] = child
			}
		}
		return cleaned, true
	case []any:
		if isObjectArray(tv) {
			cleaned := make([]any, 0, len(tv))
			for i, el := range tv {
				child, keep := v.walk(st, fmt.Sprintf("%s[%d]", path, i), el)
				if keep {
					cleaned = append(cleaned, child)
				}
			}
			return cleaned, true
		}
		return v.validateLeaf(st, path, tv)
	default:
		return v.validateLeaf(st, path, val)
	}
}

// validateLeaf checks one scalar or scalar-array field against its schema
// entry: shape, type, enum membership, and length.
func (v *Validator) validateLeaf(st *sectionState, path string, val any) (any, bool) {
	st.stats.TotalFields++

	def, ok := v.schema.Lookup(stripIndices(path))
	if !ok {
		if v.cfg.AllowUnknownFields {
			st.stats.ValidFields++
			return val, true
		}
		st.warnings = append(st.warnings, FieldError{
			FieldPath: path,
			Message:   "unknown field not present in schema, removed",
			Level:     LevelWarning,
		})
		st.removed = append(st.removed, path)
		st.stats.InvalidFields++
		return nil, false
	}

	// LLM output routinely carries JSON nulls; treat a null leaf as an
	// absent field, not a type mismatch.
	if val == nil {
		return v.dropNull(st, path, def)
	}

	// Shape check: array declared vs scalar value and vice versa.
	arr, isArr := val.([]any)
	switch {
	case def.IsArray && !isArr:
		if !v.cfg.AutoFix {
			return v.structureError(st, path, "array", typeName(val))
		}
		st.warnings = append(st.warnings, FieldError{
			FieldPath: path,
			Message:   "scalar value wrapped into singleton array",
			Level:     LevelWarning,
			Expected:  "array",
			Actual:    typeName(val),
		})
		arr = []any{val}
		isArr = true
	case !def.IsArray && isArr:
		return v.structureError(st, path, string(def.SourceType), "array")
	}

	if isArr {
		cleaned := make([]any, 0, len(arr))
		for _, el := range arr {
			cv, keep := v.checkScalar(st, path, def, el)
			if keep {
				cleaned = append(cleaned, cv)
			}
		}
		if len(cleaned) == 0 && len(arr) > 0 {
			st.removed = append(st.removed, path)
			return nil, false
		}
		st.stats.ValidFields++
		return cleaned, true
	}

	cv, keep := v.checkScalar(st, path, def, val)
	if !keep {
		st.removed = append(st.removed, path)
		return nil, false
	}
	st.stats.ValidFields++
	return cv, true
}

// checkScalar validates one scalar against type, enum, and length rules.
// Findings are recorded on st; the bool reports whether to keep the value.
func (v *Validator) checkScalar(st *sectionState, path string, def FieldDef, val any) (any, bool) {
	if val == nil {
		return v.dropNull(st, path, def)
	}
	switch def.SourceType {
	case TypeBoolean:
		if _, ok := val.(bool); !ok {
			_, _ = v.structureError(st, path, "boolean", typeName(val))
			return nil, false
		}
		return val, true
	case TypeText, TypeDate:
		s, ok := val.(string)
		if !ok {
			_, _ = v.structureError(st, path, "string", typeName(val))
			return nil, false
		}
		if def.IsEnum {
			return v.checkEnum(st, path, def, s)
		}
		return v.checkLength(st, path, def, s)
	case TypeStruct:
		// A struct entry reached as a leaf means the document put a scalar
		// where an object belongs.
		if _, ok := val.(map[string]any); !ok {
			_, _ = v.structureError(st, path, "object", typeName(val))
			return nil, false
		}
		return val, true
	}
	return val, true
}

// checkEnum verifies enum membership with optional case-insensitive and
// substring auto-correction.
func (v *Validator) checkEnum(st *sectionState, path string, def FieldDef, s string) (any, bool) {
	allowed := v.schema.EnumValues(def.EnumType)
	for _, a := range allowed {
		if s == a {
			return s, true
		}
	}

	if v.cfg.AutoFix {
		if fixed, ok := correctEnum(s, allowed); ok {
			st.warnings = append(st.warnings, FieldError{
				FieldPath: path,
				Message:   "enum value auto-corrected",
				Level:     LevelWarning,
				Expected:  fixed,
				Actual:    s,
			})
			return fixed, true
		}
	}

	st.errors = append(st.errors, FieldError{
		FieldPath: path,
		Message:   fmt.Sprintf("value not in enum %s", def.EnumType),
		Level:     LevelWarning,
		Expected:  strings.Join(allowed, "|"),
		Actual:    s,
	})
	st.stats.EnumViolations++
	st.stats.InvalidFields++
	return nil, false
}

// checkLength enforces MaxChars with optional truncation.
func (v *Validator) checkLength(st *sectionState, path string, def FieldDef, s string) (any, bool) {
	if def.MaxChars <= 0 || len(s) <= def.MaxChars {
		return s, true
	}
	if v.cfg.AutoTruncate {
		st.warnings = append(st.warnings, FieldError{
			FieldPath: path,
			Message:   fmt.Sprintf("string truncated to %d chars", def.MaxChars),
			Level:     LevelWarning,
		})
		return s[:def.MaxChars], true
	}
	st.errors = append(st.errors, FieldError{
		FieldPath: path,
		Message:   fmt.Sprintf("string exceeds %d chars", def.MaxChars),
		Level:     LevelWarning,
		Actual:    fmt.Sprintf("%d chars", len(s)),
	})
	st.stats.InvalidFields++
	return nil, false
}

// structureError records a critical type/shape violation and drops the field.
// dropNull removes a null leaf with a warning instead of failing the section.
func (v *Validator) dropNull(st *sectionState, path string, def FieldDef) (any, bool) {
	st.warnings = append(st.warnings, FieldError{
		FieldPath: path,
		Message:   "null value dropped",
		Level:     LevelWarning,
		Expected:  string(def.SourceType),
		Actual:    "null",
	})
	st.removed = append(st.removed, path)
	return nil, false
}

func (v *Validator) structureError(st *sectionState, path, expected, actual string) (any, bool) {
	st.errors = append(st.errors, FieldError{
		FieldPath: path,
		Message:   "type mismatch",
		Level:     LevelCritical,
		Expected:  expected,
		Actual:    actual,
	})
	st.removed = append(st.removed, path)
	st.stats.StructureViolations++
	st.stats.InvalidFields++
	return nil, false
}

// correctEnum tries case-insensitive, then substring matching against the
// allowed values.
func correctEnum(s string, allowed []string) (string, bool) {
	ls := strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if ls == strings.ToLower(a) {
			return a, true
		}
	}
	for _, a := range allowed {
		la := strings.ToLower(a)
		if strings.Contains(la, ls) || strings.Contains(ls, la) {
			return a, true
		}
	}
	return "", false
}

// isObjectArray reports whether a JSON array holds objects (recursed into)
// rather than scalars (validated as one array leaf).
func isObjectArray(arr []any) bool {
	for _, el := range arr {
		if _, ok := el.(map[string]any); ok {
			return true
		}
	}
	return false
}

func typeName(val any) string {
	switch val.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", val)
}
