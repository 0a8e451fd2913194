package validate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// TermLookup resolves a medical term against an external vocabulary.
// Normalize returns the canonical spelling and whether the term is known.
type TermLookup interface {
	Normalize(ctx context.Context, term string) (string, bool, error)
}

// medicalTermFields are the leaf names checked by the vocabulary pass, plus
// any field whose name contains "mesh".
var medicalTermFields = map[string]struct{}{
	"conditions":    {},
	"interventions": {},
	"keywords":      {},
}

// checkMedicalTerms walks the cleaned document and validates designated
// term fields against the vocabulary, normalizing spelling in place. A
// lookup failure disables the whole pass: the primary schema validation
// must not depend on the vocabulary backend.
func (v *Validator) checkMedicalTerms(ctx context.Context, doc map[string]any) []FieldError {
	var findings []FieldError
	disabled := false

	var walkTerms func(path string, val any)
	walkTerms = func(path string, val any) {
		if disabled {
			return
		}
		switch tv := val.(type) {
		case map[string]any:
			for k, child := range tv {
				childPath := path + "." + k
				if isMedicalTermField(k) {
					tv[k] = v.normalizeTermValue(ctx, childPath, child, &findings, &disabled)
					continue
				}
				walkTerms(childPath, child)
			}
		case []any:
			for i, el := range tv {
				walkTerms(fmt.Sprintf("%s[%d]", path, i), el)
			}
		}
	}

	for name, section := range doc {
		walkTerms(name, section)
	}
	if disabled {
		return nil
	}
	return findings
}

func (v *Validator) normalizeTermValue(
	ctx context.Context, path string, val any, findings *[]FieldError, disabled *bool,
) any {
	switch tv := val.(type) {
	case string:
		return v.normalizeTerm(ctx, path, tv, findings, disabled)
	case []any:
		for i, el := range tv {
			if s, ok := el.(string); ok {
				tv[i] = v.normalizeTerm(ctx, fmt.Sprintf("%s[%d]", path, i), s, findings, disabled)
			}
		}
		return tv
	}
	return val
}

func (v *Validator) normalizeTerm(
	ctx context.Context, path, term string, findings *[]FieldError, disabled *bool,
) string {
	if *disabled || term == "" {
		return term
	}
	canonical, known, err := v.terms.Normalize(ctx, term)
	if err != nil {
		v.logger.Warn("term lookup unavailable, disabling medical-term pass", zap.Error(err))
		*disabled = true
		return term
	}
	if !known {
		*findings = append(*findings, FieldError{
			FieldPath: path,
			Message:   "term not found in medical vocabulary",
			Level:     LevelWarning,
			Actual:    term,
		})
		return term
	}
	if canonical != term {
		*findings = append(*findings, FieldError{
			FieldPath: path,
			Message:   "term spelling normalized",
			Level:     LevelWarning,
			Expected:  canonical,
			Actual:    term,
		})
		return canonical
	}
	return term
}

func isMedicalTermField(name string) bool {
	if _, ok := medicalTermFields[name]; ok {
		return true
	}
	return strings.Contains(strings.ToLower(name), "mesh")
}
