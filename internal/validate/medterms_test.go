package validate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// vocabStub maps raw terms to canonical spellings; absent terms are unknown.
type vocabStub struct {
	canonical map[string]string
	err       error
	calls     int
}

func (s *vocabStub) Normalize(_ context.Context, term string) (string, bool, error) {
	s.calls++
	if s.err != nil {
		return "", false, s.err
	}
	c, ok := s.canonical[term]
	if !ok {
		return term, false, nil
	}
	return c, true, nil
}

func termSchema() *Schema {
	return NewSchema([]FieldDef{
		{Path: "doc.conditions", SourceType: TypeText, IsArray: true},
		{Path: "doc.meshHeadings", SourceType: TypeText, IsArray: true},
		{Path: "doc.notes", SourceType: TypeText},
	}, nil)
}

func TestMedicalTerms_SpellingNormalizedInPlace(t *testing.T) {
	vocab := &vocabStub{canonical: map[string]string{
		"diabetis": "Diabetes Mellitus",
		"asthma":   "asthma",
	}}
	v := New(termSchema(), Config{MedicalTerms: true}, vocab, zap.NewNop())

	res := v.Validate(context.Background(), map[string]any{
		"doc": map[string]any{
			"conditions": []any{"diabetis", "asthma"},
		},
	})

	assert.Equal(t, StatusPartial, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "term spelling normalized", res.Warnings[0].Message)
	assert.Equal(t, "Diabetes Mellitus", res.Warnings[0].Expected)

	conditions := res.CleanedData["doc"].(map[string]any)["conditions"].([]any)
	assert.Equal(t, "Diabetes Mellitus", conditions[0])
	assert.Equal(t, "asthma", conditions[1])
}

func TestMedicalTerms_UnknownTermWarnsButKeeps(t *testing.T) {
	vocab := &vocabStub{canonical: map[string]string{}}
	v := New(termSchema(), Config{MedicalTerms: true}, vocab, zap.NewNop())

	res := v.Validate(context.Background(), map[string]any{
		"doc": map[string]any{"conditions": []any{"xyzzy"}},
	})

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "term not found in medical vocabulary", res.Warnings[0].Message)
	conditions := res.CleanedData["doc"].(map[string]any)["conditions"].([]any)
	assert.Equal(t, "xyzzy", conditions[0])
}

func TestMedicalTerms_MeshFieldsCheckedByName(t *testing.T) {
	vocab := &vocabStub{canonical: map[string]string{"Neoplasms": "Neoplasms"}}
	v := New(termSchema(), Config{MedicalTerms: true}, vocab, zap.NewNop())

	res := v.Validate(context.Background(), map[string]any{
		"doc": map[string]any{
			"meshHeadings": []any{"Neoplasms"},
			"notes":        "not a term field",
		},
	})

	assert.Equal(t, StatusPassed, res.Status)
	// Only the mesh field was looked up, never the free-text note.
	assert.Equal(t, 1, vocab.calls)
}

func TestMedicalTerms_LookupFailureDisablesPass(t *testing.T) {
	vocab := &vocabStub{err: fmt.Errorf("vocabulary backend down")}
	v := New(termSchema(), Config{MedicalTerms: true}, vocab, zap.NewNop())

	res := v.Validate(context.Background(), map[string]any{
		"doc": map[string]any{"conditions": []any{"diabetis", "asthma"}},
	})

	// Primary validation stays intact; the term pass yields no findings.
	assert.Equal(t, StatusPassed, res.Status)
	assert.Empty(t, res.Warnings)
	conditions := res.CleanedData["doc"].(map[string]any)["conditions"].([]any)
	assert.Equal(t, "diabetis", conditions[0])
}

func TestMedicalTerms_DisabledWithoutLookup(t *testing.T) {
	v := New(termSchema(), Config{MedicalTerms: true}, nil, zap.NewNop())

	res := v.Validate(context.Background(), map[string]any{
		"doc": map[string]any{"conditions": []any{"anything"}},
	})
	assert.Equal(t, StatusPassed, res.Status)
}
