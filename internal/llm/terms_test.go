package llm

import (
	"context"
	"fmt"
	"testing"
)

type completerStub struct {
	out string
	err error
}

func (c completerStub) Complete(_ context.Context, _, _ string, jsonMode bool) (string, error) {
	if !jsonMode {
		return "", fmt.Errorf("term lookup must request JSON mode")
	}
	return c.out, c.err
}

func TestNormalize_KnownTerm(t *testing.T) {
	n := NewTermNormalizer(completerStub{out: `{"canonical":"Diabetes Mellitus","known":true}`})

	canonical, known, err := n.Normalize(context.Background(), "diabetis")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !known {
		t.Error("expected known term")
	}
	if canonical != "Diabetes Mellitus" {
		t.Errorf("unexpected canonical spelling: %s", canonical)
	}
}

func TestNormalize_UnknownTerm(t *testing.T) {
	n := NewTermNormalizer(completerStub{out: `{"canonical":"","known":false}`})

	canonical, known, err := n.Normalize(context.Background(), "xyzzy")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if known {
		t.Error("expected unknown term")
	}
	// Empty canonical falls back to the input.
	if canonical != "xyzzy" {
		t.Errorf("expected input preserved, got %s", canonical)
	}
}

func TestNormalize_CompleterError(t *testing.T) {
	n := NewTermNormalizer(completerStub{err: fmt.Errorf("model offline")})
	if _, _, err := n.Normalize(context.Background(), "asthma"); err == nil {
		t.Error("expected error propagated")
	}
}

func TestNormalize_UnparseableReply(t *testing.T) {
	n := NewTermNormalizer(completerStub{out: "sorry, I cannot help"})
	if _, _, err := n.Normalize(context.Background(), "asthma"); err == nil {
		t.Error("expected parse error")
	}
}
