package rank

import (
	"testing"
)

func TestScores_EmptyQueryReturnsNil(t *testing.T) {
	if got := Scores("", []string{"some document"}); got != nil {
		t.Errorf("expected nil for empty query, got %v", got)
	}
	if got := Scores("   ", []string{"some document"}); got != nil {
		t.Errorf("expected nil for whitespace query, got %v", got)
	}
}

func TestScores_AllEmptyDocsReturnsNil(t *testing.T) {
	if got := Scores("aspirin", []string{"", "  ", ""}); got != nil {
		t.Errorf("expected nil when no doc has content, got %v", got)
	}
}

func TestScores_RelevantDocScoresHigher(t *testing.T) {
	docs := []string{
		"weather patterns in northern europe",
		"aspirin reduces cardiovascular risk in aspirin trials",
		"gardening tips for spring",
	}
	scores := Scores("aspirin cardiovascular", docs)
	if len(scores) != len(docs) {
		t.Fatalf("expected %d scores, got %d", len(docs), len(scores))
	}
	if scores[1] <= scores[0] || scores[1] <= scores[2] {
		t.Errorf("relevant doc must outscore irrelevant ones: %v", scores)
	}
}

func TestScores_PositionalBonusDescends(t *testing.T) {
	// No doc matches the query, so BM25 is flat and only the positional
	// bonus remains. It must strictly decrease with provider position.
	docs := []string{"alpha", "beta", "gamma", "delta"}
	scores := Scores("unrelated", docs)
	if len(scores) != len(docs) {
		t.Fatalf("expected %d scores, got %d", len(docs), len(scores))
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] >= scores[i-1] {
			t.Errorf("positional bonus must decrease: scores[%d]=%f >= scores[%d]=%f",
				i, scores[i], i-1, scores[i-1])
		}
	}
	// First position gets the full weight.
	if scores[0] != positionalWeight {
		t.Errorf("expected first score %f, got %f", positionalWeight, scores[0])
	}
}

func TestScores_RelevanceOutweighsPosition(t *testing.T) {
	// The relevant doc is last; a normalized BM25 of 1.0 must beat any
	// positional advantage of the leading docs.
	docs := []string{
		"nothing of interest here",
		"still nothing",
		"metformin glycemic control trial",
	}
	scores := Scores("metformin", docs)
	if scores[2] <= scores[0] {
		t.Errorf("relevant last doc must outrank irrelevant first doc: %v", scores)
	}
}

func TestOrder_DescendingAndStable(t *testing.T) {
	scores := []float64{0.2, 0.9, 0.2, 0.5}
	got := Order(scores)
	want := []int{1, 3, 0, 2}
	if len(got) != len(want) {
		t.Fatalf("expected %d indices, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %d, want %d (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestOrder_Empty(t *testing.T) {
	if got := Order(nil); len(got) != 0 {
		t.Errorf("expected empty order, got %v", got)
	}
}

func TestNormalize_FlatDistributionIsAllZeros(t *testing.T) {
	out := normalize([]float64{3, 3, 3})
	for i, v := range out {
		if v != 0 {
			t.Errorf("flat input must normalize to zeros, got out[%d]=%f", i, v)
		}
	}
}

func TestNormalize_Range(t *testing.T) {
	out := normalize([]float64{1, 3, 5})
	if out[0] != 0 || out[2] != 1 {
		t.Errorf("expected min 0 and max 1, got %v", out)
	}
	if out[1] != 0.5 {
		t.Errorf("expected midpoint 0.5, got %f", out[1])
	}
}
