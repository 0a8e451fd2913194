package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/domain"
)

type completerMock struct {
	fn func(ctx context.Context, system, user string, jsonMode bool) (string, error)
}

func (m *completerMock) Complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	return m.fn(ctx, system, user, jsonMode)
}

func TestAnswer(t *testing.T) {
	var gotUser string
	var gotJSONMode bool
	s := New(&completerMock{fn: func(_ context.Context, _, user string, jsonMode bool) (string, error) {
		gotUser = user
		gotJSONMode = jsonMode
		return "Aspirin reduces risk [1].", nil
	}}, zap.NewNop())

	answer, err := s.Answer(context.Background(), Request{
		Question: "Does aspirin help?",
		Evidence: []string{"Aspirin reduced events by 20%.", "No effect on mortality."},
	})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answer != "Aspirin reduces risk [1]." {
		t.Errorf("unexpected answer: %s", answer)
	}
	if gotJSONMode {
		t.Error("qa must use free-text completions")
	}
	for _, want := range []string{"[1] Aspirin reduced", "[2] No effect", "Question: Does aspirin help?"} {
		if !strings.Contains(gotUser, want) {
			t.Errorf("prompt missing %q:\n%s", want, gotUser)
		}
	}
}

func TestAnswer_NoEvidence(t *testing.T) {
	s := New(&completerMock{fn: func(_ context.Context, _, user string, _ bool) (string, error) {
		if !strings.HasPrefix(user, "Question: ") {
			t.Errorf("expected bare question prompt, got %q", user)
		}
		return "ok", nil
	}}, zap.NewNop())

	if _, err := s.Answer(context.Background(), Request{Question: "why"}); err != nil {
		t.Fatalf("answer: %v", err)
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	s := New(&completerMock{}, zap.NewNop())
	_, err := s.Answer(context.Background(), Request{Question: " "})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestAnswer_CompleterError(t *testing.T) {
	s := New(&completerMock{fn: func(context.Context, string, string, bool) (string, error) {
		return "", fmt.Errorf("%w: model offline", domain.ErrLLMUnavailable)
	}}, zap.NewNop())

	_, err := s.Answer(context.Background(), Request{Question: "why"})
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Errorf("expected ErrLLMUnavailable, got %v", err)
	}
}
