// Package qa answers free-text questions about retrieved literature using
// the completion provider, grounded on caller-supplied evidence snippets.
package qa

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/medfuse/medfuse/internal/domain"
)

const systemPrompt = `You answer questions about biomedical literature.
Base your answer only on the provided evidence snippets. When the evidence
is insufficient, say so. Cite snippets by their number, e.g. [2].`

// Completer is the completion dependency.
type Completer interface {
	Complete(ctx context.Context, system, user string, jsonMode bool) (string, error)
}

// Request is one question plus optional evidence snippets (abstracts,
// trial summaries) the answer must be grounded on.
type Request struct {
	Question string   `json:"question"`
	Evidence []string `json:"evidence,omitempty"`
}

// Service answers questions through the completion provider.
type Service struct {
	completer Completer
	logger    *zap.Logger
}

// New creates a qa service.
func New(completer Completer, logger *zap.Logger) *Service {
	return &Service{completer: completer, logger: logger}
}

// Answer returns the completion for one question.
func (s *Service) Answer(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Question) == "" {
		return "", fmt.Errorf("%w: question is required", domain.ErrInvalidRequest)
	}

	var b strings.Builder
	for i, ev := range req.Evidence {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(ev))
	}
	b.WriteString("Question: ")
	b.WriteString(req.Question)

	answer, err := s.completer.Complete(ctx, systemPrompt, b.String(), false)
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	return answer, nil
}
