package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

const termSystemPrompt = `You are a medical vocabulary checker. Given a term,
reply with a JSON object {"canonical": "<preferred spelling>", "known": <bool>}.
known is true only when the term is a recognized medical concept (condition,
intervention, or MeSH heading). canonical is the preferred spelling, or the
input unchanged when known is false.`

// TermNormalizer validates medical terms through the completion API. It
// satisfies the validation pipeline's vocabulary contract.
type TermNormalizer struct {
	completer Completer
}

// NewTermNormalizer creates a completion-backed term lookup.
func NewTermNormalizer(completer Completer) *TermNormalizer {
	return &TermNormalizer{completer: completer}
}

type termReply struct {
	Canonical string `json:"canonical"`
	Known     bool   `json:"known"`
}

// Normalize returns the canonical spelling of a term and whether it is a
// known medical concept.
func (n *TermNormalizer) Normalize(ctx context.Context, term string) (string, bool, error) {
	out, err := n.completer.Complete(ctx, termSystemPrompt, term, true)
	if err != nil {
		return "", false, fmt.Errorf("normalize term: %w", err)
	}

	var reply termReply
	if err := json.Unmarshal([]byte(out), &reply); err != nil {
		return "", false, fmt.Errorf("parse term reply: %w", err)
	}
	if reply.Canonical == "" {
		reply.Canonical = term
	}
	return reply.Canonical, reply.Known, nil
}
