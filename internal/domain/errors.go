// Package domain holds cross-cutting domain types and sentinel errors.
package domain

import "errors"

var (
	// ErrNotFound signals a missing paper or trial.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrCacheMiss signals an absent or expired cache entry.
	ErrCacheMiss = errors.New("cache entry not found")
	// ErrProviderUnavailable signals an upstream source API failure.
	ErrProviderUnavailable = errors.New("source provider unavailable")
	// ErrRateLimited signals an upstream rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrLLMUnavailable signals a completion provider failure.
	ErrLLMUnavailable = errors.New("llm provider unavailable")
	// ErrSchemaUnavailable signals that the field schema could not be loaded.
	ErrSchemaUnavailable = errors.New("field schema unavailable")
)
