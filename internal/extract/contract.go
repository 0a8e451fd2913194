package extract

import "context"

// Completer is the completion dependency for section extraction.
type Completer interface {
	Complete(ctx context.Context, system, user string, jsonMode bool) (string, error)
}
