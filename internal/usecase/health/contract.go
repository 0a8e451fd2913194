package health

import "context"

// CachePinger checks result cache backend connectivity.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// LLMChecker checks completion API availability.
type LLMChecker interface {
	HealthCheck(ctx context.Context) error
}
