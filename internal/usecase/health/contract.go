package health

import (
	"context"

	"github.com/kaabil/faqbot/internal/index"
)

// IndexChecker reports whether the search index can be served.
type IndexChecker interface {
	Get() (*index.Store, error)
}

// TurnsPinger checks turn log availability.
type TurnsPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks embedding cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
