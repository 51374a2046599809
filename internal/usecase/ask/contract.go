package ask

import (
	"context"

	"github.com/kaabil/faqbot/internal/domain"
	"github.com/kaabil/faqbot/internal/usecase/answer"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Selector decides which retrieved candidates are usable evidence.
type Selector interface {
	Select(candidates []domain.Evidence, query string) []domain.Evidence
	Threshold() float64
}

// Composer produces the final reply from the selected evidence.
type Composer interface {
	Compose(ctx context.Context, query string, evidence []domain.Evidence) (answer.Result, error)
}

// TurnLogger persists one conversation turn.
type TurnLogger interface {
	Insert(ctx context.Context, turn domain.Turn) error
}
