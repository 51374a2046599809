package domain

import "errors"

var (
	// ErrMissingAPIKey signals an absent OpenAI credential.
	ErrMissingAPIKey = errors.New("api key not configured")
	// ErrIndexUnavailable signals missing or unreadable index artifacts.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrEmbeddingProvider signals an embedding endpoint failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrCompletionProvider signals a chat-completion endpoint failure.
	ErrCompletionProvider = errors.New("completion provider error")
	// ErrProtocol signals an unexpected remote response shape.
	ErrProtocol = errors.New("unexpected provider response")
	// ErrDegenerateVector signals a zero-norm query embedding.
	ErrDegenerateVector = errors.New("query embedding has zero norm")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
