package answer

import "context"

// Completer produces a chat completion from a system and user message.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
