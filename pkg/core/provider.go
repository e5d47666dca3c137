package core

import (
	"context"

	"github.com/vango-go/vai-navigator/pkg/core/types"
)

// ModelSource streams one agent pass from a language model.
type ModelSource interface {
	// Name returns the backend identifier (e.g., "openai", "gemini").
	Name() string

	// StreamPass starts a streaming completion for req.
	StreamPass(ctx context.Context, req *PassRequest) (UnitStream, error)
}

// UnitStream is an iterator over the units of one pass.
type UnitStream interface {
	// Next returns the next unit. Returns io.EOF when done.
	Next() (types.Unit, error)

	// Close releases resources. Cancel the context given to StreamPass to
	// unblock a pending Next.
	Close() error
}

// PassRequest is everything a model needs for one pass.
type PassRequest struct {
	System   string
	Messages []types.Message
	Tools    []types.ToolSpec
}
