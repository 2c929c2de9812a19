// Package oracle is the boundary to the external judgment service. The core
// never branches on a concrete backend: everything goes through the
// two-method Oracle interface.
package oracle

import (
	"context"
	"errors"
)

// ErrUnavailable wraps any transport or protocol failure talking to the
// judgment service. Callers abort the current operation on it; retry policy
// belongs to them.
var ErrUnavailable = errors.New("oracle unavailable")

// Oracle is the narrow judgment contract: text completion plus optional
// embeddings. Embed returns (nil, nil) when the backend has no embedding
// support, which callers treat as "capability absent", not as an error.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
