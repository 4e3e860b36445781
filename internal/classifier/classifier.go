// Package classifier is the boundary to the external AI classification
// service. The service itself is a black box: one call per image returning a
// predicted subtype, a confidence and optional alternatives.
package classifier

import (
	"context"

	"github.com/huelab/huelab-go/internal/taxonomy"
)

// Alternative is one ranked secondary guess from the service.
type Alternative struct {
	Label      taxonomy.Label `json:"label"`
	Confidence float64        `json:"confidence"`
}

// Result is the parsed outcome of one classification call.
type Result struct {
	Label        taxonomy.Label `json:"label"`
	Confidence   float64        `json:"confidence"` // 0-100
	Alternatives []Alternative  `json:"alternatives,omitempty"`
	Features     map[string]any `json:"features,omitempty"`
}

// Classifier classifies a single image, addressed by an opaque reference
// (storage key or URL). Implementations must return typed failures: transient
// service errors are retryable, parse errors are not.
type Classifier interface {
	Classify(ctx context.Context, imageRef string) (*Result, error)
}
