// Package classifier defines the boundary to sound classifier result sources.
package classifier

import (
	"context"

	"metronome-ingress-service/internal/models"
)

// Callback receives classifier output.
type Callback interface {
	// OnResult is called once per classifier result batch, in timestamp order.
	OnResult(result models.ClassificationResult)

	// OnError is called when the source fails.
	OnError(err error)
}

// Source produces classifier results (microphone pipeline, file replay, mock).
type Source interface {
	// Start begins delivering results to cb.
	Start(ctx context.Context, cb Callback) error

	// Close stops the source and releases resources.
	Close() error
}
