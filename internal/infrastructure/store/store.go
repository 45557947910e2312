// Package store provides the durable record store collaborator: versioned
// key-value persistence for predictions, explanations, activation
// snapshots and adaptation state versions. The engine never depends on a
// specific storage engine, only on this interface.
package store

import (
	"context"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// RecordStore persists the engine's records. Get methods return
// shared.ErrRecordNotFound (possibly wrapped) for absent records,
// including records whose retention window has elapsed.
type RecordStore interface {
	// PutPrediction stores an immutable prediction record.
	PutPrediction(ctx context.Context, prediction *shared.Prediction) error

	// GetPrediction retrieves a prediction by task ID.
	GetPrediction(ctx context.Context, taskID string) (*shared.Prediction, error)

	// PutExplanation stores an explanation record. Its retention is tied
	// to the task's prediction record.
	PutExplanation(ctx context.Context, explanation *shared.Explanation) error

	// GetExplanation retrieves an explanation by task ID.
	GetExplanation(ctx context.Context, taskID string) (*shared.Explanation, error)

	// PutSnapshot stores the activation snapshot captured at prediction
	// time, keyed by task ID.
	PutSnapshot(ctx context.Context, snapshot *shared.ActivationSnapshot) error

	// GetSnapshot retrieves an activation snapshot by task ID.
	GetSnapshot(ctx context.Context, taskID string) (*shared.ActivationSnapshot, error)

	// PutState stores one immutable adaptation state version.
	PutState(ctx context.Context, state *adaptation.State) error

	// LatestState retrieves the highest-version adaptation state for a
	// domain.
	LatestState(ctx context.Context, domain shared.DomainType) (*adaptation.State, error)

	// Close releases store resources.
	Close() error
}
