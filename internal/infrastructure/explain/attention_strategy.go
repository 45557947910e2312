package explain

import (
	"github.com/aiengine/aiengine-go/internal/infrastructure/attention"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// AttentionStrategy attributes by attention mass: input positions are
// ranked by the attention they received across all layers, heads and
// queries, then folded into per-field weights through the snapshot's
// field spans.
type AttentionStrategy struct{}

// ID implements Strategy.
func (s *AttentionStrategy) ID() string { return "attention" }

// Attribute implements Strategy.
func (s *AttentionStrategy) Attribute(prediction *shared.Prediction, snapshot *shared.ActivationSnapshot) (map[string]float64, error) {
	if len(snapshot.Attention) == 0 {
		return nil, shared.NewExplanationUnavailableError("snapshot has no attention weights")
	}
	if len(snapshot.Fields) == 0 {
		return nil, shared.NewExplanationUnavailableError("snapshot has no field spans")
	}

	// Total attention mass per key position, all layers folded together.
	var mass []float64
	for _, layer := range snapshot.Attention {
		layerMass := attention.AggregateMass(layer.Weights)
		if mass == nil {
			mass = layerMass
			continue
		}
		for i := range layerMass {
			if i < len(mass) {
				mass[i] += layerMass[i]
			}
		}
	}
	if len(mass) == 0 {
		return nil, shared.NewExplanationUnavailableError("attention weights are empty")
	}

	weights := make(map[string]float64, len(snapshot.Fields))
	for _, span := range snapshot.Fields {
		total := 0.0
		for i := span.Start; i < span.End && i < len(mass); i++ {
			total += mass[i]
		}
		weights[span.Field] = total
	}
	return weights, nil
}
