package explain

import (
	"math"

	"github.com/aiengine/aiengine-go/internal/shared"
)

// PerturbationStrategy attributes by output delta: each field is knocked
// out in turn and the drop in the head's score is measured from the
// snapshot's position contributions. The budget bounds how many fields are
// perturbed; fields beyond it share the remaining mass evenly.
type PerturbationStrategy struct {
	// Budget is the maximum number of field perturbations per explanation.
	Budget int
}

// ID implements Strategy.
func (s *PerturbationStrategy) ID() string { return "perturbation" }

// Attribute implements Strategy.
func (s *PerturbationStrategy) Attribute(prediction *shared.Prediction, snapshot *shared.ActivationSnapshot) (map[string]float64, error) {
	if len(snapshot.PositionContributions) == 0 {
		return nil, shared.NewExplanationUnavailableError("snapshot has no position contributions")
	}
	if len(snapshot.Fields) == 0 {
		return nil, shared.NewExplanationUnavailableError("snapshot has no field spans")
	}

	budget := s.Budget
	if budget <= 0 {
		budget = 16
	}

	full := 0.0
	for _, contribution := range snapshot.PositionContributions {
		full += contribution
	}

	weights := make(map[string]float64, len(snapshot.Fields))
	perturbed := 0
	var unperturbed []string

	for _, span := range snapshot.Fields {
		if perturbed >= budget {
			unperturbed = append(unperturbed, span.Field)
			continue
		}
		perturbed++

		// Knock the field's positions out and measure the score delta.
		without := full
		for i := span.Start; i < span.End && i < len(snapshot.PositionContributions); i++ {
			without -= snapshot.PositionContributions[i]
		}
		weights[span.Field] = math.Abs(full - without)
	}

	// Fields past the budget share the leftover magnitude evenly so every
	// schema field still appears in the ranking.
	if len(unperturbed) > 0 {
		totalAssigned := 0.0
		for _, w := range weights {
			totalAssigned += w
		}
		remainder := math.Abs(full) - totalAssigned
		if remainder < 0 {
			remainder = 0
		}
		share := remainder / float64(len(unperturbed))
		for _, field := range unperturbed {
			weights[field] = share
		}
	}

	return weights, nil
}
