// Package explain reconstructs human-readable justifications from the
// activation snapshot captured at prediction time.
package explain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aiengine/aiengine-go/internal/domain/registry"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// ConservationTolerance bounds how far the attribution sum may drift from
// (prediction confidence - domain baseline).
const ConservationTolerance = 1e-6

// Strategy produces per-field attribution weights from a prediction and
// its snapshot. Implementations never re-run the forward pass; everything
// they need is in the snapshot, and a snapshot missing required state
// fails with ExplanationUnavailableError.
type Strategy interface {
	// ID is the identifier domain profiles reference.
	ID() string

	// Attribute returns raw per-field weights, later rescaled to satisfy
	// the conservation invariant.
	Attribute(prediction *shared.Prediction, snapshot *shared.ActivationSnapshot) (map[string]float64, error)
}

// Engine selects the profile's strategy, enforces the conservation
// invariant and renders the summary and uncertainty statements.
type Engine struct {
	strategies      map[string]Strategy
	sparseThreshold uint64
}

// NewEngine creates an explanation engine with both built-in strategies.
// sparseThreshold is the sample count under which explanations carry the
// sparse-data flag.
func NewEngine(perturbationBudget int, sparseThreshold uint64) *Engine {
	e := &Engine{
		strategies:      make(map[string]Strategy),
		sparseThreshold: sparseThreshold,
	}
	e.register(&AttentionStrategy{})
	e.register(&PerturbationStrategy{Budget: perturbationBudget})
	return e
}

func (e *Engine) register(s Strategy) {
	e.strategies[s.ID()] = s
}

// StrategyIDs returns the registered strategy identifiers, for registry
// validation.
func (e *Engine) StrategyIDs() map[string]bool {
	ids := make(map[string]bool, len(e.strategies))
	for id := range e.strategies {
		ids[id] = true
	}
	return ids
}

// Explain builds the full explanation for a prediction. sampleCount is the
// domain's adaptation sample count at explanation time, feeding the
// uncertainty statement. A failure here never affects the prediction,
// which the caller already holds.
func (e *Engine) Explain(prediction *shared.Prediction, snapshot *shared.ActivationSnapshot, profile *registry.DomainProfile, sampleCount uint64) (*shared.Explanation, error) {
	if snapshot == nil {
		return nil, shared.NewExplanationUnavailableError("activation snapshot is missing")
	}
	if snapshot.TaskID != prediction.TaskID {
		return nil, shared.NewExplanationUnavailableError(
			fmt.Sprintf("snapshot belongs to task %q, prediction to %q", snapshot.TaskID, prediction.TaskID))
	}

	strategy, ok := e.strategies[profile.StrategyID]
	if !ok {
		return nil, shared.NewConfigurationError(
			fmt.Sprintf("profile %s/%s references unregistered explanation strategy %q",
				profile.Domain, profile.TaskType, profile.StrategyID), nil)
	}

	raw, err := strategy.Attribute(prediction, snapshot)
	if err != nil {
		return nil, err
	}

	attributions := conserve(raw, prediction.Confidence-snapshot.Baseline)

	return &shared.Explanation{
		TaskID:       prediction.TaskID,
		Attributions: attributions,
		Summary:      summarize(prediction, attributions),
		Uncertainty:  e.uncertainty(prediction, sampleCount),
		Strategy:     strategy.ID(),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// conserve rescales raw field weights so their sum equals target, keeping
// each field's share of the total magnitude. A zero-magnitude attribution
// map distributes the target uniformly.
func conserve(raw map[string]float64, target float64) []shared.Attribution {
	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	totalMagnitude := 0.0
	for _, field := range fields {
		totalMagnitude += math.Abs(raw[field])
	}

	attributions := make([]shared.Attribution, 0, len(fields))
	for _, field := range fields {
		var weight float64
		if totalMagnitude > 0 {
			weight = math.Abs(raw[field]) / totalMagnitude * target
		} else if len(fields) > 0 {
			weight = target / float64(len(fields))
		}
		attributions = append(attributions, shared.Attribution{Feature: field, Weight: weight})
	}

	// Ranked by absolute weight, ties broken by name for reproducibility.
	sort.Slice(attributions, func(i, j int) bool {
		ai, aj := math.Abs(attributions[i].Weight), math.Abs(attributions[j].Weight)
		if ai != aj {
			return ai > aj
		}
		return attributions[i].Feature < attributions[j].Feature
	})
	return attributions
}

// CheckConservation verifies the total-attribution invariant, used as a
// sanity check by callers and tests.
func CheckConservation(explanation *shared.Explanation, confidence, baseline float64) error {
	sum := 0.0
	for _, attribution := range explanation.Attributions {
		sum += attribution.Weight
	}
	if math.Abs(sum-(confidence-baseline)) > ConservationTolerance {
		return fmt.Errorf("attributions sum to %v, want %v within %v", sum, confidence-baseline, ConservationTolerance)
	}
	return nil
}

func summarize(prediction *shared.Prediction, attributions []shared.Attribution) string {
	value := prediction.Output[primaryOutputKey]
	if len(attributions) == 0 {
		return fmt.Sprintf("predicted %v with confidence %.2f", value, prediction.Confidence)
	}

	top := attributions[0]
	summary := fmt.Sprintf("predicted %v with confidence %.2f, driven chiefly by %s (%+.3f)",
		value, prediction.Confidence, top.Feature, top.Weight)
	if len(attributions) > 1 {
		second := attributions[1]
		summary += fmt.Sprintf(" and %s (%+.3f)", second.Feature, second.Weight)
	}
	return summary
}

func (e *Engine) uncertainty(prediction *shared.Prediction, sampleCount uint64) string {
	statement := fmt.Sprintf("confidence %.2f calibrated from %d recorded outcomes for domain %s",
		prediction.Confidence, sampleCount, prediction.Domain)
	if sampleCount < e.sparseThreshold {
		statement += " [low-confidence, sparse-data]"
	}
	return statement
}

// primaryOutputKey mirrors heads.OutputKey without importing the heads
// package; explanations only read prediction records.
const primaryOutputKey = "value"
