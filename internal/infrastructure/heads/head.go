// Package heads provides the domain-specific output heads applied to the
// shared trunk embedding.
package heads

import (
	"fmt"
	"math"
	"sort"

	"github.com/aiengine/aiengine-go/internal/infrastructure/attention"
)

// OutputKey is the key every head uses for its primary output value, so
// outcome feedback can compare observed labels against predictions without
// knowing the head type.
const OutputKey = "value"

// Head maps a blended embedding to a domain-specific output. Apply must be
// a pure function of its arguments: given the same embedding and
// parameters it always produces the same result.
type Head interface {
	// ID is the identifier domain profiles reference.
	ID() string

	// Apply produces the head output, a raw score for confidence
	// calibration, and the activation vector captured for explanations.
	Apply(embedding, params []float64) (output map[string]any, raw float64, activations []float64)
}

// Registry holds the closed set of registered heads.
type Registry struct {
	heads map[string]Head
}

// NewRegistry creates a registry with all built-in heads.
func NewRegistry() *Registry {
	r := &Registry{heads: make(map[string]Head)}
	r.register(&ClassificationHead{})
	r.register(&RegressionHead{})
	r.register(&AnomalyHead{})
	r.register(&ForecastHead{horizon: 3})
	return r
}

func (r *Registry) register(h Head) {
	r.heads[h.ID()] = h
}

// Get returns the head with the given identifier, nil if unregistered.
func (r *Registry) Get(id string) Head {
	return r.heads[id]
}

// IDs returns the set of registered head identifiers, for registry
// validation.
func (r *Registry) IDs() map[string]bool {
	ids := make(map[string]bool, len(r.heads))
	for id := range r.heads {
		ids[id] = true
	}
	return ids
}

// List returns the registered identifiers in stable order.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.heads))
	for id := range r.heads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// gate applies the blended parameter vector to the embedding element-wise
// and returns the gated activations plus their scaled sum. All heads share
// this path so blended parameters influence every output family.
func gate(embedding, params []float64) ([]float64, float64) {
	n := len(embedding)
	if len(params) < n {
		n = len(params)
	}

	activations := make([]float64, n)
	for i := 0; i < n; i++ {
		activations[i] = embedding[i] * params[i]
	}

	raw := 0.0
	if n > 0 {
		raw = attention.Sum(activations) / math.Sqrt(float64(n))
	}
	return activations, raw
}

// ClassificationHead emits a binary label with its raw margin.
type ClassificationHead struct{}

// ID implements Head.
func (h *ClassificationHead) ID() string { return "classification" }

// Apply implements Head.
func (h *ClassificationHead) Apply(embedding, params []float64) (map[string]any, float64, []float64) {
	activations, raw := gate(embedding, params)

	label := "negative"
	if raw >= 0 {
		label = "positive"
	}
	return map[string]any{
		OutputKey: label,
		"margin":  raw,
	}, raw, activations
}

// RegressionHead emits a continuous value.
type RegressionHead struct{}

// ID implements Head.
func (h *RegressionHead) ID() string { return "regression" }

// Apply implements Head.
func (h *RegressionHead) Apply(embedding, params []float64) (map[string]any, float64, []float64) {
	activations, raw := gate(embedding, params)
	return map[string]any{
		OutputKey: raw,
	}, raw, activations
}

// AnomalyHead emits an anomaly verdict with a score in [0,1].
type AnomalyHead struct{}

// ID implements Head.
func (h *AnomalyHead) ID() string { return "anomaly" }

// Apply implements Head.
func (h *AnomalyHead) Apply(embedding, params []float64) (map[string]any, float64, []float64) {
	activations, raw := gate(embedding, params)

	score := 1.0 / (1.0 + math.Exp(-raw))
	return map[string]any{
		OutputKey:       score >= 0.5,
		"anomaly_score": score,
	}, raw, activations
}

// ForecastHead emits the next `horizon` values of the series.
type ForecastHead struct {
	horizon int
}

// ID implements Head.
func (h *ForecastHead) ID() string { return "forecast" }

// Apply implements Head.
func (h *ForecastHead) Apply(embedding, params []float64) (map[string]any, float64, []float64) {
	activations, raw := gate(embedding, params)

	horizon := h.horizon
	if horizon <= 0 {
		horizon = 3
	}

	// Project the gated activations onto deterministic step vectors, with
	// the raw score as the forecast anchor.
	forecast := make([]float64, horizon)
	for step := 0; step < horizon; step++ {
		stepVec := attention.DeterministicVector(fmt.Sprintf("forecast-step-%d", step), len(activations))
		drift := attention.DotProduct(activations, stepVec)
		forecast[step] = raw + drift*float64(step+1)
	}

	return map[string]any{
		OutputKey:  forecast[0],
		"forecast": forecast,
	}, raw, activations
}
