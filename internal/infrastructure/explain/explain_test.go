package explain

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/domain/registry"
	"github.com/aiengine/aiengine-go/internal/infrastructure/encoder"
	"github.com/aiengine/aiengine-go/internal/infrastructure/heads"
	"github.com/aiengine/aiengine-go/internal/infrastructure/meta"
	"github.com/aiengine/aiengine-go/internal/infrastructure/neural"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// predictInfra runs a real forward pass so explanation tests operate on a
// genuine snapshot rather than a synthetic one.
func predictInfra(t *testing.T) (*shared.Prediction, *shared.ActivationSnapshot, *registry.DomainProfile) {
	t.Helper()

	trunk := neural.NewTrunk(neural.DefaultTrunkConfig())
	headRegistry := heads.NewRegistry()
	controller := meta.NewController(trunk.Dim(), headRegistry.List())
	core := neural.NewCore(trunk, headRegistry, controller, "test-model")

	reg := registry.DefaultRegistry()
	task := &shared.Task{
		ID:     "task-explain",
		Domain: shared.DomainInfrastructure,
		Type:   shared.TaskTypeAnomalyDetection,
		Input: map[string]any{
			"cpu_usage":    []float64{0.8, 0.85, 0.9},
			"memory_usage": []float64{0.7, 0.75, 0.8},
		},
	}
	profile, err := reg.Resolve(task.Domain, task.Type)
	if err != nil {
		t.Fatal(err)
	}

	encoded, err := encoder.New(trunk.Dim()).Encode(task, profile)
	if err != nil {
		t.Fatal(err)
	}

	state := adaptation.Initial(task.Domain, headRegistry.List())
	prediction, snapshot, err := core.Predict(task, encoded, profile, state)
	if err != nil {
		t.Fatal(err)
	}
	return prediction, snapshot, profile
}

func TestAttentionExplanationConservation(t *testing.T) {
	prediction, snapshot, profile := predictInfra(t)
	engine := NewEngine(16, 10)

	explanation, err := engine.Explain(prediction, snapshot, profile, 0)
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}

	if err := CheckConservation(explanation, prediction.Confidence, snapshot.Baseline); err != nil {
		t.Error(err)
	}

	// The example scenario: attributions reference the payload fields by
	// name.
	fields := make(map[string]bool)
	for _, attribution := range explanation.Attributions {
		fields[attribution.Feature] = true
	}
	if !fields["cpu_usage"] || !fields["memory_usage"] {
		t.Errorf("attributions %v should reference cpu_usage and memory_usage", fields)
	}

	if explanation.Strategy != "attention" {
		t.Errorf("strategy = %q, want attention", explanation.Strategy)
	}
}

func TestPerturbationExplanationConservation(t *testing.T) {
	prediction, snapshot, profile := predictInfra(t)

	perturbProfile := *profile
	perturbProfile.StrategyID = registry.StrategyPerturbation

	engine := NewEngine(16, 10)
	explanation, err := engine.Explain(prediction, snapshot, &perturbProfile, 50)
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}

	if err := CheckConservation(explanation, prediction.Confidence, snapshot.Baseline); err != nil {
		t.Error(err)
	}
	if explanation.Strategy != "perturbation" {
		t.Errorf("strategy = %q, want perturbation", explanation.Strategy)
	}
}

func TestPerturbationBudget(t *testing.T) {
	prediction, snapshot, profile := predictInfra(t)

	perturbProfile := *profile
	perturbProfile.StrategyID = registry.StrategyPerturbation

	// Budget of 1: only one field is perturbed, the rest share leftover
	// mass, and conservation still holds.
	engine := NewEngine(1, 10)
	explanation, err := engine.Explain(prediction, snapshot, &perturbProfile, 50)
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if len(explanation.Attributions) != len(snapshot.Fields) {
		t.Errorf("attributions = %d, want one per schema field (%d)", len(explanation.Attributions), len(snapshot.Fields))
	}
	if err := CheckConservation(explanation, prediction.Confidence, snapshot.Baseline); err != nil {
		t.Error(err)
	}
}

func TestSparseDataFlag(t *testing.T) {
	prediction, snapshot, profile := predictInfra(t)
	engine := NewEngine(16, 10)

	sparse, err := engine.Explain(prediction, snapshot, profile, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sparse.Uncertainty, "low-confidence, sparse-data") {
		t.Errorf("uncertainty %q missing sparse-data flag", sparse.Uncertainty)
	}

	dense, err := engine.Explain(prediction, snapshot, profile, 500)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(dense.Uncertainty, "sparse-data") {
		t.Errorf("uncertainty %q should not flag sparse data at 500 samples", dense.Uncertainty)
	}
}

func TestExplainUnavailable(t *testing.T) {
	prediction, snapshot, profile := predictInfra(t)
	engine := NewEngine(16, 10)

	tests := []struct {
		name     string
		mutate   func(s *shared.ActivationSnapshot)
		strategy string
	}{
		{"nil snapshot handled separately", nil, registry.StrategyAttention},
		{"missing attention", func(s *shared.ActivationSnapshot) { s.Attention = nil }, registry.StrategyAttention},
		{"missing contributions", func(s *shared.ActivationSnapshot) { s.PositionContributions = nil }, registry.StrategyPerturbation},
		{"missing field spans", func(s *shared.ActivationSnapshot) { s.Fields = nil }, registry.StrategyAttention},
		{"task mismatch", func(s *shared.ActivationSnapshot) { s.TaskID = "other-task" }, registry.StrategyAttention},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := *profile
			p.StrategyID = tt.strategy

			var err error
			if tt.mutate == nil {
				_, err = engine.Explain(prediction, nil, &p, 0)
			} else {
				broken := *snapshot
				tt.mutate(&broken)
				_, err = engine.Explain(prediction, &broken, &p, 0)
			}

			var unavailable *shared.ExplanationUnavailableError
			if !errors.As(err, &unavailable) {
				t.Fatalf("expected ExplanationUnavailableError, got %v", err)
			}
		})
	}
}

func TestConserveZeroMagnitude(t *testing.T) {
	attributions := conserve(map[string]float64{"a": 0, "b": 0}, 0.3)

	sum := 0.0
	for _, attribution := range attributions {
		sum += attribution.Weight
	}
	if math.Abs(sum-0.3) > ConservationTolerance {
		t.Errorf("zero-magnitude conservation: sum = %v, want 0.3", sum)
	}
}

func TestSummaryNamesTopFeature(t *testing.T) {
	prediction, snapshot, profile := predictInfra(t)
	engine := NewEngine(16, 10)

	explanation, err := engine.Explain(prediction, snapshot, profile, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(explanation.Attributions) == 0 {
		t.Fatal("no attributions")
	}
	if !strings.Contains(explanation.Summary, explanation.Attributions[0].Feature) {
		t.Errorf("summary %q does not name top feature %q", explanation.Summary, explanation.Attributions[0].Feature)
	}
}
