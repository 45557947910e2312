package neural

import (
	"errors"
	"reflect"
	"testing"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/domain/registry"
	"github.com/aiengine/aiengine-go/internal/infrastructure/encoder"
	"github.com/aiengine/aiengine-go/internal/infrastructure/heads"
	"github.com/aiengine/aiengine-go/internal/infrastructure/meta"
	"github.com/aiengine/aiengine-go/internal/shared"
)

func newTestCore(t *testing.T) (*Core, *encoder.Encoder, *registry.Registry) {
	t.Helper()

	trunk := NewTrunk(DefaultTrunkConfig())
	headRegistry := heads.NewRegistry()
	controller := meta.NewController(trunk.Dim(), headRegistry.List())
	core := NewCore(trunk, headRegistry, controller, "test-model")

	return core, encoder.New(trunk.Dim()), registry.DefaultRegistry()
}

func infraTask() *shared.Task {
	return &shared.Task{
		ID:     "task-1",
		Domain: shared.DomainInfrastructure,
		Type:   shared.TaskTypeAnomalyDetection,
		Input: map[string]any{
			"cpu_usage":    []float64{0.8, 0.85, 0.9},
			"memory_usage": []float64{0.7, 0.75, 0.8},
		},
	}
}

func TestPredictDeterminism(t *testing.T) {
	core, enc, reg := newTestCore(t)

	task := infraTask()
	profile, err := reg.Resolve(task.Domain, task.Type)
	if err != nil {
		t.Fatal(err)
	}
	state := adaptation.Initial(task.Domain, []string{"anomaly", "forecast"})

	encoded, err := enc.Encode(task, profile)
	if err != nil {
		t.Fatal(err)
	}

	p1, s1, err := core.Predict(task, encoded, profile, state)
	if err != nil {
		t.Fatal(err)
	}
	p2, s2, err := core.Predict(task, encoded, profile, state)
	if err != nil {
		t.Fatal(err)
	}

	// Timestamps differ; everything predictive must not.
	if !reflect.DeepEqual(p1.Output, p2.Output) {
		t.Errorf("outputs differ: %v vs %v", p1.Output, p2.Output)
	}
	if p1.Confidence != p2.Confidence {
		t.Errorf("confidences differ: %v vs %v", p1.Confidence, p2.Confidence)
	}
	if p1.StateVersion != p2.StateVersion || p1.HeadID != p2.HeadID {
		t.Error("routing metadata differs between identical calls")
	}
	if !reflect.DeepEqual(s1.Embedding, s2.Embedding) {
		t.Error("snapshot embeddings differ")
	}
	if !reflect.DeepEqual(s1.PositionContributions, s2.PositionContributions) {
		t.Error("snapshot position contributions differ")
	}
}

func TestPredictConfidenceRange(t *testing.T) {
	core, enc, reg := newTestCore(t)

	task := infraTask()
	profile, _ := reg.Resolve(task.Domain, task.Type)
	state := adaptation.Initial(task.Domain, []string{"anomaly"})

	encoded, err := enc.Encode(task, profile)
	if err != nil {
		t.Fatal(err)
	}

	prediction, snapshot, err := core.Predict(task, encoded, profile, state)
	if err != nil {
		t.Fatal(err)
	}

	if prediction.Confidence < 0 || prediction.Confidence > 1 {
		t.Errorf("confidence %v outside [0,1]", prediction.Confidence)
	}
	if prediction.HeadID != registry.HeadAnomaly {
		t.Errorf("head = %q, want %q", prediction.HeadID, registry.HeadAnomaly)
	}
	if len(snapshot.Attention) != DefaultTrunkConfig().Layers {
		t.Errorf("snapshot has %d attention layers, want %d", len(snapshot.Attention), DefaultTrunkConfig().Layers)
	}
	if len(snapshot.PositionContributions) != encoded.SeqLen() {
		t.Errorf("position contributions length = %d, want %d", len(snapshot.PositionContributions), encoded.SeqLen())
	}
}

func TestPredictShapeMismatch(t *testing.T) {
	core, _, reg := newTestCore(t)

	task := infraTask()
	profile, _ := reg.Resolve(task.Domain, task.Type)

	// Features encoded with the wrong width: version skew, fatal for the
	// task, distinct from input validation.
	narrow := encoder.New(core.Dim() / 2)
	encoded, err := narrow.Encode(task, profile)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = core.Predict(task, encoded, profile, nil)
	var shapeErr *shared.ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
	if shapeErr.Expected != core.Dim() {
		t.Errorf("expected width %d, got %d", core.Dim(), shapeErr.Expected)
	}
}

func TestPredictProfileVersionSkew(t *testing.T) {
	core, enc, reg := newTestCore(t)

	task := infraTask()
	profile, _ := reg.Resolve(task.Domain, task.Type)

	encoded, err := enc.Encode(task, profile)
	if err != nil {
		t.Fatal(err)
	}
	encoded.ProfileVersion = profile.Version + 1

	_, _, err = core.Predict(task, encoded, profile, nil)
	var shapeErr *shared.ShapeMismatchError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected ShapeMismatchError for version skew, got %v", err)
	}
}

func TestPredictChangesWithState(t *testing.T) {
	core, enc, reg := newTestCore(t)

	task := infraTask()
	profile, _ := reg.Resolve(task.Domain, task.Type)
	encoded, err := enc.Encode(task, profile)
	if err != nil {
		t.Fatal(err)
	}

	neutral := adaptation.Initial(task.Domain, []string{"anomaly"})

	warm := neutral.Clone()
	warm.Version = 3
	warm.Calibration.Temperature = 5.0

	p1, _, err := core.Predict(task, encoded, profile, neutral)
	if err != nil {
		t.Fatal(err)
	}
	p2, _, err := core.Predict(task, encoded, profile, warm)
	if err != nil {
		t.Fatal(err)
	}

	if p1.StateVersion == p2.StateVersion {
		t.Error("predictions should record which state version they used")
	}
	if p1.Confidence == p2.Confidence {
		t.Error("calibration temperature change should move confidence")
	}
}
