package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aiengine/aiengine-go/internal/application/feedback"
	"github.com/aiengine/aiengine-go/internal/domain/registry"
	"github.com/aiengine/aiengine-go/internal/infrastructure/encoder"
	"github.com/aiengine/aiengine-go/internal/infrastructure/explain"
	"github.com/aiengine/aiengine-go/internal/infrastructure/heads"
	"github.com/aiengine/aiengine-go/internal/infrastructure/meta"
	"github.com/aiengine/aiengine-go/internal/infrastructure/metrics"
	"github.com/aiengine/aiengine-go/internal/infrastructure/neural"
	"github.com/aiengine/aiengine-go/internal/infrastructure/store"
	"github.com/aiengine/aiengine-go/internal/shared"
)

type testEnv struct {
	service *Service
	loop    *feedback.Loop
	store   store.RecordStore
	sink    *metrics.MemorySink
}

func newTestEnv(t *testing.T, reg *registry.Registry) *testEnv {
	t.Helper()

	trunk := neural.NewTrunk(neural.DefaultTrunkConfig())
	headRegistry := heads.NewRegistry()
	controller := meta.NewController(trunk.Dim(), headRegistry.List())
	core := neural.NewCore(trunk, headRegistry, controller, "test-model")

	recordStore := store.NewMemoryStore(time.Hour)
	t.Cleanup(func() { recordStore.Close() })

	loop := feedback.NewLoop(recordStore, headRegistry.List(), feedback.DefaultConfig(), nil)
	t.Cleanup(loop.Close)

	sink := metrics.NewMemorySink()
	service := NewService(reg, encoder.New(trunk.Dim()), core, explain.NewEngine(16, 10),
		loop, recordStore, sink, nil, DefaultTimeouts())

	return &testEnv{service: service, loop: loop, store: recordStore, sink: sink}
}

func infraTask(id string) *shared.Task {
	return &shared.Task{
		ID:     id,
		Domain: shared.DomainInfrastructure,
		Type:   shared.TaskTypeAnomalyDetection,
		Input: map[string]any{
			"cpu_usage":    []float64{0.8, 0.85, 0.9},
			"memory_usage": []float64{0.7, 0.75, 0.8},
		},
	}
}

func TestProcessFullPipeline(t *testing.T) {
	env := newTestEnv(t, registry.DefaultRegistry())
	ctx := context.Background()

	result, err := env.service.Process(ctx, infraTask("task-1"))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Prediction == nil || result.Explanation == nil {
		t.Fatal("expected both prediction and explanation")
	}
	if result.Prediction.TaskID != "task-1" {
		t.Errorf("prediction task ID = %q", result.Prediction.TaskID)
	}

	// Attributions account for exactly the lift over the baseline.
	sum := 0.0
	for _, a := range result.Explanation.Attributions {
		sum += a.Weight
	}
	baseline := env.loop.State(shared.DomainInfrastructure).Baseline()
	if math.Abs(sum-(result.Prediction.Confidence-baseline)) > explain.ConservationTolerance {
		t.Errorf("attribution sum %v does not match confidence lift %v", sum, result.Prediction.Confidence-baseline)
	}

	// Records are retrievable afterwards.
	if _, err := env.service.Prediction(ctx, "task-1"); err != nil {
		t.Errorf("stored prediction not found: %v", err)
	}
	if _, err := env.service.Explanation(ctx, "task-1"); err != nil {
		t.Errorf("stored explanation not found: %v", err)
	}

	if env.sink.DomainHits(shared.DomainInfrastructure) != 1 {
		t.Error("expected one domain hit")
	}
	if got := len(env.sink.Confidences(shared.DomainInfrastructure)); got != 1 {
		t.Errorf("expected one confidence observation, got %d", got)
	}
	if got := len(env.sink.StageLatencies(shared.DomainInfrastructure, shared.StagePredict)); got != 1 {
		t.Errorf("expected one predict latency observation, got %d", got)
	}
}

func TestProcessUnknownDomainFailsBeforeModelWork(t *testing.T) {
	env := newTestEnv(t, registry.DefaultRegistry())

	task := infraTask("task-1")
	task.Domain = "astrology"

	_, err := env.service.Process(context.Background(), task)
	var unknownErr *shared.UnknownDomainError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownDomainError, got %v", err)
	}
	if env.sink.DomainHits("astrology") != 0 {
		t.Error("rejected task should not count as a domain hit")
	}
	if env.sink.ErrorCount(shared.CodeUnknownDomain) != 1 {
		t.Error("expected one unknown-domain error observation")
	}
}

func TestProcessValidationErrorIsPerTask(t *testing.T) {
	env := newTestEnv(t, registry.DefaultRegistry())

	task := infraTask("task-1")
	delete(task.Input, "cpu_usage")

	_, err := env.service.Process(context.Background(), task)
	var validationErr *shared.InputValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected InputValidationError, got %v", err)
	}
	if !shared.IsPerTask(err) {
		t.Error("validation error should be classified per-task")
	}

	// The bad task must not poison the pipeline for the next one.
	if _, err := env.service.Process(context.Background(), infraTask("task-2")); err != nil {
		t.Errorf("valid task after invalid one failed: %v", err)
	}
}

func TestProcessExplanationFailureKeepsPrediction(t *testing.T) {
	reg := registry.New()
	err := reg.Register(&registry.DomainProfile{
		Domain:   shared.DomainInfrastructure,
		TaskType: shared.TaskTypeAnomalyDetection,
		Schema: []registry.FieldSpec{
			{Name: "cpu_usage", Kind: shared.FieldNumericSeries, Required: true, Window: 4},
			{Name: "memory_usage", Kind: shared.FieldNumericSeries, Required: true, Window: 4},
		},
		HeadID:     registry.HeadAnomaly,
		StrategyID: "unregistered-strategy",
		Version:    1,
	})
	if err != nil {
		t.Fatal(err)
	}

	env := newTestEnv(t, reg)

	result, err := env.service.Process(context.Background(), infraTask("task-1"))
	if err != nil {
		t.Fatalf("Process should succeed when only explanation fails: %v", err)
	}
	if result.Prediction == nil {
		t.Fatal("expected a prediction despite explanation failure")
	}
	if result.Explanation != nil {
		t.Error("expected no explanation")
	}
	if result.ExplainErr == nil {
		t.Error("expected the explanation failure to be reported")
	}

	// The prediction is stored, the explanation is not.
	ctx := context.Background()
	if _, err := env.service.Prediction(ctx, "task-1"); err != nil {
		t.Errorf("stored prediction not found: %v", err)
	}
	if _, err := env.service.Explanation(ctx, "task-1"); !errors.Is(err, shared.ErrRecordNotFound) {
		t.Errorf("expected missing explanation, got %v", err)
	}
}

func TestProcessCancellationLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, registry.DefaultRegistry())

	before := env.loop.State(shared.DomainInfrastructure).Clone()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := env.service.Process(ctx, infraTask("task-1")); err == nil {
		t.Fatal("expected error for cancelled context")
	}

	after := env.loop.State(shared.DomainInfrastructure)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("cancelled task changed adaptation state:\n%s", diff)
	}
}

func TestRunStageTimeout(t *testing.T) {
	env := newTestEnv(t, registry.DefaultRegistry())

	err := env.service.runStage(context.Background(), shared.StagePredict, shared.DomainInfrastructure, 5*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var timeoutErr *shared.StageTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected StageTimeoutError, got %v", err)
	}
	if timeoutErr.Stage != shared.StagePredict {
		t.Errorf("stage = %q, want %q", timeoutErr.Stage, shared.StagePredict)
	}
	if !shared.IsPerTask(err) {
		t.Error("stage timeout should be classified per-task")
	}
}

func TestRunStageCallerCancellationIsNotTimeout(t *testing.T) {
	env := newTestEnv(t, registry.DefaultRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := env.service.runStage(ctx, shared.StagePredict, shared.DomainInfrastructure, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var timeoutErr *shared.StageTimeoutError
	if errors.As(err, &timeoutErr) {
		t.Error("caller cancellation must not be reported as a stage timeout")
	}
}

func TestProcessDeterministicAcrossCalls(t *testing.T) {
	env := newTestEnv(t, registry.DefaultRegistry())
	ctx := context.Background()

	r1, err := env.service.Process(ctx, infraTask("task-a"))
	if err != nil {
		t.Fatal(err)
	}
	r2, err := env.service.Process(ctx, infraTask("task-b"))
	if err != nil {
		t.Fatal(err)
	}

	if r1.Prediction.Confidence != r2.Prediction.Confidence {
		t.Errorf("identical inputs under the same state version produced different confidences: %v vs %v",
			r1.Prediction.Confidence, r2.Prediction.Confidence)
	}
	if r1.Prediction.StateVersion != r2.Prediction.StateVersion {
		t.Error("state version changed without feedback")
	}
}
