package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// storeUnderTest runs the shared RecordStore contract against an
// implementation.
func storeUnderTest(t *testing.T, s RecordStore) {
	t.Helper()
	ctx := context.Background()

	prediction := &shared.Prediction{
		TaskID:       "task-1",
		Domain:       shared.DomainInfrastructure,
		Output:       map[string]any{"value": true},
		Confidence:   0.8,
		HeadID:       "anomaly",
		StateVersion: 3,
		ModelVersion: "v1",
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.PutPrediction(ctx, prediction); err != nil {
		t.Fatalf("PutPrediction failed: %v", err)
	}

	got, err := s.GetPrediction(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}
	if got.Confidence != 0.8 || got.StateVersion != 3 {
		t.Errorf("round-tripped prediction mismatch: %+v", got)
	}

	if _, err := s.GetPrediction(ctx, "missing"); !errors.Is(err, shared.ErrRecordNotFound) {
		t.Errorf("missing prediction: got %v, want ErrRecordNotFound", err)
	}

	explanation := &shared.Explanation{
		TaskID:       "task-1",
		Attributions: []shared.Attribution{{Feature: "cpu_usage", Weight: 0.2}},
		Summary:      "s",
		Uncertainty:  "u",
		Strategy:     "attention",
	}
	if err := s.PutExplanation(ctx, explanation); err != nil {
		t.Fatalf("PutExplanation failed: %v", err)
	}
	gotExp, err := s.GetExplanation(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetExplanation failed: %v", err)
	}
	if len(gotExp.Attributions) != 1 || gotExp.Attributions[0].Feature != "cpu_usage" {
		t.Errorf("round-tripped explanation mismatch: %+v", gotExp)
	}

	snapshot := &shared.ActivationSnapshot{
		TaskID:                "task-1",
		Embedding:             []float64{0.1, 0.2},
		PositionContributions: []float64{0.05, 0.03},
		Fields:                []shared.FieldSpan{{Field: "cpu_usage", Start: 0, End: 2}},
		Baseline:              0.5,
	}
	if err := s.PutSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}
	gotSnap, err := s.GetSnapshot(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if len(gotSnap.PositionContributions) != 2 {
		t.Errorf("round-tripped snapshot mismatch: %+v", gotSnap)
	}

	// Adaptation states: latest version wins.
	v1 := adaptation.Initial(shared.DomainFinance, []string{"classification"})
	v1.Version = 1
	v1.VersionID = "v1"
	v2 := v1.Clone()
	v2.Version = 2
	v2.VersionID = "v2"
	v2.SampleCount = 10

	if err := s.PutState(ctx, v1); err != nil {
		t.Fatalf("PutState v1 failed: %v", err)
	}
	if err := s.PutState(ctx, v2); err != nil {
		t.Fatalf("PutState v2 failed: %v", err)
	}

	latest, err := s.LatestState(ctx, shared.DomainFinance)
	if err != nil {
		t.Fatalf("LatestState failed: %v", err)
	}
	if latest.Version != 2 || latest.SampleCount != 10 {
		t.Errorf("latest state = v%d (samples %d), want v2 (samples 10)", latest.Version, latest.SampleCount)
	}

	if _, err := s.LatestState(ctx, shared.DomainHealthcare); !errors.Is(err, shared.ErrRecordNotFound) {
		t.Errorf("missing state: got %v, want ErrRecordNotFound", err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	storeUnderTest(t, s)
}

func TestSQLiteStoreContract(t *testing.T) {
	s, err := NewSQLiteStore(SQLiteConfig{DatabasePath: ":memory:"})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	storeUnderTest(t, s)
}

func TestMemoryStoreRetention(t *testing.T) {
	s := NewMemoryStore(time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	if err := s.PutPrediction(ctx, &shared.Prediction{TaskID: "t"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := s.GetPrediction(ctx, "t"); !errors.Is(err, shared.ErrRecordNotFound) {
		t.Errorf("expired record: got %v, want ErrRecordNotFound", err)
	}
}

func TestMemoryStoreIgnoresStaleStateWrites(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	v2 := adaptation.Initial(shared.DomainFinance, []string{"classification"})
	v2.Version = 2
	v1 := v2.Clone()
	v1.Version = 1

	if err := s.PutState(ctx, v2); err != nil {
		t.Fatal(err)
	}
	if err := s.PutState(ctx, v1); err != nil {
		t.Fatal(err)
	}

	latest, err := s.LatestState(ctx, shared.DomainFinance)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Version != 2 {
		t.Errorf("latest version = %d, want 2", latest.Version)
	}
}
