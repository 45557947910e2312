package shared

import (
	"errors"
	"fmt"
	"testing"
)

func TestEncodedFeaturesFieldAt(t *testing.T) {
	features := &EncodedFeatures{
		Vectors: [][]float64{{1}, {2}, {3}, {4}},
		Fields: []FieldSpan{
			{Field: "cpu_usage", Start: 0, End: 2},
			{Field: "memory_usage", Start: 2, End: 4},
		},
	}

	tests := []struct {
		pos      int
		expected string
	}{
		{0, "cpu_usage"},
		{1, "cpu_usage"},
		{2, "memory_usage"},
		{3, "memory_usage"},
		{4, ""},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("pos %d", tt.pos), func(t *testing.T) {
			if got := features.FieldAt(tt.pos); got != tt.expected {
				t.Errorf("FieldAt(%d) = %q, want %q", tt.pos, got, tt.expected)
			}
		})
	}

	if features.SeqLen() != 4 {
		t.Errorf("SeqLen() = %d, want 4", features.SeqLen())
	}
	if features.Dim() != 1 {
		t.Errorf("Dim() = %d, want 1", features.Dim())
	}
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"unknown domain", NewUnknownDomainError("astrology"), CodeUnknownDomain},
		{"unknown task type", NewUnknownTaskTypeError(DomainFinance, "juggling"), CodeUnknownTaskType},
		{"input validation", NewInputValidationError("cpu_usage", "required field missing"), CodeInputValidation},
		{"shape mismatch", NewShapeMismatchError(32, 16), CodeShapeMismatch},
		{"stage timeout", NewStageTimeoutError(StagePredict), CodeStageTimeout},
		{"explanation unavailable", NewExplanationUnavailableError("snapshot missing attention"), CodeExplanationUnavailable},
		{"configuration", NewConfigurationError("head not registered", nil), CodeConfiguration},
		{"wrapped", fmt.Errorf("outer: %w", NewShapeMismatchError(8, 4)), CodeShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.code {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestIsPerTask(t *testing.T) {
	if IsPerTask(NewConfigurationError("bad config", nil)) {
		t.Error("configuration errors are fatal, not per-task")
	}
	if !IsPerTask(NewInputValidationError("f", "missing")) {
		t.Error("validation errors are per-task")
	}
	if !IsPerTask(fmt.Errorf("wrapped: %w", NewStageTimeoutError(StageEncode))) {
		t.Error("wrapped stage timeouts are per-task")
	}
	if IsPerTask(errors.New("plain")) {
		t.Error("plain errors are not classified as per-task")
	}
}

func TestCloneAnyMapIsDeep(t *testing.T) {
	source := map[string]any{
		"cpu_usage": []any{0.8, 0.85, 0.9},
		"nested":    map[string]any{"k": "v"},
	}

	cloned := CloneAnyMap(source)

	cloned["nested"].(map[string]any)["k"] = "mutated"
	clonedSeries := cloned["cpu_usage"].([]any)
	clonedSeries[0] = 99.0

	if source["nested"].(map[string]any)["k"] != "v" {
		t.Error("mutating clone leaked into source map")
	}
	if source["cpu_usage"].([]any)[0] != 0.8 {
		t.Error("mutating clone leaked into source slice")
	}
}
