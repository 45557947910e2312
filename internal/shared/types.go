// Package shared provides shared types used across all modules in aiengine-go.
package shared

import (
	"time"
)

// ============================================================================
// Domain and Task Types
// ============================================================================

// DomainType identifies a problem area with its own input schema and
// output semantics.
type DomainType string

const (
	DomainInfrastructure  DomainType = "infrastructure"
	DomainFinance         DomainType = "finance"
	DomainHealthcare      DomainType = "healthcare"
	DomainNaturalLanguage DomainType = "natural_language"
	DomainComputerVision  DomainType = "computer_vision"
	DomainManufacturing   DomainType = "manufacturing"
)

// TaskType identifies the kind of prediction a task asks for.
type TaskType string

const (
	TaskTypeAnomalyDetection      TaskType = "anomaly_detection"
	TaskTypeClassification        TaskType = "classification"
	TaskTypeRegression            TaskType = "regression"
	TaskTypeTimeSeriesForecasting TaskType = "time_series_forecasting"
	TaskTypeSentimentAnalysis     TaskType = "sentiment_analysis"
	TaskTypeRiskAssessment        TaskType = "risk_assessment"
)

// Task is the immutable description of one unit of work. It is created on
// request arrival and referenced, never mutated, by downstream stages.
type Task struct {
	ID        string            `json:"id"`
	Domain    DomainType        `json:"domain"`
	Type      TaskType          `json:"taskType"`
	Input     map[string]any    `json:"inputData"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ============================================================================
// Feature Types
// ============================================================================

// FieldKind describes how a payload field is encoded.
type FieldKind string

const (
	FieldNumericSeries FieldKind = "numeric_series"
	FieldText          FieldKind = "text"
	FieldCategorical   FieldKind = "categorical"
)

// FieldSpan maps a contiguous range of sequence positions back to the
// payload field they were encoded from. Start is inclusive, End exclusive.
type FieldSpan struct {
	Field string `json:"field"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// EncodedFeatures is the fixed-shape numeric representation of one task
// payload. It is owned exclusively by the pipeline invocation that created
// it and is never shared across concurrent tasks.
type EncodedFeatures struct {
	Vectors        [][]float64 `json:"vectors"`
	Fields         []FieldSpan `json:"fields"`
	ProfileVersion int         `json:"profileVersion"`
}

// SeqLen returns the number of sequence positions.
func (f *EncodedFeatures) SeqLen() int {
	return len(f.Vectors)
}

// Dim returns the width of each position vector, 0 when empty.
func (f *EncodedFeatures) Dim() int {
	if len(f.Vectors) == 0 {
		return 0
	}
	return len(f.Vectors[0])
}

// FieldAt returns the payload field name covering position i, "" if none.
func (f *EncodedFeatures) FieldAt(i int) string {
	for _, span := range f.Fields {
		if i >= span.Start && i < span.End {
			return span.Field
		}
	}
	return ""
}

// ============================================================================
// Prediction Types
// ============================================================================

// Prediction is the immutable output of one predict call.
type Prediction struct {
	TaskID       string         `json:"taskId"`
	Domain       DomainType     `json:"domain"`
	Output       map[string]any `json:"output"`
	Confidence   float64        `json:"confidence"`
	HeadID       string         `json:"headId"`
	StateVersion uint64         `json:"stateVersion"`
	ModelVersion string         `json:"modelVersion"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Attribution assigns an importance weight to one input feature.
type Attribution struct {
	Feature string  `json:"feature"`
	Weight  float64 `json:"weight"`
}

// Explanation is the reproducible justification for a single prediction.
// Its retention window is tied to the prediction record it derives from.
type Explanation struct {
	TaskID       string        `json:"taskId"`
	Attributions []Attribution `json:"attributions"`
	Summary      string        `json:"summary"`
	Uncertainty  string        `json:"uncertainty"`
	Strategy     string        `json:"strategy"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// ============================================================================
// Activation Snapshot
// ============================================================================

// LayerAttention holds the attention weights captured for one encoder layer:
// [head][query position][key position].
type LayerAttention struct {
	Layer   int           `json:"layer"`
	Weights [][][]float64 `json:"weights"`
}

// ActivationSnapshot captures the intermediate state of a forward pass so
// the explainability engine can operate without re-running it.
type ActivationSnapshot struct {
	TaskID          string           `json:"taskId"`
	Attention       []LayerAttention `json:"attention"`
	Embedding       []float64        `json:"embedding"`
	HeadActivations []float64        `json:"headActivations"`

	// PositionContributions is each input position's share of the head's
	// raw score, so perturbation-based attribution can measure output
	// deltas without re-running the forward pass.
	PositionContributions []float64 `json:"positionContributions"`

	Fields       []FieldSpan `json:"fields"`
	Baseline     float64     `json:"baseline"`
	StateVersion uint64      `json:"stateVersion"`
}

// ============================================================================
// Pipeline Stages
// ============================================================================

// Stage names the pipeline phase an operation or failure belongs to.
type Stage string

const (
	StageEncode  Stage = "encode"
	StagePredict Stage = "predict"
	StageExplain Stage = "explain"
)
