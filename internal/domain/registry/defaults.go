package registry

import (
	"github.com/aiengine/aiengine-go/internal/shared"
)

// Head and explanation strategy identifiers referenced by the built-in
// profiles. Concrete implementations register under these names and the
// registry validates every reference at startup.
const (
	HeadClassification = "classification"
	HeadRegression     = "regression"
	HeadAnomaly        = "anomaly"
	HeadForecast       = "forecast"

	StrategyAttention    = "attention"
	StrategyPerturbation = "perturbation"
)

// DefaultRegistry returns a registry populated with the built-in domain
// profiles.
func DefaultRegistry() *Registry {
	r := New()

	profiles := []DomainProfile{
		{
			Domain:   shared.DomainInfrastructure,
			TaskType: shared.TaskTypeAnomalyDetection,
			Schema: []FieldSpec{
				{Name: "cpu_usage", Kind: shared.FieldNumericSeries, Required: true, Window: 4},
				{Name: "memory_usage", Kind: shared.FieldNumericSeries, Required: true, Window: 4},
				{Name: "disk_io", Kind: shared.FieldNumericSeries, Required: false, Window: 4},
			},
			HeadID:     HeadAnomaly,
			StrategyID: StrategyAttention,
			Version:    1,
		},
		{
			Domain:   shared.DomainInfrastructure,
			TaskType: shared.TaskTypeTimeSeriesForecasting,
			Schema: []FieldSpec{
				{Name: "cpu_usage", Kind: shared.FieldNumericSeries, Required: true, Window: 6},
				{Name: "memory_usage", Kind: shared.FieldNumericSeries, Required: true, Window: 6},
			},
			HeadID:     HeadForecast,
			StrategyID: StrategyAttention,
			Version:    1,
		},
		{
			Domain:   shared.DomainFinance,
			TaskType: shared.TaskTypeRiskAssessment,
			Schema: []FieldSpec{
				{Name: "returns", Kind: shared.FieldNumericSeries, Required: true, Window: 6},
				{Name: "volume", Kind: shared.FieldNumericSeries, Required: true, Window: 4},
				{Name: "sector", Kind: shared.FieldCategorical, Required: false, Window: 2},
			},
			HeadID:     HeadClassification,
			StrategyID: StrategyPerturbation,
			Version:    1,
		},
		{
			Domain:   shared.DomainFinance,
			TaskType: shared.TaskTypeTimeSeriesForecasting,
			Schema: []FieldSpec{
				{Name: "returns", Kind: shared.FieldNumericSeries, Required: true, Window: 8},
			},
			HeadID:     HeadForecast,
			StrategyID: StrategyAttention,
			Version:    1,
		},
		{
			Domain:   shared.DomainHealthcare,
			TaskType: shared.TaskTypeClassification,
			Schema: []FieldSpec{
				{Name: "vitals", Kind: shared.FieldNumericSeries, Required: true, Window: 6},
				{Name: "age_group", Kind: shared.FieldCategorical, Required: true, Window: 2},
				{Name: "notes", Kind: shared.FieldText, Required: false, Window: 4},
			},
			HeadID:     HeadClassification,
			StrategyID: StrategyPerturbation,
			Version:    1,
		},
		{
			Domain:   shared.DomainNaturalLanguage,
			TaskType: shared.TaskTypeSentimentAnalysis,
			Schema: []FieldSpec{
				{Name: "text", Kind: shared.FieldText, Required: true, Window: 12},
			},
			HeadID:     HeadClassification,
			StrategyID: StrategyAttention,
			Version:    1,
		},
		{
			Domain:   shared.DomainComputerVision,
			TaskType: shared.TaskTypeClassification,
			Schema: []FieldSpec{
				{Name: "pixel_stats", Kind: shared.FieldNumericSeries, Required: true, Window: 8},
				{Name: "channel", Kind: shared.FieldCategorical, Required: false, Window: 2},
			},
			HeadID:     HeadClassification,
			StrategyID: StrategyAttention,
			Version:    1,
		},
		{
			Domain:   shared.DomainManufacturing,
			TaskType: shared.TaskTypeAnomalyDetection,
			Schema: []FieldSpec{
				{Name: "vibration", Kind: shared.FieldNumericSeries, Required: true, Window: 6},
				{Name: "temperature", Kind: shared.FieldNumericSeries, Required: true, Window: 4},
				{Name: "line", Kind: shared.FieldCategorical, Required: false, Window: 2},
			},
			HeadID:     HeadAnomaly,
			StrategyID: StrategyPerturbation,
			Version:    1,
		},
		{
			Domain:   shared.DomainManufacturing,
			TaskType: shared.TaskTypeRegression,
			Schema: []FieldSpec{
				{Name: "throughput", Kind: shared.FieldNumericSeries, Required: true, Window: 6},
				{Name: "defect_rate", Kind: shared.FieldNumericSeries, Required: true, Window: 4},
			},
			HeadID:     HeadRegression,
			StrategyID: StrategyPerturbation,
			Version:    1,
		},
	}

	for i := range profiles {
		// Registration over a fresh registry with distinct pairs cannot fail.
		if err := r.Register(&profiles[i]); err != nil {
			panic(err)
		}
	}
	return r
}
