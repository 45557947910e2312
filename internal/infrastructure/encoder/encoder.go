// Package encoder normalizes heterogeneous task payloads into the
// fixed-shape representation the trunk consumes.
package encoder

import (
	"fmt"
	"math"
	"strings"

	"github.com/aiengine/aiengine-go/internal/domain/registry"
	"github.com/aiengine/aiengine-go/internal/infrastructure/attention"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// Encoder turns task payloads into EncodedFeatures. Encoding is a pure
// function of (task, profile): no state, no side effects, safe for
// concurrent use.
type Encoder struct {
	dim int
}

// New creates an encoder producing vectors of the given model width.
func New(dim int) *Encoder {
	if dim <= 0 {
		dim = attention.DefaultConfig().Dim()
	}
	return &Encoder{dim: dim}
}

// Dim returns the vector width this encoder produces.
func (e *Encoder) Dim() int {
	return e.dim
}

// Encode validates task.Input against the profile schema and produces the
// encoded sequence. Malformed input fails with InputValidationError naming
// the offending field path; values are never silently coerced.
func (e *Encoder) Encode(task *shared.Task, profile *registry.DomainProfile) (*shared.EncodedFeatures, error) {
	features := &shared.EncodedFeatures{
		Vectors:        make([][]float64, 0, profile.SeqLen()),
		Fields:         make([]shared.FieldSpan, 0, len(profile.Schema)),
		ProfileVersion: profile.Version,
	}

	for _, field := range profile.Schema {
		value, present := task.Input[field.Name]
		if !present {
			if field.Required {
				return nil, shared.NewInputValidationError(field.Name, "required field missing")
			}
			// Optional absent fields occupy zero vectors so the sequence
			// shape stays fixed per profile version.
			start := len(features.Vectors)
			for i := 0; i < field.Window; i++ {
				features.Vectors = append(features.Vectors, make([]float64, e.dim))
			}
			features.Fields = append(features.Fields, shared.FieldSpan{
				Field: field.Name, Start: start, End: len(features.Vectors),
			})
			continue
		}

		var vectors [][]float64
		var err error
		switch field.Kind {
		case shared.FieldNumericSeries:
			vectors, err = e.encodeNumericSeries(field, value)
		case shared.FieldText:
			vectors, err = e.encodeText(field, value)
		case shared.FieldCategorical:
			vectors, err = e.encodeCategorical(field, value)
		default:
			return nil, shared.NewConfigurationError(
				fmt.Sprintf("field %q declares unknown kind %q", field.Name, field.Kind), nil)
		}
		if err != nil {
			return nil, err
		}

		start := len(features.Vectors)
		features.Vectors = append(features.Vectors, vectors...)
		features.Fields = append(features.Fields, shared.FieldSpan{
			Field: field.Name, Start: start, End: len(features.Vectors),
		})
	}

	return features, nil
}

// encodeNumericSeries summarizes a numeric series into Window positions of
// windowed statistics: each position carries one of the last-k values plus
// the series mean, variance, min, max and step delta.
func (e *Encoder) encodeNumericSeries(field registry.FieldSpec, value any) ([][]float64, error) {
	series, err := toFloatSeries(field.Name, value)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, shared.NewInputValidationError(field.Name, "numeric series must be non-empty")
	}

	mean := attention.Mean(series)
	variance := 0.0
	minVal, maxVal := series[0], series[0]
	for _, v := range series {
		d := v - mean
		variance += d * d
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	variance /= float64(len(series))

	// Last Window values, left-padded with the earliest value when the
	// series is shorter than the window.
	lastK := make([]float64, field.Window)
	for i := 0; i < field.Window; i++ {
		idx := len(series) - field.Window + i
		if idx < 0 {
			idx = 0
		}
		lastK[i] = series[idx]
	}

	vectors := make([][]float64, field.Window)
	for i := 0; i < field.Window; i++ {
		vec := make([]float64, e.dim)
		stats := []float64{lastK[i], mean, variance, minVal, maxVal}
		if i > 0 {
			stats = append(stats, lastK[i]-lastK[i-1])
		}
		copy(vec, stats[:minInt(len(stats), e.dim)])
		vectors[i] = vec
	}
	return vectors, nil
}

// encodeText tokenizes the value and embeds each token deterministically,
// truncated or zero-padded to Window positions.
func (e *Encoder) encodeText(field registry.FieldSpec, value any) ([][]float64, error) {
	text, ok := value.(string)
	if !ok {
		return nil, shared.NewInputValidationError(field.Name,
			fmt.Sprintf("expected string, got %T", value))
	}
	if strings.TrimSpace(text) == "" {
		return nil, shared.NewInputValidationError(field.Name, "text must be non-empty")
	}

	tokens := strings.Fields(strings.ToLower(text))
	vectors := make([][]float64, field.Window)
	for i := 0; i < field.Window; i++ {
		if i < len(tokens) {
			vectors[i] = attention.DeterministicVector("tok:"+tokens[i], e.dim)
		} else {
			vectors[i] = make([]float64, e.dim)
		}
	}
	return vectors, nil
}

// encodeCategorical embeds the category value deterministically across its
// Window positions.
func (e *Encoder) encodeCategorical(field registry.FieldSpec, value any) ([][]float64, error) {
	category, ok := value.(string)
	if !ok {
		return nil, shared.NewInputValidationError(field.Name,
			fmt.Sprintf("expected string category, got %T", value))
	}
	if category == "" {
		return nil, shared.NewInputValidationError(field.Name, "category must be non-empty")
	}

	vectors := make([][]float64, field.Window)
	for i := 0; i < field.Window; i++ {
		vectors[i] = attention.DeterministicVector(
			fmt.Sprintf("cat:%s=%s:%d", field.Name, category, i), e.dim)
	}
	return vectors, nil
}

// toFloatSeries converts the supported series representations without
// coercion: []float64, []int, or []any holding numbers. Every element must
// be finite.
func toFloatSeries(field string, value any) ([]float64, error) {
	switch v := value.(type) {
	case []float64:
		for i, x := range v {
			if err := checkFinite(field, i, x); err != nil {
				return nil, err
			}
		}
		return v, nil
	case []int:
		series := make([]float64, len(v))
		for i, x := range v {
			series[i] = float64(x)
		}
		return series, nil
	case []any:
		series := make([]float64, len(v))
		for i, elem := range v {
			var x float64
			switch n := elem.(type) {
			case float64:
				x = n
			case int:
				x = float64(n)
			default:
				return nil, shared.NewInputValidationError(
					fmt.Sprintf("%s[%d]", field, i),
					fmt.Sprintf("expected number, got %T", elem))
			}
			if err := checkFinite(field, i, x); err != nil {
				return nil, err
			}
			series[i] = x
		}
		return series, nil
	default:
		return nil, shared.NewInputValidationError(field,
			fmt.Sprintf("expected numeric series, got %T", value))
	}
}

func checkFinite(field string, index int, x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return shared.NewInputValidationError(
			fmt.Sprintf("%s[%d]", field, index), "value must be finite")
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
