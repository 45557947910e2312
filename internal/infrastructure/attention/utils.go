// Package attention provides the self-attention primitives of the shared
// trunk.
package attention

import (
	"hash/fnv"
	"math"
)

// Softmax applies softmax normalization to a slice of scores.
// Returns a probability distribution that sums to 1.
func Softmax(scores []float64) []float64 {
	if len(scores) == 0 {
		return []float64{}
	}

	// Max subtraction for numerical stability.
	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	result := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		result[i] = math.Exp(s - maxScore)
		sum += result[i]
	}

	if sum > 0 {
		for i := range result {
			result[i] /= sum
		}
	}

	return result
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (normA * normB)
}

// DotProduct computes the dot product of two vectors.
func DotProduct(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// L2Norm computes the Euclidean norm of a vector.
func L2Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// NormalizeVector normalizes a vector to unit length.
func NormalizeVector(v []float64) []float64 {
	norm := L2Norm(v)
	if norm == 0 {
		return v
	}

	result := make([]float64, len(v))
	for i, x := range v {
		result[i] = x / norm
	}
	return result
}

// DeterministicVector derives a unit vector of the given dimension from a
// seed string. Trunk and head parameters are initialized this way, so the
// whole forward pass is a pure function of its inputs: no unseeded
// randomness anywhere.
func DeterministicVector(seed string, dim int) []float64 {
	if dim <= 0 {
		dim = 64
	}

	vector := make([]float64, dim)
	h := fnv.New64a()

	for i := 0; i < dim; i++ {
		h.Reset()
		h.Write([]byte(seed))
		h.Write([]byte{byte(i), byte(i >> 8)})
		hashVal := h.Sum64()

		// Map to [-1, 1].
		vector[i] = (float64(hashVal)/float64(^uint64(0)))*2 - 1
	}

	return NormalizeVector(vector)
}

// ReLUVector applies ReLU to each element of a vector.
func ReLUVector(v []float64) []float64 {
	result := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			result[i] = x
		}
	}
	return result
}

// VectorAdd adds two vectors element-wise.
func VectorAdd(a, b []float64) []float64 {
	if len(a) != len(b) {
		return nil
	}

	result := make([]float64, len(a))
	for i := range a {
		result[i] = a[i] + b[i]
	}
	return result
}

// VectorScale multiplies a vector by a scalar.
func VectorScale(v []float64, scale float64) []float64 {
	result := make([]float64, len(v))
	for i, x := range v {
		result[i] = x * scale
	}
	return result
}

// LayerNorm normalizes a vector to zero mean and unit variance, with a
// small epsilon guarding constant inputs.
func LayerNorm(v []float64) []float64 {
	if len(v) == 0 {
		return v
	}

	mean := Mean(v)
	variance := 0.0
	for _, x := range v {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(v))

	result := make([]float64, len(v))
	scale := 1.0 / math.Sqrt(variance+1e-8)
	for i, x := range v {
		result[i] = (x - mean) * scale
	}
	return result
}

// SinusoidalEncoding generates the sinusoidal position encoding for one
// sequence position.
func SinusoidalEncoding(position, dim int) []float64 {
	encoding := make([]float64, dim)

	for i := 0; i < dim; i++ {
		denominator := math.Pow(10000.0, float64(2*(i/2))/float64(dim))
		if i%2 == 0 {
			encoding[i] = math.Sin(float64(position) / denominator)
		} else {
			encoding[i] = math.Cos(float64(position) / denominator)
		}
	}

	return encoding
}

// Clamp clamps a value between lo and hi.
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Mean computes the mean of a slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Sum computes the sum of a slice.
func Sum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}
