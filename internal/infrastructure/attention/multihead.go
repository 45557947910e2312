package attention

// Config configures multi-head self-attention.
// Default: 4 parallel attention heads over 4-dim head slices.
type Config struct {
	NumHeads      int `json:"numHeads"`
	HeadDimension int `json:"headDimension"`
}

// DefaultConfig returns the default attention configuration.
func DefaultConfig() Config {
	return Config{NumHeads: 4, HeadDimension: 4}
}

// Dim returns the model width the configuration implies.
func (c Config) Dim() int {
	return c.NumHeads * c.HeadDimension
}

// MultiHead implements multi-head self-attention over a token sequence.
// Each head attends over its own slice of the model dimension using scaled
// dot-product scores; the computation is parameter-free and deterministic.
type MultiHead struct {
	config Config
}

// NewMultiHead creates a new MultiHead instance.
func NewMultiHead(config Config) *MultiHead {
	if config.NumHeads <= 0 || config.HeadDimension <= 0 {
		config = DefaultConfig()
	}
	return &MultiHead{config: config}
}

// Config returns the attention configuration.
func (m *MultiHead) Config() Config {
	return m.config
}

// Apply runs self-attention over seq (SeqLen x Dim) and returns the
// attended sequence plus the per-head attention weights
// ([head][query][key]) captured for the activation snapshot.
func (m *MultiHead) Apply(seq [][]float64) ([][]float64, [][][]float64) {
	n := len(seq)
	if n == 0 {
		return nil, nil
	}

	numHeads := m.config.NumHeads
	headDim := m.config.HeadDimension
	dim := m.config.Dim()

	weights := make([][][]float64, numHeads)
	output := make([][]float64, n)
	for i := range output {
		output[i] = make([]float64, dim)
	}

	scale := 1.0 / float64(headDim)

	for h := 0; h < numHeads; h++ {
		start := h * headDim
		end := start + headDim

		// Head-specific slices of each position vector.
		headSeq := make([][]float64, n)
		for i, vec := range seq {
			headSeq[i] = sliceOrPad(vec, start, end, headDim)
		}

		weights[h] = make([][]float64, n)
		for q := 0; q < n; q++ {
			scores := make([]float64, n)
			for k := 0; k < n; k++ {
				scores[k] = DotProduct(headSeq[q], headSeq[k]) * scale
			}
			weights[h][q] = Softmax(scores)

			// Weighted sum of values into the head's output slice.
			for k := 0; k < n; k++ {
				w := weights[h][q][k]
				for d := 0; d < headDim; d++ {
					output[q][start+d] += w * headSeq[k][d]
				}
			}
		}
	}

	return output, weights
}

// AggregateMass sums the attention mass received by each key position
// across all heads and queries, normalized to a distribution. This is the
// raw material for attention-based attribution.
func AggregateMass(weights [][][]float64) []float64 {
	if len(weights) == 0 || len(weights[0]) == 0 {
		return nil
	}

	n := len(weights[0])
	mass := make([]float64, n)
	for _, head := range weights {
		for _, query := range head {
			for k, w := range query {
				if k < n {
					mass[k] += w
				}
			}
		}
	}

	total := Sum(mass)
	if total > 0 {
		for i := range mass {
			mass[i] /= total
		}
	}
	return mass
}

func sliceOrPad(vec []float64, start, end, headDim int) []float64 {
	if end > len(vec) {
		end = len(vec)
	}
	result := make([]float64, headDim)
	if start < len(vec) {
		copy(result, vec[start:end])
	}
	return result
}
