package attention

import "fmt"

// Block is one encoder block: multi-head self-attention followed by a
// position-wise feed-forward layer, each with a residual connection and
// layer normalization. Feed-forward weights are derived deterministically
// from the block index so identical inputs always yield identical outputs.
type Block struct {
	attention *MultiHead
	w1        [][]float64
	w2        [][]float64
	dim       int
}

// NewBlock creates an encoder block for the given layer index.
func NewBlock(layer int, config Config) *Block {
	dim := config.Dim()
	b := &Block{
		attention: NewMultiHead(config),
		dim:       dim,
	}

	// Deterministic feed-forward weights, one unit row per output element.
	b.w1 = make([][]float64, dim)
	b.w2 = make([][]float64, dim)
	for i := 0; i < dim; i++ {
		b.w1[i] = DeterministicVector(fmt.Sprintf("block-%d-ffn1-%d", layer, i), dim)
		b.w2[i] = DeterministicVector(fmt.Sprintf("block-%d-ffn2-%d", layer, i), dim)
	}
	return b
}

// Forward runs the block over seq and returns the transformed sequence and
// the attention weights captured for the snapshot.
func (b *Block) Forward(seq [][]float64) ([][]float64, [][][]float64) {
	attended, weights := b.attention.Apply(seq)

	out := make([][]float64, len(seq))
	for i := range seq {
		// Residual + norm around attention.
		x := LayerNorm(VectorAdd(seq[i], attended[i]))

		// Position-wise feed-forward.
		hidden := make([]float64, b.dim)
		for j := 0; j < b.dim; j++ {
			hidden[j] = DotProduct(b.w1[j], x)
		}
		hidden = ReLUVector(hidden)

		ffn := make([]float64, b.dim)
		for j := 0; j < b.dim; j++ {
			ffn[j] = DotProduct(b.w2[j], hidden)
		}

		// Residual + norm around feed-forward.
		out[i] = LayerNorm(VectorAdd(x, ffn))
	}

	return out, weights
}
