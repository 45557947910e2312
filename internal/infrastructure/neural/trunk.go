// Package neural provides the shared representation trunk of the adaptive
// core.
package neural

import (
	"github.com/aiengine/aiengine-go/internal/infrastructure/attention"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// TrunkConfig configures the shared trunk.
type TrunkConfig struct {
	// Attention configures the self-attention heads; the model width is
	// NumHeads * HeadDimension.
	Attention attention.Config `json:"attention"`

	// Layers is the number of stacked encoder blocks.
	Layers int `json:"layers"`
}

// DefaultTrunkConfig returns the default trunk configuration: 2 encoder
// blocks of 4 heads x 4 dims.
func DefaultTrunkConfig() TrunkConfig {
	return TrunkConfig{
		Attention: attention.DefaultConfig(),
		Layers:    2,
	}
}

// Trunk is the domain-agnostic representation stack: sinusoidal position
// encoding followed by stacked encoder blocks, mean-pooled into a single
// embedding. All parameters derive deterministically from layer indexes,
// so a forward pass is a pure function of the encoded input.
type Trunk struct {
	config TrunkConfig
	blocks []*attention.Block
}

// NewTrunk creates a trunk from the configuration.
func NewTrunk(config TrunkConfig) *Trunk {
	if config.Layers <= 0 {
		config.Layers = DefaultTrunkConfig().Layers
	}
	if config.Attention.Dim() == 0 {
		config.Attention = attention.DefaultConfig()
	}

	blocks := make([]*attention.Block, config.Layers)
	for layer := 0; layer < config.Layers; layer++ {
		blocks[layer] = attention.NewBlock(layer, config.Attention)
	}
	return &Trunk{config: config, blocks: blocks}
}

// Dim returns the trunk's expected input and embedding width.
func (t *Trunk) Dim() int {
	return t.config.Attention.Dim()
}

// ForwardResult carries everything downstream stages need from one pass.
type ForwardResult struct {
	// Embedding is the mean-pooled domain-agnostic representation.
	Embedding []float64

	// Sequence is the final-layer sequence, one vector per input position.
	Sequence [][]float64

	// Attention holds the per-layer attention weights.
	Attention []shared.LayerAttention
}

// Forward runs the trunk over encoded features. It fails with
// ShapeMismatchError when the encoded width differs from the trunk width —
// an encoder/profile version skew, not a caller error.
func (t *Trunk) Forward(encoded *shared.EncodedFeatures) (*ForwardResult, error) {
	if encoded.SeqLen() == 0 {
		return nil, shared.NewShapeMismatchError(t.Dim(), 0)
	}
	if encoded.Dim() != t.Dim() {
		return nil, shared.NewShapeMismatchError(t.Dim(), encoded.Dim())
	}

	// Add position encodings without touching the caller's vectors.
	seq := make([][]float64, encoded.SeqLen())
	for i, vec := range encoded.Vectors {
		seq[i] = attention.VectorAdd(vec, attention.SinusoidalEncoding(i, t.Dim()))
	}

	layers := make([]shared.LayerAttention, 0, len(t.blocks))
	for layer, block := range t.blocks {
		var weights [][][]float64
		seq, weights = block.Forward(seq)
		layers = append(layers, shared.LayerAttention{Layer: layer, Weights: weights})
	}

	// Mean-pool into the embedding.
	embedding := make([]float64, t.Dim())
	for _, vec := range seq {
		for d, v := range vec {
			embedding[d] += v
		}
	}
	for d := range embedding {
		embedding[d] /= float64(len(seq))
	}

	return &ForwardResult{
		Embedding: embedding,
		Sequence:  seq,
		Attention: layers,
	}, nil
}

// PositionContributions computes each position's share of a head's raw
// score: the dot product of the position's final-layer vector with the
// blended head parameters, scaled by the pooling factor. The snapshot
// carries these so perturbation-based attribution never re-runs the trunk.
func PositionContributions(result *ForwardResult, params []float64) []float64 {
	if result == nil || len(result.Sequence) == 0 {
		return nil
	}

	n := float64(len(result.Sequence))
	contributions := make([]float64, len(result.Sequence))
	for i, vec := range result.Sequence {
		contributions[i] = attention.DotProduct(vec, params) / n
	}
	return contributions
}
