// Package adaptation provides the versioned per-domain learning state
// consumed by the meta-learning controller.
package adaptation

import (
	"time"

	"github.com/aiengine/aiengine-go/internal/shared"
)

// Calibration holds the running confidence calibration statistics for one
// domain. All fields are exponentially-weighted moving statistics so old
// tasks decay instead of accumulating unbounded influence.
type Calibration struct {
	// MeanConfidence is the EWMA of predicted confidences.
	MeanConfidence float64 `json:"meanConfidence"`

	// MeanAccuracy is the EWMA of labeled-outcome correctness.
	MeanAccuracy float64 `json:"meanAccuracy"`

	// Temperature scales head logits before the confidence squash.
	// Values above 1 soften overconfident heads.
	Temperature float64 `json:"temperature"`
}

// State is one immutable version of a domain's accumulated adaptation
// statistics. The feedback loop builds a complete new State per update and
// publishes it atomically; readers never observe a partial update.
type State struct {
	// Domain is the domain this state belongs to.
	Domain shared.DomainType `json:"domain"`

	// Version is a per-domain monotonic counter. Counts and version never
	// decrease across updates.
	Version uint64 `json:"version"`

	// VersionID uniquely identifies this version for stale-read detection.
	VersionID string `json:"versionId"`

	// SampleCount is the total number of recorded outcomes.
	SampleCount uint64 `json:"sampleCount"`

	// LabeledCount is the number of outcomes that carried a ground-truth
	// label.
	LabeledCount uint64 `json:"labeledCount"`

	// Calibration holds the running confidence calibration statistics.
	Calibration Calibration `json:"calibration"`

	// BlendWeights accumulate per-head affinity for this domain. The
	// meta-learning controller folds them into its similarity gating.
	BlendWeights map[string]float64 `json:"blendWeights"`

	// Centroid is the EWMA of trunk embeddings seen for this domain, used
	// for cross-domain similarity.
	Centroid []float64 `json:"centroid"`

	// UpdatedAt is when this version was published.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Initial returns the version-0 state for a domain: empty counts, neutral
// calibration, uniform blend weights over the given head identifiers.
func Initial(domain shared.DomainType, headIDs []string) *State {
	blend := make(map[string]float64, len(headIDs))
	for _, id := range headIDs {
		blend[id] = 1.0 / float64(len(headIDs))
	}
	return &State{
		Domain:  domain,
		Version: 0,
		Calibration: Calibration{
			MeanConfidence: 0.5,
			MeanAccuracy:   0.5,
			Temperature:    1.0,
		},
		BlendWeights: blend,
		UpdatedAt:    time.Now().UTC(),
	}
}

// Clone returns a deep copy of the state. The feedback loop mutates the
// copy and publishes it as the next version; the receiver stays immutable.
func (s *State) Clone() *State {
	cloned := *s
	cloned.BlendWeights = make(map[string]float64, len(s.BlendWeights))
	for k, v := range s.BlendWeights {
		cloned.BlendWeights[k] = v
	}
	cloned.Centroid = shared.CloneFloats(s.Centroid)
	return &cloned
}

// Baseline returns the domain's baseline confidence: the calibrated prior
// an explanation's attributions are measured against.
func (s *State) Baseline() float64 {
	return s.Calibration.MeanConfidence
}

// Sparse reports whether the domain has seen fewer samples than threshold,
// in which case explanations carry an explicit sparse-data flag.
func (s *State) Sparse(threshold uint64) bool {
	return s.SampleCount < threshold
}
