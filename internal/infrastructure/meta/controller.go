// Package meta provides the meta-learning controller that blends head
// parameterizations across domains.
package meta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/infrastructure/attention"
)

// Candidate is one parameterization of a head: a reference embedding used
// for similarity gating and the parameter vector blended into the head.
type Candidate struct {
	ID        string    `json:"id"`
	Reference []float64 `json:"reference"`
	Params    []float64 `json:"params"`
}

// BlendResult records a blending decision for observability and tests.
type BlendResult struct {
	HeadID  string             `json:"headId"`
	Params  []float64          `json:"params"`
	Weights map[string]float64 `json:"weights"`
}

// Controller computes similarity-weighted parameter combinations over the
// candidate set of each head. Given the same embedding and the same
// adaptation state snapshot, blending is fully deterministic.
type Controller struct {
	dim        int
	candidates map[string][]Candidate
}

// Variant suffixes of the candidate set generated per head.
var candidateVariants = []string{"base", "adapted", "conservative"}

// NewController creates a controller with deterministic candidate sets for
// the given head identifiers.
func NewController(dim int, headIDs []string) *Controller {
	c := &Controller{
		dim:        dim,
		candidates: make(map[string][]Candidate, len(headIDs)),
	}

	for _, headID := range headIDs {
		candidates := make([]Candidate, 0, len(candidateVariants))
		for _, variant := range candidateVariants {
			id := headID + "/" + variant
			candidates = append(candidates, Candidate{
				ID:        id,
				Reference: attention.DeterministicVector("ref:"+id, dim),
				Params:    attention.DeterministicVector("params:"+id, dim),
			})
		}
		c.candidates[headID] = candidates
	}
	return c
}

// Blend computes the blended parameter vector for headID given the trunk
// embedding and the domain's adaptation state. Candidate scores combine
// cosine similarity to the embedding, similarity to the domain centroid
// learned so far, and the head's accumulated blend weight; softmax turns
// them into the blend distribution.
func (c *Controller) Blend(headID string, embedding []float64, state *adaptation.State) (*BlendResult, error) {
	candidates, ok := c.candidates[headID]
	if !ok {
		return nil, fmt.Errorf("no candidates registered for head %q", headID)
	}

	scores := make([]float64, len(candidates))
	for i, candidate := range candidates {
		score := attention.CosineSimilarity(embedding, candidate.Reference)
		if state != nil && len(state.Centroid) == len(candidate.Reference) {
			score += 0.5 * attention.CosineSimilarity(state.Centroid, candidate.Reference)
		}
		if state != nil && strings.HasSuffix(candidate.ID, "/adapted") {
			// The per-head affinity accumulated by the feedback loop pulls
			// rewarded heads toward their adapted parameterization.
			score += state.BlendWeights[headID]
		}
		scores[i] = score
	}

	weights := attention.Softmax(scores)

	params := make([]float64, c.dim)
	weightsByID := make(map[string]float64, len(candidates))
	for i, candidate := range candidates {
		weightsByID[candidate.ID] = weights[i]
		for d := 0; d < c.dim && d < len(candidate.Params); d++ {
			params[d] += weights[i] * candidate.Params[d]
		}
	}

	return &BlendResult{
		HeadID:  headID,
		Params:  params,
		Weights: weightsByID,
	}, nil
}

// CandidateIDs returns the candidate identifiers for a head in stable
// order.
func (c *Controller) CandidateIDs(headID string) []string {
	candidates := c.candidates[headID]
	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}
	sort.Strings(ids)
	return ids
}
