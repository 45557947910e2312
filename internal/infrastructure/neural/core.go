package neural

import (
	"fmt"
	"time"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/domain/registry"
	"github.com/aiengine/aiengine-go/internal/infrastructure/heads"
	"github.com/aiengine/aiengine-go/internal/infrastructure/meta"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// Core is the adaptive neural core: the shared trunk feeding
// domain-specific heads, gated by the meta-learning controller. It holds
// no mutable state of its own; adaptation flows in through the state
// snapshot, so the core is safe for unlocked concurrent use.
type Core struct {
	trunk        *Trunk
	heads        *heads.Registry
	controller   *meta.Controller
	modelVersion string
}

// NewCore assembles the core from its parts.
func NewCore(trunk *Trunk, headRegistry *heads.Registry, controller *meta.Controller, modelVersion string) *Core {
	return &Core{
		trunk:        trunk,
		heads:        headRegistry,
		controller:   controller,
		modelVersion: modelVersion,
	}
}

// Dim returns the trunk input width the core expects.
func (c *Core) Dim() int {
	return c.trunk.Dim()
}

// Predict runs the forward pass for one task. For fixed inputs and a fixed
// adaptation state version the output is identical across calls; the
// returned snapshot carries everything the explainability engine needs
// without re-running the pass.
func (c *Core) Predict(task *shared.Task, encoded *shared.EncodedFeatures, profile *registry.DomainProfile, state *adaptation.State) (*shared.Prediction, *shared.ActivationSnapshot, error) {
	if encoded.ProfileVersion != profile.Version {
		// Features encoded under a different profile version: version
		// skew, same failure class as a width mismatch.
		return nil, nil, shared.NewShapeMismatchError(c.trunk.Dim(), encoded.Dim())
	}

	forward, err := c.trunk.Forward(encoded)
	if err != nil {
		return nil, nil, err
	}

	head := c.heads.Get(profile.HeadID)
	if head == nil {
		return nil, nil, shared.NewConfigurationError(
			fmt.Sprintf("profile %s/%s references unregistered head %q", profile.Domain, profile.TaskType, profile.HeadID), nil)
	}

	blend, err := c.controller.Blend(profile.HeadID, forward.Embedding, state)
	if err != nil {
		return nil, nil, shared.NewConfigurationError(err.Error(), nil)
	}

	output, raw, activations := head.Apply(forward.Embedding, blend.Params)
	confidence := meta.Calibrate(raw, state)

	var stateVersion uint64
	baseline := 0.5
	if state != nil {
		stateVersion = state.Version
		baseline = state.Baseline()
	}

	prediction := &shared.Prediction{
		TaskID:       task.ID,
		Domain:       task.Domain,
		Output:       output,
		Confidence:   confidence,
		HeadID:       profile.HeadID,
		StateVersion: stateVersion,
		ModelVersion: c.modelVersion,
		CreatedAt:    time.Now().UTC(),
	}

	snapshot := &shared.ActivationSnapshot{
		TaskID:                task.ID,
		Attention:             forward.Attention,
		Embedding:             forward.Embedding,
		HeadActivations:       activations,
		PositionContributions: PositionContributions(forward, blend.Params),
		Fields:                encoded.Fields,
		Baseline:              baseline,
		StateVersion:          stateVersion,
	}

	return prediction, snapshot, nil
}
