// Package engine orchestrates the task processing pipeline: routing,
// encoding, prediction and explanation, with per-stage deadlines.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aiengine/aiengine-go/internal/application/feedback"
	"github.com/aiengine/aiengine-go/internal/domain/registry"
	"github.com/aiengine/aiengine-go/internal/infrastructure/encoder"
	"github.com/aiengine/aiengine-go/internal/infrastructure/explain"
	"github.com/aiengine/aiengine-go/internal/infrastructure/metrics"
	"github.com/aiengine/aiengine-go/internal/infrastructure/neural"
	"github.com/aiengine/aiengine-go/internal/infrastructure/store"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// Timeouts bounds each pipeline stage independently. A stage that
// overruns fails that task only.
type Timeouts struct {
	Encode  time.Duration
	Predict time.Duration
	Explain time.Duration
}

// DefaultTimeouts returns the default per-stage deadlines.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Encode:  2 * time.Second,
		Predict: 5 * time.Second,
		Explain: 5 * time.Second,
	}
}

// Result is the full outcome of processing one task. Explanation is nil
// when explanation generation failed; Prediction is still valid in that
// case and ExplainErr carries the cause.
type Result struct {
	Prediction  *shared.Prediction
	Explanation *shared.Explanation
	ExplainErr  error
}

// Service runs the processing pipeline. It holds no per-task state;
// concurrent Process calls share only immutable components and the
// adaptation state snapshots they read.
type Service struct {
	registry  *registry.Registry
	encoder   *encoder.Encoder
	core      *neural.Core
	explainer *explain.Engine
	loop      *feedback.Loop
	store     store.RecordStore
	sink      metrics.Sink
	logger    *zap.Logger
	timeouts  Timeouts
}

// NewService wires the pipeline components together.
func NewService(
	reg *registry.Registry,
	enc *encoder.Encoder,
	core *neural.Core,
	explainer *explain.Engine,
	loop *feedback.Loop,
	recordStore store.RecordStore,
	sink metrics.Sink,
	logger *zap.Logger,
	timeouts Timeouts,
) *Service {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeouts.Encode <= 0 {
		timeouts.Encode = DefaultTimeouts().Encode
	}
	if timeouts.Predict <= 0 {
		timeouts.Predict = DefaultTimeouts().Predict
	}
	if timeouts.Explain <= 0 {
		timeouts.Explain = DefaultTimeouts().Explain
	}

	return &Service{
		registry:  reg,
		encoder:   enc,
		core:      core,
		explainer: explainer,
		loop:      loop,
		store:     recordStore,
		sink:      sink,
		logger:    logger,
		timeouts:  timeouts,
	}
}

// Process runs one task through the full pipeline. Routing and validation
// happen before any model work. Per-task failures return typed errors and
// never disturb adaptation state; the state snapshot is taken once so a
// concurrent feedback update cannot split a single prediction across
// versions.
func (s *Service) Process(ctx context.Context, task *shared.Task) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profile, err := s.registry.Resolve(task.Domain, task.Type)
	if err != nil {
		s.observeError(err)
		return nil, err
	}
	s.sink.IncDomainHit(task.Domain)

	// One snapshot for the whole task.
	state := s.loop.State(task.Domain)

	var encoded *shared.EncodedFeatures
	err = s.runStage(ctx, shared.StageEncode, task.Domain, s.timeouts.Encode, func(context.Context) error {
		var stageErr error
		encoded, stageErr = s.encoder.Encode(task, profile)
		return stageErr
	})
	if err != nil {
		s.observeError(err)
		return nil, err
	}

	var prediction *shared.Prediction
	var snapshot *shared.ActivationSnapshot
	err = s.runStage(ctx, shared.StagePredict, task.Domain, s.timeouts.Predict, func(context.Context) error {
		var stageErr error
		prediction, snapshot, stageErr = s.core.Predict(task, encoded, profile, state)
		return stageErr
	})
	if err != nil {
		s.observeError(err)
		return nil, err
	}
	s.sink.ObserveConfidence(task.Domain, prediction.Confidence)

	if err := s.store.PutPrediction(ctx, prediction); err != nil {
		s.logger.Warn("failed to persist prediction",
			zap.String("taskId", task.ID), zap.Error(err))
	}
	if err := s.store.PutSnapshot(ctx, snapshot); err != nil {
		s.logger.Warn("failed to persist activation snapshot",
			zap.String("taskId", task.ID), zap.Error(err))
	}

	result := &Result{Prediction: prediction}

	// Explanation failure degrades the result, never the prediction.
	var explanation *shared.Explanation
	explainErr := s.runStage(ctx, shared.StageExplain, task.Domain, s.timeouts.Explain, func(context.Context) error {
		var stageErr error
		explanation, stageErr = s.explainer.Explain(prediction, snapshot, profile, state.SampleCount)
		return stageErr
	})
	if explainErr != nil {
		s.observeError(explainErr)
		s.logger.Warn("explanation unavailable",
			zap.String("taskId", task.ID),
			zap.String("domain", string(task.Domain)),
			zap.Error(explainErr))
		result.ExplainErr = explainErr
		return result, nil
	}

	result.Explanation = explanation
	if err := s.store.PutExplanation(ctx, explanation); err != nil {
		s.logger.Warn("failed to persist explanation",
			zap.String("taskId", task.ID), zap.Error(err))
	}

	s.logger.Debug("task processed",
		zap.String("taskId", task.ID),
		zap.String("domain", string(task.Domain)),
		zap.String("taskType", string(task.Type)),
		zap.Float64("confidence", prediction.Confidence),
		zap.Uint64("stateVersion", prediction.StateVersion))

	return result, nil
}

// Explanation retrieves a stored explanation by task ID.
func (s *Service) Explanation(ctx context.Context, taskID string) (*shared.Explanation, error) {
	return s.store.GetExplanation(ctx, taskID)
}

// Prediction retrieves a stored prediction by task ID.
func (s *Service) Prediction(ctx context.Context, taskID string) (*shared.Prediction, error) {
	return s.store.GetPrediction(ctx, taskID)
}

// observeError records the engine error code when one exists. Context
// cancellation carries no code and is not counted.
func (s *Service) observeError(err error) {
	if code := shared.ErrorCode(err); code != "" {
		s.sink.IncError(code)
	}
}

// runStage executes fn under the stage deadline and records its latency.
// Deadline overrun maps to a stage timeout; caller cancellation is
// reported as the caller's error, not as a timeout.
func (s *Service) runStage(ctx context.Context, stage shared.Stage, domain shared.DomainType, timeout time.Duration, fn func(context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- fn(stageCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-stageCtx.Done():
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else {
			err = shared.NewStageTimeoutError(stage)
		}
	}

	s.sink.ObserveStageLatency(stage, domain, time.Since(start))
	return err
}
