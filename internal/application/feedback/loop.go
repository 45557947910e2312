// Package feedback provides the continual learning feedback loop: the
// only component that mutates adaptation state between tasks.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiengine/aiengine-go/internal/domain/adaptation"
	"github.com/aiengine/aiengine-go/internal/infrastructure/heads"
	"github.com/aiengine/aiengine-go/internal/infrastructure/meta"
	"github.com/aiengine/aiengine-go/internal/infrastructure/store"
	"github.com/aiengine/aiengine-go/internal/shared"
)

// Config configures the feedback loop.
type Config struct {
	// Alpha is the exponential moving-average factor for calibration,
	// blend-weight and centroid updates. Exponentially-weighted statistics
	// bound each domain's drift per update, which is what keeps one
	// domain's stream of outcomes from erasing another's accumulated
	// state.
	Alpha float64

	// RetainVersions is how many superseded state versions stay available
	// for in-flight explanation reproducibility before garbage collection.
	RetainVersions int

	// QueueSize bounds the asynchronous feedback queue.
	QueueSize int
}

// DefaultConfig returns the default feedback configuration.
func DefaultConfig() Config {
	return Config{
		Alpha:          0.1,
		RetainVersions: 8,
		QueueSize:      256,
	}
}

// Feedback is one asynchronous outcome submission. A nil Label records
// usage statistics only.
type Feedback struct {
	TaskID string
	Label  any
}

// domainSlot serializes writers for one domain. current is replaced
// wholesale under mu, so readers always observe a complete version.
type domainSlot struct {
	mu      sync.RWMutex
	current *adaptation.State
	history []*adaptation.State
}

// Loop records task outcomes and publishes new adaptation state versions.
// Updates to a given domain are serialized; updates to different domains
// proceed independently.
type Loop struct {
	mu      sync.Mutex
	domains map[shared.DomainType]*domainSlot

	headIDs []string
	store   store.RecordStore
	logger  *zap.Logger
	config  Config

	queue   chan Feedback
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewLoop creates a feedback loop over the given record store. headIDs is
// the closed set of head identifiers blend weights range over.
func NewLoop(recordStore store.RecordStore, headIDs []string, config Config, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Alpha <= 0 || config.Alpha >= 1 {
		config.Alpha = DefaultConfig().Alpha
	}
	if config.RetainVersions <= 0 {
		config.RetainVersions = DefaultConfig().RetainVersions
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}

	l := &Loop{
		domains: make(map[shared.DomainType]*domainSlot),
		headIDs: append([]string(nil), headIDs...),
		store:   recordStore,
		logger:  logger,
		config:  config,
		queue:   make(chan Feedback, config.QueueSize),
	}

	l.wg.Add(1)
	go l.consume()

	return l
}

// slot returns the domain's slot, creating it at version 0 on first use.
func (l *Loop) slot(domain shared.DomainType) *domainSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.domains[domain]
	if !ok {
		s = &domainSlot{current: adaptation.Initial(domain, l.headIDs)}
		l.domains[domain] = s
	}
	return s
}

// State returns the domain's current adaptation state snapshot. The
// returned value is immutable; callers may hold it across an entire
// prediction without locking.
func (l *Loop) State(domain shared.DomainType) *adaptation.State {
	s := l.slot(domain)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// StateVersion returns a retained version of the domain's state, for
// explanation reproducibility of in-flight predictions. Returns nil when
// the version has been garbage-collected.
func (l *Loop) StateVersion(domain shared.DomainType, version uint64) *adaptation.State {
	s := l.slot(domain)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.Version == version {
		return s.current
	}
	for _, old := range s.history {
		if old.Version == version {
			return old
		}
	}
	return nil
}

// Seed loads the latest persisted state for a domain, replacing the
// in-memory slot when the stored version is newer. Called at startup.
func (l *Loop) Seed(ctx context.Context, domain shared.DomainType) error {
	persisted, err := l.store.LatestState(ctx, domain)
	if err != nil {
		if errors.Is(err, shared.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	s := l.slot(domain)
	s.mu.Lock()
	defer s.mu.Unlock()
	if persisted.Version > s.current.Version {
		s.current = persisted
	}
	return nil
}

// RecordOutcome applies one outcome synchronously and returns the new
// state version. A nil label records usage statistics only; a label also
// updates calibration and blend weights. The snapshot read happens before
// the per-domain lock is taken, so no lock is held across store access.
func (l *Loop) RecordOutcome(ctx context.Context, prediction *shared.Prediction, label any) (uint64, error) {
	if prediction == nil {
		return 0, fmt.Errorf("feedback requires a prediction")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Fetch the embedding for the centroid update outside any lock. A
	// missing snapshot only skips the centroid update.
	var embedding []float64
	if snapshot, err := l.store.GetSnapshot(ctx, prediction.TaskID); err == nil {
		embedding = snapshot.Embedding
	}

	s := l.slot(prediction.Domain)

	s.mu.Lock()
	next := s.current.Clone()
	next.Version++
	next.VersionID = uuid.NewString()
	next.UpdatedAt = time.Now().UTC()
	l.apply(next, prediction, label, embedding)

	s.history = append(s.history, s.current)
	if len(s.history) > l.config.RetainVersions {
		s.history = s.history[len(s.history)-l.config.RetainVersions:]
	}
	s.current = next
	s.mu.Unlock()

	// Persist outside the lock; the store ignores stale versions.
	if err := l.store.PutState(ctx, next); err != nil {
		l.logger.Warn("failed to persist adaptation state",
			zap.String("domain", string(next.Domain)),
			zap.Uint64("version", next.Version),
			zap.Error(err))
	}

	l.logger.Debug("adaptation state updated",
		zap.String("domain", string(next.Domain)),
		zap.Uint64("version", next.Version),
		zap.Uint64("samples", next.SampleCount),
		zap.Bool("labeled", label != nil))

	return next.Version, nil
}

// apply folds one outcome into the next state version. Counts only grow.
func (l *Loop) apply(next *adaptation.State, prediction *shared.Prediction, label any, embedding []float64) {
	alpha := l.config.Alpha

	next.SampleCount++
	next.Calibration.MeanConfidence += alpha * (prediction.Confidence - next.Calibration.MeanConfidence)

	if len(embedding) > 0 {
		if len(next.Centroid) != len(embedding) {
			next.Centroid = shared.CloneFloats(embedding)
		} else {
			for i := range next.Centroid {
				next.Centroid[i] += alpha * (embedding[i] - next.Centroid[i])
			}
		}
	}

	if label == nil {
		return
	}

	next.LabeledCount++
	correct := labelMatches(prediction.Output[heads.OutputKey], label)

	accuracy := 0.0
	if correct {
		accuracy = 1.0
	}
	next.Calibration.MeanAccuracy += alpha * (accuracy - next.Calibration.MeanAccuracy)
	next.Calibration.Temperature = meta.NextTemperature(next.Calibration.Temperature, prediction.Confidence, correct, alpha)

	// Reward or penalize the head that produced this prediction, then
	// renormalize so blend weights stay a distribution.
	weight := next.BlendWeights[prediction.HeadID]
	if correct {
		weight += alpha * (1 - weight)
	} else {
		weight -= alpha * weight
	}
	next.BlendWeights[prediction.HeadID] = weight

	total := 0.0
	for _, w := range next.BlendWeights {
		total += w
	}
	if total > 0 {
		for id := range next.BlendWeights {
			next.BlendWeights[id] /= total
		}
	}
}

// labelMatches compares an observed label against the prediction's primary
// output, tolerating float noise.
func labelMatches(predicted, observed any) bool {
	pf, pok := toFloat(predicted)
	of, ook := toFloat(observed)
	if pok && ook {
		return math.Abs(pf-of) < 1e-6
	}
	return fmt.Sprint(predicted) == fmt.Sprint(observed)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Enqueue submits feedback for asynchronous processing and returns
// immediately. It fails only when the loop is closed or the queue is
// full; acknowledgment carries no synchronous effect on in-flight
// predictions.
func (l *Loop) Enqueue(feedback Feedback) error {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		return fmt.Errorf("feedback loop is closed")
	}

	select {
	case l.queue <- feedback:
		return nil
	default:
		return fmt.Errorf("feedback queue is full")
	}
}

// consume drains the asynchronous queue. Each item resolves its
// prediction record before applying the outcome; feedback for unknown or
// expired tasks is dropped with a log line.
func (l *Loop) consume() {
	defer l.wg.Done()

	for feedback := range l.queue {
		ctx := context.Background()

		prediction, err := l.store.GetPrediction(ctx, feedback.TaskID)
		if err != nil {
			l.logger.Warn("dropping feedback for unknown task",
				zap.String("taskId", feedback.TaskID),
				zap.Error(err))
			continue
		}

		if _, err := l.RecordOutcome(ctx, prediction, feedback.Label); err != nil {
			l.logger.Warn("failed to apply feedback",
				zap.String("taskId", feedback.TaskID),
				zap.Error(err))
		}
	}
}

// Close stops the asynchronous consumer after draining queued feedback.
func (l *Loop) Close() {
	l.closeMu.Lock()
	if l.closed {
		l.closeMu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.closeMu.Unlock()

	l.wg.Wait()
}
