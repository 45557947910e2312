// Package metrics provides the observability sink collaborator. The
// engine pushes counters and latency observations through the Sink
// interface; an absent or slow sink must never block task processing, so
// implementations are expected to be non-blocking.
package metrics

import (
	"sync"
	"time"

	"github.com/aiengine/aiengine-go/internal/shared"
)

// Sink receives the engine's observations.
type Sink interface {
	// ObserveStageLatency records how long one pipeline stage took.
	ObserveStageLatency(stage shared.Stage, domain shared.DomainType, elapsed time.Duration)

	// ObserveConfidence records one prediction's confidence.
	ObserveConfidence(domain shared.DomainType, confidence float64)

	// IncDomainHit counts one routed task per domain.
	IncDomainHit(domain shared.DomainType)

	// IncError counts one failure by error code.
	IncError(code string)
}

// NopSink discards all observations. It is the default when no sink is
// wired, so metrics can never stall the pipeline.
type NopSink struct{}

// ObserveStageLatency implements Sink.
func (NopSink) ObserveStageLatency(shared.Stage, shared.DomainType, time.Duration) {}

// ObserveConfidence implements Sink.
func (NopSink) ObserveConfidence(shared.DomainType, float64) {}

// IncDomainHit implements Sink.
func (NopSink) IncDomainHit(shared.DomainType) {}

// IncError implements Sink.
func (NopSink) IncError(string) {}

// MemorySink accumulates observations in memory, for tests and the CLI
// benchmark report.
type MemorySink struct {
	mu           sync.Mutex
	stageLatency map[string][]time.Duration
	confidences  map[shared.DomainType][]float64
	domainHits   map[shared.DomainType]int64
	errorCounts  map[string]int64
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		stageLatency: make(map[string][]time.Duration),
		confidences:  make(map[shared.DomainType][]float64),
		domainHits:   make(map[shared.DomainType]int64),
		errorCounts:  make(map[string]int64),
	}
}

// ObserveStageLatency implements Sink.
func (s *MemorySink) ObserveStageLatency(stage shared.Stage, domain shared.DomainType, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(domain) + "/" + string(stage)
	s.stageLatency[key] = append(s.stageLatency[key], elapsed)
}

// ObserveConfidence implements Sink.
func (s *MemorySink) ObserveConfidence(domain shared.DomainType, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confidences[domain] = append(s.confidences[domain], confidence)
}

// IncDomainHit implements Sink.
func (s *MemorySink) IncDomainHit(domain shared.DomainType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domainHits[domain]++
}

// IncError implements Sink.
func (s *MemorySink) IncError(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCounts[code]++
}

// DomainHits returns the hit count for a domain.
func (s *MemorySink) DomainHits(domain shared.DomainType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domainHits[domain]
}

// ErrorCount returns the count for an error code.
func (s *MemorySink) ErrorCount(code string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCounts[code]
}

// Confidences returns a copy of the confidences observed for a domain.
func (s *MemorySink) Confidences(domain shared.DomainType) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.confidences[domain]...)
}

// StageLatencies returns a copy of the latencies observed for one
// domain/stage pair.
func (s *MemorySink) StageLatencies(domain shared.DomainType, stage shared.Stage) []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(domain) + "/" + string(stage)
	return append([]time.Duration(nil), s.stageLatency[key]...)
}
