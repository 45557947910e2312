package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/aiengine/aiengine-go/internal/shared"
)

func TestMemorySinkRecordsObservations(t *testing.T) {
	sink := NewMemorySink()

	sink.IncDomainHit(shared.DomainFinance)
	sink.IncDomainHit(shared.DomainFinance)
	sink.IncError(shared.CodeUnknownDomain)
	sink.ObserveConfidence(shared.DomainFinance, 0.7)
	sink.ObserveStageLatency(shared.StageEncode, shared.DomainFinance, 3*time.Millisecond)

	if got := sink.DomainHits(shared.DomainFinance); got != 2 {
		t.Errorf("domain hits = %d, want 2", got)
	}
	if got := sink.ErrorCount(shared.CodeUnknownDomain); got != 1 {
		t.Errorf("error count = %d, want 1", got)
	}
	if got := sink.Confidences(shared.DomainFinance); len(got) != 1 || got[0] != 0.7 {
		t.Errorf("confidences = %v", got)
	}
	if got := sink.StageLatencies(shared.DomainFinance, shared.StageEncode); len(got) != 1 {
		t.Errorf("stage latencies = %v", got)
	}

	if got := sink.DomainHits(shared.DomainHealthcare); got != 0 {
		t.Errorf("untouched domain hits = %d, want 0", got)
	}
}

func TestMemorySinkConcurrentAccess(t *testing.T) {
	sink := NewMemorySink()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sink.IncDomainHit(shared.DomainInfrastructure)
				sink.ObserveConfidence(shared.DomainInfrastructure, 0.5)
			}
		}()
	}
	wg.Wait()

	if got := sink.DomainHits(shared.DomainInfrastructure); got != 800 {
		t.Errorf("domain hits = %d, want 800", got)
	}
	if got := len(sink.Confidences(shared.DomainInfrastructure)); got != 800 {
		t.Errorf("confidence observations = %d, want 800", got)
	}
}
