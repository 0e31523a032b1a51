package usecase

import (
	"context"
	"testing"
	"time"
)

func TestReclaimerRunsPeriodically(t *testing.T) {
	metrics := newMockMetrics()
	r := NewResourceReclaimer(20*time.Millisecond, metrics, newTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	waitFor(t, "a reclaim pass", func() bool { return metrics.reclaimCount() >= 1 })

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reclaimer did not stop on cancellation")
	}
}
