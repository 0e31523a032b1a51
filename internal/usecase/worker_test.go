package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"KlineFeed/internal/domain/models"
)

func testBatch(symbols ...string) models.Batch {
	members := rankedSymbols(symbols...)
	return models.Batch{ID: symbols[0] + "-1m", Interval: "1m", Members: members}
}

func runWorker(t *testing.T, w *ConnectionWorker) (cancel context.CancelFunc, done chan struct{}) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		w.Run(ctx)
	}()
	return cancelFn, doneCh
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWorkerForwardsOnlyClosedCandles(t *testing.T) {
	conn := &fakeConn{steps: []connStep{
		{ev: nil},                             // control frame
		{ev: openCandle("BTCUSDT", "1m")},     // in-progress, discard
		{ev: closedCandle("BTCUSDT", "1m")},   // forwarded
		{ev: closedCandle("ETHUSDT", "1m")},   // forwarded
	}}
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	store := newMockStreamStore()
	metrics := newMockMetrics()
	sink := NewCandleSink(store, 1000, metrics, newTestLogger(t))

	w := NewConnectionWorker(testBatch("BTCUSDT", "ETHUSDT"), dialer, sink, metrics,
		newTestLogger(t), 10*time.Millisecond, 50*time.Millisecond)
	cancel, done := runWorker(t, w)
	defer cancel()

	waitFor(t, "two sink writes", func() bool { return store.appendCalls() == 2 })

	if got := metrics.droppedCount("open_candle"); got != 1 {
		t.Fatalf("open_candle drops = %d, want 1", got)
	}
	if len(store.recordsFor("kline:1m:BTCUSDT")) != 1 {
		t.Fatal("missing BTCUSDT record")
	}

	cancel()
	<-done
}

func TestWorkerSurvivesSinkFailure(t *testing.T) {
	conn := &fakeConn{steps: []connStep{
		{ev: closedCandle("BTCUSDT", "1m")},
		{ev: closedCandle("BTCUSDT", "1m")},
		{ev: closedCandle("BTCUSDT", "1m")},
	}}
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	store := newMockStreamStore()
	store.err = errors.New("stream store down")
	metrics := newMockMetrics()
	sink := NewCandleSink(store, 1000, metrics, newTestLogger(t))

	w := NewConnectionWorker(testBatch("BTCUSDT"), dialer, sink, metrics,
		newTestLogger(t), 10*time.Millisecond, 50*time.Millisecond)
	cancel, done := runWorker(t, w)
	defer cancel()

	// Every frame is still attempted even though each append fails.
	waitFor(t, "three append attempts", func() bool { return store.appendCalls() == 3 })
	if dialer.dialCount() != 1 {
		t.Fatalf("dials = %d, want 1 (sink errors must not drop the connection)", dialer.dialCount())
	}

	cancel()
	<-done
}

func TestWorkerReconnectsWithSameBatch(t *testing.T) {
	first := &fakeConn{steps: []connStep{
		{ev: closedCandle("BTCUSDT", "1m")},
		{err: errors.New("connection reset")},
	}}
	second := &fakeConn{steps: []connStep{
		{ev: closedCandle("BTCUSDT", "1m")},
	}}
	dialer := &fakeDialer{conns: []*fakeConn{first, second}}
	store := newMockStreamStore()
	metrics := newMockMetrics()
	sink := NewCandleSink(store, 1000, metrics, newTestLogger(t))

	delay := 30 * time.Millisecond
	w := NewConnectionWorker(testBatch("BTCUSDT", "ETHUSDT"), dialer, sink, metrics,
		newTestLogger(t), delay, 200*time.Millisecond)
	cancel, done := runWorker(t, w)
	defer cancel()

	waitFor(t, "reconnect and second write", func() bool { return store.appendCalls() == 2 })

	times := dialer.dialTimes()
	if len(times) != 2 {
		t.Fatalf("dials = %d, want 2", len(times))
	}
	if gap := times[1].Sub(times[0]); gap < delay {
		t.Fatalf("redial after %v, want at least %v", gap, delay)
	}

	// The resubscribe carries the identical batch membership.
	firstSubs := first.subscriptions()
	secondSubs := second.subscriptions()
	if len(firstSubs) != 1 || len(secondSubs) != 1 {
		t.Fatalf("subscriptions: first=%d second=%d, want 1 each", len(firstSubs), len(secondSubs))
	}
	if !reflect.DeepEqual(firstSubs[0], secondSubs[0]) {
		t.Fatalf("resubscribed channels %v differ from original %v", secondSubs[0], firstSubs[0])
	}
	if metrics.reconnectCount() < 1 {
		t.Fatal("expected a reconnect to be recorded")
	}

	cancel()
	<-done
}

func TestWorkerStopsOnCancel(t *testing.T) {
	conn := &fakeConn{}
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	sink := NewCandleSink(newMockStreamStore(), 1000, newMockMetrics(), newTestLogger(t))

	w := NewConnectionWorker(testBatch("BTCUSDT"), dialer, sink, newMockMetrics(),
		newTestLogger(t), 10*time.Millisecond, 50*time.Millisecond)
	cancel, done := runWorker(t, w)

	waitFor(t, "subscribe", func() bool { return len(conn.subscriptions()) == 1 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on cancellation")
	}
}
