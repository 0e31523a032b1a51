package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"KlineFeed/internal/domain/models"
	drepo "KlineFeed/internal/domain/repository"
	"KlineFeed/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// mockMetrics counts recorder calls.
type mockMetrics struct {
	mu         sync.Mutex
	written    int
	dropped    map[string]int
	sinkErrors int
	reconnects int
	reclaims   int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{dropped: make(map[string]int)}
}

func (m *mockMetrics) RecordCandleWritten(interval, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written++
}

func (m *mockMetrics) RecordFrameDropped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped[reason]++
}

func (m *mockMetrics) RecordSinkError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinkErrors++
}

func (m *mockMetrics) RecordSinkLatency(float64) {}

func (m *mockMetrics) RecordLastClose(string, float64) {}

func (m *mockMetrics) RecordReconnect(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

func (m *mockMetrics) RecordReclaim() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reclaims++
}

func (m *mockMetrics) SetActiveWorkers(int) {}

func (m *mockMetrics) SetActiveSymbols(int) {}

func (m *mockMetrics) droppedCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped[reason]
}

func (m *mockMetrics) sinkErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinkErrors
}

func (m *mockMetrics) writtenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

func (m *mockMetrics) reconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

func (m *mockMetrics) reclaimCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reclaims
}

// mockStreamStore records appends and keeps per-key records capped at
// maxLen, mirroring the stream store's bounded-length guarantee.
type mockStreamStore struct {
	mu      sync.Mutex
	err     error
	calls   int
	records map[string][]*models.CandleEvent
}

func newMockStreamStore() *mockStreamStore {
	return &mockStreamStore{records: make(map[string][]*models.CandleEvent)}
}

func (m *mockStreamStore) Append(_ context.Context, key string, ev *models.CandleEvent, maxLen int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	recs := append(m.records[key], ev)
	if int64(len(recs)) > maxLen {
		recs = recs[int64(len(recs))-maxLen:]
	}
	m.records[key] = recs
	return nil
}

func (m *mockStreamStore) appendCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockStreamStore) recordsFor(key string) []*models.CandleEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key]
}

// mockRankingStore serves a fixed snapshot or a fixed error.
type mockRankingStore struct {
	mu      sync.Mutex
	symbols []models.Symbol
	err     error
	calls   int
}

func (m *mockRankingStore) TopSymbols(_ context.Context, n int) ([]models.Symbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if n > len(m.symbols) {
		n = len(m.symbols)
	}
	return m.symbols[:n], nil
}

func (m *mockRankingStore) queryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSymbolView records replaces.
type mockSymbolView struct {
	mu       sync.Mutex
	err      error
	replaces int
	last     []models.Symbol
}

func (m *mockSymbolView) Replace(_ context.Context, symbols []models.Symbol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.replaces++
	m.last = symbols
	return nil
}

func (m *mockSymbolView) Active(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.last))
	for _, s := range m.last {
		out = append(out, s.Symbol)
	}
	return out, nil
}

func (m *mockSymbolView) replaceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaces
}

// connStep is one scripted ReadEvent result.
type connStep struct {
	ev  *models.CandleEvent
	err error
}

// fakeConn replays scripted steps, then blocks until cancellation.
type fakeConn struct {
	mu         sync.Mutex
	steps      []connStep
	idx        int
	subscribed [][]string
	closed     bool
}

func (c *fakeConn) Subscribe(_ context.Context, channels []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = append(c.subscribed, channels)
	return nil
}

func (c *fakeConn) ReadEvent(ctx context.Context) (*models.CandleEvent, error) {
	c.mu.Lock()
	if c.idx < len(c.steps) {
		step := c.steps[c.idx]
		c.idx++
		c.mu.Unlock()
		return step.ev, step.err
	}
	c.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) subscriptions() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// fakeDialer hands out scripted conns in order and records dial times.
// When the script runs out it blocks until cancellation.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	idx   int
	dials []time.Time
}

func (d *fakeDialer) Dial(ctx context.Context) (drepo.MarketConn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, time.Now())
	if d.idx < len(d.conns) {
		conn := d.conns[d.idx]
		d.idx++
		d.mu.Unlock()
		return conn, nil
	}
	d.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) dialTimes() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.dials...)
}

// echoDialer creates, per dial, a conn that emits one closed candle for
// the first subscribed channel and then blocks. Used for end-to-end
// fleet tests where workers dial concurrently.
type echoDialer struct {
	mu    sync.Mutex
	dials int
}

func (d *echoDialer) Dial(context.Context) (drepo.MarketConn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	return &echoConn{}, nil
}

func (d *echoDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type echoConn struct {
	mu       sync.Mutex
	channels []string
	emitted  bool
}

func (c *echoConn) Subscribe(_ context.Context, channels []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = channels
	return nil
}

func (c *echoConn) ReadEvent(ctx context.Context) (*models.CandleEvent, error) {
	c.mu.Lock()
	if !c.emitted && len(c.channels) > 0 {
		c.emitted = true
		ch := c.channels[0]
		c.mu.Unlock()
		return eventForChannel(ch), nil
	}
	c.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *echoConn) Close() error { return nil }

// eventForChannel builds a closed candle from a stream name such as
// "btcusdt@kline_1m".
func eventForChannel(channel string) *models.CandleEvent {
	parts := strings.SplitN(channel, "@kline_", 2)
	symbol := strings.ToUpper(parts[0])
	interval := models.Interval("1m")
	if len(parts) == 2 {
		interval = models.Interval(parts[1])
	}
	return closedCandle(symbol, interval)
}

func closedCandle(symbol string, interval models.Interval) *models.CandleEvent {
	now := time.Now().UTC().Truncate(time.Minute)
	return &models.CandleEvent{
		Symbol:      symbol,
		Interval:    interval,
		EventTime:   now,
		StartTime:   now.Add(-time.Minute),
		CloseTime:   now,
		Open:        decimal.NewFromInt(100),
		High:        decimal.NewFromInt(110),
		Low:         decimal.NewFromInt(90),
		Close:       decimal.NewFromInt(105),
		BaseVolume:  decimal.NewFromInt(12),
		QuoteVolume: decimal.NewFromInt(1260),
		IsClosed:    true,
	}
}

func openCandle(symbol string, interval models.Interval) *models.CandleEvent {
	ev := closedCandle(symbol, interval)
	ev.IsClosed = false
	return ev
}

func rankedSymbols(names ...string) []models.Symbol {
	out := make([]models.Symbol, 0, len(names))
	for i, n := range names {
		out = append(out, models.Symbol{
			Symbol:        n,
			ActivityScore: int64(1000 - i),
			ObservedAt:    time.Now().UTC(),
		})
	}
	return out
}
