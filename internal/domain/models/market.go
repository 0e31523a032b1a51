package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is a Binance kline interval identifier (1m, 5m, 1h, ...).
type Interval string

// Intervals supported by the provider, shortest first.
var ValidIntervals = []Interval{
	"1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

// Valid reports whether i is one of the provider's kline intervals.
func (i Interval) Valid() bool {
	for _, v := range ValidIntervals {
		if i == v {
			return true
		}
	}
	return false
}

// ParseIntervals converts config strings into Intervals, preserving order.
// Unknown values are returned in the second result.
func ParseIntervals(raw []string) ([]Interval, []string) {
	var (
		out     []Interval
		unknown []string
	)
	for _, r := range raw {
		i := Interval(r)
		if i.Valid() {
			out = append(out, i)
		} else {
			unknown = append(unknown, r)
		}
	}
	return out, unknown
}

// Symbol is one ranked trading pair as reported by the ranking store.
// A slice of Symbols is an immutable snapshot for one synchronization cycle.
type Symbol struct {
	Symbol        string    `json:"symbol"`
	BaseAsset     string    `json:"base_asset"`
	QuoteAsset    string    `json:"quote_asset"`
	ActivityScore int64     `json:"activity_score"`
	ObservedAt    time.Time `json:"observed_at"`
}

// Batch is the set of channels one connection worker subscribes to.
// It is owned exclusively by the worker spawned for it and discarded
// when the fleet cycle tears down.
type Batch struct {
	ID       string
	Interval Interval
	Members  []Symbol
}

// Channels returns the provider stream names for every member, in order.
func (b Batch) Channels() []string {
	out := make([]string, 0, len(b.Members))
	for _, m := range b.Members {
		out = append(out, strings.ToLower(m.Symbol)+"@kline_"+string(b.Interval))
	}
	return out
}

// CandleEvent is one decoded kline update. Constructed by a connection
// worker from a single frame and consumed exactly once by the sink.
type CandleEvent struct {
	Symbol      string
	Interval    Interval
	EventTime   time.Time
	StartTime   time.Time
	CloseTime   time.Time
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	BaseVolume  decimal.Decimal
	QuoteVolume decimal.Decimal
	IsClosed    bool
}

// StreamKey derives the per-(interval,symbol) stream store key.
func StreamKey(interval Interval, symbol string) string {
	return "kline:" + string(interval) + ":" + symbol
}
