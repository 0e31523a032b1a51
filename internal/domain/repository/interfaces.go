package repository

import (
	"context"

	"KlineFeed/internal/domain/models"
)

// RankingStore reports the current top-N symbols by trade activity,
// ordered by activity score descending, symbol ascending on ties.
type RankingStore interface {
	TopSymbols(ctx context.Context, n int) ([]models.Symbol, error)
}

// StreamStore is the bounded append-only time-series log. Append must be
// safe for concurrent callers and keep at most maxLen records per key.
type StreamStore interface {
	Append(ctx context.Context, key string, ev *models.CandleEvent, maxLen int64) error
}

// SymbolView is the published read replica of the active symbol set.
// Replace swaps the whole set atomically; consumers never observe an
// empty set mid-swap.
type SymbolView interface {
	Replace(ctx context.Context, symbols []models.Symbol) error
	Active(ctx context.Context) ([]string, error)
}

// MarketConn is one live provider connection.
type MarketConn interface {
	Subscribe(ctx context.Context, channels []string) error
	// ReadEvent blocks for the next frame. It returns (nil, nil) for
	// frames the pipeline ignores (control frames, unknown event types).
	ReadEvent(ctx context.Context) (*models.CandleEvent, error)
	Close() error
}

// MarketDialer opens provider connections.
type MarketDialer interface {
	Dial(ctx context.Context) (MarketConn, error)
}

// Metrics is the operational metrics recorder.
type Metrics interface {
	RecordCandleWritten(interval, symbol string)
	RecordFrameDropped(reason string)
	RecordSinkError()
	RecordSinkLatency(seconds float64)
	RecordLastClose(symbol string, price float64)
	RecordReconnect(batchID string)
	RecordReclaim()
	SetActiveWorkers(n int)
	SetActiveSymbols(n int)
}
