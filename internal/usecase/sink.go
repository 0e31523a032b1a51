package usecase

import (
	"context"
	"fmt"
	"time"

	"KlineFeed/internal/domain/models"
	drepo "KlineFeed/internal/domain/repository"
	"KlineFeed/pkg/logger"
)

// CandleSink validates and writes closed-candle records into the bounded
// stream store. Store failures are logged and counted but never escalate
// past the worker that produced the event: the candle is lost, the
// receive loop keeps going.
//
// Every closed frame is appended as-is. If the provider ever turns out to
// re-emit a close event, this is the place to add idempotency keying by
// (symbol, interval, close_time).
type CandleSink struct {
	store   drepo.StreamStore
	maxLen  int64
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewCandleSink(store drepo.StreamStore, maxLen int64, metrics drepo.Metrics, log *logger.Logger) *CandleSink {
	return &CandleSink{store: store, maxLen: maxLen, metrics: metrics, log: log}
}

// Write appends one closed candle keyed by (interval, symbol).
func (s *CandleSink) Write(ctx context.Context, ev *models.CandleEvent) error {
	key := models.StreamKey(ev.Interval, ev.Symbol)

	start := time.Now()
	if err := s.store.Append(ctx, key, ev, s.maxLen); err != nil {
		s.metrics.RecordSinkError()
		s.log.Error("candle dropped: stream append failed",
			logger.String("key", key),
			logger.Error(err))
		return fmt.Errorf("append %s: %w", key, err)
	}

	s.metrics.RecordCandleWritten(string(ev.Interval), ev.Symbol)
	s.metrics.RecordSinkLatency(time.Since(start).Seconds())
	price, _ := ev.Close.Float64()
	s.metrics.RecordLastClose(ev.Symbol, price)
	return nil
}
