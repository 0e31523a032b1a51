package usecase

import (
	"context"
	"time"

	"KlineFeed/internal/domain/models"
	drepo "KlineFeed/internal/domain/repository"
	"KlineFeed/pkg/logger"
)

// WorkerState tracks where a connection worker is in its lifecycle.
type WorkerState int

const (
	StateConnecting WorkerState = iota
	StateSubscribed
	StateStreaming
	StateBackoff
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// ConnectionWorker owns exactly one provider connection for one batch.
// It reconnects indefinitely with capped doubling backoff; only
// supervisor cancellation stops it. The batch is read-only after spawn
// and the worker shares no mutable state with its siblings.
type ConnectionWorker struct {
	batch   models.Batch
	dialer  drepo.MarketDialer
	sink    *CandleSink
	metrics drepo.Metrics
	log     *logger.Logger

	baseDelay time.Duration
	maxDelay  time.Duration

	// state is only touched from the Run goroutine.
	state WorkerState
}

func NewConnectionWorker(
	batch models.Batch,
	dialer drepo.MarketDialer,
	sink *CandleSink,
	metrics drepo.Metrics,
	log *logger.Logger,
	baseDelay, maxDelay time.Duration,
) *ConnectionWorker {
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &ConnectionWorker{
		batch:     batch,
		dialer:    dialer,
		sink:      sink,
		metrics:   metrics,
		log:       log,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
	}
}

// Run drives the connect/subscribe/stream loop until ctx is cancelled.
func (w *ConnectionWorker) Run(ctx context.Context) {
	backoff := w.baseDelay
	for {
		if ctx.Err() != nil {
			w.state = StateStopped
			return
		}

		err := w.session(ctx)
		if ctx.Err() != nil {
			w.state = StateStopped
			w.log.Debug("worker stopped", logger.String("batch", w.batch.ID))
			return
		}

		// A session that got as far as streaming earns a fresh backoff.
		if w.state == StateStreaming {
			backoff = w.baseDelay
		}

		w.log.Warn("connection lost, reconnecting",
			logger.String("batch", w.batch.ID),
			logger.Duration("backoff", backoff),
			logger.Error(err))
		w.metrics.RecordReconnect(w.batch.ID)

		w.state = StateBackoff
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			w.state = StateStopped
			return
		}
		if backoff < w.maxDelay {
			backoff *= 2
			if backoff > w.maxDelay {
				backoff = w.maxDelay
			}
		}
	}
}

// session runs one connection from dial to failure. It returns the error
// that ended the connection, or nil when ctx was cancelled.
func (w *ConnectionWorker) session(ctx context.Context) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.state = StateConnecting
	conn, err := w.dialer.Dial(sessCtx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock the read loop when the cycle is torn down.
	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()

	if err := conn.Subscribe(sessCtx, w.batch.Channels()); err != nil {
		return err
	}
	w.state = StateSubscribed
	w.log.Info("batch subscribed",
		logger.String("batch", w.batch.ID),
		logger.String("interval", string(w.batch.Interval)),
		logger.Int("channels", len(w.batch.Members)))

	for {
		ev, err := conn.ReadEvent(sessCtx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ev == nil {
			// Control frame or unknown event type.
			continue
		}
		if w.state != StateStreaming {
			w.state = StateStreaming
		}
		w.handleEvent(ctx, ev)
	}
}

func (w *ConnectionWorker) handleEvent(ctx context.Context, ev *models.CandleEvent) {
	if !ev.IsClosed {
		w.metrics.RecordFrameDropped("open_candle")
		return
	}
	// Sink failures are already logged and counted by the sink; the
	// receive loop must keep going either way.
	_ = w.sink.Write(ctx, ev)
}
