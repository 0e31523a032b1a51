package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"KlineFeed/internal/domain/models"
	drepo "KlineFeed/internal/domain/repository"
	"KlineFeed/pkg/logger"
)

// SupervisorConfig carries the knobs the fleet control loop needs.
type SupervisorConfig struct {
	Intervals                []models.Interval
	MaxChannelsPerConnection int
	Cooldown                 time.Duration
	ReconnectDelay           time.Duration
	ReconnectMax             time.Duration
	ReclaimPeriod            time.Duration
}

// FleetSupervisor owns the lifecycle of every connection worker and the
// retry loop around the whole pipeline. Each cycle runs
// sync → publish view → plan → spawn workers + reclaimer → await.
// Any fleet-fatal error tears everything down, waits out the cooldown
// and restarts from sync; a systemic failure costs a full restart, never
// partial inconsistent state.
type FleetSupervisor struct {
	synchronizer *RankingSynchronizer
	planner      *BatchPlanner
	view         drepo.SymbolView
	sink         *CandleSink
	dialer       drepo.MarketDialer
	metrics      drepo.Metrics
	log          *logger.Logger
	cfg          SupervisorConfig
}

func NewFleetSupervisor(
	synchronizer *RankingSynchronizer,
	planner *BatchPlanner,
	view drepo.SymbolView,
	sink *CandleSink,
	dialer drepo.MarketDialer,
	metrics drepo.Metrics,
	log *logger.Logger,
	cfg SupervisorConfig,
) *FleetSupervisor {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Second
	}
	return &FleetSupervisor{
		synchronizer: synchronizer,
		planner:      planner,
		view:         view,
		sink:         sink,
		dialer:       dialer,
		metrics:      metrics,
		log:          log,
		cfg:          cfg,
	}
}

// Run loops fleet cycles until ctx is cancelled.
func (s *FleetSupervisor) Run(ctx context.Context) {
	for {
		if err := s.cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("fleet cycle failed", logger.Error(err))
		}
		if ctx.Err() != nil {
			s.log.Info("fleet supervisor stopped")
			return
		}

		s.log.Info("restarting fleet after cooldown",
			logger.Duration("cooldown", s.cfg.Cooldown))
		select {
		case <-time.After(s.cfg.Cooldown):
		case <-ctx.Done():
			s.log.Info("fleet supervisor stopped")
			return
		}
	}
}

// cycle runs one full fleet generation. It returns early on any
// fleet-fatal error before spawning; once workers are up it blocks until
// ctx is cancelled, then waits for every connection to close so no
// orphaned connections leak across restarts.
func (s *FleetSupervisor) cycle(ctx context.Context) error {
	symbols, err := s.synchronizer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("ranking sync: %w", err)
	}

	if err := s.view.Replace(ctx, symbols); err != nil {
		return fmt.Errorf("publish active symbols: %w", err)
	}

	batches := s.planner.Plan(symbols, s.cfg.Intervals, s.cfg.MaxChannelsPerConnection)
	if len(batches) == 0 {
		return errors.New("batch plan is empty")
	}

	s.log.Info("fleet starting",
		logger.Int("symbols", len(symbols)),
		logger.Int("intervals", len(s.cfg.Intervals)),
		logger.Int("batches", len(batches)))

	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, batch := range batches {
		worker := NewConnectionWorker(batch, s.dialer, s.sink, s.metrics, s.log,
			s.cfg.ReconnectDelay, s.cfg.ReconnectMax)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(cycleCtx)
		}()
	}
	s.metrics.SetActiveWorkers(len(batches))

	reclaimer := NewResourceReclaimer(s.cfg.ReclaimPeriod, s.metrics, s.log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reclaimer.Run(cycleCtx)
	}()

	<-ctx.Done()
	cancel()
	wg.Wait()
	s.metrics.SetActiveWorkers(0)
	return ctx.Err()
}
