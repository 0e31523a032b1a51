package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"KlineFeed/internal/domain/models"
	drepo "KlineFeed/internal/domain/repository"
	"KlineFeed/pkg/logger"
)

// RankingSynchronizer pulls the top-N active symbols from the ranking
// store once per fleet cycle. Every successful pull refreshes an on-disk
// snapshot; when the store is unreachable the last snapshot serves as the
// degraded-mode symbol set. No store and no snapshot is fleet-fatal.
type RankingSynchronizer struct {
	store        drepo.RankingStore
	topN         int
	snapshotPath string
	metrics      drepo.Metrics
	log          *logger.Logger
}

func NewRankingSynchronizer(
	store drepo.RankingStore,
	topN int,
	snapshotPath string,
	metrics drepo.Metrics,
	log *logger.Logger,
) *RankingSynchronizer {
	return &RankingSynchronizer{
		store:        store,
		topN:         topN,
		snapshotPath: snapshotPath,
		metrics:      metrics,
		log:          log,
	}
}

// Sync returns the current active symbol snapshot.
func (s *RankingSynchronizer) Sync(ctx context.Context) ([]models.Symbol, error) {
	symbols, err := s.store.TopSymbols(ctx, s.topN)
	if err != nil {
		s.log.Warn("ranking store unavailable, trying snapshot", logger.Error(err))
		cached, cerr := s.loadSnapshot()
		if cerr != nil {
			return nil, fmt.Errorf("ranking store unavailable and no usable snapshot (%v): %w", cerr, err)
		}
		s.log.Info("serving cached symbol snapshot", logger.Int("symbols", len(cached)))
		s.metrics.SetActiveSymbols(len(cached))
		return cached, nil
	}
	if len(symbols) == 0 {
		return nil, errors.New("ranking store returned no symbols")
	}

	if err := s.saveSnapshot(symbols); err != nil {
		s.log.Warn("snapshot write failed", logger.Error(err))
	}
	s.log.Info("active symbol set loaded", logger.Int("symbols", len(symbols)))
	s.metrics.SetActiveSymbols(len(symbols))
	return symbols, nil
}

func (s *RankingSynchronizer) loadSnapshot() ([]models.Symbol, error) {
	b, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return nil, err
	}
	var symbols []models.Symbol
	if err := json.Unmarshal(b, &symbols); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	if len(symbols) == 0 {
		return nil, errors.New("snapshot is empty")
	}
	return symbols, nil
}

// saveSnapshot rewrites the snapshot atomically so a crash mid-write
// never leaves a truncated file behind.
func (s *RankingSynchronizer) saveSnapshot(symbols []models.Symbol) error {
	b, err := json.Marshal(symbols)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.snapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := s.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapshotPath)
}
