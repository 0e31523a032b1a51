package usecase

import (
	"fmt"

	"KlineFeed/internal/domain/models"
	"KlineFeed/pkg/logger"
)

// BatchPlanner partitions the active symbol set across connection-sized
// batches. A single connection has a hard cap on subscribed channels and
// every symbol costs one channel per interval, so chunks are sized
// maxChannels / |intervals| to stay under the cap across all intervals.
type BatchPlanner struct {
	log *logger.Logger
}

func NewBatchPlanner(log *logger.Logger) *BatchPlanner {
	return &BatchPlanner{log: log}
}

// Plan emits one Batch per (chunk, interval) pair. Output is stable for a
// given input. A cap smaller than the interval count cannot host even one
// symbol and yields an empty plan, logged as a configuration error.
func (p *BatchPlanner) Plan(symbols []models.Symbol, intervals []models.Interval, maxChannels int) []models.Batch {
	if len(symbols) == 0 || len(intervals) == 0 {
		return nil
	}
	if maxChannels < len(intervals) {
		p.log.Error("batch plan impossible: channel cap below interval count",
			logger.Int("max_channels", maxChannels),
			logger.Int("intervals", len(intervals)))
		return nil
	}

	chunkSize := maxChannels / len(intervals)
	chunks := (len(symbols) + chunkSize - 1) / chunkSize

	batches := make([]models.Batch, 0, chunks*len(intervals))
	for start := 0; start < len(symbols); start += chunkSize {
		end := min(start+chunkSize, len(symbols))
		chunk := symbols[start:end]
		for _, interval := range intervals {
			batches = append(batches, models.Batch{
				ID:       fmt.Sprintf("%s-%s", chunk[0].Symbol, interval),
				Interval: interval,
				Members:  chunk,
			})
		}
	}
	return batches
}
