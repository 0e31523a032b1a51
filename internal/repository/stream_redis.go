package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"KlineFeed/internal/domain/models"
)

// RedisStreams implements both the stream store (bounded XADD log) and the
// published active-symbol view (sorted set scored by activity).
type RedisStreams struct {
	client    *redis.Client
	symbolKey string
}

// NewRedisStreams creates the Redis client and verifies connectivity.
func NewRedisStreams(addr, password string, db int, symbolKey string) (*RedisStreams, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStreams{client: client, symbolKey: symbolKey}, nil
}

// Append writes one candle record to the stream at key, trimming the
// stream to the most recent maxLen entries.
func (s *RedisStreams) Append(ctx context.Context, key string, ev *models.CandleEvent, maxLen int64) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: maxLen,
		Values: eventFields(ev),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", key, err)
	}
	return nil
}

// Replace swaps the published active-symbol set in a single MULTI/EXEC,
// so readers never see the set empty mid-swap.
func (s *RedisStreams) Replace(ctx context.Context, symbols []models.Symbol) error {
	members := make([]redis.Z, 0, len(symbols))
	for _, sym := range symbols {
		members = append(members, redis.Z{
			Score:  float64(sym.ActivityScore),
			Member: sym.Symbol,
		})
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.symbolKey)
	if len(members) > 0 {
		pipe.ZAdd(ctx, s.symbolKey, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace %s: %w", s.symbolKey, err)
	}
	return nil
}

// Active returns the published symbol set, most active first.
func (s *RedisStreams) Active(ctx context.Context) ([]string, error) {
	out, err := s.client.ZRevRange(ctx, s.symbolKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", s.symbolKey, err)
	}
	return out, nil
}

// Close closes the Redis connection.
func (s *RedisStreams) Close() error {
	return s.client.Close()
}

// eventFields flattens a candle into the stream record layout consumed by
// downstream readers. Field names are part of the external contract.
func eventFields(ev *models.CandleEvent) map[string]interface{} {
	return map[string]interface{}{
		"event_time":   strconv.FormatInt(ev.EventTime.UnixMilli(), 10),
		"start_time":   strconv.FormatInt(ev.StartTime.UnixMilli(), 10),
		"close_time":   strconv.FormatInt(ev.CloseTime.UnixMilli(), 10),
		"symbol":       ev.Symbol,
		"interval":     string(ev.Interval),
		"open":         ev.Open.String(),
		"close":        ev.Close.String(),
		"high":         ev.High.String(),
		"low":          ev.Low.String(),
		"base_volume":  ev.BaseVolume.String(),
		"quote_volume": ev.QuoteVolume.String(),
		"is_closed":    boolField(ev.IsClosed),
	}
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
