package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lastPriceKeyPrefix = "lastprice:"

// PriceCache stores the last observed price per symbol so a restarted
// process can emit a first bar before the first live tick arrives.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]float64
}

func NewPriceCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *PriceCache {
	return &PriceCache{
		client:  client,
		ttl:     ttl,
		logger:  logger,
		pending: make(map[string]float64),
	}
}

// Offer records price for the next flush. Only the latest price per symbol
// is kept; it never blocks on Redis.
func (c *PriceCache) Offer(symbol string, price float64) {
	c.mu.Lock()
	c.pending[symbol] = price
	c.mu.Unlock()
}

// StartWorker flushes pending prices every interval until ctx is done.
func (c *PriceCache) StartWorker(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				// best effort final flush
				flushCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				if err := c.Flush(flushCtx); err != nil {
					c.logger.Warn("final price flush failed", zap.Error(err))
				}
				cancel()
				return
			case <-ticker.C:
				if err := c.Flush(ctx); err != nil {
					c.logger.Warn("price flush failed", zap.Error(err))
				}
			}
		}
	}()
}

// Flush writes every pending price in one pipeline.
func (c *PriceCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := c.pending
	c.pending = make(map[string]float64, len(batch))
	c.mu.Unlock()

	pipe := c.client.Pipeline()
	for symbol, price := range batch {
		pipe.Set(ctx, lastPriceKeyPrefix+symbol, strconv.FormatFloat(price, 'f', -1, 64), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store last prices: %w", err)
	}
	return nil
}

// SetPrice stores one price immediately.
func (c *PriceCache) SetPrice(ctx context.Context, symbol string, price float64) error {
	err := c.client.Set(ctx, lastPriceKeyPrefix+symbol, strconv.FormatFloat(price, 'f', -1, 64), c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set last price: %w", err)
	}
	return nil
}

// LoadPrices returns every stored price keyed by symbol.
func (c *PriceCache) LoadPrices(ctx context.Context) (map[string]float64, error) {
	out := make(map[string]float64)

	iter := c.client.Scan(ctx, 0, lastPriceKeyPrefix+"*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan price keys: %w", err)
	}
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get prices: %w", err)
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		price, err := strconv.ParseFloat(s, 64)
		if err != nil || price <= 0 {
			continue
		}
		out[strings.TrimPrefix(keys[i], lastPriceKeyPrefix)] = price
	}
	return out, nil
}

// Ping checks the connection.
func (c *PriceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Pending returns the number of prices waiting for the next flush.
func (c *PriceCache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
