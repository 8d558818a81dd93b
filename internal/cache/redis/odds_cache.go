package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omenmarkets/omen/internal/domain"
)

// OddsCache implements domain.OddsCache using Redis hashes.
// Each market's latest quote is stored as a hash at key "odds:{marketID}"
// with fields "prices" (comma-joined micro-unit prices, one per option) and
// "ts" (Unix nanosecond timestamp).
type OddsCache struct {
	rdb *redis.Client
}

// NewOddsCache creates an OddsCache backed by the given Client.
func NewOddsCache(c *Client) *OddsCache {
	return &OddsCache{rdb: c.Underlying()}
}

func oddsKey(marketID string) string {
	return "odds:" + marketID
}

// SetOdds stores the latest per-option prices and quote timestamp for a market.
func (oc *OddsCache) SetOdds(ctx context.Context, marketID string, prices []int64, ts time.Time) error {
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = strconv.FormatInt(p, 10)
	}
	fields := map[string]interface{}{
		"prices": strings.Join(parts, ","),
		"ts":     strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := oc.rdb.HSet(ctx, oddsKey(marketID), fields).Err(); err != nil {
		return fmt.Errorf("redis: set odds %s: %w", marketID, err)
	}
	return nil
}

// GetOdds retrieves the latest per-option prices and quote timestamp for a
// market. It returns domain.ErrNotFound when the key does not exist.
func (oc *OddsCache) GetOdds(ctx context.Context, marketID string) ([]int64, time.Time, error) {
	vals, err := oc.rdb.HGetAll(ctx, oddsKey(marketID)).Result()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: get odds %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return nil, time.Time{}, domain.ErrNotFound
	}

	pricesStr, ok := vals["prices"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	parts := strings.Split(pricesStr, ",")
	prices := make([]int64, 0, len(parts))
	for _, part := range parts {
		p, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("redis: parse odds %s: %w", marketID, err)
		}
		prices = append(prices, p)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return nil, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("redis: parse odds ts %s: %w", marketID, err)
	}

	return prices, time.Unix(0, tsNano), nil
}

// Invalidate removes a market's cached odds.
func (oc *OddsCache) Invalidate(ctx context.Context, marketID string) error {
	if err := oc.rdb.Del(ctx, oddsKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate odds %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.OddsCache = (*OddsCache)(nil)
