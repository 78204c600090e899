package db

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"github.com/brianaseka61-max/sautipesa-bridge/pkg/models"
)

// RecentCache keeps the latest SUCCESS transaction per shortcode with a TTL
// equal to the polling recency window, so a cache hit can never outlive
// eligibility. Postgres stays the source of truth; every cache failure
// degrades to a ledger query.
type RecentCache struct {
	client *redis.Client
	window time.Duration
}

func NewRecentCache(redisConn string, window time.Duration) (*RecentCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         redisConn,
		Password:     "",
		DB:           0,
		PoolSize:     50,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  800 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RecentCache{client: client, window: window}, nil
}

func recentKey(shortcode string) string {
	return fmt.Sprintf("recent:%s", shortcode)
}

func (c *RecentCache) StoreRecent(ctx context.Context, tx models.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, 800*time.Millisecond)
	defer cancel()

	return c.client.Set(opCtx, recentKey(tx.BusinessShortcode), payload, c.window).Err()
}

// Recent returns the cached transaction for the shortcode, or nil on a miss.
func (c *RecentCache) Recent(ctx context.Context, shortcode string) (*models.Transaction, error) {
	opCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := c.client.Get(opCtx, recentKey(shortcode)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tx models.Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *RecentCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
