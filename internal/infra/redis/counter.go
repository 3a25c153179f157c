package redis

import (
	"context"

	"auction_go/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

const counterPrefix = "auction:counter:"

// Counter issues sequence values with INCR, so every replica sharing the server draws
// from the same sequence.
type Counter struct {
	client *goredis.Client
}

var _ domain.CounterStore = (*Counter)(nil)

// NewCounter wraps client.
func NewCounter(client *goredis.Client) *Counter {
	return &Counter{client: client}
}

// NextSequence increments the named counter. The first value is 1.
func (c *Counter) NextSequence(ctx context.Context, name string) (int64, error) {
	v, err := c.client.Incr(ctx, counterPrefix+name).Result()
	if err != nil {
		return 0, domain.NewStorageError("redis_incr", err)
	}
	return v, nil
}
