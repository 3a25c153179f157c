package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"auction_go/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

const mirrorBuffer = 256

// Mirror copies the live view to Redis: the latest view under a key and every update on
// a pub/sub channel. Views queue on a buffered channel and are written by Run, so Offer
// never blocks the caller.
type Mirror struct {
	client  *goredis.Client
	key     string
	channel string
	timeout time.Duration

	updates chan domain.Auction
	dropped atomic.Int64
}

// NewMirror creates a mirror writing to key and channel.
func NewMirror(client *goredis.Client, key, channel string) *Mirror {
	return &Mirror{
		client:  client,
		key:     key,
		channel: channel,
		timeout: 2 * time.Second,
		updates: make(chan domain.Auction, mirrorBuffer),
	}
}

// Offer queues view for writing. When the queue is full the view is dropped; the next
// update supersedes it anyway.
func (m *Mirror) Offer(view domain.Auction) {
	select {
	case m.updates <- view:
	default:
		m.dropped.Add(1)
	}
}

// Dropped returns how many views were discarded on a full queue.
func (m *Mirror) Dropped() int64 {
	return m.dropped.Load()
}

// Run writes queued views until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case view := <-m.updates:
			if err := m.write(ctx, view); err != nil {
				slog.WarnContext(ctx, "Live view mirror write failed",
					slog.Int64("auction_id", view.AuctionID),
					slog.Any("error", err))
			}
		}
	}
}

func (m *Mirror) write(ctx context.Context, view domain.Auction) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	_, err = m.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, m.key, payload, 0)
		pipe.Publish(ctx, m.channel, payload)
		return nil
	})
	if err != nil {
		return domain.NewStorageError("redis_mirror", err)
	}
	return nil
}
