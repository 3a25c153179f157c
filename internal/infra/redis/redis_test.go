package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction_go/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

// unreachableClient points at a port nothing listens on.
func unreachableClient(t *testing.T) *goredis.Client {
	t.Helper()
	c := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := NewClient(ctx, Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestCounter_UnavailableIsStorageError(t *testing.T) {
	_, err := NewCounter(unreachableClient(t)).NextSequence(context.Background(), "auction_id")
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if !domain.IsRetriable(err) {
		t.Error("redis failures should be retriable")
	}
}

func TestMirror_OfferDropsWhenFull(t *testing.T) {
	m := NewMirror(unreachableClient(t), "k", "c")

	for i := 0; i < mirrorBuffer+5; i++ {
		m.Offer(domain.EmptyAuction())
	}
	if got := m.Dropped(); got != 5 {
		t.Errorf("expected 5 dropped, got %d", got)
	}
}

func TestMirror_WriteFailure(t *testing.T) {
	m := NewMirror(unreachableClient(t), "k", "c")

	err := m.write(context.Background(), domain.EmptyAuction())
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestMirror_RunStopsOnCancel(t *testing.T) {
	m := NewMirror(unreachableClient(t), "k", "c")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
