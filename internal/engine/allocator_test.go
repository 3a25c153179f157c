package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"auction_go/internal/domain"
	"auction_go/internal/infra/storage"
)

type fixedCounter struct {
	values []int64
	err    error
}

func (f *fixedCounter) NextSequence(context.Context, string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	v := f.values[0]
	f.values = f.values[1:]
	return v, nil
}

func TestAllocator_Next(t *testing.T) {
	a := NewAllocator(storage.NewMemoryStore())
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := a.Next(ctx, AuctionCounter)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
}

func TestAllocator_ConcurrentUnique(t *testing.T) {
	a := NewAllocator(storage.NewMemoryStore())
	ctx := context.Background()

	const n = 50
	var mu sync.Mutex
	seen := make(map[int64]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := a.Next(ctx, AuctionCounter)
			if err != nil {
				t.Errorf("Next failed: %v", err)
				return
			}
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d unique ids, got %d", n, len(seen))
	}
}

func TestAllocator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		counter *fixedCounter
		want    error
	}{
		{"storage failure", &fixedCounter{err: errors.New("connection refused")}, domain.ErrStorageUnavailable},
		{"non-positive", &fixedCounter{values: []int64{0}}, domain.ErrLedgerInconsistent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAllocator(tt.counter).Next(context.Background(), AuctionCounter)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAllocator_RejectsRegression(t *testing.T) {
	a := NewAllocator(&fixedCounter{values: []int64{5, 5}})
	ctx := context.Background()

	if _, err := a.Next(ctx, AuctionCounter); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	if _, err := a.Next(ctx, AuctionCounter); !errors.Is(err, domain.ErrLedgerInconsistent) {
		t.Errorf("repeated value should be inconsistent, got %v", err)
	}
}
