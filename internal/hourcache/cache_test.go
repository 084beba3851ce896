package hourcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	a := Key("ram-usage", time.Date(2025, 3, 10, 15, 59, 0, 0, berlin))
	b := Key("ram-usage", time.Date(2025, 3, 10, 14, 1, 0, 0, time.UTC))
	if a != b {
		t.Errorf("same UTC hour produced %q and %q", a, b)
	}
	if a != "ram-usage:2025-03-10T14:00:00Z" {
		t.Errorf("Key = %q", a)
	}
}

func TestGet_CachesWithinHour(t *testing.T) {
	c := New(10)
	now := time.Date(2025, 3, 10, 14, 5, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var calls int
	fn := func(context.Context) ([]byte, error) {
		calls++
		return []byte("svg"), nil
	}

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "x", fn); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("fn called %d times within one hour, want 1", calls)
	}

	now = now.Add(time.Hour)
	if _, err := c.Get(context.Background(), "x", fn); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times after the hour rolled, want 2", calls)
	}
}

func TestGet_ErrorsNotCached(t *testing.T) {
	c := New(10)
	boom := errors.New("boom")
	var calls int
	fn := func(context.Context) ([]byte, error) {
		calls++
		return nil, boom
	}
	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "x", fn); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
	}
	if calls != 2 || c.Len() != 0 {
		t.Errorf("calls=%d len=%d, want 2 calls and nothing cached", calls, c.Len())
	}
}

func TestGet_DeduplicatesConcurrentMisses(t *testing.T) {
	c := New(10)
	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("svg"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "x", fn); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fn called %d times for concurrent misses, want 1", n)
	}
}

func TestGet_CallerCancelDoesNotFailOthers(t *testing.T) {
	c := New(10)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return []byte("svg"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(firstCtx, "x", fn)
		firstErr <- err
	}()
	<-started

	type result struct {
		v   []byte
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := c.Get(context.Background(), "x", fn)
		second <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond) // let the second caller join the flight

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller err = %v, want context.Canceled", err)
	}

	close(release)
	select {
	case r := <-second:
		if r.err != nil || string(r.v) != "svg" {
			t.Fatalf("surviving caller got %q, %v", r.v, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("surviving caller never returned")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fn called %d times, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want the render cached", c.Len())
	}
}

func TestGet_RenderTimeout(t *testing.T) {
	c := New(10)
	c.RenderTimeout = 10 * time.Millisecond
	_, err := c.Get(context.Background(), "slow", func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestNew_Bounded(t *testing.T) {
	c := New(2)
	for _, name := range []string{"a", "b", "c"} {
		name := name
		_, _ = c.Get(context.Background(), name, func(context.Context) ([]byte, error) { return []byte(name), nil })
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}
