package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCompleteDeliversValue(t *testing.T) {
	t.Parallel()
	f := New[int]()

	go f.Complete(7)

	got, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 7 {
		t.Errorf("Get = %d, want 7", got)
	}
}

func TestFailDeliversError(t *testing.T) {
	t.Parallel()
	boom := fmt.Errorf("boom")
	f := Failed[string](boom)

	_, err := f.Get(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Get error = %v, want boom", err)
	}
}

func TestSettleOnlyOnce(t *testing.T) {
	t.Parallel()
	f := Completed(1)

	if f.Complete(2) {
		t.Error("second Complete should report false")
	}
	if f.Fail(fmt.Errorf("late")) {
		t.Error("Fail after Complete should report false")
	}

	got, err := f.Get(context.Background())
	if err != nil || got != 1 {
		t.Errorf("Get = (%d, %v), want (1, nil)", got, err)
	}
}

func TestGetHonorsContext(t *testing.T) {
	t.Parallel()
	f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Get error = %v, want deadline exceeded", err)
	}

	// The future itself is untouched by the abandoned wait.
	f.Complete(5)
	got, err := f.Get(context.Background())
	if err != nil || got != 5 {
		t.Errorf("Get = (%d, %v), want (5, nil)", got, err)
	}
}

func TestWhenCompleteRunsForBothOutcomes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		settle func(f *Future[int])
		want   error
	}{
		{"success", func(f *Future[int]) { f.Complete(3) }, nil},
		{"failure", func(f *Future[int]) { f.Fail(fmt.Errorf("nope")) }, fmt.Errorf("nope")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := New[int]()
			done := make(chan error, 1)
			f.WhenComplete(func(_ int, err error) { done <- err })

			tt.settle(f)

			select {
			case err := <-done:
				if (err == nil) != (tt.want == nil) {
					t.Errorf("callback error = %v, want %v", err, tt.want)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("callback never ran")
			}
		})
	}
}

func TestWhenCompleteAfterSettlement(t *testing.T) {
	t.Parallel()
	f := Completed("done")

	got := make(chan string, 1)
	f.WhenComplete(func(v string, _ error) { got <- v })

	select {
	case v := <-got:
		if v != "done" {
			t.Errorf("callback value = %q, want %q", v, "done")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("late-registered callback never ran")
	}
}

func TestConcurrentSettlement(t *testing.T) {
	t.Parallel()
	f := New[int]()

	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if f.Complete(n) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
}

func TestThenMapsValue(t *testing.T) {
	t.Parallel()
	f := New[int]()
	mapped := Then(f, func(v int) (string, error) {
		return fmt.Sprintf("value-%d", v), nil
	})

	f.Complete(9)

	got, err := mapped.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "value-9" {
		t.Errorf("mapped = %q, want %q", got, "value-9")
	}
}

func TestThenPropagatesFailures(t *testing.T) {
	t.Parallel()
	upstream := fmt.Errorf("upstream")
	mapped := Then(Failed[int](upstream), func(v int) (string, error) {
		t.Error("map function must not run on failure")
		return "", nil
	})
	if _, err := mapped.Get(context.Background()); !errors.Is(err, upstream) {
		t.Errorf("error = %v, want upstream", err)
	}

	mapErr := fmt.Errorf("map failed")
	mapped2 := Then(Completed(1), func(int) (string, error) { return "", mapErr })
	if _, err := mapped2.Get(context.Background()); !errors.Is(err, mapErr) {
		t.Errorf("error = %v, want map failure", err)
	}
}
