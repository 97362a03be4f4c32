package comm

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestReduceSumsAcrossParticipants(t *testing.T) {
	r := NewReducer(3)
	parts := [][]float64{
		{1, 10},
		{2, 20},
		{3, 30},
	}

	var wg sync.WaitGroup
	results := make([][]float64, len(parts))
	for i, p := range parts {
		wg.Add(1)
		go func(i int, p []float64) {
			defer wg.Done()
			sum, err := r.Reduce(context.Background(), p)
			if err != nil {
				t.Errorf("participant %d: %v", i, err)
				return
			}
			results[i] = sum
		}(i, p)
	}
	wg.Wait()

	for i, sum := range results {
		if len(sum) != 2 || sum[0] != 6 || sum[1] != 60 {
			t.Fatalf("participant %d saw %v, want [6 60]", i, sum)
		}
	}
}

// The reducer is cyclic: the same instance must serve round after round
// without re-initialization, and rounds must not bleed into each other.
func TestReduceConsecutiveRounds(t *testing.T) {
	r := NewReducer(2)
	for round := 1; round <= 5; round++ {
		var wg sync.WaitGroup
		sums := make([]float64, 2)
		for w := 0; w < 2; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				sum, err := r.ReduceScalar(context.Background(), float64(round))
				if err != nil {
					t.Errorf("round %d worker %d: %v", round, w, err)
					return
				}
				sums[w] = sum
			}(w)
		}
		wg.Wait()
		for w, sum := range sums {
			if sum != float64(2*round) {
				t.Fatalf("round %d worker %d saw %g, want %d", round, w, sum, 2*round)
			}
		}
	}
}

func TestReduceSingleParticipantReturnsImmediately(t *testing.T) {
	r := NewReducer(1)
	sum, err := r.ReduceScalar(context.Background(), 7)
	if err != nil || sum != 7 {
		t.Fatalf("ReduceScalar = (%g, %v), want (7, nil)", sum, err)
	}
}

func TestReduceUnblocksOnCancel(t *testing.T) {
	r := NewReducer(2)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := r.ReduceScalar(ctx, 1)
		done <- err
	}()

	// The second participant never arrives; cancellation must release the
	// first instead of deadlocking it.
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Reduce returned nil after cancellation with the round incomplete")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reduce did not observe cancellation")
	}
}
