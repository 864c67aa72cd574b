package completion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacksonhunter/PowerAuger-sub000/pkg/pool"
)

func TestSignatureNormalizes(t *testing.T) {
	assert.Equal(t, Signature("git   status", 4), Signature("Git Status", 4))
	assert.NotEqual(t, Signature("git status", 4), Signature("git status", 5))
	assert.NotEqual(t, Signature("git status", 4), Signature("git stash", 4))
}

func TestGetOrComputeExecutesOnce(t *testing.T) {
	cache := NewRequestCache(30 * time.Second)
	defer cache.Close()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(context.Context) ([]pool.Candidate, error) {
		calls.Add(1)
		close(started)
		<-release
		return []pool.Candidate{{Text: "git status"}}, nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([][]pool.Candidate, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := cache.GetOrCompute(context.Background(), "sig", compute)
			require.NoError(t, err)
			results[i] = got
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent callers must share one computation")
	for _, got := range results {
		require.Len(t, got, 1)
		assert.Equal(t, "git status", got[0].Text)
	}
}

func TestGetOrComputeReusesCompletedResult(t *testing.T) {
	cache := NewRequestCache(30 * time.Second)
	defer cache.Close()

	var calls atomic.Int32
	compute := func(context.Context) ([]pool.Candidate, error) {
		calls.Add(1)
		return []pool.Candidate{{Text: "ls -la"}}, nil
	}

	_, err := cache.GetOrCompute(context.Background(), "sig", compute)
	require.NoError(t, err)
	_, err = cache.GetOrCompute(context.Background(), "sig", compute)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "a completed result within TTL must be reused")
}

func TestGetOrComputeDistinctSignatures(t *testing.T) {
	cache := NewRequestCache(30 * time.Second)
	defer cache.Close()

	var calls atomic.Int32
	compute := func(context.Context) ([]pool.Candidate, error) {
		calls.Add(1)
		return nil, nil
	}

	cache.GetOrCompute(context.Background(), "a", compute)
	cache.GetOrCompute(context.Background(), "b", compute)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	cache := NewRequestCache(30 * time.Second)
	defer cache.Close()

	var calls atomic.Int32
	boom := errors.New("boom")
	failing := func(context.Context) ([]pool.Candidate, error) {
		calls.Add(1)
		return nil, boom
	}

	_, err := cache.GetOrCompute(context.Background(), "sig", failing)
	assert.ErrorIs(t, err, boom)

	_, err = cache.GetOrCompute(context.Background(), "sig", func(context.Context) ([]pool.Candidate, error) {
		calls.Add(1)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "failures must not poison the cache")
}

func TestWaiterWalkAwayDoesNotCancelComputation(t *testing.T) {
	cache := NewRequestCache(30 * time.Second)
	defer cache.Close()

	started := make(chan struct{})
	finished := make(chan struct{})
	compute := func(ctx context.Context) ([]pool.Candidate, error) {
		close(started)
		select {
		case <-ctx.Done():
			t.Error("computation context must not follow a departing waiter")
		case <-time.After(100 * time.Millisecond):
		}
		close(finished)
		return []pool.Candidate{{Text: "done"}}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go cache.GetOrCompute(ctx, "sig", compute)
	<-started
	cancel()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("computation did not finish after waiter left")
	}
	time.Sleep(50 * time.Millisecond) // let the result land in the cache

	// the finished result is available to a later caller
	got, err := cache.GetOrCompute(context.Background(), "sig", func(context.Context) ([]pool.Candidate, error) {
		t.Error("should have been served from cache")
		return nil, nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "done", got[0].Text)
}

func TestJanitorEvictsExpiredResults(t *testing.T) {
	cache := NewRequestCache(time.Second)
	defer cache.Close()

	cache.GetOrCompute(context.Background(), "sig", func(context.Context) ([]pool.Candidate, error) {
		return []pool.Candidate{{Text: "x"}}, nil
	})
	require.Equal(t, 1, cache.Len())

	// entry expires after the TTL and the janitor sweeps it, consumed or not
	assert.Eventually(t, func() bool {
		return cache.Len() == 0
	}, 5*time.Second, 100*time.Millisecond)
}
