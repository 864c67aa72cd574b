// Package completion orchestrates the completion pipeline: synchronous
// frecency answers, promise-deduplicated async validation through a pooled
// interpreter slot, and opportunistic AI suggestions from the backend.
package completion

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/utils"
	"github.com/jacksonhunter/PowerAuger-sub000/pkg/pool"
)

// Signature normalizes a request identity: same effective input and cursor
// means same unit of work.
func Signature(input string, cursor int) string {
	return strings.ToLower(utils.CollapseWhitespace(input)) + "\x00" + strconv.Itoa(cursor)
}

type cachedResult struct {
	candidates []pool.Candidate
	expiresAt  time.Time
}

// RequestCache guarantees at most one in-flight computation per signature.
// Completed results stay available for the TTL so late joiners reuse them,
// then a janitor evicts them whether or not anyone consumed the value.
type RequestCache struct {
	group   singleflight.Group
	mu      sync.Mutex
	results map[string]cachedResult
	ttl     time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

// NewRequestCache starts the janitor; Close joins it.
func NewRequestCache(ttl time.Duration) *RequestCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	c := &RequestCache{
		results: make(map[string]cachedResult),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.janitor()
	return c
}

// GetOrCompute returns the cached result for sig, joins the in-flight
// computation if one exists, or starts compute exactly once. The caller's
// context only governs its own wait: walking away neither cancels the
// computation nor starves other waiters.
func (c *RequestCache) GetOrCompute(ctx context.Context, sig string, compute func(context.Context) ([]pool.Candidate, error)) ([]pool.Candidate, error) {
	c.mu.Lock()
	if hit, ok := c.results[sig]; ok && time.Now().Before(hit.expiresAt) {
		c.mu.Unlock()
		return hit.candidates, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(sig, func() (any, error) {
		// detached context: the computation outlives any single waiter
		candidates, err := compute(context.Background())
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.results[sig] = cachedResult{
			candidates: candidates,
			expiresAt:  time.Now().Add(c.ttl),
		}
		c.mu.Unlock()
		return candidates, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]pool.Candidate), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of cached (possibly expired, not yet swept)
// results.
func (c *RequestCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

// Close stops the janitor and drops all cached results.
func (c *RequestCache) Close() {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.wg.Wait()
	c.mu.Lock()
	c.results = make(map[string]cachedResult)
	c.mu.Unlock()
}

func (c *RequestCache) janitor() {
	defer c.wg.Done()
	interval := c.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for sig, hit := range c.results {
				if now.After(hit.expiresAt) {
					delete(c.results, sig)
				}
			}
			c.mu.Unlock()
		}
	}
}
