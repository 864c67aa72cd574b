// Package pool hands out reusable interpreter slots from a fixed-size
// pool. A slot is a stateful interpreter session owned by exactly one
// caller between Checkout and Checkin; checkout suspends on a channel
// rather than polling.
package pool

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jacksonhunter/PowerAuger-sub000/internal/logger"
	"github.com/jacksonhunter/PowerAuger-sub000/internal/shellparse"
)

// ErrClosed is returned by Checkout after Close.
var ErrClosed = errors.New("pool: closed")

// Candidate is one syntactic completion produced by a slot, with whatever
// descriptive metadata the interpreter attached.
type Candidate struct {
	Text    string
	Tooltip string
	Kind    string
}

// Slot is one interpreter session. Implementations are never used by two
// callers at once; the pool is the only synchronization point.
type Slot interface {
	// Complete returns syntactic candidates for input at cursor.
	Complete(input string, cursor int) ([]Candidate, error)
	// ResolveCommand reports whether name resolves to a runnable command.
	ResolveCommand(name string) bool
	// Parse returns the top-level statement shape of line.
	Parse(line string) (*shellparse.Statement, error)
	// Reset clears command and stream state before the slot goes back in
	// the pool.
	Reset()
}

// Factory builds one slot; called size times at pool construction.
type Factory func(id int) (Slot, error)

// Pool is a fixed set of slots behind a buffered channel. mu serializes
// Checkin against Close so a slot checked in during shutdown is always
// released, never re-queued into the drained channel.
type Pool struct {
	slots  chan Slot
	size   int
	mu     sync.Mutex
	closed bool
	done   chan struct{}
	logger *log.Logger
}

// New constructs the pool eagerly: every slot is built up front so a bad
// factory fails at startup, not mid-keystroke.
func New(size int, factory Factory) (*Pool, error) {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		slots:  make(chan Slot, size),
		size:   size,
		done:   make(chan struct{}),
		logger: logger.New("pool"),
	}
	for i := 0; i < size; i++ {
		slot, err := factory(i)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.slots <- slot
	}
	return p, nil
}

// Checkout blocks until a slot frees up, the context is done, or the pool
// closes.
func (p *Pool) Checkout(ctx context.Context) (Slot, error) {
	select {
	case slot := <-p.slots:
		return slot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrClosed
	}
}

// Checkin returns a slot after best-effort state clearing. A slot that
// errored during use still comes back: a permanently broken slot degrades
// capacity rather than crashing anything.
func (p *Pool) Checkin(slot Slot) {
	if slot == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Warnf("slot reset panicked: %v", r)
			}
		}()
		slot.Reset()
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		releaseSlot(slot)
		return
	}
	// never blocks: at most size slots exist and we hold mu
	p.slots <- slot
}

// Close stops checkouts and releases every idle slot. Slots still checked
// out are released when their caller checks them in.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
	for {
		select {
		case slot := <-p.slots:
			releaseSlot(slot)
		default:
			return
		}
	}
}

// Size returns the configured slot count.
func (p *Pool) Size() int {
	return p.size
}

// Available returns the number of idle slots, for stats reporting.
func (p *Pool) Available() int {
	return len(p.slots)
}

func releaseSlot(slot Slot) {
	if c, ok := slot.(io.Closer); ok {
		_ = c.Close()
	}
}
