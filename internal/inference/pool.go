package inference

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LiboWorks/bitrag/internal/logging"
)

// PoolConfig bounds a context pool.
type PoolConfig struct {
	MinSize        int           // contexts created up front
	MaxSize        int           // hard upper bound
	AcquireTimeout time.Duration // how long Acquire waits for an idle context
	Logger         logging.Logger
}

// DefaultPoolConfig pre-warms 2 contexts and grows to min(NumCPU, 4).
func DefaultPoolConfig() PoolConfig {
	maxSize := runtime.NumCPU()
	if maxSize > 4 {
		maxSize = 4
	}
	minSize := 2
	if minSize > maxSize {
		minSize = maxSize
	}
	return PoolConfig{
		MinSize:        minSize,
		MaxSize:        maxSize,
		AcquireTimeout: 30 * time.Second,
	}
}

// Validate checks size bounds.
func (c PoolConfig) Validate() error {
	if c.MaxSize < 1 {
		return fmt.Errorf("%w: pool max size must be at least 1, got %d", ErrInvalidConfig, c.MaxSize)
	}
	if c.MinSize < 0 || c.MinSize > c.MaxSize {
		return fmt.Errorf("%w: pool min size %d outside [0,%d]", ErrInvalidConfig, c.MinSize, c.MaxSize)
	}
	return nil
}

// PoolStats is a consistent snapshot of pool bookkeeping.
type PoolStats struct {
	Size      int `json:"size"`
	MinSize   int `json:"min_size"`
	MaxSize   int `json:"max_size"`
	Available int `json:"available"`
	InUse     int `json:"in_use"`
}

// Pool hands out exclusive borrows of execution contexts. It grows lazily
// up to MaxSize and clears every context before it becomes idle again.
//
// Invariants: Size <= MaxSize and Available + InUse == Size whenever the
// lock is not held.
type Pool struct {
	model  *Model
	params ContextParams
	cfg    PoolConfig
	log    logging.Logger

	// size is also read without the lock (CanGrow, IsReady).
	size atomic.Int32

	mu       sync.Mutex
	idle     []*Context
	inUse    int
	closed   bool
	lastErr  error
	released chan struct{}
	done     chan struct{}
}

// NewPool creates the pool and eagerly constructs MinSize contexts. Any
// failure during warm-up frees what was built and aborts.
func NewPool(model *Model, params ContextParams, cfg PoolConfig) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultPoolConfig().AcquireTimeout
	}

	p := &Pool{
		model:    model,
		params:   params,
		cfg:      cfg,
		log:      logging.OrDiscard(cfg.Logger).With("component", "context-pool"),
		idle:     make([]*Context, 0, cfg.MaxSize),
		released: make(chan struct{}, cfg.MaxSize),
		done:     make(chan struct{}),
	}
	for i := 0; i < cfg.MinSize; i++ {
		c, err := NewContext(model, params)
		if err != nil {
			for _, built := range p.idle {
				built.Free()
			}
			return nil, fmt.Errorf("pool warm-up context %d of %d: %w", i+1, cfg.MinSize, err)
		}
		p.idle = append(p.idle, c)
	}
	p.size.Store(int32(cfg.MinSize))
	p.log.Debug("pool ready", "min", cfg.MinSize, "max", cfg.MaxSize, "timeout", cfg.AcquireTimeout)
	return p, nil
}

// Guard is an exclusive borrow of one context. Release returns it to the
// pool with its cache cleared; calling Release more than once is harmless.
type Guard struct {
	pool *Pool
	ctx  *Context
	once sync.Once
}

// Context returns the borrowed context.
func (g *Guard) Context() *Context { return g.ctx }

// Release clears the context cache and puts it back into the idle set.
func (g *Guard) Release() {
	g.once.Do(func() { g.pool.put(g.ctx) })
}

// TryAcquire borrows an idle context, growing the pool by one when none is
// idle and the maximum has not been reached. It never blocks on other
// borrowers.
func (p *Pool) TryAcquire() (*Guard, bool) {
	g, _ := p.tryAcquire()
	return g, g != nil
}

func (p *Pool) tryAcquire() (*Guard, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.inUse++
		p.mu.Unlock()
		return &Guard{pool: p, ctx: c}, nil
	}

	cur := p.size.Load()
	if int(cur) >= p.cfg.MaxSize || !p.size.CompareAndSwap(cur, cur+1) {
		p.mu.Unlock()
		return nil, nil
	}
	// The reserved slot counts as in use until construction settles.
	p.inUse++
	p.mu.Unlock()

	c, err := NewContext(p.model, p.params)
	if err != nil {
		p.mu.Lock()
		p.size.Add(-1)
		p.inUse--
		p.lastErr = err
		p.mu.Unlock()
		p.log.Warn("pool growth failed", "size", cur, "error", err)
		return nil, err
	}
	p.log.Debug("pool grew", "size", cur+1)
	return &Guard{pool: p, ctx: c}, nil
}

// Acquire borrows a context, waiting up to the configured timeout. Expiry
// returns a retryable *PoolTimeoutError; cancellation of ctx returns
// ErrInterrupted.
func (p *Pool) Acquire(ctx context.Context) (*Guard, error) {
	g, err := p.tryAcquire()
	if g != nil {
		return g, nil
	}
	if errors.Is(err, ErrPoolClosed) {
		return nil, err
	}

	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()
	for {
		select {
		case <-p.released:
		case <-p.done:
			return nil, ErrPoolClosed
		case <-timer.C:
			p.mu.Lock()
			last := p.lastErr
			p.mu.Unlock()
			return nil, &PoolTimeoutError{Waited: p.cfg.AcquireTimeout.String(), LastErr: last}
		case <-ctx.Done():
			return nil, interrupted(ctx.Err())
		}
		g, err = p.tryAcquire()
		if g != nil {
			return g, nil
		}
		if errors.Is(err, ErrPoolClosed) {
			return nil, err
		}
	}
}

func (p *Pool) put(c *Context) {
	c.ClearCache()

	p.mu.Lock()
	p.inUse--
	if p.closed {
		p.size.Add(-1)
		p.mu.Unlock()
		c.Free()
		return
	}
	p.idle = append(p.idle, c)
	p.mu.Unlock()

	select {
	case p.released <- struct{}{}:
	default:
	}
}

// Stats returns a consistent snapshot.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Size:      int(p.size.Load()),
		MinSize:   p.cfg.MinSize,
		MaxSize:   p.cfg.MaxSize,
		Available: len(p.idle),
		InUse:     p.inUse,
	}
}

// Size returns the number of contexts the pool owns.
func (p *Pool) Size() int { return int(p.size.Load()) }

// Available returns the number of idle contexts.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// CanGrow reports whether another context may still be created.
func (p *Pool) CanGrow() bool { return int(p.size.Load()) < p.cfg.MaxSize }

// Close frees idle contexts now and borrowed ones when they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	idle := p.idle
	p.idle = nil
	p.size.Add(-int32(len(idle)))
	p.mu.Unlock()

	for _, c := range idle {
		c.Free()
	}
}
