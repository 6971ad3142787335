package inference

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/LiboWorks/bitrag/internal/llama"
)

// ContextParams configures an execution context.
type ContextParams struct {
	NCtx          int     // window size in tokens
	NBatch        int     // largest batch a single decode accepts
	Threads       int     // generation threads
	ThreadsBatch  int     // prompt processing threads
	RopeFreqBase  float32 // 0 = model default
	RopeFreqScale float32 // 0 = model default
	Seed          uint32  // 0 = non-deterministic
	Embeddings    bool
}

// DefaultThreads returns NumCPU capped at 8.
func DefaultThreads() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// DefaultContextParams returns a 2048-token window with a 512-token batch.
func DefaultContextParams() ContextParams {
	t := DefaultThreads()
	return ContextParams{
		NCtx:         2048,
		NBatch:       512,
		Threads:      t,
		ThreadsBatch: t,
	}
}

var errConcurrentDecode = errors.New("context is already decoding")

// Context is the mutable per-sequence state bound to one Model. Only one
// goroutine may drive it at a time; the pool enforces that for pooled
// contexts and Decode rejects overlapping calls.
type Context struct {
	model  *Model
	raw    llama.RawContext
	params ContextParams

	nPast    int
	busy     atomic.Bool
	freeOnce sync.Once
}

// NewContext creates a context on model. The context holds a reference to
// the model until it is freed.
func NewContext(model *Model, params ContextParams) (*Context, error) {
	if params.NCtx <= 0 {
		return nil, fmt.Errorf("%w: context window must be positive, got %d", ErrInvalidConfig, params.NCtx)
	}
	if params.NBatch <= 0 || params.NBatch > params.NCtx {
		params.NBatch = params.NCtx
	}
	if !model.retain() {
		return nil, ErrModelNotLoaded
	}

	raw, err := model.raw.NewContext(llama.ContextParams{
		NCtx:          params.NCtx,
		NBatch:        params.NBatch,
		Threads:       params.Threads,
		ThreadsBatch:  params.ThreadsBatch,
		RopeFreqBase:  params.RopeFreqBase,
		RopeFreqScale: params.RopeFreqScale,
		Seed:          params.Seed,
		Embeddings:    params.Embeddings,
	})
	if err != nil {
		model.release()
		return nil, fmt.Errorf("%w: %w", ErrContextCreation, err)
	}
	return &Context{model: model, raw: raw, params: params}, nil
}

// Model returns the model the context was created on.
func (c *Context) Model() *Model { return c.model }

// NCtx returns the window size.
func (c *Context) NCtx() int { return c.params.NCtx }

// NBatch returns the largest batch size accepted by one decode.
func (c *Context) NBatch() int { return c.params.NBatch }

// Pos returns the number of positions currently held in the cache.
func (c *Context) Pos() int { return c.nPast }

// Decode processes every staged token of b. A non-zero engine code is
// returned as *DecodeError.
func (c *Context) Decode(b *Batch) error {
	if !c.busy.CompareAndSwap(false, true) {
		return &DecodeError{Code: -1, Err: errConcurrentDecode}
	}
	defer c.busy.Store(false)

	view := b.view()
	if view.Len() == 0 {
		return nil
	}
	rc, err := c.raw.Decode(view)
	if err != nil || rc != 0 {
		return &DecodeError{Code: rc, Err: err}
	}
	if end := int(view.Pos[view.Len()-1]) + 1; end > c.nPast {
		c.nPast = end
	}
	return nil
}

// Logits returns the next-token scores for output i of the last decode;
// -1 selects the last one.
func (c *Context) Logits(i int) ([]float32, error) {
	logits, err := c.raw.Logits(i)
	if err != nil {
		return nil, fmt.Errorf("%w: read logits: %w", ErrSampling, err)
	}
	return logits, nil
}

// LogitsForLast returns the scores for the last computed output.
func (c *Context) LogitsForLast() ([]float32, error) { return c.Logits(-1) }

// Embed encodes tokens from an empty cache and returns the model's
// embedding vector for them. The context must have been created with
// Embeddings set; the cache is left empty afterwards.
func (c *Context) Embed(tokens []llama.Token) ([]float32, error) {
	if !c.params.Embeddings {
		return nil, fmt.Errorf("%w: context was created without embeddings", ErrInvalidConfig)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: nothing to embed", ErrTokenization)
	}
	if len(tokens) > c.params.NBatch {
		return nil, fmt.Errorf("%w: %d tokens exceed batch size %d", ErrWouldExceedCapacity, len(tokens), c.params.NBatch)
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, &DecodeError{Code: -1, Err: errConcurrentDecode}
	}
	defer c.busy.Store(false)

	vec, err := c.raw.Embeddings(tokens)
	c.raw.ClearMemory()
	c.nPast = 0
	if err != nil {
		return nil, &DecodeError{Code: -1, Err: err}
	}
	return vec, nil
}

// ClearCache resets the context to its freshly created state without
// deallocating it.
func (c *Context) ClearCache() {
	c.raw.ClearMemory()
	c.nPast = 0
}

// Free releases the context and its reference to the model. Safe to call
// more than once.
func (c *Context) Free() {
	c.freeOnce.Do(func() {
		c.raw.Free()
		c.model.release()
	})
}
