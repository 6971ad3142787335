package rag

import (
	"context"
	"io"
	"sync"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
)

// ModelEmbedder embeds text with the hidden states of a loaded model. It
// owns one embedding context, so calls are serialized.
type ModelEmbedder struct {
	mu    sync.Mutex
	model *inference.Model
	ctx   *inference.Context
}

// NewModelEmbedder creates an embedding context on model and takes over the
// caller's reference to it. Texts longer than the batch are truncated.
func NewModelEmbedder(model *inference.Model, params inference.ContextParams) (*ModelEmbedder, error) {
	params.Embeddings = true
	params.NBatch = params.NCtx
	c, err := inference.NewContext(model, params)
	if err != nil {
		return nil, err
	}
	return &ModelEmbedder{model: model, ctx: c}, nil
}

// Dimension returns the model's embedding width.
func (e *ModelEmbedder) Dimension() int { return e.model.NEmbd() }

// Embed returns the L2-normalized embedding of text.
func (e *ModelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return nil, inference.ErrModelNotLoaded
	}
	toks, err := e.model.Tokenize(text, true, false)
	if err != nil {
		return nil, err
	}
	if len(toks) > e.ctx.NBatch() {
		toks = toks[:e.ctx.NBatch()]
	}
	vec, err := e.ctx.Embed(toks)
	if err != nil {
		return nil, err
	}
	normalize(vec)
	return vec, nil
}

// Close frees the context and the model reference.
func (e *ModelEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return nil
	}
	e.ctx.Free()
	e.ctx = nil
	return e.model.Close()
}

// ModelLoader loads the weights behind a ModelEmbedder.
type ModelLoader func() (*inference.Model, error)

// OpenEmbedder returns a ModelEmbedder over the model load returns, or a
// HashEmbedder when load is nil or any step fails. The choice is made once,
// so every vector in a store shares one dimension.
func OpenEmbedder(load ModelLoader, params inference.ContextParams, log logging.Logger) Embedder {
	log = logging.OrDiscard(log)
	if load == nil {
		return NewHashEmbedder(DefaultDimension)
	}
	model, err := load()
	if err != nil {
		log.Warn("embedding model unavailable, using hash embedder", "error", err)
		return NewHashEmbedder(DefaultDimension)
	}
	me, err := NewModelEmbedder(model, params)
	if err != nil {
		_ = model.Close()
		log.Warn("embedding context failed, using hash embedder", "error", err)
		return NewHashEmbedder(DefaultDimension)
	}
	log.Info("model embedder ready", "model", model.Path(), "dimension", me.Dimension())
	return me
}

// CloseEmbedder releases e when it holds resources.
func CloseEmbedder(e Embedder) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
