// Package inference is the model execution core: model handles, token
// batches, execution contexts, the sampler chain and the context pool.
package inference

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/LiboWorks/bitrag/internal/llama"
)

// ModelParams controls model loading.
type ModelParams struct {
	GPULayers int  // 0 = CPU only
	UseMmap   bool // memory-map the weights file
	UseMlock  bool // lock the weights in RAM
}

// DefaultModelParams returns CPU-only, memory-mapped loading.
func DefaultModelParams() ModelParams {
	return ModelParams{UseMmap: true}
}

// Model is a loaded model shared by reference across contexts. It is
// immutable after load. The weights are released when the last holder (the
// loader or any context created from it) lets go.
type Model struct {
	raw       llama.RawModel
	path      string
	nVocab    int
	nEmbd     int
	nCtxTrain int
	desc      string

	refs      atomic.Int32
	freed     atomic.Bool
	closeOnce sync.Once
}

// LoadModel loads weights from path using eng. Failures are returned as
// *ModelLoadError and never panic.
func LoadModel(eng llama.Engine, path string, params ModelParams) (*Model, error) {
	if eng == nil {
		return nil, &ModelLoadError{Path: path, Err: llama.ErrUnavailable}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}

	raw, err := eng.LoadModel(path, llama.ModelParams{
		GPULayers: params.GPULayers,
		UseMmap:   params.UseMmap,
		UseMlock:  params.UseMlock,
	})
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}

	m := &Model{
		raw:       raw,
		path:      path,
		nVocab:    raw.NVocab(),
		nEmbd:     raw.NEmbd(),
		nCtxTrain: raw.NCtxTrain(),
		desc:      raw.Desc(),
	}
	m.refs.Store(1)
	return m, nil
}

// Path returns the file the model was loaded from.
func (m *Model) Path() string { return m.path }

// NVocab returns the vocabulary size.
func (m *Model) NVocab() int { return m.nVocab }

// NEmbd returns the embedding dimension.
func (m *Model) NEmbd() int { return m.nEmbd }

// NCtxTrain returns the context length the model was trained with.
func (m *Model) NCtxTrain() int { return m.nCtxTrain }

// Desc returns the engine's short model description.
func (m *Model) Desc() string { return m.desc }

// Tokenize converts text to token ids. The engine fills a caller-sized
// buffer, so a too-small first guess is retried with the size it reports.
func (m *Model) Tokenize(text string, addBOS, parseSpecial bool) ([]llama.Token, error) {
	if m.freed.Load() {
		return nil, ErrModelNotLoaded
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: input is not valid UTF-8", ErrTokenization)
	}

	buf := make([]llama.Token, len(text)+2)
	n := m.raw.Tokenize(text, buf, addBOS, parseSpecial)
	if n < 0 {
		buf = make([]llama.Token, -n)
		n = m.raw.Tokenize(text, buf, addBOS, parseSpecial)
		if n < 0 {
			return nil, fmt.Errorf("%w: engine asked for %d slots after resize", ErrTokenization, -n)
		}
	}
	return buf[:n], nil
}

// TokenToText returns the text piece of a single token.
func (m *Model) TokenToText(tok llama.Token) (string, error) {
	if m.freed.Load() {
		return "", ErrModelNotLoaded
	}

	buf := make([]byte, 32)
	n := m.raw.TokenToPiece(tok, buf)
	if n < 0 {
		buf = make([]byte, -n)
		n = m.raw.TokenToPiece(tok, buf)
		if n < 0 {
			return "", fmt.Errorf("%w: token %d needs %d bytes", ErrDecode, tok, -n)
		}
	}
	return string(buf[:n]), nil
}

// Detokenize concatenates the pieces of tokens.
func (m *Model) Detokenize(tokens []llama.Token) (string, error) {
	var sb strings.Builder
	for _, tok := range tokens {
		piece, err := m.TokenToText(tok)
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(piece)
	}
	return sb.String(), nil
}

// IsEndOfGeneration reports whether tok ends a response.
func (m *Model) IsEndOfGeneration(tok llama.Token) bool {
	return m.raw.IsEOG(tok)
}

func (m *Model) retain() bool {
	for {
		n := m.refs.Load()
		if n <= 0 {
			return false
		}
		if m.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (m *Model) release() {
	if m.refs.Add(-1) == 0 && m.freed.CompareAndSwap(false, true) {
		m.raw.Free()
	}
}

// Close drops the loader's reference. The weights stay loaded until every
// context created from the model has been freed as well.
func (m *Model) Close() error {
	m.closeOnce.Do(m.release)
	return nil
}
