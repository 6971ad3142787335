// Package llama defines the primitive contract bitrag expects from a native
// llama.cpp-compatible engine, and provides the purego binding that fulfils it.
//
// The binding is compiled in with -tags yzma. Without the tag, Open returns
// ErrUnavailable so callers can fall back to the subprocess backend.
package llama

import "errors"

// Token is a vocabulary id.
type Token = int32

// Pos is a position in a sequence.
type Pos = int32

// SeqID identifies a sequence inside a context's cache.
type SeqID = int32

// ErrUnavailable is returned when the binary was built without a native engine
// or the shared libraries could not be loaded.
var ErrUnavailable = errors.New("native llama engine not available")

// ModelParams controls how model weights are loaded.
type ModelParams struct {
	GPULayers int
	UseMmap   bool
	UseMlock  bool
}

// ContextParams controls the construction of an execution context.
type ContextParams struct {
	NCtx          int
	NBatch        int
	Threads       int
	ThreadsBatch  int
	RopeFreqBase  float32 // 0 = model default
	RopeFreqScale float32 // 0 = model default
	Seed          uint32  // 0 = non-deterministic
	Embeddings    bool
}

// Batch is a read-only view over staged tokens handed to RawContext.Decode.
// All slices have the same length.
type Batch struct {
	Tokens []Token
	Pos    []Pos
	SeqIDs [][]SeqID
	Logits []bool
}

// Len returns the number of staged tokens.
func (b Batch) Len() int { return len(b.Tokens) }

// Engine loads models. Implementations must be safe for concurrent use.
type Engine interface {
	Name() string
	LoadModel(path string, params ModelParams) (RawModel, error)
}

// RawModel is a loaded model. It is read-only after load and may be shared by
// many contexts. Free must be called exactly once.
type RawModel interface {
	// Tokenize writes token ids into buf and returns the count. When buf is
	// too small it returns the negated required size and writes nothing.
	Tokenize(text string, buf []Token, addBOS, parseSpecial bool) int32
	// TokenToPiece writes the text of tok into buf and returns the byte count.
	// A negative result is the negated required size.
	TokenToPiece(tok Token, buf []byte) int32
	IsEOG(tok Token) bool
	NVocab() int
	NEmbd() int
	NCtxTrain() int
	Desc() string
	NewContext(params ContextParams) (RawContext, error)
	Free()
}

// RawContext is mutable per-sequence state. It is not safe for concurrent use.
type RawContext interface {
	// Decode processes every token of the batch. A non-zero code is a
	// decode failure reported by the engine.
	Decode(b Batch) (int32, error)
	// Logits returns next-token scores for output index i of the last
	// decode; -1 selects the last output.
	Logits(i int) ([]float32, error)
	// Embeddings clears the cache, encodes tokens and returns an NEmbd
	// vector. The context must have been created with Embeddings set.
	Embeddings(tokens []Token) ([]float32, error)
	ClearMemory()
	Free()
}
