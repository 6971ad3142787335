//go:build yzma

package llama

import (
	"fmt"
	"sync"

	yz "github.com/hybridgroup/yzma/pkg/llama"
)

var (
	initOnce sync.Once
	initErr  error
)

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Open loads the llama.cpp shared libraries from libDir (or the discovered
// location when empty) and returns an Engine backed by them.
func Open(libDir string) (Engine, error) {
	initOnce.Do(func() {
		if libDir == "" {
			libDir = FindLibraryDir()
		}
		if libDir == "" {
			initErr = fmt.Errorf("%w: no llama.cpp library found (set %s)", ErrUnavailable, LibraryEnv)
			return
		}
		if err := yz.Load(libDir); err != nil {
			initErr = fmt.Errorf("%w: load libraries from %s: %v", ErrUnavailable, libDir, err)
			return
		}
		yz.Init()
	})
	if initErr != nil {
		return nil, initErr
	}
	return yzmaEngine{}, nil
}

type yzmaEngine struct{}

func (yzmaEngine) Name() string { return "yzma" }

func (yzmaEngine) LoadModel(path string, params ModelParams) (RawModel, error) {
	mp := yz.ModelDefaultParams()
	mp.NGpuLayers = int32(params.GPULayers)
	mp.UseMmap = boolByte(params.UseMmap)
	mp.UseMlock = boolByte(params.UseMlock)

	m, err := yz.ModelLoadFromFile(path, mp)
	if err != nil {
		return nil, err
	}
	return &yzmaModel{model: m, vocab: yz.ModelGetVocab(m)}, nil
}

type yzmaModel struct {
	model yz.Model
	vocab yz.Vocab
}

func (m *yzmaModel) Tokenize(text string, buf []Token, addBOS, parseSpecial bool) int32 {
	toks := yz.Tokenize(m.vocab, text, addBOS, parseSpecial)
	if len(toks) > len(buf) {
		return -int32(len(toks))
	}
	for i, t := range toks {
		buf[i] = Token(t)
	}
	return int32(len(toks))
}

func (m *yzmaModel) TokenToPiece(tok Token, buf []byte) int32 {
	return yz.TokenToPiece(m.vocab, yz.Token(tok), buf, 0, false)
}

func (m *yzmaModel) IsEOG(tok Token) bool { return yz.VocabIsEOG(m.vocab, yz.Token(tok)) }

func (m *yzmaModel) NVocab() int    { return int(yz.VocabNTokens(m.vocab)) }
func (m *yzmaModel) NEmbd() int     { return int(yz.ModelNEmbd(m.model)) }
func (m *yzmaModel) NCtxTrain() int { return int(yz.ModelNCtxTrain(m.model)) }
func (m *yzmaModel) Desc() string   { return yz.ModelDesc(m.model) }

func (m *yzmaModel) NewContext(params ContextParams) (RawContext, error) {
	cp := yz.ContextDefaultParams()
	cp.NCtx = uint32(params.NCtx)
	cp.NBatch = uint32(params.NBatch)
	if params.Threads > 0 {
		cp.NThreads = int32(params.Threads)
	}
	if params.ThreadsBatch > 0 {
		cp.NThreadsBatch = int32(params.ThreadsBatch)
	}
	if params.RopeFreqBase > 0 {
		cp.RopeFreqBase = params.RopeFreqBase
	}
	if params.RopeFreqScale > 0 {
		cp.RopeFreqScale = params.RopeFreqScale
	}
	cp.Embeddings = boolByte(params.Embeddings)

	lctx, err := yz.InitFromModel(m.model, cp)
	if err != nil {
		return nil, err
	}
	return &yzmaContext{ctx: lctx, nVocab: m.NVocab(), nEmbd: m.NEmbd()}, nil
}

func (m *yzmaModel) Free() { yz.ModelFree(m.model) }

type yzmaContext struct {
	ctx    yz.Context
	nVocab int
	nEmbd  int
}

// Decode submits the batch through the single-sequence batch helper. That
// helper infers positions from the cache and only computes output for the
// final token, so the batch must describe exactly that layout.
func (c *yzmaContext) Decode(b Batch) (int32, error) {
	n := b.Len()
	if n == 0 {
		return 0, nil
	}
	for i := 0; i < n; i++ {
		if i > 0 && b.Pos[i] != b.Pos[i-1]+1 {
			return -1, fmt.Errorf("non-contiguous positions at %d", i)
		}
		if len(b.SeqIDs[i]) != 1 || b.SeqIDs[i][0] != 0 {
			return -1, fmt.Errorf("only sequence 0 is supported")
		}
		if b.Logits[i] != (i == n-1) {
			return -1, fmt.Errorf("output must be requested for the last token only")
		}
	}
	toks := make([]yz.Token, n)
	for i, t := range b.Tokens {
		toks[i] = yz.Token(t)
	}
	return yz.Decode(c.ctx, yz.BatchGetOne(toks))
}

func (c *yzmaContext) Logits(i int) ([]float32, error) {
	return yz.GetLogitsIth(c.ctx, int32(i), c.nVocab)
}

func (c *yzmaContext) ClearMemory() {
	mem, err := yz.GetMemory(c.ctx)
	if err != nil {
		return
	}
	_ = yz.MemoryClear(mem, true)
}

// Embeddings encodes tokens as sequence 0 and returns a copy of the pooled
// vector, or the last token's vector when the model does not pool.
func (c *yzmaContext) Embeddings(tokens []Token) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no tokens to embed")
	}
	c.ClearMemory()
	toks := make([]yz.Token, len(tokens))
	for i, t := range tokens {
		toks[i] = yz.Token(t)
	}
	code, err := yz.Encode(c.ctx, yz.BatchGetOne(toks))
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, fmt.Errorf("encode returned %d", code)
	}

	var emb []float32
	if yz.GetPoolingType(c.ctx) == yz.PoolingTypeNone {
		emb, err = yz.GetEmbeddingsIth(c.ctx, -1, int32(c.nEmbd))
	} else {
		emb, err = yz.GetEmbeddingsSeq(c.ctx, 0, int32(c.nEmbd))
	}
	if err != nil {
		return nil, err
	}
	if len(emb) != c.nEmbd {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(emb), c.nEmbd)
	}
	return append([]float32(nil), emb...), nil
}

func (c *yzmaContext) Free() { yz.Free(c.ctx) }
