// Package testing provides test utilities and helpers for bitrag tests.
package testing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/LiboWorks/bitrag/internal/llama"
)

// Special token ids of the fake vocabulary. Ids below 256 are single bytes,
// ids from FirstWordToken upward are the configured multi-byte words.
const (
	BOS            llama.Token = 256
	EOS            llama.Token = 257
	FirstWordToken llama.Token = 258
)

// FakeEngine is a deterministic in-memory engine. It tokenizes by greedy
// longest match over Words, falling back to single bytes, and "generates" by
// replaying Reply after each prompt followed by EOS.
type FakeEngine struct {
	Words []string
	Reply string

	// Failure injection.
	LoadErr          error
	ContextFailAfter int // NewContext fails once this many contexts exist (0 = never)
	DecodeCode       int32
	DecodeFailAt     int // 1-based decode call that returns DecodeCode (0 = never)

	// NextToken overrides the reply script when set.
	NextToken func(history []llama.Token, promptLen int) llama.Token

	ContextsCreated atomic.Int32
	ContextsFreed   atomic.Int32
	ModelsFreed     atomic.Int32
	Decodes         atomic.Int32
	Embeds          atomic.Int32

	mu      sync.Mutex
	byPiece map[string]llama.Token
	sorted  []string
}

// NewFakeEngine returns an engine that answers every prompt with reply.
func NewFakeEngine(reply string, words ...string) *FakeEngine {
	return &FakeEngine{Reply: reply, Words: words}
}

func (e *FakeEngine) Name() string { return "fake" }

func (e *FakeEngine) LoadModel(path string, params llama.ModelParams) (llama.RawModel, error) {
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	e.index()
	return &fakeModel{eng: e}, nil
}

func (e *FakeEngine) index() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.byPiece != nil {
		return
	}
	e.byPiece = make(map[string]llama.Token, len(e.Words))
	for i, w := range e.Words {
		e.byPiece[w] = FirstWordToken + llama.Token(i)
	}
	e.sorted = append([]string(nil), e.Words...)
	sort.Slice(e.sorted, func(i, j int) bool { return len(e.sorted[i]) > len(e.sorted[j]) })
}

// Encode tokenizes text without a begin marker.
func (e *FakeEngine) Encode(text string) []llama.Token {
	e.index()
	var out []llama.Token
	for i := 0; i < len(text); {
		matched := false
		for _, w := range e.sorted {
			if w != "" && len(text)-i >= len(w) && text[i:i+len(w)] == w {
				out = append(out, e.byPiece[w])
				i += len(w)
				matched = true
				break
			}
		}
		if !matched {
			out = append(out, llama.Token(text[i]))
			i++
		}
	}
	return out
}

func (e *FakeEngine) piece(tok llama.Token) string {
	switch {
	case tok < 256:
		return string([]byte{byte(tok)})
	case tok == BOS || tok == EOS:
		return ""
	default:
		idx := int(tok - FirstWordToken)
		if idx < len(e.Words) {
			return e.Words[idx]
		}
		return ""
	}
}

type fakeModel struct {
	eng *FakeEngine
}

func (m *fakeModel) Tokenize(text string, buf []llama.Token, addBOS, parseSpecial bool) int32 {
	toks := m.eng.Encode(text)
	if addBOS {
		toks = append([]llama.Token{BOS}, toks...)
	}
	if len(toks) > len(buf) {
		return -int32(len(toks))
	}
	copy(buf, toks)
	return int32(len(toks))
}

func (m *fakeModel) TokenToPiece(tok llama.Token, buf []byte) int32 {
	p := m.eng.piece(tok)
	if len(p) > len(buf) {
		return -int32(len(p))
	}
	return int32(copy(buf, p))
}

func (m *fakeModel) IsEOG(tok llama.Token) bool { return tok == EOS }
func (m *fakeModel) NVocab() int                { return int(FirstWordToken) + len(m.eng.Words) }
func (m *fakeModel) NEmbd() int                 { return 64 }
func (m *fakeModel) NCtxTrain() int             { return 4096 }
func (m *fakeModel) Desc() string               { return "fake 1B" }
func (m *fakeModel) Free()                      { m.eng.ModelsFreed.Add(1) }

func (m *fakeModel) NewContext(params llama.ContextParams) (llama.RawContext, error) {
	e := m.eng
	if e.ContextFailAfter > 0 && int(e.ContextsCreated.Load()) >= e.ContextFailAfter {
		return nil, errors.New("fake: context allocation failed")
	}
	e.ContextsCreated.Add(1)
	return &FakeContext{eng: e, model: m, nCtx: params.NCtx, embeddings: params.Embeddings}, nil
}

// FakeContext records decoded tokens as its cache.
type FakeContext struct {
	eng        *FakeEngine
	model      *fakeModel
	nCtx       int
	embeddings bool
	history    []llama.Token
	promptLen  int
	hasOutput  bool
}

// Decode appends the batch to the cache. Positions must continue the cache,
// so a context that was not cleared rejects a fresh prompt.
func (c *FakeContext) Decode(b llama.Batch) (int32, error) {
	n := c.eng.Decodes.Add(1)
	if c.eng.DecodeFailAt > 0 && int(n) == c.eng.DecodeFailAt {
		return c.eng.DecodeCode, nil
	}
	if b.Len() == 0 {
		return 0, nil
	}
	if int(b.Pos[0]) != len(c.history) {
		return -1, fmt.Errorf("fake: position %d does not continue cache of %d", b.Pos[0], len(c.history))
	}
	if c.nCtx > 0 && len(c.history)+b.Len() > c.nCtx {
		return 1, nil
	}
	if len(c.history) == 0 {
		c.promptLen = b.Len()
	}
	c.history = append(c.history, b.Tokens...)
	c.hasOutput = b.Logits[b.Len()-1]
	return 0, nil
}

func (c *FakeContext) Logits(i int) ([]float32, error) {
	if !c.hasOutput {
		return nil, errors.New("fake: no output computed")
	}
	logits := make([]float32, c.model.NVocab())
	logits[c.next()] = 10
	return logits, nil
}

func (c *FakeContext) next() llama.Token {
	if c.eng.NextToken != nil {
		return c.eng.NextToken(c.history, c.promptLen)
	}
	reply := c.eng.Encode(c.eng.Reply)
	idx := len(c.history) - c.promptLen
	if idx < len(reply) {
		return reply[idx]
	}
	return EOS
}

// Embeddings returns a unit vector of token counts folded into NEmbd
// buckets, so texts sharing tokens score closer.
func (c *FakeContext) Embeddings(tokens []llama.Token) ([]float32, error) {
	if !c.embeddings {
		return nil, errors.New("fake: embeddings not enabled")
	}
	if len(tokens) == 0 {
		return nil, errors.New("fake: no tokens")
	}
	c.ClearMemory()
	c.eng.Embeds.Add(1)
	vec := make([]float32, c.model.NEmbd())
	for _, t := range tokens {
		if t == BOS || t == EOS {
			continue
		}
		vec[int(t)%len(vec)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

func (c *FakeContext) ClearMemory() {
	c.history = c.history[:0]
	c.promptLen = 0
	c.hasOutput = false
}

func (c *FakeContext) Free() { c.eng.ContextsFreed.Add(1) }

// CacheLen reports how many tokens the context holds.
func (c *FakeContext) CacheLen() int { return len(c.history) }
