package inference

import (
	"fmt"

	"github.com/LiboWorks/bitrag/internal/llama"
)

// Batch is a fixed-capacity staging buffer for one decode step. It holds
// parallel arrays of token, position, sequence ids and output flag.
type Batch struct {
	tokens  []llama.Token
	pos     []llama.Pos
	seqIDs  [][]llama.SeqID
	logits  []bool
	n       int
	maxSeqs int
}

// NewBatch allocates a batch that holds up to capacity tokens, each
// belonging to at most maxSeqs sequences.
func NewBatch(capacity, maxSeqs int) (*Batch, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: batch capacity must be positive, got %d", ErrInvalidConfig, capacity)
	}
	if maxSeqs <= 0 {
		maxSeqs = 1
	}
	b := &Batch{
		tokens:  make([]llama.Token, capacity),
		pos:     make([]llama.Pos, capacity),
		seqIDs:  make([][]llama.SeqID, capacity),
		logits:  make([]bool, capacity),
		maxSeqs: maxSeqs,
	}
	for i := range b.seqIDs {
		b.seqIDs[i] = make([]llama.SeqID, 0, maxSeqs)
	}
	return b, nil
}

// Len returns the number of staged tokens.
func (b *Batch) Len() int { return b.n }

// Cap returns the fixed capacity.
func (b *Batch) Cap() int { return len(b.tokens) }

// Add stages one token. It fails with ErrBatchFull once capacity is reached
// and leaves existing entries untouched.
func (b *Batch) Add(tok llama.Token, pos llama.Pos, seqIDs []llama.SeqID, computeOutput bool) error {
	if b.n >= len(b.tokens) {
		return fmt.Errorf("%w: capacity %d", ErrBatchFull, len(b.tokens))
	}
	if len(seqIDs) > b.maxSeqs {
		return fmt.Errorf("%w: token belongs to %d sequences, batch allows %d", ErrInvalidConfig, len(seqIDs), b.maxSeqs)
	}
	i := b.n
	b.tokens[i] = tok
	b.pos[i] = pos
	b.seqIDs[i] = append(b.seqIDs[i][:0], seqIDs...)
	b.logits[i] = computeOutput
	b.n++
	return nil
}

// AddSequence stages a run of tokens at consecutive positions from start in
// one sequence. With onlyLastOutput only the final token is marked for
// output. An empty run is a no-op.
func (b *Batch) AddSequence(tokens []llama.Token, start llama.Pos, seq llama.SeqID, onlyLastOutput bool) error {
	if len(tokens) == 0 {
		return nil
	}
	if b.n+len(tokens) > len(b.tokens) {
		return fmt.Errorf("%w: %d staged + %d new > capacity %d", ErrWouldExceedCapacity, b.n, len(tokens), len(b.tokens))
	}
	ids := []llama.SeqID{seq}
	last := len(tokens) - 1
	for i, tok := range tokens {
		out := !onlyLastOutput || i == last
		if err := b.Add(tok, start+llama.Pos(i), ids, out); err != nil {
			return err
		}
	}
	return nil
}

// Clear resets occupancy without reallocating.
func (b *Batch) Clear() { b.n = 0 }

// Token returns the staged token at i.
func (b *Batch) Token(i int) llama.Token { return b.tokens[i] }

// view exposes the occupied prefix to the engine.
func (b *Batch) view() llama.Batch {
	return llama.Batch{
		Tokens: b.tokens[:b.n],
		Pos:    b.pos[:b.n],
		SeqIDs: b.seqIDs[:b.n],
		Logits: b.logits[:b.n],
	}
}
