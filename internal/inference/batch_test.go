package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiboWorks/bitrag/internal/llama"
)

func TestNewBatchRejectsZeroCapacity(t *testing.T) {
	_, err := NewBatch(0, 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBatchAddBeyondCapacity(t *testing.T) {
	b, err := NewBatch(2, 1)
	require.NoError(t, err)

	seq := []llama.SeqID{0}
	require.NoError(t, b.Add(10, 0, seq, false))
	require.NoError(t, b.Add(11, 1, seq, true))

	err = b.Add(12, 2, seq, true)
	require.ErrorIs(t, err, ErrBatchFull)

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, llama.Token(10), b.Token(0))
	assert.Equal(t, llama.Token(11), b.Token(1))

	v := b.view()
	assert.Equal(t, []llama.Pos{0, 1}, v.Pos)
	assert.Equal(t, []bool{false, true}, v.Logits)
}

func TestBatchAddTooManySequences(t *testing.T) {
	b, err := NewBatch(4, 1)
	require.NoError(t, err)

	err = b.Add(1, 0, []llama.SeqID{0, 1}, false)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 0, b.Len())
}

func TestBatchAddSequenceOnlyLastOutput(t *testing.T) {
	b, err := NewBatch(8, 1)
	require.NoError(t, err)

	require.NoError(t, b.AddSequence([]llama.Token{5, 6, 7}, 4, 0, true))
	v := b.view()
	assert.Equal(t, []llama.Token{5, 6, 7}, v.Tokens)
	assert.Equal(t, []llama.Pos{4, 5, 6}, v.Pos)
	assert.Equal(t, []bool{false, false, true}, v.Logits)
	for _, ids := range v.SeqIDs {
		assert.Equal(t, []llama.SeqID{0}, ids)
	}

	b.Clear()
	require.NoError(t, b.AddSequence([]llama.Token{1, 2}, 0, 0, false))
	assert.Equal(t, []bool{true, true}, b.view().Logits)
}

func TestBatchAddSequenceWouldExceedCapacity(t *testing.T) {
	b, err := NewBatch(3, 1)
	require.NoError(t, err)
	require.NoError(t, b.Add(1, 0, []llama.SeqID{0}, false))

	err = b.AddSequence([]llama.Token{2, 3, 4}, 1, 0, true)
	require.ErrorIs(t, err, ErrWouldExceedCapacity)
	assert.Equal(t, 1, b.Len(), "a rejected run stages nothing")
}

func TestBatchEmptySequenceIsNoop(t *testing.T) {
	b, err := NewBatch(1, 1)
	require.NoError(t, err)

	require.NoError(t, b.AddSequence(nil, 0, 0, true))
	assert.Equal(t, 0, b.Len())
}

func TestBatchClearKeepsCapacity(t *testing.T) {
	b, err := NewBatch(2, 1)
	require.NoError(t, err)
	require.NoError(t, b.AddSequence([]llama.Token{1, 2}, 0, 0, true))

	b.Clear()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 2, b.Cap())
	require.NoError(t, b.AddSequence([]llama.Token{3, 4}, 0, 0, true))
}
