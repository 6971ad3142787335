package inference_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/llama"
	bitragtesting "github.com/LiboWorks/bitrag/internal/testing"
)

func loadModel(t *testing.T, eng *bitragtesting.FakeEngine) *inference.Model {
	t.Helper()
	m, err := inference.LoadModel(eng, bitragtesting.WriteFakeModel(t), inference.DefaultModelParams())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestLoadModelMissingFile(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	_, err := inference.LoadModel(eng, filepath.Join(t.TempDir(), "nope.gguf"), inference.DefaultModelParams())
	require.Error(t, err)

	var loadErr *inference.ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Path, "nope.gguf")
	assert.ErrorIs(t, err, inference.ErrModelLoad)
	assert.Equal(t, "load", inference.Stage(err))
}

func TestLoadModelEngineFailure(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	eng.LoadErr = errors.New("unsupported format")

	_, err := inference.LoadModel(eng, bitragtesting.WriteFakeModel(t), inference.DefaultModelParams())
	require.ErrorIs(t, err, inference.ErrModelLoad)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestLoadModelNilEngine(t *testing.T) {
	_, err := inference.LoadModel(nil, bitragtesting.WriteFakeModel(t), inference.DefaultModelParams())
	require.ErrorIs(t, err, inference.ErrModelLoad)
	assert.ErrorIs(t, err, llama.ErrUnavailable)
}

func TestModelMetadata(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("", "Hello", " world")
	m := loadModel(t, eng)

	assert.Equal(t, int(bitragtesting.FirstWordToken)+2, m.NVocab())
	assert.Equal(t, 64, m.NEmbd())
	assert.Equal(t, 4096, m.NCtxTrain())
	assert.Equal(t, "fake 1B", m.Desc())
	assert.True(t, m.IsEndOfGeneration(bitragtesting.EOS))
	assert.False(t, m.IsEndOfGeneration('a'))
}

func TestTokenizeRoundTrip(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("", "Hello", " world", "ñ")
	m := loadModel(t, eng)

	prompts := []string{
		"Hello world!",
		"Hello, world and more world",
		"año niño",
		"",
	}
	for _, text := range prompts {
		toks, err := m.Tokenize(text, true, true)
		require.NoError(t, err)
		require.NotEmpty(t, toks)
		assert.Equal(t, bitragtesting.BOS, toks[0])

		var got string
		for _, tok := range toks {
			piece, err := m.TokenToText(tok)
			require.NoError(t, err)
			got += piece
		}
		assert.Equal(t, text, got)

		joined, err := m.Detokenize(toks)
		require.NoError(t, err)
		assert.Equal(t, text, joined)
	}
}

func TestTokenizeRejectsInvalidUTF8(t *testing.T) {
	m := loadModel(t, bitragtesting.NewFakeEngine(""))

	_, err := m.Tokenize("bad \xff input", true, false)
	require.ErrorIs(t, err, inference.ErrTokenization)
	assert.Equal(t, "tokenize", inference.Stage(err))
}

func TestModelFreedAfterLastContext(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	m, err := inference.LoadModel(eng, bitragtesting.WriteFakeModel(t), inference.DefaultModelParams())
	require.NoError(t, err)

	c, err := inference.NewContext(m, inference.DefaultContextParams())
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, int32(0), eng.ModelsFreed.Load(), "context still holds the model")

	c.Free()
	c.Free()
	assert.Equal(t, int32(1), eng.ModelsFreed.Load())
	assert.Equal(t, int32(1), eng.ContextsFreed.Load())

	_, err = m.Tokenize("x", false, false)
	assert.ErrorIs(t, err, inference.ErrModelNotLoaded)

	_, err = inference.NewContext(m, inference.DefaultContextParams())
	assert.ErrorIs(t, err, inference.ErrModelNotLoaded)
}
