package backend_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiboWorks/bitrag/internal/backend"
	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/llama"
	bitragtesting "github.com/LiboWorks/bitrag/internal/testing"
)

func newNative(t *testing.T, eng *bitragtesting.FakeEngine, mutate ...func(*backend.NativeConfig)) *backend.Native {
	t.Helper()
	cfg := backend.DefaultNativeConfig(bitragtesting.WriteFakeModel(t))
	cfg.Engine = eng
	cfg.Context.NCtx = 256
	cfg.Context.NBatch = 64
	cfg.Pool = inference.PoolConfig{MinSize: 1, MaxSize: 2, AcquireTimeout: 2 * time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	n, err := backend.NewNative(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestNativeGenerateEndsAtEOG(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine("4"))

	start := time.Now()
	out, err := n.Generate(context.Background(), "2 + 2 =", 8, inference.GreedySamplerConfig())
	require.NoError(t, err)
	assert.Equal(t, "4", out)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, n.Stats().InUse)
}

func TestNativeGenerateRespectsBudget(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("abcdefghij")
	n := newNative(t, eng)

	out, err := n.Generate(context.Background(), "go", 3, inference.GreedySamplerConfig())
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
	// Prompt decode plus one decode per token except the last.
	assert.Equal(t, int32(3), eng.Decodes.Load())
}

func TestNativeGenerateDefaultSampler(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine("Hello world", "Hello", " world"))

	cfg := inference.DefaultSamplerConfig()
	cfg.Seed = 1
	out, err := n.Generate(context.Background(), "Say hi", 16, cfg)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", out)
}

func TestNativeStopsShortOfWindow(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine("abcdefghijklmnop"), func(c *backend.NativeConfig) {
		c.Context.NCtx = 16
		c.Context.NBatch = 16
	})

	out, err := n.Generate(context.Background(), "hello", 100, inference.GreedySamplerConfig())
	require.NoError(t, err)
	assert.Equal(t, "abcdefg", out)
}

func TestNativePromptTooLong(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine("x"), func(c *backend.NativeConfig) {
		c.Context.NCtx = 8
	})

	_, err := n.Generate(context.Background(), "this prompt is far too long", 4, inference.GreedySamplerConfig())
	require.ErrorIs(t, err, inference.ErrTokenization)
	assert.Equal(t, 0, n.Stats().InUse)
}

func TestNativeLongPromptDecodedInChunks(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("ok")
	n := newNative(t, eng, func(c *backend.NativeConfig) {
		c.Context.NBatch = 8
	})

	out, err := n.Generate(context.Background(), strings.Repeat("x", 30), 8, inference.GreedySamplerConfig())
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	// 31 prompt tokens in batches of 8, then one decode per generated piece.
	assert.Equal(t, int32(6), eng.Decodes.Load())
}

func TestNativeStreaming(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine("one two", "one", " two"))

	var pieces []string
	out, err := n.GenerateStreaming(context.Background(), "count", 10, inference.GreedySamplerConfig(), func(p string) error {
		pieces = append(pieces, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", " two"}, pieces)
	assert.Equal(t, "one two", out)
}

func TestNativeStreamingMultiByteText(t *testing.T) {
	const reply = "héllo 日本"
	n := newNative(t, bitragtesting.NewFakeEngine(reply))

	buffered, err := n.Generate(context.Background(), "greet", 32, inference.GreedySamplerConfig())
	require.NoError(t, err)

	var pieces []string
	streamed, err := n.GenerateStreaming(context.Background(), "greet", 32, inference.GreedySamplerConfig(), func(p string) error {
		pieces = append(pieces, p)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, reply, buffered)
	assert.Equal(t, buffered, streamed)
	assert.Equal(t, streamed, strings.Join(pieces, ""))
	for _, p := range pieces {
		assert.True(t, utf8.ValidString(p), "piece %q split a character", p)
	}
	assert.Contains(t, pieces, "é")
	assert.Contains(t, pieces, "日")
}

func TestNativeStreamingFlushesAtBudget(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine("a日"))

	var pieces []string
	out, err := n.GenerateStreaming(context.Background(), "p", 3, inference.GreedySamplerConfig(), func(p string) error {
		pieces = append(pieces, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a\xe6\x97", out)
	assert.Equal(t, []string{"a", "\xe6\x97"}, pieces, "held bytes are released when the budget ends")
}

func TestNativeStreamingStop(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine("abcdef"))

	out, err := n.GenerateStreaming(context.Background(), "p", 10, inference.GreedySamplerConfig(), func(p string) error {
		if p == "c" {
			return inference.ErrStopGeneration
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
}

func TestNativeStreamingCallbackError(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine("abcdef"))
	boom := errors.New("client went away")

	out, err := n.GenerateStreaming(context.Background(), "p", 10, inference.GreedySamplerConfig(), func(string) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "a", out)
	assert.Equal(t, 0, n.Stats().InUse)
}

func TestNativeDecodeFailureReleasesContext(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("abc")
	eng.DecodeFailAt = 2
	eng.DecodeCode = -1
	n := newNative(t, eng, func(c *backend.NativeConfig) {
		c.Pool = inference.PoolConfig{MinSize: 1, MaxSize: 1, AcquireTimeout: time.Second}
	})

	_, err := n.Generate(context.Background(), "p", 5, inference.GreedySamplerConfig())
	var decErr *inference.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "decode", inference.Stage(err))

	s := n.Stats()
	assert.Equal(t, 0, s.InUse)
	assert.Equal(t, 1, s.Available)

	out, err := n.Generate(context.Background(), "p", 5, inference.GreedySamplerConfig())
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
}

func TestNativeCancelledContext(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine("abc"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Generate(ctx, "p", 5, inference.GreedySamplerConfig())
	require.ErrorIs(t, err, inference.ErrInterrupted)
	assert.Equal(t, 0, n.Stats().InUse)
}

func TestNativeConcurrentRequests(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("pong")
	n := newNative(t, eng)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := n.Generate(context.Background(), "ping", 10, inference.GreedySamplerConfig())
			assert.NoError(t, err)
			assert.Equal(t, "pong", out)
		}()
	}
	wg.Wait()

	s := n.Stats()
	assert.LessOrEqual(t, s.Size, 2)
	assert.Equal(t, 0, s.InUse)
}

func TestNativeChat(t *testing.T) {
	var seenPrompt string
	eng := bitragtesting.NewFakeEngine("")
	eng.NextToken = func(history []llama.Token, promptLen int) llama.Token {
		if len(history) == promptLen {
			var sb strings.Builder
			for _, tok := range history {
				if tok < 256 {
					sb.WriteByte(byte(tok))
				}
			}
			seenPrompt = sb.String()
			return 'k'
		}
		return bitragtesting.EOS
	}
	n := newNative(t, eng)

	out, err := n.Chat(context.Background(), "sys", "hi", 4, inference.GreedySamplerConfig())
	require.NoError(t, err)
	assert.Equal(t, "k", out)
	assert.Equal(t, inference.FormatChatPrompt("sys", "hi"), seenPrompt)
}

func TestNativeInfo(t *testing.T) {
	n := newNative(t, bitragtesting.NewFakeEngine(""))

	assert.Equal(t, backend.NativeName, n.Name())
	assert.True(t, n.IsReady())
	v, err := n.Version()
	require.NoError(t, err)
	assert.Equal(t, "Native FFI (fake 1B) - vocab:258, embd:64", v)
}

func TestNativeCloseFreesModel(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	cfg := backend.DefaultNativeConfig(bitragtesting.WriteFakeModel(t))
	cfg.Engine = eng
	cfg.Pool = inference.PoolConfig{MinSize: 2, MaxSize: 2, AcquireTimeout: time.Second}

	n, err := backend.NewNative(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	assert.Equal(t, int32(2), eng.ContextsFreed.Load())
	assert.Equal(t, int32(1), eng.ModelsFreed.Load())
}

func TestLoadModel(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	cfg := backend.DefaultNativeConfig(bitragtesting.WriteFakeModel(t))
	cfg.Engine = eng

	m, err := backend.LoadModel(cfg)
	require.NoError(t, err)
	assert.Equal(t, 64, m.NEmbd())
	require.NoError(t, m.Close())
	assert.Equal(t, int32(1), eng.ModelsFreed.Load())
	assert.Equal(t, int32(0), eng.ContextsCreated.Load(), "no pool is built")

	cfg.ModelPath = ""
	_, err = backend.LoadModel(cfg)
	assert.ErrorIs(t, err, inference.ErrBackendInit)
}

func TestNativeInitFailures(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	eng.LoadErr = errors.New("corrupt file")
	cfg := backend.DefaultNativeConfig(bitragtesting.WriteFakeModel(t))
	cfg.Engine = eng

	_, err := backend.NewNative(cfg)
	require.ErrorIs(t, err, inference.ErrBackendInit)
	assert.ErrorIs(t, err, inference.ErrModelLoad)

	cfg = backend.DefaultNativeConfig(bitragtesting.WriteFakeModel(t))
	cfg.LibraryDir = t.TempDir()
	_, err = backend.NewNative(cfg)
	require.ErrorIs(t, err, inference.ErrBackendInit)
	assert.ErrorIs(t, err, llama.ErrUnavailable)

	cfg = backend.DefaultNativeConfig("")
	cfg.Engine = bitragtesting.NewFakeEngine("")
	_, err = backend.NewNative(cfg)
	assert.ErrorIs(t, err, inference.ErrBackendInit)

	eng = bitragtesting.NewFakeEngine("")
	eng.ContextFailAfter = 1
	cfg = backend.DefaultNativeConfig(bitragtesting.WriteFakeModel(t))
	cfg.Engine = eng
	cfg.Pool = inference.PoolConfig{MinSize: 2, MaxSize: 2, AcquireTimeout: time.Second}
	_, err = backend.NewNative(cfg)
	require.ErrorIs(t, err, inference.ErrBackendInit)
	assert.Equal(t, int32(1), eng.ModelsFreed.Load(), "model is released when the pool cannot start")
}
