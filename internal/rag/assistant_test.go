package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiboWorks/bitrag/internal/generator"
	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/translate"
)

type recordingGenerator struct {
	mu     sync.Mutex
	reply  string
	err    error
	prompt string
	stops  []string
}

func (g *recordingGenerator) Generate(_ context.Context, req generator.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompt = req.Prompt
	g.stops = req.Stop
	return g.reply, g.err
}

func (g *recordingGenerator) GenerateStreaming(ctx context.Context, req generator.Request, onToken inference.TokenFunc) (string, error) {
	text, err := g.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	for _, w := range strings.SplitAfter(text, " ") {
		if err := onToken(w); err != nil {
			return text, err
		}
	}
	return text, nil
}

type fakeWeb struct {
	mu      sync.Mutex
	results []WebResult
	err     error
	queries []string
	fetched int
}

func (w *fakeWeb) Name() string { return "fake" }

func (w *fakeWeb) Search(_ context.Context, query string, n int) ([]WebResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, query)
	if w.err != nil {
		return nil, w.err
	}
	out := append([]WebResult(nil), w.results...)
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (w *fakeWeb) FetchContent(_ context.Context, r WebResult) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fetched++
	return "full text about " + r.Title, nil
}

func newTestAssistant(t *testing.T, gen Generator, web WebSearcher, docs ...Document) *Assistant {
	t.Helper()
	ctx := context.Background()
	store := NewMemoryStore()
	emb := NewHashEmbedder(DefaultDimension)
	_, err := Ingest(ctx, store, emb, docs)
	require.NoError(t, err)

	a, err := NewAssistant(AssistantConfig{Generator: gen, Store: store, Embedder: emb, Web: web})
	require.NoError(t, err)
	return a
}

var geography = []Document{
	{ID: "paris", Content: "What is the capital of France? The capital of France is Paris."},
	{ID: "everest", Content: "Mount Everest is the highest mountain on Earth."},
}

func TestAskUsesLocalContext(t *testing.T) {
	gen := &recordingGenerator{reply: " Paris. "}
	web := &fakeWeb{results: []WebResult{{Title: "Paris", Snippet: "web snippet", Source: "fake"}}}
	a := newTestAssistant(t, gen, web, geography...)

	ans, err := a.Ask(context.Background(), "What is the capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris.", ans.Text)
	assert.Equal(t, CategoryFactual, ans.Classification.Category)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "paris", ans.Sources[0].Document.ID)
	assert.True(t, ans.Sources[0].Relevant())

	// A relevant local hit makes the web results unnecessary.
	assert.False(t, ans.UsedWeb)
	assert.Empty(t, ans.Web)
	assert.Len(t, web.queries, 1)

	assert.Contains(t, gen.prompt, "Context:\nWhat is the capital of France? The capital of France is Paris.\n\nQuestion:")
	assert.Contains(t, gen.prompt, "Question: What is the capital of France?\n\nAnswer:")
	assert.NotContains(t, gen.prompt, "Everest")
	assert.Equal(t, AnswerStops, gen.stops)
}

func TestAskFallsBackToWeb(t *testing.T) {
	gen := &recordingGenerator{reply: "Canberra"}
	web := &fakeWeb{results: []WebResult{{Title: "Canberra", URL: "u", Snippet: "Canberra is the capital of Australia", Source: "fake"}}}
	a := newTestAssistant(t, gen, web, geography...)

	ans, err := a.Ask(context.Background(), "Who is the president of Australia?")
	require.NoError(t, err)

	assert.True(t, ans.UsedWeb)
	require.Len(t, ans.Web, 1)
	assert.Contains(t, gen.prompt, "# Canberra\nSource: fake (u)\n\nCanberra is the capital of Australia")
}

func TestAskFetchesWebContent(t *testing.T) {
	gen := &recordingGenerator{reply: "ok"}
	web := &fakeWeb{results: []WebResult{{Title: "A"}, {Title: "B"}}}
	store := NewMemoryStore()
	a, err := NewAssistant(AssistantConfig{Generator: gen, Store: store, Web: web, FetchContent: true})
	require.NoError(t, err)

	ans, err := a.Ask(context.Background(), "Who invented the telephone?")
	require.NoError(t, err)
	assert.Equal(t, 2, web.fetched)
	assert.Equal(t, "full text about A", ans.Web[0].Content)
	assert.Contains(t, gen.prompt, "full text about B")
}

func TestAskDirectSkipsRetrieval(t *testing.T) {
	gen := &recordingGenerator{reply: "4"}
	web := &fakeWeb{}
	a := newTestAssistant(t, gen, web, geography...)

	ans, err := a.Ask(context.Background(), "What is 2 + 2?")
	require.NoError(t, err)
	assert.Equal(t, StrategyLLMDirect, ans.Classification.Strategy)
	assert.Empty(t, ans.Sources)
	assert.Empty(t, web.queries)
	assert.Equal(t, BuildPrompt("", "What is 2 + 2?"), gen.prompt)
}

func TestAskToleratesSearchFailures(t *testing.T) {
	gen := &recordingGenerator{reply: "not sure"}
	web := &fakeWeb{err: errors.New("network down")}
	a := newTestAssistant(t, gen, web)

	ans, err := a.Ask(context.Background(), "Who discovered penicillin?")
	require.NoError(t, err)
	assert.Equal(t, "not sure", ans.Text)
	assert.False(t, ans.UsedWeb)
	assert.Empty(t, ans.Context)
}

func TestAskTranslatesSpanish(t *testing.T) {
	gen := &recordingGenerator{reply: "Paris"}
	a := newTestAssistant(t, gen, nil, geography...)

	ans, err := a.Ask(context.Background(), "¿Cuál es la capital de Francia?")
	require.NoError(t, err)
	assert.Equal(t, translate.Spanish, ans.Language)
	assert.Equal(t, "What is the capital of France?", ans.Asked)
	assert.Equal(t, "¿Cuál es la capital de Francia?", ans.Question)
	require.NotEmpty(t, ans.Sources)
	assert.Equal(t, "paris", ans.Sources[0].Document.ID)
}

func TestAskStreaming(t *testing.T) {
	gen := &recordingGenerator{reply: "Paris is the answer"}
	a := newTestAssistant(t, gen, nil, geography...)

	var pieces []string
	ans, err := a.AskStreaming(context.Background(), "What is the capital of France?", func(p string) error {
		pieces = append(pieces, p)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris is the answer", ans.Text)
	assert.Equal(t, "Paris is the answer", strings.Join(pieces, ""))
}

func TestAskErrors(t *testing.T) {
	_, err := NewAssistant(AssistantConfig{})
	assert.ErrorIs(t, err, inference.ErrInvalidConfig)

	gen := &recordingGenerator{err: inference.ErrPoolTimeout}
	a := newTestAssistant(t, gen, nil)

	_, err = a.Ask(context.Background(), "  ")
	assert.ErrorIs(t, err, inference.ErrTokenization)

	_, err = a.Ask(context.Background(), "Hello!")
	assert.ErrorIs(t, err, inference.ErrPoolTimeout)
}

func TestAskCancelledDuringRetrieval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newTestAssistant(t, &recordingGenerator{}, &fakeWeb{}, geography...)

	_, err := a.Ask(ctx, "What is the capital of France?")
	assert.ErrorIs(t, err, inference.ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildContextRespectsLimits(t *testing.T) {
	a, err := NewAssistant(AssistantConfig{Generator: &recordingGenerator{}, MaxContext: 10})
	require.NoError(t, err)
	ans := &Answer{Sources: []SearchResult{
		{Document: Document{Content: "12345"}, Score: 0.9},
		{Document: Document{Content: "weak"}, Score: 0.1},
		{Document: Document{Content: "abcde"}, Score: 0.8},
		{Document: Document{Content: "overflow"}, Score: 0.7},
	}}
	assert.Equal(t, "12345\n\n---\n\nabcde", a.buildContext(ans))
}
