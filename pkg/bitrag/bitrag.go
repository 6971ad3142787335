// Package bitrag provides a public API for local retrieval-augmented
// generation.
//
// An Engine owns one model backend, a document store and a question
// answering pipeline on top of them.
//
// Basic usage:
//
//	eng, err := bitrag.New(bitrag.WithModel("2b"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	text, err := eng.Generate(ctx, "The capital of France is")
//
// Question answering over your own documents:
//
//	eng.AddDocument(ctx, "Our office is at 12 Harbour Street.", nil)
//	ans, err := eng.Ask(ctx, "Where is the office?")
//	fmt.Println(ans.Text, ans.Sources)
package bitrag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LiboWorks/bitrag/internal/config"
	"github.com/LiboWorks/bitrag/internal/downloader"
	"github.com/LiboWorks/bitrag/internal/generator"
	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
	"github.com/LiboWorks/bitrag/internal/rag"
)

// Errors callers can match with errors.Is.
var (
	ErrInvalidConfig = inference.ErrInvalidConfig
	ErrModelLoad     = inference.ErrModelLoad
	ErrPoolTimeout   = inference.ErrPoolTimeout
	ErrInterrupted   = inference.ErrInterrupted
	ErrNotFound      = rag.ErrNotFound
)

// ErrorStage names the pipeline stage an error came from: load, tokenize,
// decode, sample, timeout, interrupted, config, io or unknown.
func ErrorStage(err error) string {
	return inference.Stage(err)
}

// Source is a stored document that contributed to an answer.
type Source struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

// WebSource is a web page that contributed to an answer.
type WebSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Answer is the result of Ask.
type Answer struct {
	Text     string `json:"text"`
	Question string `json:"question"`
	// Asked is the question the model saw, translated to English when needed.
	Asked    string        `json:"asked"`
	Language string        `json:"language"`
	Category string        `json:"category"`
	Strategy string        `json:"strategy"`
	Sources  []Source      `json:"sources"`
	Web      []WebSource   `json:"web,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Info describes the loaded backend.
type Info struct {
	Backend   string `json:"backend"`
	Version   string `json:"version"`
	ModelPath string `json:"model_path,omitempty"`
	Ready     bool   `json:"ready"`
}

// Engine is safe for concurrent use.
type Engine struct {
	gen       *generator.Generator
	store     rag.Store
	emb       rag.Embedder
	assistant *rag.Assistant
	log       logging.Logger
}

// New builds an Engine from functional options.
func New(opts ...Option) (*Engine, error) {
	return NewWithOptions(ApplyOptions(opts...))
}

// NewWithOptions builds an Engine. A nil o uses DefaultOptions.
func NewWithOptions(o *Options) (*Engine, error) {
	if o == nil {
		o = DefaultOptions()
	}
	log := logging.OrDiscard(o.Logger)
	cfg, err := toConfig(o)
	if err != nil {
		return nil, err
	}
	if cfg.ModelPath == "" && !strings.EqualFold(cfg.Backend, "openai") {
		path, err := downloader.NewCache(cfg.ModelsDir, log).Resolve(cfg.ModelID)
		if err != nil {
			return nil, err
		}
		cfg.ModelPath = path
	}

	gopts, err := generator.OptionsFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	gen, err := generator.New(gopts)
	if err != nil {
		return nil, err
	}

	var store rag.Store
	if o.StoreDir != "" {
		if store, err = rag.OpenBadgerStore(rag.BadgerOptions{Dir: o.StoreDir, Logger: log}); err != nil {
			gen.Close()
			return nil, err
		}
	} else {
		store = rag.NewMemoryStore()
	}
	emb := rag.NewHashEmbedder(rag.DefaultDimension)

	var web rag.WebSearcher
	if o.WebSearch {
		wc := rag.DefaultWikipediaConfig()
		if o.WikipediaLang != "" {
			wc.Language = o.WikipediaLang
		}
		wc.Logger = log
		web = rag.NewWikipediaSearcher(wc)
	}
	assistant, err := rag.NewAssistant(rag.AssistantConfig{
		Generator: gen,
		Store:     store,
		Embedder:  emb,
		Web:       web,
		Logger:    log,
	})
	if err != nil {
		gen.Close()
		store.Close()
		return nil, err
	}
	return &Engine{gen: gen, store: store, emb: emb, assistant: assistant, log: log}, nil
}

func toConfig(o *Options) (*config.Config, error) {
	cfg := config.NewConfig().
		WithModel(o.ModelPath, o.ModelID).
		WithBackend(o.Backend).
		WithContext(o.ContextSize, o.Threads).
		WithOpenAI(o.OpenAIKey, o.OpenAIBaseURL, o.OpenAIModel)
	cfg.ModelsDir = o.ModelsDir
	cfg.Isolate = o.Isolate
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	if o.PoolMax > 0 {
		cfg.WithPool(o.PoolMin, o.PoolMax, o.PoolTimeout)
	}
	if o.MaxTokens > 0 {
		cfg.MaxTokens = o.MaxTokens
	}
	if o.Preset != "" {
		cfg.Sampler = o.Preset
	}
	if o.StoreDir != "" {
		cfg.WithStore("badger", o.StoreDir)
	}
	cfg.WebSearch = o.WebSearch
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Generate completes prompt.
func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	return e.gen.Generate(ctx, generator.Request{Prompt: prompt})
}

// GenerateStream completes prompt, passing each piece to onToken as it is
// produced. Returning an error from onToken stops generation.
func (e *Engine) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) (string, error) {
	return e.gen.GenerateStreaming(ctx, generator.Request{Prompt: prompt}, onToken)
}

// Chat answers user under the system prompt, or the built-in one when
// system is empty.
func (e *Engine) Chat(ctx context.Context, system, user string) (string, error) {
	return e.gen.Chat(ctx, generator.ChatRequest{System: system, User: user})
}

// Ask answers question with context from the document store and, when
// enabled, Wikipedia.
func (e *Engine) Ask(ctx context.Context, question string) (Answer, error) {
	ans, err := e.assistant.Ask(ctx, question)
	if err != nil {
		return Answer{}, err
	}
	return fromInternalAnswer(ans), nil
}

// AskStream is Ask with the answer text streamed to onToken.
func (e *Engine) AskStream(ctx context.Context, question string, onToken func(string) error) (Answer, error) {
	ans, err := e.assistant.AskStreaming(ctx, question, onToken)
	if err != nil {
		return Answer{}, err
	}
	return fromInternalAnswer(ans), nil
}

// AddDocument stores content and returns its id.
func (e *Engine) AddDocument(ctx context.Context, content string, metadata map[string]any) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: document content is empty", ErrInvalidConfig)
	}
	doc := rag.Document{
		ID:        uuid.NewString(),
		Content:   content,
		Source:    rag.SourceManual,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := rag.Ingest(ctx, e.store, e.emb, []rag.Document{doc}); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// AddCorpusFile stores every document of a YAML corpus file.
func (e *Engine) AddCorpusFile(ctx context.Context, path string) (int, error) {
	docs, err := rag.LoadCorpusFile(path)
	if err != nil {
		return 0, err
	}
	return rag.Ingest(ctx, e.store, e.emb, docs)
}

// RemoveDocument deletes a stored document. It returns ErrNotFound for an
// unknown id.
func (e *Engine) RemoveDocument(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}

// Search returns the k stored documents most similar to query.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Source, error) {
	vec, err := e.emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := e.store.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	return fromInternalResults(results), nil
}

// Info describes the loaded backend.
func (e *Engine) Info() Info {
	i := e.gen.Info()
	return Info{Backend: i.Backend, Version: i.Version, ModelPath: i.ModelPath, Ready: i.Ready}
}

// Close releases the backend and the document store.
func (e *Engine) Close() error {
	return errors.Join(e.gen.Close(), e.store.Close())
}

// Helper functions for conversion

func fromInternalAnswer(a rag.Answer) Answer {
	out := Answer{
		Text:     a.Text,
		Question: a.Question,
		Asked:    a.Asked,
		Language: string(a.Language),
		Category: string(a.Classification.Category),
		Strategy: string(a.Classification.Strategy),
		Sources:  fromInternalResults(a.Sources),
		Elapsed:  a.Timing.Total,
	}
	for _, w := range a.Web {
		out.Web = append(out.Web, WebSource{Title: w.Title, URL: w.URL})
	}
	return out
}

func fromInternalResults(results []rag.SearchResult) []Source {
	out := make([]Source, len(results))
	for i, r := range results {
		out[i] = Source{ID: r.Document.ID, Content: r.Document.Content, Score: r.Score}
	}
	return out
}
