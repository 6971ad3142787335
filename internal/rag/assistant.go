package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LiboWorks/bitrag/internal/generator"
	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/logging"
	"github.com/LiboWorks/bitrag/internal/translate"
)

// Generator is the part of the generation orchestrator the assistant uses.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) (string, error)
	GenerateStreaming(ctx context.Context, req generator.Request, onToken inference.TokenFunc) (string, error)
}

// AnswerStops end an answer where the model starts inventing the next turn.
var AnswerStops = []string{"\n\nQuestion:", "\n\nUser:"}

// AssistantConfig wires the assistant. Store and Web are optional.
type AssistantConfig struct {
	Generator Generator
	Store     Store
	Embedder  Embedder
	Web       WebSearcher

	TopK       int     // local results, 3 when zero
	WebResults int     // web results, 3 when zero
	MinScore   float32 // local results below this are ignored, 0.4 when zero
	MaxContext int     // bytes of local context, 4000 when zero
	// FetchContent replaces web snippets with full article text.
	FetchContent bool

	MaxTokens int
	Sampler   *inference.SamplerConfig
	Logger    logging.Logger
}

// Timing records where an Ask spent its time.
type Timing struct {
	Classify time.Duration `json:"classify"`
	Retrieve time.Duration `json:"retrieve"`
	Generate time.Duration `json:"generate"`
	Total    time.Duration `json:"total"`
}

// Answer is the outcome of Ask.
type Answer struct {
	Question       string             `json:"question"`
	Asked          string             `json:"asked"` // Question after translation
	Language       translate.Language `json:"language"`
	Text           string             `json:"answer"`
	Classification Classification     `json:"classification"`
	Sources        []SearchResult     `json:"sources"`
	Web            []WebResult        `json:"web,omitempty"`
	Context        string             `json:"context,omitempty"`
	UsedWeb        bool               `json:"used_web"`
	Timing         Timing             `json:"timing"`
}

// Assistant answers questions with retrieved context.
type Assistant struct {
	cfg AssistantConfig
	log logging.Logger
}

// NewAssistant checks cfg and fills its defaults.
func NewAssistant(cfg AssistantConfig) (*Assistant, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("%w: assistant needs a generator", inference.ErrInvalidConfig)
	}
	if cfg.Store != nil && cfg.Embedder == nil {
		cfg.Embedder = NewHashEmbedder(DefaultDimension)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.WebResults <= 0 {
		cfg.WebResults = 3
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.4
	}
	if cfg.MaxContext <= 0 {
		cfg.MaxContext = 4000
	}
	return &Assistant{cfg: cfg, log: logging.OrDiscard(cfg.Logger).With("component", "assistant")}, nil
}

// Ask classifies question, gathers context for it and generates an answer.
func (a *Assistant) Ask(ctx context.Context, question string) (Answer, error) {
	return a.ask(ctx, question, nil)
}

// AskStreaming is Ask with the answer streamed to onToken.
func (a *Assistant) AskStreaming(ctx context.Context, question string, onToken inference.TokenFunc) (Answer, error) {
	if onToken == nil {
		onToken = func(string) error { return nil }
	}
	return a.ask(ctx, question, onToken)
}

func (a *Assistant) ask(ctx context.Context, question string, onToken inference.TokenFunc) (Answer, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: empty question", inference.ErrTokenization)
	}

	ans := Answer{Question: question, Asked: question, Language: translate.DetectLanguage(question)}
	if ans.Language == translate.Spanish {
		ans.Asked = translate.TranslateToEnglish(question)
		a.log.Debug("translated question", "from", question, "to", ans.Asked)
	}

	ans.Classification = Classify(ans.Asked)
	ans.Timing.Classify = time.Since(start)
	a.log.Debug("classified", "category", ans.Classification.Category,
		"strategy", ans.Classification.Strategy, "confidence", ans.Classification.Confidence)

	retrieveStart := time.Now()
	if err := a.retrieve(ctx, &ans); err != nil {
		return ans, err
	}
	ans.Context = a.buildContext(&ans)
	ans.Timing.Retrieve = time.Since(retrieveStart)

	genStart := time.Now()
	req := generator.Request{
		Prompt:    BuildPrompt(ans.Context, ans.Asked),
		MaxTokens: a.cfg.MaxTokens,
		Sampler:   a.cfg.Sampler,
		Stop:      AnswerStops,
	}
	var (
		text string
		err  error
	)
	if onToken != nil {
		text, err = a.cfg.Generator.GenerateStreaming(ctx, req, onToken)
	} else {
		text, err = a.cfg.Generator.Generate(ctx, req)
	}
	ans.Text = strings.TrimSpace(text)
	ans.Timing.Generate = time.Since(genStart)
	ans.Timing.Total = time.Since(start)
	if err != nil {
		return ans, err
	}

	a.log.Info("answered", "category", ans.Classification.Category, "sources", len(ans.Sources),
		"web", ans.UsedWeb, "took", ans.Timing.Total)
	return ans, nil
}

// retrieve runs the local and web lookups the strategy asks for side by side.
// A failing lookup is logged and leaves its part of the context empty.
func (a *Assistant) retrieve(ctx context.Context, ans *Answer) error {
	strategy := ans.Classification.Strategy
	g, gctx := errgroup.WithContext(ctx)

	if strategy.UsesLocal() && a.cfg.Store != nil {
		g.Go(func() error {
			results, err := a.searchLocal(gctx, ans.Asked)
			if err != nil {
				a.log.Warn("local search failed", "error", err)
				return gctx.Err()
			}
			ans.Sources = results
			return nil
		})
	}
	if strategy.UsesWeb() && a.cfg.Web != nil {
		g.Go(func() error {
			results, err := a.searchWeb(gctx, ans.Asked)
			if err != nil {
				if !errors.Is(err, ErrNoResults) {
					a.log.Warn("web search failed", "searcher", a.cfg.Web.Name(), "error", err)
				}
				return gctx.Err()
			}
			ans.Web = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %w", inference.ErrInterrupted, err)
	}

	// Web results only back up local ones under rag_then_web.
	if strategy == StrategyRAGThenWeb && hasRelevant(ans.Sources) {
		ans.Web = nil
	}
	ans.UsedWeb = len(ans.Web) > 0
	return nil
}

func (a *Assistant) searchLocal(ctx context.Context, query string) ([]SearchResult, error) {
	vec, err := a.cfg.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return a.cfg.Store.Search(ctx, vec, a.cfg.TopK)
}

func (a *Assistant) searchWeb(ctx context.Context, query string) ([]WebResult, error) {
	results, err := a.cfg.Web.Search(ctx, query, a.cfg.WebResults)
	if err != nil || !a.cfg.FetchContent {
		return results, err
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		g.Go(func() error {
			content, err := a.cfg.Web.FetchContent(gctx, results[i])
			if err != nil {
				a.log.Debug("fetch content failed", "title", results[i].Title, "error", err)
				return nil
			}
			results[i].Content = content
			return nil
		})
	}
	return results, g.Wait()
}

func hasRelevant(results []SearchResult) bool {
	for _, r := range results {
		if r.Relevant() {
			return true
		}
	}
	return false
}

// buildContext joins the usable local results, best first, within
// MaxContext bytes, followed by the web results.
func (a *Assistant) buildContext(ans *Answer) string {
	var parts []string
	used := 0
	for _, r := range ans.Sources {
		if r.Score < a.cfg.MinScore {
			continue
		}
		if used+len(r.Document.Content) > a.cfg.MaxContext {
			break
		}
		parts = append(parts, r.Document.Content)
		used += len(r.Document.Content)
	}
	for _, w := range ans.Web {
		parts = append(parts, w.ContextBlock())
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// BuildPrompt renders the answer prompt, with a context section when
// background is not empty.
func BuildPrompt(background, question string) string {
	if background == "" {
		return "You are a helpful assistant. Answer the following question concisely and accurately.\n\n" +
			"Question: " + question + "\n\nAnswer:"
	}
	return "You are a helpful assistant. Use the following context to answer the question.\n\n" +
		"Context:\n" + background + "\n\nQuestion: " + question + "\n\nAnswer:"
}
