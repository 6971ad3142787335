package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/LiboWorks/bitrag/internal/generator"
	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/rag"
	"github.com/LiboWorks/bitrag/internal/translate"
)

// SamplerParams overrides sampling for one request. Unset fields keep the
// values of Preset, which defaults to "balanced".
type SamplerParams struct {
	Preset        string   `json:"preset,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopK          *int     `json:"top_k,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
	MinP          *float32 `json:"min_p,omitempty"`
	RepeatPenalty *float32 `json:"repeat_penalty,omitempty"`
	RepeatLastN   *int     `json:"repeat_last_n,omitempty"`
	Seed          *uint64  `json:"seed,omitempty"`
}

func (p *SamplerParams) config() (*inference.SamplerConfig, error) {
	if p == nil {
		return nil, nil
	}
	cfg, ok := inference.SamplerPreset(p.Preset)
	if !ok {
		return nil, errors.New("unknown sampler preset " + p.Preset)
	}
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}
	if p.TopK != nil {
		cfg.TopK = *p.TopK
	}
	if p.TopP != nil {
		cfg.TopP = *p.TopP
	}
	if p.MinP != nil {
		cfg.MinP = *p.MinP
	}
	if p.RepeatPenalty != nil {
		cfg.RepeatPenalty = *p.RepeatPenalty
	}
	if p.RepeatLastN != nil {
		cfg.RepeatLastN = *p.RepeatLastN
	}
	if p.Seed != nil {
		cfg.Seed = *p.Seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GenerateRequest is the body of POST /v1/generate.
type GenerateRequest struct {
	Prompt    string         `json:"prompt"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Stop      []string       `json:"stop,omitempty"`
	Sampler   *SamplerParams `json:"sampler,omitempty"`
	Stream    bool           `json:"stream,omitempty"`
	// Translate answers Spanish prompts through the dictionary translator.
	Translate bool `json:"translate,omitempty"`
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	System    string         `json:"system,omitempty"`
	Message   string         `json:"message"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Stop      []string       `json:"stop,omitempty"`
	Sampler   *SamplerParams `json:"sampler,omitempty"`
	Stream    bool           `json:"stream,omitempty"`
	Translate bool           `json:"translate,omitempty"`
}

// GenerateResponse answers /v1/generate and /v1/chat.
type GenerateResponse struct {
	Text       string             `json:"text"`
	Language   translate.Language `json:"language,omitempty"`
	Translated bool               `json:"translated,omitempty"`
	Question   string             `json:"question,omitempty"`
	Backend    string             `json:"backend"`
	ElapsedMS  int64              `json:"elapsed_ms"`
}

// QueryRequest is the body of /v1/ask, /v1/classify and /v1/search.
type QueryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
	Stream bool   `json:"stream,omitempty"`
}

// AddDocumentRequest is the body of POST /v1/documents.
type AddDocumentRequest struct {
	ID       string         `json:"id,omitempty"`
	Content  string         `json:"content"`
	UserID   string         `json:"user_id,omitempty"`
	Source   rag.Source     `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type tokenEvent struct {
	Token string `json:"token"`
}

func (s *Server) handleHealth(c *echo.Context) error {
	info := s.gen.Info()
	status := "healthy"
	if !info.Ready {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":      status,
		"backend":     info.Backend,
		"uptime_secs": int64(s.uptime().Seconds()),
	})
}

func (s *Server) handleInfo(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.gen.Info())
}

func (s *Server) handleStats(c *echo.Context) error {
	out := map[string]any{
		"uptime_secs":   int64(s.uptime().Seconds()),
		"request_count": s.requests.Load(),
	}
	if s.store != nil {
		st, err := s.store.Stats(c.Request().Context())
		if err != nil {
			return s.writeFailure(c, err)
		}
		out["store"] = st
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return writeBadRequest(c, "prompt is required")
	}
	sampler, err := req.Sampler.config()
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	greq := generator.Request{Prompt: req.Prompt, MaxTokens: req.MaxTokens, Sampler: sampler, Stop: req.Stop}
	ctx := c.Request().Context()
	start := time.Now()

	if req.Stream {
		return s.stream(c, start, func(emit inference.TokenFunc) (string, error) {
			return s.gen.GenerateStreaming(ctx, greq, emit)
		})
	}

	resp := GenerateResponse{Backend: s.gen.Info().Backend}
	if req.Translate {
		tr, err := s.translated().GenerateTranslated(ctx, greq)
		if err != nil {
			return s.writeFailure(c, err)
		}
		resp.Text, resp.Language, resp.Translated, resp.Question = tr.Text, tr.Language, tr.Translated, tr.Question
	} else {
		resp.Text, err = s.gen.Generate(ctx, greq)
		if err != nil {
			return s.writeFailure(c, err)
		}
	}
	resp.ElapsedMS = time.Since(start).Milliseconds()
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleChat(c *echo.Context) error {
	req, err := decodeJSON[ChatRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return writeBadRequest(c, "message is required")
	}
	sampler, err := req.Sampler.config()
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	creq := generator.ChatRequest{System: req.System, User: req.Message, MaxTokens: req.MaxTokens, Sampler: sampler, Stop: req.Stop}
	ctx := c.Request().Context()
	start := time.Now()

	if req.Stream {
		return s.stream(c, start, func(emit inference.TokenFunc) (string, error) {
			return s.gen.ChatStreaming(ctx, creq, emit)
		})
	}

	resp := GenerateResponse{Backend: s.gen.Info().Backend}
	if req.Translate {
		tr, err := s.translated().ChatTranslated(ctx, creq)
		if err != nil {
			return s.writeFailure(c, err)
		}
		resp.Text, resp.Language, resp.Translated, resp.Question = tr.Text, tr.Language, tr.Translated, tr.Question
	} else {
		resp.Text, err = s.gen.Chat(ctx, creq)
		if err != nil {
			return s.writeFailure(c, err)
		}
	}
	resp.ElapsedMS = time.Since(start).Milliseconds()
	return c.JSON(http.StatusOK, resp)
}

// stream runs a generation as server-sent "token" events followed by one
// "done" event carrying the full text, or an "error" event.
func (s *Server) stream(c *echo.Context, start time.Time, run func(inference.TokenFunc) (string, error)) error {
	w, err := newSSEWriter(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	text, err := run(func(piece string) error {
		return w.Event("token", tokenEvent{Token: piece})
	})
	if err != nil {
		if !w.Started() {
			return s.writeFailure(c, err)
		}
		status, errType := classifyError(err)
		s.log.Warn("stream failed", "status", status, "error", err)
		return w.Event("error", ErrorBody{Message: err.Error(), Type: errType, Stage: inference.Stage(err)})
	}
	return w.Event("done", GenerateResponse{
		Text:      text,
		Backend:   s.gen.Info().Backend,
		ElapsedMS: time.Since(start).Milliseconds(),
	})
}

// translated is implemented by *generator.Generator. Other generators get
// the prompt through untranslated.
func (s *Server) translated() translator {
	if t, ok := s.gen.(translator); ok {
		return t
	}
	return passthrough{s.gen}
}

type translator interface {
	GenerateTranslated(ctx context.Context, req generator.Request) (generator.Translated, error)
	ChatTranslated(ctx context.Context, req generator.ChatRequest) (generator.Translated, error)
}

type passthrough struct{ gen Generator }

func (p passthrough) GenerateTranslated(ctx context.Context, req generator.Request) (generator.Translated, error) {
	text, err := p.gen.Generate(ctx, req)
	return generator.Translated{Text: text, Language: translate.DetectLanguage(req.Prompt), Question: req.Prompt}, err
}

func (p passthrough) ChatTranslated(ctx context.Context, req generator.ChatRequest) (generator.Translated, error) {
	text, err := p.gen.Chat(ctx, req)
	return generator.Translated{Text: text, Language: translate.DetectLanguage(req.User), Question: req.User}, err
}

func (s *Server) handleAsk(c *echo.Context) error {
	req, err := decodeJSON[QueryRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return writeBadRequest(c, "query is required")
	}
	ctx := c.Request().Context()

	if !req.Stream {
		ans, err := s.assistant.Ask(ctx, req.Query)
		if err != nil {
			return s.writeFailure(c, err)
		}
		return c.JSON(http.StatusOK, stripAnswer(ans))
	}

	w, err := newSSEWriter(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	ans, err := s.assistant.AskStreaming(ctx, req.Query, func(piece string) error {
		return w.Event("token", tokenEvent{Token: piece})
	})
	if err != nil {
		if !w.Started() {
			return s.writeFailure(c, err)
		}
		_, errType := classifyError(err)
		return w.Event("error", ErrorBody{Message: err.Error(), Type: errType, Stage: inference.Stage(err)})
	}
	return w.Event("done", stripAnswer(ans))
}

func (s *Server) handleClassify(c *echo.Context) error {
	req, err := decodeJSON[QueryRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return writeBadRequest(c, "query is required")
	}
	return c.JSON(http.StatusOK, rag.Classify(req.Query))
}

func (s *Server) handleSearch(c *echo.Context) error {
	if s.store == nil {
		return writeError(c, http.StatusServiceUnavailable, "unavailable_error", "no document store configured", "")
	}
	req, err := decodeJSON[QueryRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return writeBadRequest(c, "query is required")
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	ctx := c.Request().Context()
	vec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return s.writeFailure(c, err)
	}

	k := req.TopK
	if req.UserID != "" {
		if k, err = s.store.Count(ctx); err != nil {
			return s.writeFailure(c, err)
		}
	}
	results, err := s.store.Search(ctx, vec, k)
	if err != nil {
		return s.writeFailure(c, err)
	}
	return c.JSON(http.StatusOK, filterResults(results, req.UserID, req.TopK))
}

func (s *Server) handleAddDocument(c *echo.Context) error {
	if s.store == nil {
		return writeError(c, http.StatusServiceUnavailable, "unavailable_error", "no document store configured", "")
	}
	req, err := decodeJSON[AddDocumentRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return writeBadRequest(c, "content is required")
	}

	doc := rag.NewDocument(strings.TrimSpace(req.Content))
	if req.ID != "" {
		doc.ID = req.ID
	}
	doc.UserID = req.UserID
	if req.Source != "" {
		doc.Source = req.Source
	}
	if req.Metadata != nil {
		doc.Metadata = req.Metadata
	}

	ctx := c.Request().Context()
	if _, err := rag.Ingest(ctx, s.store, s.embedder, []rag.Document{*doc}); err != nil {
		return s.writeFailure(c, err)
	}
	s.log.Info("document added", "id", doc.ID, "bytes", len(doc.Content))
	return c.JSON(http.StatusCreated, map[string]any{
		"id":      doc.ID,
		"message": "Document added successfully",
	})
}

func (s *Server) handleListDocuments(c *echo.Context) error {
	if s.store == nil {
		return writeError(c, http.StatusServiceUnavailable, "unavailable_error", "no document store configured", "")
	}
	docs, err := s.store.List(c.Request().Context())
	if err != nil {
		return s.writeFailure(c, err)
	}
	for i := range docs {
		docs[i].Embedding = nil
	}
	return c.JSON(http.StatusOK, map[string]any{"object": "list", "data": docs})
}

func (s *Server) handleGetDocument(c *echo.Context) error {
	if s.store == nil {
		return writeError(c, http.StatusServiceUnavailable, "unavailable_error", "no document store configured", "")
	}
	doc, err := s.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, rag.ErrNotFound) {
			return writeNotFound(c, "document "+c.Param("id")+" not found")
		}
		return s.writeFailure(c, err)
	}
	doc.Embedding = nil
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(c *echo.Context) error {
	if s.store == nil {
		return writeError(c, http.StatusServiceUnavailable, "unavailable_error", "no document store configured", "")
	}
	id := c.Param("id")
	if err := s.store.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, rag.ErrNotFound) {
			return writeNotFound(c, "document "+id+" not found")
		}
		return s.writeFailure(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func filterResults(results []rag.SearchResult, userID string, k int) []rag.SearchResult {
	out := make([]rag.SearchResult, 0, min(len(results), k))
	for _, r := range results {
		if userID != "" && r.Document.UserID != userID {
			continue
		}
		r.Document.Embedding = nil
		r.Rank = len(out)
		out = append(out, r)
		if len(out) == k {
			break
		}
	}
	return out
}

func stripAnswer(ans rag.Answer) rag.Answer {
	sources := make([]rag.SearchResult, len(ans.Sources))
	for i, r := range ans.Sources {
		r.Document.Embedding = nil
		sources[i] = r
	}
	ans.Sources = sources
	return ans
}
