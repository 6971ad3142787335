package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	openai "github.com/sashabaranov/go-openai"

	"github.com/LiboWorks/bitrag/internal/generator"
	"github.com/LiboWorks/bitrag/internal/inference"
)

func (s *Server) handleListModels(c *echo.Context) error {
	return c.JSON(http.StatusOK, openai.ModelsList{
		Models: []openai.Model{{
			ID:        s.model,
			Object:    "model",
			CreatedAt: s.started.Unix(),
			OwnedBy:   "local",
		}},
	})
}

func (s *Server) handleChatCompletions(c *echo.Context) error {
	req, err := decodeJSON[openai.ChatCompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Messages) == 0 {
		return writeBadRequest(c, "messages is required and must not be empty")
	}
	creq, err := chatFromOpenAI(req)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	id := "chatcmpl-" + uuid.NewString()
	created := s.clock().Unix()
	model := req.Model
	if model == "" {
		model = s.model
	}
	if req.Stream {
		return s.chatCompletionsStream(c, creq, id, created, model)
	}

	text, err := s.gen.Chat(c.Request().Context(), creq)
	if err != nil {
		return s.writeFailure(c, err)
	}
	prompt := approximateTokens(creq.System) + approximateTokens(creq.User)
	completion := approximateTokens(text)
	return c.JSON(http.StatusOK, openai.ChatCompletionResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
		Choices: []openai.ChatCompletionChoice{{
			Index: 0,
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: text,
			},
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	})
}

func (s *Server) chatCompletionsStream(c *echo.Context, creq generator.ChatRequest, id string, created int64, model string) error {
	w, err := newSSEWriter(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	chunk := func(delta openai.ChatCompletionStreamChoiceDelta, finish openai.FinishReason) openai.ChatCompletionStreamResponse {
		return openai.ChatCompletionStreamResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []openai.ChatCompletionStreamChoice{{
				Index:        0,
				Delta:        delta,
				FinishReason: finish,
			}},
		}
	}

	if err := w.Event("", chunk(openai.ChatCompletionStreamChoiceDelta{Role: openai.ChatMessageRoleAssistant}, "")); err != nil {
		return err
	}
	_, err = s.gen.ChatStreaming(c.Request().Context(), creq, func(piece string) error {
		return w.Event("", chunk(openai.ChatCompletionStreamChoiceDelta{Content: piece}, ""))
	})
	if err != nil {
		s.log.Warn("chat completion stream failed", "error", err)
		_, errType := classifyError(err)
		if werr := w.Event("", map[string]any{
			"error": ErrorBody{Message: err.Error(), Type: errType, Stage: inference.Stage(err)},
		}); werr != nil {
			return werr
		}
	}
	if err := w.Event("", chunk(openai.ChatCompletionStreamChoiceDelta{}, openai.FinishReasonStop)); err != nil {
		return err
	}
	return w.Done()
}

// chatFromOpenAI folds an OpenAI message list into one system prompt and
// one user turn. Earlier turns are replayed as a transcript ahead of the
// final user message.
func chatFromOpenAI(req openai.ChatCompletionRequest) (generator.ChatRequest, error) {
	var (
		system  []string
		history []string
		user    string
	)
	for i, m := range req.Messages {
		content := messageText(m)
		switch m.Role {
		case openai.ChatMessageRoleSystem, openai.ChatMessageRoleDeveloper:
			system = append(system, content)
		case openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant:
			if i == len(req.Messages)-1 && m.Role == openai.ChatMessageRoleUser {
				user = content
				continue
			}
			history = append(history, roleLabel(m.Role)+": "+content)
		default:
			return generator.ChatRequest{}, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	if strings.TrimSpace(user) == "" {
		return generator.ChatRequest{}, fmt.Errorf("the last message must be a non-empty user message")
	}
	if len(history) > 0 {
		user = strings.Join(history, "\n") + "\nUser: " + user
	}

	out := generator.ChatRequest{
		System:    strings.Join(system, "\n\n"),
		User:      user,
		MaxTokens: req.MaxCompletionTokens,
		Stop:      req.Stop,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.Temperature != 0 || req.TopP != 0 || req.Seed != nil {
		cfg := inference.DefaultSamplerConfig()
		if req.Temperature != 0 {
			cfg.Temperature = req.Temperature
		}
		if req.TopP != 0 {
			cfg.TopP = req.TopP
		}
		if req.Seed != nil {
			cfg.Seed = uint64(*req.Seed)
		}
		if err := cfg.Validate(); err != nil {
			return generator.ChatRequest{}, err
		}
		out.Sampler = &cfg
	}
	return out, nil
}

func messageText(m openai.ChatCompletionMessage) string {
	if m.Content != "" || len(m.MultiContent) == 0 {
		return m.Content
	}
	var parts []string
	for _, p := range m.MultiContent {
		if p.Type == openai.ChatMessagePartTypeText {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func roleLabel(role string) string {
	if role == openai.ChatMessageRoleAssistant {
		return "Assistant"
	}
	return "User"
}

func approximateTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return max(n/4, 1)
}
