package generator

import (
	"context"

	"github.com/LiboWorks/bitrag/internal/inference"
	"github.com/LiboWorks/bitrag/internal/translate"
)

// TranslatedMaxTokens bounds answers to translated questions when the request
// sets no budget.
const TranslatedMaxTokens = 100

// TranslatedSampler is used for translated questions when the request sets no
// sampler. Short factual answers come out best near-greedy.
func TranslatedSampler() inference.SamplerConfig {
	cfg := inference.GreedySamplerConfig()
	cfg.Temperature = 0.1
	return cfg
}

// Translated is the result of a translated generation.
type Translated struct {
	Text       string             `json:"text"`
	Language   translate.Language `json:"language"`
	Translated bool               `json:"translated"`
	Question   string             `json:"question"` // the text the model was asked
}

func translatedDefaults(maxTokens int, sampler *inference.SamplerConfig) (int, *inference.SamplerConfig) {
	if maxTokens <= 0 {
		maxTokens = TranslatedMaxTokens
	}
	if sampler == nil {
		cfg := TranslatedSampler()
		sampler = &cfg
	}
	return maxTokens, sampler
}

// GenerateTranslated answers Spanish prompts by first rewriting them into
// English with the dictionary translator. Other prompts go straight through.
func (g *Generator) GenerateTranslated(ctx context.Context, req Request) (Translated, error) {
	lang := translate.DetectLanguage(req.Prompt)
	if lang != translate.Spanish {
		text, err := g.Generate(ctx, req)
		return Translated{Text: text, Language: lang, Question: req.Prompt}, err
	}

	question := translate.TranslateToEnglish(req.Prompt)
	g.log.Debug("translated prompt", "from", req.Prompt, "to", question)

	req.Prompt = question
	req.MaxTokens, req.Sampler = translatedDefaults(req.MaxTokens, req.Sampler)
	text, err := g.Generate(ctx, req)
	return Translated{Text: text, Language: lang, Translated: true, Question: question}, err
}

// ChatTranslated is GenerateTranslated for chat requests.
func (g *Generator) ChatTranslated(ctx context.Context, req ChatRequest) (Translated, error) {
	lang := translate.DetectLanguage(req.User)
	if lang != translate.Spanish {
		text, err := g.Chat(ctx, req)
		return Translated{Text: text, Language: lang, Question: req.User}, err
	}

	question := translate.TranslateToEnglish(req.User)
	g.log.Debug("translated chat message", "from", req.User, "to", question)

	req.User = question
	req.MaxTokens, req.Sampler = translatedDefaults(req.MaxTokens, req.Sampler)
	text, err := g.Chat(ctx, req)
	return Translated{Text: text, Language: lang, Translated: true, Question: question}, err
}
