// Package rag holds the retrieval side of the assistant: query
// classification, embeddings, document stores, web search and the pipeline
// that ties them to the generator.
package rag

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Category is the kind of question a query asks.
type Category string

const (
	CategoryMath           Category = "math"
	CategoryCode           Category = "code"
	CategoryReasoning      Category = "reasoning"
	CategoryTools          Category = "tools"
	CategoryGreeting       Category = "greeting"
	CategoryFactual        Category = "factual"
	CategoryConversational Category = "conversational"
)

// Strategy is how a query should be answered.
type Strategy string

const (
	StrategyLLMDirect  Strategy = "llm_direct"
	StrategyRAGLocal   Strategy = "rag_local"
	StrategyRAGThenWeb Strategy = "rag_then_web"
	StrategyWebSearch  Strategy = "web_search"
)

// UsesLocal reports whether the strategy reads the document store.
func (s Strategy) UsesLocal() bool { return s == StrategyRAGLocal || s == StrategyRAGThenWeb }

// UsesWeb reports whether the strategy queries web search.
func (s Strategy) UsesWeb() bool { return s == StrategyRAGThenWeb || s == StrategyWebSearch }

// Classification is the result of Classify.
type Classification struct {
	Category   Category `json:"category"`
	Strategy   Strategy `json:"strategy"`
	Confidence float64  `json:"confidence"`
	Score      float64  `json:"score"`
	Reasons    []string `json:"reasons"`
	Query      string   `json:"query"`
}

type weightedPattern struct {
	pattern string
	weight  float64
}

type compiledPattern struct {
	re     *regexp.Regexp
	weight float64
}

type categoryPatterns struct {
	category Category
	reason   string
	patterns []compiledPattern
}

// Scanned in this order; an earlier category keeps the win on equal scores.
var categories = []categoryPatterns{
	compileCategory(CategoryGreeting, "Greeting patterns matched", greetingPatterns),
	compileCategory(CategoryMath, "Mathematical patterns matched", mathPatterns),
	compileCategory(CategoryCode, "Programming patterns matched", codePatterns),
	compileCategory(CategoryTools, "Tool usage patterns matched", toolsPatterns),
	compileCategory(CategoryReasoning, "Reasoning patterns matched", reasoningPatterns),
	compileCategory(CategoryFactual, "Factual query patterns matched", factualPatterns),
}

func compileCategory(c Category, reason string, patterns []weightedPattern) categoryPatterns {
	out := categoryPatterns{category: c, reason: reason}
	for _, p := range patterns {
		out.patterns = append(out.patterns, compiledPattern{
			re:     regexp.MustCompile(`(?i)` + p.pattern),
			weight: p.weight,
		})
	}
	return out
}

func (c categoryPatterns) score(text string) float64 {
	var total float64
	for _, p := range c.patterns {
		if p.re.MatchString(text) {
			total += p.weight
		}
	}
	return total
}

// fold strips accents and inverted punctuation. Go's \b only knows ASCII
// word characters, so the patterns run against folded text.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimLeft(out, "¿¡ ")
}

// Classify scores query against every category and picks a strategy for it.
// Queries that match nothing are conversational.
func Classify(query string) Classification {
	query = strings.TrimSpace(query)
	if query == "" {
		return Classification{
			Category: CategoryConversational,
			Strategy: StrategyLLMDirect,
			Reasons:  []string{},
		}
	}

	text := fold(query)
	best := CategoryConversational
	bestScore := 0.0
	reasons := []string{"Default category"}
	for _, c := range categories {
		s := c.score(text)
		switch {
		case s > bestScore:
			best, bestScore, reasons = c.category, s, []string{c.reason}
		case s > 0 && math.Abs(s-bestScore) < 0.01:
			reasons = append(reasons, c.reason)
		}
	}

	return Classification{
		Category:   best,
		Strategy:   strategyFor(best, bestScore),
		Confidence: confidence(bestScore),
		Score:      bestScore,
		Reasons:    reasons,
		Query:      query,
	}
}

func strategyFor(c Category, score float64) Strategy {
	switch c {
	case CategoryMath, CategoryGreeting:
		return StrategyLLMDirect
	case CategoryCode:
		if score >= 3 {
			return StrategyRAGLocal
		}
		return StrategyLLMDirect
	case CategoryTools, CategoryFactual:
		return StrategyRAGThenWeb
	default:
		return StrategyRAGLocal
	}
}

func confidence(score float64) float64 {
	switch {
	case score <= 0:
		return 0.3
	case score < 1.5:
		return 0.5
	case score < 3:
		return 0.7
	case score < 5:
		return 0.85
	default:
		return 0.95
	}
}
