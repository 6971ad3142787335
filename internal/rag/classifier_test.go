package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query    string
		category Category
		strategy Strategy
	}{
		{"What is 2 + 2?", CategoryMath, StrategyLLMDirect},
		{"Calculate the derivative of x^2", CategoryMath, StrategyLLMDirect},
		{"Write a Python function to sort a list", CategoryCode, StrategyLLMDirect},
		{"Fix the bug in my JavaScript code", CategoryCode, StrategyRAGLocal},
		{"Hello!", CategoryGreeting, StrategyLLMDirect},
		{"How are you doing?", CategoryGreeting, StrategyLLMDirect},
		{"What is the capital of France?", CategoryFactual, StrategyRAGThenWeb},
		{"Who was Albert Einstein?", CategoryFactual, StrategyRAGThenWeb},
		{"Search the web for latest news", CategoryTools, StrategyRAGThenWeb},
		{"Translate 'hello' to Spanish", CategoryTools, StrategyRAGThenWeb},
		{"Analyze the pros and cons of remote work", CategoryReasoning, StrategyRAGLocal},
		{"I like pizza", CategoryConversational, StrategyRAGLocal},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := Classify(tt.query)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.strategy, got.Strategy)
			assert.Equal(t, tt.query, got.Query)
		})
	}
}

func TestClassifySpanish(t *testing.T) {
	tests := []struct {
		query    string
		category Category
	}{
		{"¿Cuál es la capital de Francia?", CategoryFactual},
		{"¿Quién inventó el teléfono?", CategoryFactual},
		{"¿Qué es la fotosíntesis?", CategoryFactual},
		{"cuánto es 5 + 3", CategoryMath},
		{"hola", CategoryGreeting},
		{"buenos días", CategoryGreeting},
		{"quién eres", CategoryGreeting},
		{"ventajas y desventajas del teletrabajo", CategoryReasoning},
		{"buscar en la web", CategoryTools},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.category, Classify(tt.query).Category)
		})
	}
}

func TestClassifyEmpty(t *testing.T) {
	got := Classify("   ")
	assert.Equal(t, CategoryConversational, got.Category)
	assert.Equal(t, StrategyLLMDirect, got.Strategy)
	assert.Zero(t, got.Confidence)
}

func TestClassifyDefaultReason(t *testing.T) {
	got := Classify("I like pizza")
	assert.Equal(t, []string{"Default category"}, got.Reasons)
	assert.Equal(t, 0.3, got.Confidence)
}

func TestClassifyConfidenceGrowsWithScore(t *testing.T) {
	weak := Classify("Translate 'hello' to Spanish")
	strong := Classify("Search the web for latest news")
	assert.Equal(t, 0.5, weak.Confidence)
	assert.Equal(t, 0.85, strong.Confidence)
}

func TestConfidenceBuckets(t *testing.T) {
	assert.Equal(t, 0.3, confidence(0))
	assert.Equal(t, 0.5, confidence(1))
	assert.Equal(t, 0.7, confidence(2.9))
	assert.Equal(t, 0.85, confidence(3))
	assert.Equal(t, 0.95, confidence(5))
}

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, StrategyLLMDirect, strategyFor(CategoryCode, 2.9))
	assert.Equal(t, StrategyRAGLocal, strategyFor(CategoryCode, 3))
	assert.Equal(t, StrategyRAGLocal, strategyFor(CategoryConversational, 0))
	assert.True(t, StrategyRAGThenWeb.UsesLocal())
	assert.True(t, StrategyRAGThenWeb.UsesWeb())
	assert.False(t, StrategyLLMDirect.UsesLocal())
	assert.False(t, StrategyRAGLocal.UsesWeb())
}

func TestFold(t *testing.T) {
	assert.Equal(t, "Quien invento el telefono?", fold("¿Quién inventó el teléfono?"))
	assert.Equal(t, "manana", fold("mañana"))
}
