package rag

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Source says where a document came from.
type Source string

const (
	SourceManual       Source = "manual"
	SourceFile         Source = "file"
	SourceWeb          Source = "web"
	SourceConversation Source = "conversation"
	SourceCode         Source = "code"
)

// Document is a piece of text held in a Store.
type Document struct {
	ID        string         `json:"id" yaml:"id" msgpack:"id"`
	Content   string         `json:"content" yaml:"content" msgpack:"content"`
	UserID    string         `json:"user_id,omitempty" yaml:"user_id" msgpack:"user_id,omitempty"`
	Source    Source         `json:"source" yaml:"source" msgpack:"source"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata" msgpack:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at" msgpack:"created_at"`
	Embedding []float32      `json:"embedding,omitempty" yaml:"-" msgpack:"embedding,omitempty"`
}

// NewDocument returns a manual document with a fresh id.
func NewDocument(content string) *Document {
	return &Document{
		ID:        uuid.NewString(),
		Content:   content,
		Source:    SourceManual,
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
	}
}

// SearchResult is one hit of a similarity search. Rank starts at 0.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float32  `json:"score"`
	Rank     int      `json:"rank"`
}

// Relevant reports a strong match.
func (r SearchResult) Relevant() bool { return r.Score >= 0.7 }

// Weak reports a match too loose to rely on.
func (r SearchResult) Weak() bool { return r.Score < 0.4 }

// Stats summarizes a Store.
type Stats struct {
	Documents         int `json:"documents"`
	Dimension         int `json:"dimension"`
	TotalContentBytes int `json:"total_content_bytes"`
	UniqueUsers       int `json:"unique_users"`
}

var (
	ErrNotFound          = errors.New("document not found")
	ErrMissingEmbedding  = errors.New("document has no embedding")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrStoreClosed       = errors.New("store is closed")
)
