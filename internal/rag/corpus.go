package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type corpusEntry struct {
	ID       string         `yaml:"id"`
	Content  string         `yaml:"content"`
	Source   Source         `yaml:"source"`
	UserID   string         `yaml:"user_id"`
	Metadata map[string]any `yaml:"metadata"`
}

// LoadCorpus reads a multi-document YAML stream, one document per entry:
//
//	id: paris
//	content: Paris is the capital of France.
//	source: manual
//	metadata: {topic: geography}
//	---
//	content: ...
//
// Entries without an id get a random one; entries without a source are
// marked as coming from a file.
func LoadCorpus(r io.Reader) ([]Document, error) {
	dec := yaml.NewDecoder(r)
	now := time.Now().UTC()
	var docs []Document
	for n := 1; ; n++ {
		var e corpusEntry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("corpus entry %d: %w", n, err)
		}
		if strings.TrimSpace(e.Content) == "" {
			return nil, fmt.Errorf("corpus entry %d: empty content", n)
		}
		doc := Document{
			ID:        e.ID,
			Content:   strings.TrimSpace(e.Content),
			Source:    e.Source,
			UserID:    e.UserID,
			Metadata:  e.Metadata,
			CreatedAt: now,
		}
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		if doc.Source == "" {
			doc.Source = SourceFile
		}
		docs = append(docs, doc)
	}
}

// LoadCorpusFile is LoadCorpus over the file at path.
func LoadCorpusFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	docs, err := LoadCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

// Ingest embeds docs that have no embedding yet and puts them in store. It
// returns how many documents were stored before the first failure.
func Ingest(ctx context.Context, store Store, emb Embedder, docs []Document) (int, error) {
	for i, doc := range docs {
		if len(doc.Embedding) == 0 {
			vec, err := emb.Embed(ctx, doc.Content)
			if err != nil {
				return i, fmt.Errorf("embed %s: %w", doc.ID, err)
			}
			doc.Embedding = vec
		}
		if err := store.Put(ctx, doc); err != nil {
			return i, fmt.Errorf("store %s: %w", doc.ID, err)
		}
	}
	return len(docs), nil
}
