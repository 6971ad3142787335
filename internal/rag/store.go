package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Store holds documents with their embeddings and searches them by cosine
// similarity. All documents in a store share one embedding dimension, fixed
// by the first document added.
type Store interface {
	// Put adds doc, replacing any document with the same id.
	Put(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (Document, error)
	Delete(ctx context.Context, id string) error
	// Search returns at most k documents ordered by decreasing similarity.
	Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error)
	List(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is the zero vector or their lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func checkDimension(want int, embedding []float32) error {
	if want != 0 && len(embedding) != want {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, len(embedding))
	}
	return nil
}

// rank scores docs against query and keeps the k best. Ties keep id order so
// results are stable.
func rank(query []float32, docs []Document, k int) []SearchResult {
	if k <= 0 || len(docs) == 0 {
		return nil
	}
	results := make([]SearchResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, SearchResult{Document: d, Score: CosineSimilarity(query, d.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i
	}
	return results
}

func stats(docs []Document) Stats {
	s := Stats{Documents: len(docs)}
	users := map[string]bool{}
	for _, d := range docs {
		s.TotalContentBytes += len(d.Content)
		if d.UserID != "" {
			users[d.UserID] = true
		}
		if s.Dimension == 0 {
			s.Dimension = len(d.Embedding)
		}
	}
	s.UniqueUsers = len(users)
	return s
}
