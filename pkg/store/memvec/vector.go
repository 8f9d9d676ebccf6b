// Package memvec implements the vector index in process memory. It is the
// local-mode backend and the one the test suite runs against; the pgvector
// backend in pkg/store/pgx is the persistent equivalent.
package memvec

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"

	"github.com/reporover/backend/pkg/ai"
	"github.com/reporover/backend/pkg/common"
)

type storedDoc struct {
	content   string
	embedding []float32
	metadata  map[string]any
}

// Index is an in-memory similarity index over entity text. Documents are
// stored under the convention "<id>: <content>" and embedded through the
// configured AI client unless a precomputed embedding is supplied.
type Index struct {
	mu       sync.RWMutex
	docs     map[string]storedDoc
	aiClient ai.Client

	scoreThreshold float32
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithScoreThreshold drops query results scoring below the given similarity.
func WithScoreThreshold(threshold float32) IndexOption {
	return func(i *Index) {
		i.scoreThreshold = threshold
	}
}

// NewIndex creates an empty index. The AI client is used to embed documents
// on upsert and queries on search.
func NewIndex(aiClient ai.Client, opts ...IndexOption) *Index {
	idx := &Index{
		docs:     make(map[string]storedDoc),
		aiClient: aiClient,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddDocuments upserts the given documents by ID. Documents without a
// precomputed embedding are embedded from their search text.
func (i *Index) AddDocuments(ctx context.Context, docs []common.VectorDocument) error {
	if len(docs) == 0 {
		return nil
	}

	for _, doc := range docs {
		text := fmt.Sprintf("%s: %s", doc.ID, doc.Content)

		embedding := doc.Embedding
		if embedding == nil {
			var err error
			embedding, err = i.aiClient.GenerateEmbedding(ctx, []byte(text))
			if err != nil {
				return fmt.Errorf("embed document %s: %w", doc.ID, err)
			}
		}

		metadata := make(map[string]any, len(doc.Metadata))
		maps.Copy(metadata, doc.Metadata)

		i.mu.Lock()
		i.docs[doc.ID] = storedDoc{
			content:   text,
			embedding: embedding,
			metadata:  metadata,
		}
		i.mu.Unlock()
	}
	return nil
}

// SimilaritySearch embeds the query and returns up to k documents ranked by
// cosine similarity, each with a populated Score.
func (i *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]common.VectorDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	queryEmb, err := i.aiClient.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	i.mu.RLock()
	scored := make([]common.VectorDocument, 0, len(i.docs))
	for id, doc := range i.docs {
		score := cosineSimilarity(queryEmb, doc.embedding)
		if score < i.scoreThreshold {
			continue
		}
		metadata := make(map[string]any, len(doc.metadata))
		maps.Copy(metadata, doc.metadata)
		scored = append(scored, common.VectorDocument{
			ID:       id,
			Content:  doc.content,
			Metadata: metadata,
			Score:    score,
		})
	}
	i.mu.RUnlock()

	sort.Slice(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// DeleteByIDs removes the documents with the given IDs. Unknown IDs are
// ignored.
func (i *Index) DeleteByIDs(ctx context.Context, ids []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, id := range ids {
		delete(i.docs, id)
	}
	return nil
}

// DeleteByMetadata removes every document whose metadata matches all filter
// entries exactly, returning the number deleted.
func (i *Index) DeleteByMetadata(ctx context.Context, filter map[string]any) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	deleted := 0
	for id, doc := range i.docs {
		matched := true
		for key, want := range filter {
			if got, ok := doc.metadata[key]; !ok || got != want {
				matched = false
				break
			}
		}
		if matched {
			delete(i.docs, id)
			deleted++
		}
	}
	return deleted, nil
}

// Clear drops every document.
func (i *Index) Clear(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.docs = make(map[string]storedDoc)
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for idx := range a {
		dot += float64(a[idx]) * float64(b[idx])
		normA += float64(a[idx]) * float64(a[idx])
		normB += float64(b[idx]) * float64(b[idx])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
