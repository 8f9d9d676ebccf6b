// Package pgx implements the vector index on PostgreSQL with pgvector, the
// persistent backend used by server deployments.
package pgx

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/reporover/backend/pkg/ai"
	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/logger"
	"github.com/reporover/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Index implements the vector index on top of a pgvector-enabled documents
// table. Writes are serialized with a mutex, embeddings come from the
// configured AI client.
type Index struct {
	conn     pgxIConn
	aiClient ai.Client
	dbLock   sync.Mutex
}

// NewIndexWithConnection creates an Index using an existing database
// connection or pool. The schema is managed by migrations, not by the Index.
func NewIndexWithConnection(conn pgxIConn, aiClient ai.Client) *Index {
	return &Index{
		conn:     conn,
		aiClient: aiClient,
	}
}

// AddDocuments upserts the given documents by ID in batches. Documents
// without a precomputed embedding are embedded from their search text.
func (s *Index) AddDocuments(ctx context.Context, docs []common.VectorDocument) error {
	if len(docs) == 0 {
		return nil
	}

	batchSize := 250

	return store.ChunkRange(len(docs), batchSize, func(start, end int) error {
		part := docs[start:end]
		logger.Debug("[Vector][AddDocuments] Saving chunk", "documents", len(part))

		texts := make([]string, len(part))
		inputs := make([][]byte, 0, len(part))
		inputIdx := make([]int, 0, len(part))
		for i := range part {
			texts[i] = fmt.Sprintf("%s: %s", part[i].ID, part[i].Content)
			if part[i].Embedding == nil {
				inputs = append(inputs, []byte(texts[i]))
				inputIdx = append(inputIdx, i)
			}
		}

		embeddings := make([][]float32, len(part))
		for i := range part {
			embeddings[i] = part[i].Embedding
		}
		if len(inputs) > 0 {
			logger.Debug("[Vector][AddDocuments] Generating embeddings", "count", len(inputs))
			embs, err := store.GenerateEmbeddings(ctx, s.aiClient, inputs)
			if err != nil {
				return err
			}
			for i, idx := range inputIdx {
				embeddings[idx] = embs[i]
			}
		}

		s.dbLock.Lock()
		defer s.dbLock.Unlock()

		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for i := range part {
			metadata, err := json.Marshal(part[i].Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", part[i].ID, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO documents (id, content, metadata, embedding)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET
					content = EXCLUDED.content,
					metadata = EXCLUDED.metadata,
					embedding = EXCLUDED.embedding
			`, part[i].ID, texts[i], metadata, pgvector.NewVector(embeddings[i]))
			if err != nil {
				return err
			}
		}

		logger.Debug("[Vector][AddDocuments] Chunk committed", "documents", len(part))
		return tx.Commit(ctx)
	})
}

// SimilaritySearch embeds the query and returns up to k documents ranked by
// cosine similarity, each with a populated Score.
func (s *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]common.VectorDocument, error) {
	if k <= 0 {
		return nil, nil
	}

	embedding, err := s.aiClient.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	embed := pgvector.NewVector(embedding)

	rows, err := s.conn.Query(ctx, `
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2
	`, embed, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]common.VectorDocument, 0, k)
	for rows.Next() {
		var doc common.VectorDocument
		var metadata []byte
		if err := rows.Scan(&doc.ID, &doc.Content, &metadata, &doc.Score); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteByIDs removes the documents with the given IDs. Unknown IDs are
// ignored.
func (s *Index) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	_, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE id = ANY($1)`, store.DedupeStrings(ids))
	return err
}

// DeleteByMetadata removes every document whose metadata contains all filter
// entries, returning the number deleted.
func (s *Index) DeleteByMetadata(ctx context.Context, filter map[string]any) (int, error) {
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return 0, fmt.Errorf("marshal filter: %w", err)
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tag, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE metadata @> $1`, filterJSON)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Clear drops every document.
func (s *Index) Clear(ctx context.Context) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	logger.Debug("[Vector][Clear] Removing all documents")
	_, err := s.conn.Exec(ctx, `DELETE FROM documents`)
	return err
}
