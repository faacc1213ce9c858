package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jonataserpa/docrag/internal/core/document"
	"github.com/jonataserpa/docrag/internal/core/pipeline"
	"github.com/jonataserpa/docrag/internal/core/search"
)

// Store は pgvector を使用したベクトルストア実装
// pipeline.VectorStore と search.Repository の両方を実装する
type Store struct {
	pool *pgxpool.Pool
}

// NewStore は新しい Store を作成する
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema はvector拡張とdocumentsテーブルを作成する
// dimension はEmbeddingモデルの出力次元
func (s *Store) EnsureSchema(ctx context.Context, dimension int) error {
	if dimension < 1 {
		return fmt.Errorf("invalid embedding dimension: %d", dimension)
	}

	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			page_index INTEGER,
			chunk_index INTEGER NOT NULL,
			total_chunks INTEGER NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL,
			embedding_created_at TIMESTAMPTZ NOT NULL
		)`, dimension)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	return nil
}

// BulkInsert はレコードを一括登録する
// 同一IDはupsertされるため、同じチャンクの再投入は安全（冪等）
func (s *Store) BulkInsert(ctx context.Context, records []*document.EmbeddedRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(`
			INSERT INTO documents (
				id, content, source, page_index, chunk_index, total_chunks,
				content_type, embedding, embedding_created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				source = EXCLUDED.source,
				page_index = EXCLUDED.page_index,
				chunk_index = EXCLUDED.chunk_index,
				total_chunks = EXCLUDED.total_chunks,
				content_type = EXCLUDED.content_type,
				embedding = EXCLUDED.embedding,
				embedding_created_at = EXCLUDED.embedding_created_at`,
			record.ID,
			record.Content,
			record.Metadata.Source,
			record.Metadata.PageIndex,
			record.Metadata.ChunkIndex,
			record.Metadata.TotalChunks,
			record.Metadata.ContentType,
			pgvector.NewVector(record.Vector),
			record.EmbeddingCreatedAt,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	return nil
}

// Count はdocumentsテーブルのドキュメント数を返す
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// KNNSearch はクエリベクトルのk近傍をcosine距離の昇順で返す
func (s *Store) KNNSearch(ctx context.Context, queryVector []float32, k int) ([]*search.Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			id, content, source, page_index, chunk_index, total_chunks,
			content_type, embedding_created_at,
			embedding <=> $1 AS distance
		FROM documents
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(queryVector),
		k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute knn search: %w", err)
	}
	defer rows.Close()

	candidates := make([]*search.Candidate, 0, k)
	for rows.Next() {
		var candidate search.Candidate
		var meta document.Metadata

		if err := rows.Scan(
			&candidate.ID,
			&candidate.Content,
			&meta.Source,
			&meta.PageIndex,
			&meta.ChunkIndex,
			&meta.TotalChunks,
			&meta.ContentType,
			&candidate.EmbeddingCreatedAt,
			&candidate.Distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}

		candidate.Metadata = meta
		candidates = append(candidates, &candidate)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rows: %w", err)
	}

	return candidates, nil
}

// Ping はストアとの疎通を確認する
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping store: %w", err)
	}
	return nil
}

// インターフェース実装の確認
var (
	_ pipeline.VectorStore = (*Store)(nil)
	_ search.Repository    = (*Store)(nil)
)
