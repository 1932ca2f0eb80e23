package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/askdocs/askdocs/internal/models"
	"github.com/askdocs/askdocs/internal/types"
	"github.com/askdocs/askdocs/pkg/vector"
)

// PostgresConfig configures the persisted store.
type PostgresConfig struct {
	ConnString string
	VectorDim  int
}

// Postgres persists embeddings, documents and document chunks. Chunks hang
// off their document with ON DELETE CASCADE, so a document delete can never
// leave orphans.
type Postgres struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

func NewPostgres(ctx context.Context, config PostgresConfig) (*Postgres, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Postgres{config: config, pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	stmts := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS embeddings (
				id BIGSERIAL PRIMARY KEY,
				content TEXT NOT NULL,
				embedding vector(%d) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, s.config.VectorDim),
		`
			CREATE TABLE IF NOT EXISTS documents (
				id BIGSERIAL PRIMARY KEY,
				file_name TEXT NOT NULL,
				file_size BIGINT NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS document_chunks (
				id BIGSERIAL PRIMARY KEY,
				document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				chunk_index INTEGER NOT NULL,
				content TEXT NOT NULL,
				embedding vector(%d) NOT NULL,
				start_offset INTEGER NOT NULL,
				end_offset INTEGER NOT NULL,
				token_count INTEGER NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, s.config.VectorDim),
		`CREATE INDEX IF NOT EXISTS document_chunks_document_id_idx ON document_chunks (document_id, chunk_index)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Postgres) checkDim(v []float32) error {
	if len(v) != s.config.VectorDim {
		return &types.DimensionMismatchError{Want: s.config.VectorDim, Got: len(v)}
	}
	return nil
}

func (s *Postgres) Insert(ctx context.Context, text string, vec []float32) (int64, error) {
	if err := s.checkDim(vec); err != nil {
		return 0, err
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO embeddings (content, embedding) VALUES ($1, $2) RETURNING id`,
		text, pgvector.NewVector(vec),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert embedding: %w", err)
	}
	return id, nil
}

func (s *Postgres) Get(ctx context.Context, id int64) (models.Embedding, error) {
	var (
		rec models.Embedding
		emb pgvector.Vector
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, content, embedding, created_at FROM embeddings WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.Text, &emb, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Embedding{}, &types.NotFoundError{Resource: "embedding", ID: id}
	}
	if err != nil {
		return models.Embedding{}, fmt.Errorf("failed to load embedding: %w", err)
	}
	rec.Vector = emb.Slice()
	return rec, nil
}

func (s *Postgres) List(ctx context.Context) ([]models.Embedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content, embedding, created_at FROM embeddings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()
	return scanEmbeddings(rows)
}

func (s *Postgres) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM embeddings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete embedding: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// Search ranks every stored embedding against query in Go rather than with a
// vector index, matching the memory store's ordering and tie-break exactly.
func (s *Postgres) Search(ctx context.Context, query []float32, topK int) ([]models.SearchResult, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(records))
	for _, rec := range records {
		score, err := vector.CosineSimilarity(query, rec.Vector)
		if err != nil {
			return nil, err
		}
		results = append(results, models.SearchResult{Embedding: rec, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Embedding.ID < results[j].Embedding.ID
	})
	if topK < 0 {
		topK = 0
	}
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func (s *Postgres) InsertDocument(ctx context.Context, fileName, content string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (file_name, file_size, content) VALUES ($1, $2, $3) RETURNING id`,
		fileName, int64(len(content)), content,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

func (s *Postgres) InsertChunk(ctx context.Context, documentID int64, chunk models.Chunk, vec []float32) (int64, error) {
	if err := s.checkDim(vec); err != nil {
		return 0, err
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO document_chunks
			(document_id, chunk_index, content, embedding, start_offset, end_offset, token_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		documentID, chunk.Index, chunk.Text, pgvector.NewVector(vec),
		chunk.StartOffset, chunk.EndOffset, chunk.TokenCount,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert chunk: %w", err)
	}
	return id, nil
}

func (s *Postgres) GetDocument(ctx context.Context, id int64) (models.Document, error) {
	var doc models.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, file_name, file_size, created_at FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.FileName, &doc.FileSize, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, &types.NotFoundError{Resource: "document", ID: id}
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to load document: %w", err)
	}
	return doc, nil
}

func (s *Postgres) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, file_name, file_size, created_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.FileName, &doc.FileSize, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Postgres) ChunksByDocument(ctx context.Context, documentID int64) ([]models.DocumentChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, embedding,
		       start_offset, end_offset, token_count, created_at
		FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (s *Postgres) DeleteDocument(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Postgres) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (s *Postgres) CountChunks(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *Postgres) SearchChunks(ctx context.Context, query []float32, topK int) ([]models.ChunkSearchResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, chunk_index, content, embedding,
		       start_offset, end_offset, token_count, created_at
		FROM document_chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()
	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	results := make([]models.ChunkSearchResult, 0, len(chunks))
	for _, ch := range chunks {
		score, err := vector.CosineSimilarity(query, ch.Vector)
		if err != nil {
			return nil, err
		}
		results = append(results, models.ChunkSearchResult{Chunk: ch, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if topK < 0 {
		topK = 0
	}
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

func scanEmbeddings(rows pgx.Rows) ([]models.Embedding, error) {
	var out []models.Embedding
	for rows.Next() {
		var (
			rec models.Embedding
			emb pgvector.Vector
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &emb, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		rec.Vector = emb.Slice()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanChunks(rows pgx.Rows) ([]models.DocumentChunk, error) {
	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.DocumentID, &ch.ChunkIndex, &ch.Text, &emb,
			&ch.StartOffset, &ch.EndOffset, &ch.TokenCount, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		ch.Vector = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}
