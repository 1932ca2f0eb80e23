package types

import (
	"context"

	"github.com/askdocs/askdocs/internal/models"
)

// Gateway is the contract the pipeline has with the embedding/generation
// backend. Both calls block and may fail with *UpstreamError.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, question, contextText string) (string, error)
	IsAvailable(ctx context.Context) bool
}

// EmbeddingStore holds standalone text embeddings keyed by integer id.
// Records are immutable after insert; there is no update operation.
type EmbeddingStore interface {
	Insert(ctx context.Context, text string, vector []float32) (int64, error)
	Get(ctx context.Context, id int64) (models.Embedding, error)
	List(ctx context.Context) ([]models.Embedding, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, vector []float32, topK int) ([]models.SearchResult, error)
}

// DocumentStore holds uploaded documents and their chunks. Deleting a
// document removes all of its chunks.
type DocumentStore interface {
	InsertDocument(ctx context.Context, fileName, content string) (int64, error)
	InsertChunk(ctx context.Context, documentID int64, chunk models.Chunk, vector []float32) (int64, error)
	GetDocument(ctx context.Context, id int64) (models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	ChunksByDocument(ctx context.Context, documentID int64) ([]models.DocumentChunk, error)
	DeleteDocument(ctx context.Context, id int64) (bool, error)
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
	SearchChunks(ctx context.Context, vector []float32, topK int) ([]models.ChunkSearchResult, error)
}
