package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/askdocs/askdocs/internal/models"
	"github.com/askdocs/askdocs/internal/types"
	"github.com/askdocs/askdocs/pkg/chunker"
	"github.com/askdocs/askdocs/pkg/vector"
)

// allowed upload extensions, lower-cased
var allowedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// Config configures the ingestion pipeline.
type Config struct {
	Chunking chunker.Options
	// OnChunk, when set, is called after each chunk is embedded and stored.
	OnChunk func(chunk models.Chunk)
}

// Ingestor drives chunking, embedding, normalization and storage for new
// texts and uploaded documents.
type Ingestor struct {
	config     Config
	gateway    types.Gateway
	embeddings types.EmbeddingStore
	documents  types.DocumentStore
}

func New(config Config, gateway types.Gateway, embeddings types.EmbeddingStore, documents types.DocumentStore) *Ingestor {
	return &Ingestor{
		config:     config,
		gateway:    gateway,
		embeddings: embeddings,
		documents:  documents,
	}
}

// WithOnChunk returns a copy of the ingestor that reports per-chunk
// progress through fn.
func (in *Ingestor) WithOnChunk(fn func(models.Chunk)) *Ingestor {
	clone := *in
	clone.config.OnChunk = fn
	return &clone
}

// ChunkEmbedding records the vector produced for one chunk of a text.
type ChunkEmbedding struct {
	Chunk  models.Chunk
	Vector []float32
}

// EmbedText embeds text without storing anything. A single-chunk text yields
// that chunk's normalized vector; a multi-chunk text yields the component-wise
// mean of the chunk vectors, re-normalized, since an average of unit vectors
// is not itself unit length.
func (in *Ingestor) EmbedText(ctx context.Context, text string) ([]float32, []ChunkEmbedding, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil, &types.ValidationError{Field: "text", Message: "must not be empty"}
	}

	chunks := chunker.Split(text, in.config.Chunking)
	perChunk := make([]ChunkEmbedding, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	for _, ch := range chunks {
		raw, err := in.gateway.Embed(ctx, ch.Text)
		if err != nil {
			return nil, nil, err
		}
		v := vector.Normalize(raw)
		perChunk = append(perChunk, ChunkEmbedding{Chunk: ch, Vector: v})
		vectors = append(vectors, v)
		if in.config.OnChunk != nil {
			in.config.OnChunk(ch)
		}
	}

	if len(vectors) == 1 {
		return vectors[0], perChunk, nil
	}
	mean, err := vector.Mean(vectors)
	if err != nil {
		return nil, nil, err
	}
	return vector.Normalize(mean), perChunk, nil
}

// IngestText embeds text and persists it as a standalone embedding record,
// returning the new id, the stored vector and the number of chunks merged
// into it.
func (in *Ingestor) IngestText(ctx context.Context, text string) (int64, []float32, int, error) {
	vec, perChunk, err := in.EmbedText(ctx, text)
	if err != nil {
		return 0, nil, 0, err
	}
	id, err := in.embeddings.Insert(ctx, strings.TrimSpace(text), vec)
	if err != nil {
		return 0, nil, 0, err
	}
	return id, vec, len(perChunk), nil
}

// IngestDocument chunks an uploaded file and stores one chunk record per
// chunk. The first gateway failure aborts the remaining loop and propagates;
// chunks already written stay written — callers wanting atomicity wrap this
// in their own transaction boundary.
func (in *Ingestor) IngestDocument(ctx context.Context, fileName, content string) (int64, int, error) {
	if err := ValidateFileName(fileName); err != nil {
		return 0, 0, err
	}
	if strings.TrimSpace(content) == "" {
		return 0, 0, &types.ValidationError{Field: "content", Message: "must not be empty"}
	}

	docID, err := in.documents.InsertDocument(ctx, fileName, content)
	if err != nil {
		return 0, 0, err
	}

	chunks := chunker.Split(content, in.config.Chunking)
	for _, ch := range chunks {
		raw, err := in.gateway.Embed(ctx, ch.Text)
		if err != nil {
			return docID, ch.Index, fmt.Errorf("chunk %d: %w", ch.Index, err)
		}
		if _, err := in.documents.InsertChunk(ctx, docID, ch, vector.Normalize(raw)); err != nil {
			return docID, ch.Index, err
		}
		if in.config.OnChunk != nil {
			in.config.OnChunk(ch)
		}
	}
	return docID, len(chunks), nil
}

// ValidateFileName rejects uploads that are not markdown or plain text.
func ValidateFileName(fileName string) error {
	if strings.TrimSpace(fileName) == "" {
		return &types.ValidationError{Field: "file_name", Message: "must not be empty"}
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return &types.ValidationError{
			Field:   "file_name",
			Message: fmt.Sprintf("unsupported file extension %q (want .md, .markdown or .txt)", ext),
		}
	}
	return nil
}
