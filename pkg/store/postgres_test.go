package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdocs/askdocs/internal/models"
	"github.com/askdocs/askdocs/internal/types"
	"github.com/askdocs/askdocs/pkg/store"
)

// These tests need a postgres with the pgvector extension; set
// TEST_DATABASE_URL to run them.
func newTestPostgres(t *testing.T) *store.Postgres {
	t.Helper()
	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := store.NewPostgres(context.Background(), store.PostgresConfig{
		ConnString: connString,
		VectorDim:  3,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestPostgresEmbeddingRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgres(t)

	id, err := s.Insert(ctx, "round trip", []float32{1, 0, 0})
	require.NoError(t, err)
	t.Cleanup(func() { s.Delete(ctx, id) })

	rec, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "round trip", rec.Text)
	assert.Equal(t, []float32{1, 0, 0}, rec.Vector)

	results, err := s.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].Embedding.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	deleted, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.Get(ctx, id)
	assert.True(t, types.IsNotFound(err))
}

func TestPostgresDimensionGuard(t *testing.T) {
	s := newTestPostgres(t)
	_, err := s.Insert(context.Background(), "wrong size", []float32{1, 0})
	require.Error(t, err)
	var mismatch *types.DimensionMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestPostgresDocumentCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgres(t)

	docID, err := s.InsertDocument(ctx, "cascade.md", "chunked content")
	require.NoError(t, err)
	t.Cleanup(func() { s.DeleteDocument(ctx, docID) })

	for i := 0; i < 2; i++ {
		chunk := models.Chunk{Index: i, Text: "piece", StartOffset: i, EndOffset: i + 5, TokenCount: 1}
		_, err := s.InsertChunk(ctx, docID, chunk, []float32{0, 1, 0})
		require.NoError(t, err)
	}

	chunks, err := s.ChunksByDocument(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[1].ChunkIndex)

	deleted, err := s.DeleteDocument(ctx, docID)
	require.NoError(t, err)
	assert.True(t, deleted)

	chunks, err = s.ChunksByDocument(ctx, docID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
