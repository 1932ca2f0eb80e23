package rag_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdocs/askdocs/internal/models"
	"github.com/askdocs/askdocs/internal/types"
	"github.com/askdocs/askdocs/pkg/rag"
	"github.com/askdocs/askdocs/pkg/store"
)

// fakeGateway answers deterministically and records the context it was
// handed, so tests can inspect the grounding.
type fakeGateway struct {
	queryVec    []float32
	embedErr    error
	generateErr error
	lastContext string
}

func (g *fakeGateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	return g.queryVec, nil
}

func (g *fakeGateway) Generate(ctx context.Context, question, contextText string) (string, error) {
	if g.generateErr != nil {
		return "", g.generateErr
	}
	g.lastContext = contextText
	if contextText != "" {
		return "grounded answer", nil
	}
	return "general answer", nil
}

func (g *fakeGateway) IsAvailable(ctx context.Context) bool { return true }

func newOrchestrator(gw *fakeGateway) (*rag.Orchestrator, *store.Memory) {
	mem := store.NewMemory()
	return rag.New(rag.Config{}, gw, mem, mem), mem
}

func TestAnswerWithoutRetrieval(t *testing.T) {
	gw := &fakeGateway{queryVec: []float32{1, 0}}
	o, mem := newOrchestrator(gw)

	_, err := mem.Insert(context.Background(), "stored but unused", []float32{1, 0})
	require.NoError(t, err)

	answer, err := o.Answer(context.Background(), "What is up?", 3, false)
	require.NoError(t, err)
	assert.Equal(t, "general answer", answer.Answer)
	assert.False(t, answer.UsedRetrieval)
	assert.Empty(t, answer.Sources)
	assert.Empty(t, gw.lastContext)
}

func TestAnswerFallsBackOnEmptyStore(t *testing.T) {
	gw := &fakeGateway{queryVec: []float32{1, 0}}
	o, _ := newOrchestrator(gw)

	answer, err := o.Answer(context.Background(), "Anything there?", 3, true)
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Answer)
	assert.False(t, answer.UsedRetrieval, "an ungrounded answer must not claim grounding")
	assert.Empty(t, answer.Sources)
}

func TestAnswerGrounded(t *testing.T) {
	gw := &fakeGateway{queryVec: []float32{1, 0}}
	o, mem := newOrchestrator(gw)

	best, err := mem.Insert(context.Background(), "the best match text", []float32{1, 0})
	require.NoError(t, err)
	worst, err := mem.Insert(context.Background(), "an unrelated text", []float32{0, 1})
	require.NoError(t, err)

	answer, err := o.Answer(context.Background(), "Which text matches?", 2, true)
	require.NoError(t, err)

	assert.Equal(t, "grounded answer", answer.Answer)
	assert.True(t, answer.UsedRetrieval)
	require.Len(t, answer.Sources, 2)

	// Sources come back in descending similarity order.
	assert.Equal(t, fmt.Sprintf("embedding %d", best), answer.Sources[0].Key)
	assert.Equal(t, fmt.Sprintf("embedding %d", worst), answer.Sources[1].Key)
	assert.Greater(t, answer.Sources[0].Score, answer.Sources[1].Score)
	assert.Equal(t, "100.0%", answer.Sources[0].Percent)
	assert.Equal(t, "0.0%", answer.Sources[1].Percent)

	// The generation call saw both stored texts, best first.
	assert.Contains(t, gw.lastContext, "the best match text")
	assert.Contains(t, gw.lastContext, "an unrelated text")
	assert.Less(t,
		strings.Index(gw.lastContext, "the best match text"),
		strings.Index(gw.lastContext, "an unrelated text"))
}

func TestAnswerValidatesQuestion(t *testing.T) {
	o, _ := newOrchestrator(&fakeGateway{queryVec: []float32{1, 0}})
	_, err := o.Answer(context.Background(), "  ", 3, true)
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
}

func TestAnswerPropagatesEmbedFailure(t *testing.T) {
	gw := &fakeGateway{embedErr: &types.UpstreamError{Op: "embed", Err: errors.New("down")}}
	o, _ := newOrchestrator(gw)

	_, err := o.Answer(context.Background(), "Any luck?", 3, true)
	require.Error(t, err)
	var upstream *types.UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestAnswerFromDocuments(t *testing.T) {
	gw := &fakeGateway{queryVec: []float32{1, 0}}
	o, mem := newOrchestrator(gw)

	docID, err := mem.InsertDocument(context.Background(), "guide.md", "content")
	require.NoError(t, err)
	_, err = mem.InsertChunk(context.Background(), docID,
		models.Chunk{Index: 0, Text: "relevant chunk text", TokenCount: 3}, []float32{1, 0})
	require.NoError(t, err)
	_, err = mem.InsertChunk(context.Background(), docID,
		models.Chunk{Index: 1, Text: "second chunk text", TokenCount: 3}, []float32{0, 1})
	require.NoError(t, err)

	answer, err := o.AnswerFromDocuments(context.Background(), "What does the guide say?", 2)
	require.NoError(t, err)

	assert.True(t, answer.UsedRetrieval)
	require.Len(t, answer.Sources, 2)
	top := answer.Sources[0]
	assert.Equal(t, docID, top.DocumentID)
	assert.Equal(t, 0, top.ChunkIndex)
	assert.Equal(t, fmt.Sprintf("/documents/%d/chunks/0", docID), top.Ref)
	assert.Equal(t, "relevant chunk text", top.Preview)
}

func TestAnswerFromDocumentsEmptyCorpus(t *testing.T) {
	gw := &fakeGateway{queryVec: []float32{1, 0}}
	o, _ := newOrchestrator(gw)

	answer, err := o.AnswerFromDocuments(context.Background(), "Anyone home?", 0)
	require.NoError(t, err)
	assert.False(t, answer.UsedRetrieval)
	assert.Empty(t, answer.Sources)
	assert.NotEmpty(t, answer.Answer)
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "100.0%", rag.FormatPercent(1))
	assert.Equal(t, "87.3%", rag.FormatPercent(0.8734))
	assert.Equal(t, "-25.0%", rag.FormatPercent(-0.25))
	assert.Equal(t, "0.0%", rag.FormatPercent(0))
}

func TestPreviewTruncation(t *testing.T) {
	short := "short text"
	assert.Equal(t, short, rag.Preview(short))

	long := strings.Repeat("x", 400)
	preview := rag.Preview(long)
	assert.True(t, strings.HasSuffix(preview, "…"))
	assert.Equal(t, 300, len([]rune(preview))-1)
}
