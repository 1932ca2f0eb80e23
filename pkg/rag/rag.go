package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/askdocs/askdocs/internal/models"
	"github.com/askdocs/askdocs/internal/types"
	"github.com/askdocs/askdocs/pkg/vector"
)

const previewLimit = 300

// Config configures the orchestrator.
type Config struct {
	// DefaultTopK is used when a caller passes topK <= 0.
	DefaultTopK int
}

// Orchestrator answers questions by retrieving the most similar stored
// chunks and handing them to the generation model as grounding context.
type Orchestrator struct {
	config     Config
	gateway    types.Gateway
	embeddings types.EmbeddingStore
	documents  types.DocumentStore
}

func New(config Config, gateway types.Gateway, embeddings types.EmbeddingStore, documents types.DocumentStore) *Orchestrator {
	if config.DefaultTopK == 0 {
		config.DefaultTopK = 5
	}
	return &Orchestrator{
		config:     config,
		gateway:    gateway,
		embeddings: embeddings,
		documents:  documents,
	}
}

// Answer runs the RAG flow against the standalone embedding store. With
// useRetrieval false, or when the store yields nothing, the model answers
// from general knowledge and the result claims no grounding.
func (o *Orchestrator) Answer(ctx context.Context, question string, topK int, useRetrieval bool) (models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return models.Answer{}, &types.ValidationError{Field: "question", Message: "must not be empty"}
	}
	if !useRetrieval {
		return o.ungrounded(ctx, question)
	}

	queryVec, err := o.embedQuery(ctx, question)
	if err != nil {
		return models.Answer{}, err
	}
	results, err := o.embeddings.Search(ctx, queryVec, o.topK(topK))
	if err != nil {
		return models.Answer{}, err
	}
	if len(results) == 0 {
		return o.ungrounded(ctx, question)
	}

	var contextText strings.Builder
	sources := make([]models.Source, 0, len(results))
	for _, res := range results {
		label := fmt.Sprintf("embedding %d", res.Embedding.ID)
		percent := FormatPercent(res.Score)
		fmt.Fprintf(&contextText, "[%s, similarity %s]\n%s\n\n", label, percent, res.Embedding.Text)
		sources = append(sources, models.Source{
			Key:     label,
			Preview: Preview(res.Embedding.Text),
			Score:   res.Score,
			Percent: percent,
		})
	}

	answer, err := o.gateway.Generate(ctx, question, contextText.String())
	if err != nil {
		return models.Answer{}, err
	}
	return models.Answer{Answer: answer, UsedRetrieval: true, Sources: sources}, nil
}

// AnswerFromDocuments runs the RAG flow against the uploaded-document chunk
// corpus, attributing sources down to document and chunk index.
func (o *Orchestrator) AnswerFromDocuments(ctx context.Context, question string, topK int) (models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return models.Answer{}, &types.ValidationError{Field: "question", Message: "must not be empty"}
	}

	queryVec, err := o.embedQuery(ctx, question)
	if err != nil {
		return models.Answer{}, err
	}
	results, err := o.documents.SearchChunks(ctx, queryVec, o.topK(topK))
	if err != nil {
		return models.Answer{}, err
	}
	if len(results) == 0 {
		return o.ungrounded(ctx, question)
	}

	var contextText strings.Builder
	sources := make([]models.Source, 0, len(results))
	for _, res := range results {
		ch := res.Chunk
		label := fmt.Sprintf("document %d, chunk %d", ch.DocumentID, ch.ChunkIndex)
		percent := FormatPercent(res.Score)
		fmt.Fprintf(&contextText, "[%s, similarity %s]\n%s\n\n", label, percent, ch.Text)
		sources = append(sources, models.Source{
			Key:        label,
			DocumentID: ch.DocumentID,
			ChunkIndex: ch.ChunkIndex,
			Preview:    Preview(ch.Text),
			Score:      res.Score,
			Percent:    percent,
			Ref:        fmt.Sprintf("/documents/%d/chunks/%d", ch.DocumentID, ch.ChunkIndex),
		})
	}

	answer, err := o.gateway.Generate(ctx, question, contextText.String())
	if err != nil {
		return models.Answer{}, err
	}
	return models.Answer{Answer: answer, UsedRetrieval: true, Sources: sources}, nil
}

func (o *Orchestrator) ungrounded(ctx context.Context, question string) (models.Answer, error) {
	answer, err := o.gateway.Generate(ctx, question, "")
	if err != nil {
		return models.Answer{}, err
	}
	return models.Answer{Answer: answer, UsedRetrieval: false, Sources: []models.Source{}}, nil
}

func (o *Orchestrator) embedQuery(ctx context.Context, question string) ([]float32, error) {
	raw, err := o.gateway.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return vector.Normalize(raw), nil
}

func (o *Orchestrator) topK(k int) int {
	if k <= 0 {
		return o.config.DefaultTopK
	}
	return k
}

// FormatPercent renders a similarity score as a percentage with one decimal.
func FormatPercent(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

// Preview truncates text for source attribution, marking the cut with an
// ellipsis.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "…"
}
