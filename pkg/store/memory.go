package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/askdocs/askdocs/internal/models"
	"github.com/askdocs/askdocs/internal/types"
	"github.com/askdocs/askdocs/pkg/vector"
)

// Memory is an in-process store for standalone embeddings and documents.
// Records are immutable after insert and deletes are removal-only, so
// concurrent searches never observe a half-written record.
type Memory struct {
	mu        sync.RWMutex
	dim       int
	nextID    int64
	order     []int64
	records   map[int64]models.Embedding
	nextDocID int64
	docOrder  []int64
	docs      map[int64]models.Document
	chunks    map[int64][]models.DocumentChunk
	nextChkID int64
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[int64]models.Embedding),
		docs:    make(map[int64]models.Document),
		chunks:  make(map[int64][]models.DocumentChunk),
	}
}

func (m *Memory) checkDim(v []float32) error {
	if m.dim == 0 {
		m.dim = len(v)
		return nil
	}
	if len(v) != m.dim {
		return &types.DimensionMismatchError{Want: m.dim, Got: len(v)}
	}
	return nil
}

func (m *Memory) Insert(ctx context.Context, text string, vec []float32) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkDim(vec); err != nil {
		return 0, err
	}
	m.nextID++
	id := m.nextID
	m.records[id] = models.Embedding{
		ID:        id,
		Text:      text,
		Vector:    vec,
		CreatedAt: time.Now(),
	}
	m.order = append(m.order, id)
	return id, nil
}

func (m *Memory) Get(ctx context.Context, id int64) (models.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return models.Embedding{}, &types.NotFoundError{Resource: "embedding", ID: id}
	}
	return rec, nil
}

func (m *Memory) List(ctx context.Context) ([]models.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Embedding, 0, len(m.order))
	for _, id := range m.order {
		if rec, ok := m.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return false, nil
	}
	delete(m.records, id)
	return true, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Search scans every stored record, scoring each against query. Results are
// ordered by descending similarity; exact score ties break by ascending id
// so repeated queries are deterministic.
func (m *Memory) Search(ctx context.Context, query []float32, topK int) ([]models.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]models.SearchResult, 0, len(m.records))
	for _, id := range m.order {
		rec, ok := m.records[id]
		if !ok {
			continue
		}
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

func (m *Memory) InsertDocument(ctx context.Context, fileName, content string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDocID++
	id := m.nextDocID
	m.docs[id] = models.Document{
		ID:        id,
		FileName:  fileName,
		FileSize:  int64(len(content)),
		CreatedAt: time.Now(),
	}
	m.docOrder = append(m.docOrder, id)
	return id, nil
}

func (m *Memory) InsertChunk(ctx context.Context, documentID int64, chunk models.Chunk, vec []float32) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[documentID]; !ok {
		return 0, &types.NotFoundError{Resource: "document", ID: documentID}
	}
	if err := m.checkDim(vec); err != nil {
		return 0, err
	}
	m.nextChkID++
	id := m.nextChkID
	m.chunks[documentID] = append(m.chunks[documentID], models.DocumentChunk{
		ID:          id,
		DocumentID:  documentID,
		ChunkIndex:  chunk.Index,
		Text:        chunk.Text,
		Vector:      vec,
		StartOffset: chunk.StartOffset,
		EndOffset:   chunk.EndOffset,
		TokenCount:  chunk.TokenCount,
		CreatedAt:   time.Now(),
	})
	return id, nil
}

func (m *Memory) GetDocument(ctx context.Context, id int64) (models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return models.Document{}, &types.NotFoundError{Resource: "document", ID: id}
	}
	return doc, nil
}

func (m *Memory) ListDocuments(ctx context.Context) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Document, 0, len(m.docOrder))
	for _, id := range m.docOrder {
		if doc, ok := m.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (m *Memory) ChunksByDocument(ctx context.Context, documentID int64) ([]models.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := append([]models.DocumentChunk(nil), m.chunks[documentID]...)
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
	return chunks, nil
}

// DeleteDocument removes a document and cascades to all of its chunks.
func (m *Memory) DeleteDocument(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	delete(m.chunks, id)
	return true, nil
}

func (m *Memory) CountDocuments(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

func (m *Memory) CountChunks(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, cs := range m.chunks {
		n += len(cs)
	}
	return n, nil
}

func (m *Memory) SearchChunks(ctx context.Context, query []float32, topK int) ([]models.ChunkSearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []models.ChunkSearchResult
	for _, docID := range m.docOrder {
		for _, ch := range m.chunks[docID] {
			score, err := vector.CosineSimilarity(query, ch.Vector)
			if err != nil {
				return nil, err
			}
			results = append(results, models.ChunkSearchResult{Chunk: ch, Score: score})
		}
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
