package models

import "time"

// Chunk is a contiguous span of a source text produced by the chunker.
// Offsets index into the trimmed source; Text is the trimmed slice.
type Chunk struct {
	Index       int
	Text        string
	StartOffset int
	EndOffset   int
	TokenCount  int
}

// Embedding is a standalone stored text with its normalized vector.
type Embedding struct {
	ID        int64
	Text      string
	Vector    []float32
	CreatedAt time.Time
}

// Document is an uploaded source file, parent of zero or more chunks.
type Document struct {
	ID        int64
	FileName  string
	FileSize  int64
	CreatedAt time.Time
}

// DocumentChunk is one chunk of a document together with its vector.
type DocumentChunk struct {
	ID          int64
	DocumentID  int64
	ChunkIndex  int
	Text        string
	Vector      []float32
	StartOffset int
	EndOffset   int
	TokenCount  int
	CreatedAt   time.Time
}

// SearchResult pairs a stored embedding with its similarity to a query.
type SearchResult struct {
	Embedding Embedding
	Score     float64
}

// ChunkSearchResult pairs a document chunk with its similarity to a query.
type ChunkSearchResult struct {
	Chunk DocumentChunk
	Score float64
}

// Source attributes part of an answer to a stored chunk or embedding.
type Source struct {
	Key        string  `json:"key"`
	DocumentID int64   `json:"document_id,omitempty"`
	ChunkIndex int     `json:"chunk_index,omitempty"`
	Preview    string  `json:"preview"`
	Score      float64 `json:"score"`
	Percent    string  `json:"percent"`
	Ref        string  `json:"ref,omitempty"`
}

// Answer is the result of a RAG query.
type Answer struct {
	Answer        string   `json:"answer"`
	UsedRetrieval bool     `json:"used_retrieval"`
	Sources       []Source `json:"sources"`
}

// Stats summarizes the stored corpus for the stats endpoint.
type Stats struct {
	Embeddings     int  `json:"embeddings"`
	Documents      int  `json:"documents"`
	DocumentChunks int  `json:"document_chunks"`
	ModelAvailable bool `json:"model_available"`
}
