package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/askdocs/askdocs/internal/models"
	"github.com/askdocs/askdocs/internal/types"
	"github.com/askdocs/askdocs/pkg/pipeline"
	"github.com/askdocs/askdocs/pkg/rag"
)

const maxUploadBytes = 10 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Server exposes the ingestion and RAG pipelines over JSON HTTP.
type Server struct {
	ingestor     *pipeline.Ingestor
	orchestrator *rag.Orchestrator
	gateway      types.Gateway
	embeddings   types.EmbeddingStore
	documents    types.DocumentStore
}

func New(ingestor *pipeline.Ingestor, orchestrator *rag.Orchestrator, gateway types.Gateway, embeddings types.EmbeddingStore, documents types.DocumentStore) *Server {
	return &Server{
		ingestor:     ingestor,
		orchestrator: orchestrator,
		gateway:      gateway,
		embeddings:   embeddings,
		documents:    documents,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/embed", s.handleEmbed)
	mux.HandleFunc("POST /api/embed/batch", s.handleEmbedBatch)
	mux.HandleFunc("POST /api/embed/query", s.handleEmbedQuery)
	mux.HandleFunc("GET /api/embeddings", s.handleListEmbeddings)
	mux.HandleFunc("GET /api/embeddings/{id}", s.handleGetEmbedding)
	mux.HandleFunc("DELETE /api/embeddings/{id}", s.handleDeleteEmbedding)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/rag", s.handleRAG)

	mux.HandleFunc("POST /api/documents", s.handleUploadDocument)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("GET /api/documents/{id}/chunks", s.handleDocumentChunks)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /api/documents/ask", s.handleAskDocuments)

	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	ID        int64 `json:"id"`
	Dimension int   `json:"dimension"`
	Chunks    int   `json:"chunks"`
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	id, vec, chunks, err := s.ingestor.IngestText(r.Context(), req.Text)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, embedResponse{ID: id, Dimension: len(vec), Chunks: chunks})
}

type embedBatchRequest struct {
	Texts []string `json:"texts"`
}

func (s *Server) handleEmbedBatch(w http.ResponseWriter, r *http.Request) {
	var req embedBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts must not be empty", "")
		return
	}

	results := make([]embedResponse, 0, len(req.Texts))
	for _, text := range req.Texts {
		id, vec, chunks, err := s.ingestor.IngestText(r.Context(), text)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		results = append(results, embedResponse{ID: id, Dimension: len(vec), Chunks: chunks})
	}
	writeJSON(w, http.StatusCreated, map[string]any{"results": results})
}

func (s *Server) handleEmbedQuery(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	vec, perChunk, err := s.ingestor.EmbedText(r.Context(), req.Text)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vector":    vec,
		"dimension": len(vec),
		"chunks":    len(perChunk),
	})
}

type embeddingView struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Dimension int    `json:"dimension"`
	CreatedAt string `json:"created_at"`
}

func viewEmbedding(rec models.Embedding) embeddingView {
	return embeddingView{
		ID:        rec.ID,
		Text:      rec.Text,
		Dimension: len(rec.Vector),
		CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) handleListEmbeddings(w http.ResponseWriter, r *http.Request) {
	records, err := s.embeddings.List(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	out := make([]embeddingView, 0, len(records))
	for _, rec := range records {
		out = append(out, viewEmbedding(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "embeddings": out})
}

func (s *Server) handleGetEmbedding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := s.embeddings.Get(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewEmbedding(rec))
}

func (s *Server) handleDeleteEmbedding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := s.embeddings.Delete(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, fmt.Sprintf("embedding %d not found", id), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

type searchResultView struct {
	ID      int64   `json:"id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	Percent string  `json:"percent"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	vec, _, err := s.ingestor.EmbedText(r.Context(), req.Text)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	results, err := s.embeddings.Search(r.Context(), vec, topK)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	out := make([]searchResultView, 0, len(results))
	for _, res := range results {
		out = append(out, searchResultView{
			ID:      res.Embedding.ID,
			Text:    rag.Preview(res.Embedding.Text),
			Score:   res.Score,
			Percent: rag.FormatPercent(res.Score),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

type ragRequest struct {
	Question     string `json:"question"`
	TopK         int    `json:"top_k"`
	UseRetrieval *bool  `json:"use_retrieval"`
}

func (s *Server) handleRAG(w http.ResponseWriter, r *http.Request) {
	var req ragRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	useRetrieval := req.UseRetrieval == nil || *req.UseRetrieval
	answer, err := s.orchestrator.Answer(r.Context(), req.Question, req.TopK, useRetrieval)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field", err.Error())
		return
	}
	defer file.Close()

	if err := pipeline.ValidateFileName(header.Filename); err != nil {
		s.writeFailure(w, err)
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload", err.Error())
		return
	}

	docID, chunks, err := s.ingestor.IngestDocument(r.Context(), header.Filename, string(content))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        docID,
		"file_name": header.Filename,
		"file_size": len(content),
		"chunks":    chunks,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListDocuments(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		out = append(out, viewDocument(doc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "documents": out})
}

func viewDocument(doc models.Document) map[string]any {
	return map[string]any{
		"id":         doc.ID,
		"file_name":  doc.FileName,
		"file_size":  doc.FileSize,
		"created_at": doc.CreatedAt.UTC(),
	}
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	doc, err := s.documents.GetDocument(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewDocument(doc))
}

func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.documents.GetDocument(r.Context(), id); err != nil {
		s.writeFailure(w, err)
		return
	}
	chunks, err := s.documents.ChunksByDocument(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	out := make([]map[string]any, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, map[string]any{
			"id":           ch.ID,
			"document_id":  ch.DocumentID,
			"chunk_index":  ch.ChunkIndex,
			"text":         ch.Text,
			"start_offset": ch.StartOffset,
			"end_offset":   ch.EndOffset,
			"token_count":  ch.TokenCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "chunks": out})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	deleted, err := s.documents.DeleteDocument(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, fmt.Sprintf("document %d not found", id), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func (s *Server) handleAskDocuments(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	answer, err := s.orchestrator.AnswerFromDocuments(r.Context(), req.Question, req.TopK)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	embeddings, err := s.embeddings.Count(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	docs, err := s.documents.CountDocuments(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	chunks, err := s.documents.CountChunks(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Stats{
		Embeddings:     embeddings,
		Documents:      docs,
		DocumentChunks: chunks,
		ModelAvailable: s.gateway.IsAvailable(r.Context()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// wsMessage frames websocket traffic in both directions.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.sendWS(conn, wsMessage{Type: "error", Content: "invalid message"})
			continue
		}

		question := strings.TrimSpace(msg.Content)
		if question == "" {
			s.sendWS(conn, wsMessage{Type: "error", Content: "question must not be empty"})
			continue
		}

		s.sendWS(conn, wsMessage{Type: "status", Content: "searching"})
		answer, err := s.orchestrator.AnswerFromDocuments(r.Context(), question, 0)
		if err != nil {
			s.sendWS(conn, wsMessage{Type: "error", Content: err.Error()})
			continue
		}
		s.sendWS(conn, wsMessage{Type: "answer", Content: answer.Answer, Data: answer.Sources})
	}
}

func (s *Server) sendWS(conn *websocket.Conn, msg wsMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// writeFailure maps the error taxonomy onto HTTP statuses so callers can
// tell permanent input failures from retryable upstream ones.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var upstream *types.UpstreamError
	switch {
	case types.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case types.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.As(err, &upstream):
		status := http.StatusBadGateway
		if upstream.Timeout {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "model backend failure", err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid id", r.PathValue("id"))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	body := map[string]any{"error": msg}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
