package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avmoreno/corpus-qa/internal/core/domain"
	"github.com/avmoreno/corpus-qa/internal/core/ports"
	"github.com/avmoreno/corpus-qa/internal/observability/metrics"
)

// citationCharLimit bounds citation text in API responses. Full chunk text
// already went into the prompt; responses only need enough to locate the
// passage in the source document.
const citationCharLimit = 400

type Router struct {
	service string

	asker     ports.QuestionAnswerer
	searcher  ports.PassageSearcher
	ingestor  ports.DocumentIngestor
	documents ports.DocumentReader
	corpus    ports.CorpusReader
	feedback  ports.FeedbackStore

	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	service string,
	asker ports.QuestionAnswerer,
	searcher ports.PassageSearcher,
	ingestor ports.DocumentIngestor,
	documents ports.DocumentReader,
	corpus ports.CorpusReader,
	feedback ports.FeedbackStore,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service:   service,
		asker:     asker,
		searcher:  searcher,
		ingestor:  ingestor,
		documents: documents,
		corpus:    corpus,
		feedback:  feedback,
		metrics:   serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/search", rt.search)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/sources", rt.listSources)
	mux.HandleFunc("/v1/feedback", rt.saveFeedback)
	mux.Handle("/metrics", rt.metrics.Handler())

	handler := rt.metrics.Middleware(rt.service, mux)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question    string   `json:"question"`
	Source      string   `json:"source"`
	TopK        int      `json:"top_k"`
	Diversify   *bool    `json:"diversify"`
	Temperature *float64 `json:"temperature"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	answer, err := rt.asker.Ask(r.Context(), ports.AskRequest{
		Question:    req.Question,
		Source:      req.Source,
		TopK:        req.TopK,
		Diversify:   req.Diversify == nil || *req.Diversify,
		Temperature: req.Temperature,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordAnswerCache(rt.service, answer.Cached)
	rt.metrics.RecordSearch(rt.service, "ask", string(answer.Mode), len(answer.Citations), time.Since(start))

	answer.Citations = truncateCitations(answer.Citations)
	writeJSON(w, http.StatusOK, answer)
}

type searchRequest struct {
	Question  string `json:"question"`
	Source    string `json:"source"`
	TopK      int    `json:"top_k"`
	Diversify *bool  `json:"diversify"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	result, err := rt.searcher.Search(r.Context(), domain.SearchQuery{
		Question:     req.Question,
		FilterSource: req.Source,
		TopK:         req.TopK,
		Diversify:    req.Diversify == nil || *req.Diversify,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordSearch(rt.service, "search", string(result.Mode), len(result.Passages), time.Since(start))
	rt.metrics.RecordPipelineStats(rt.service, result.Stats.ForcedIncluded, result.Stats.DegradedChannel, result.Stats.RerankFallback)

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) listSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	corpus, err := rt.corpus.Corpus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	sources := corpus.SourceCounts()
	if sources == nil {
		sources = []domain.SourceCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

type feedbackRequest struct {
	Question string `json:"question"`
	Source   string `json:"source"`
	Answer   string `json:"answer"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

func (rt *Router) saveFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rating must be between 1 and 5"})
		return
	}

	fb := &domain.Feedback{
		ID:        uuid.NewString(),
		Question:  strings.TrimSpace(req.Question),
		Source:    strings.TrimSpace(req.Source),
		Answer:    req.Answer,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := rt.feedback.SaveFeedback(r.Context(), fb); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, fb)
}

// truncateCitations copies before trimming so cached answers keep their full
// citation text.
func truncateCitations(citations []domain.Passage) []domain.Passage {
	out := make([]domain.Passage, len(citations))
	copy(out, citations)
	for i, citation := range out {
		runes := []rune(citation.Text)
		if len(runes) > citationCharLimit {
			out[i].Text = string(runes[:citationCharLimit]) + "…"
		}
	}
	return out
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
