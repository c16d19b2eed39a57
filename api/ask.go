package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/finsight/finsight/internal/log"
)

// maxQuestionLen bounds the accepted question size. The pipeline itself
// does no length validation, so the HTTP surface enforces a sane cap.
const maxQuestionLen = 2000

// sourcesSeparator is the literal marker the pipeline places between the
// answer body and its source list.
const sourcesSeparator = "\n\nSources:\n"

// QuestionAnswerer answers a question with a display-ready string. The
// pipeline satisfies it; it never returns an error.
type QuestionAnswerer interface {
	ProcessQuestion(ctx context.Context, question string) string
}

// AskHandler handles the question answering endpoint.
type AskHandler struct {
	answerer QuestionAnswerer
	logger   log.Logger
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(answerer QuestionAnswerer, logger log.Logger) *AskHandler {
	return &AskHandler{answerer: answerer, logger: logger}
}

// RegisterRoutes registers ask routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.answerer == nil {
		h.logger.Warn("AskHandler: answerer is nil, ask endpoint not registered")
		return
	}
	mux.HandleFunc("POST /api/ask", h.ask)
}

// AskRequest is the question payload.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries the answer split for display: the body text and the
// cited source lines. Answer is the full pipeline output including the
// sources block, for clients that render it as one string.
type AskResponse struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Body     string   `json:"body"`
	Sources  []string `json:"sources,omitempty"`
}

func (h *AskHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a question field")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required")
		return
	}
	if len(question) > maxQuestionLen {
		writeError(w, http.StatusBadRequest, "question_too_long", "question exceeds maximum length")
		return
	}

	answer := h.answerer.ProcessQuestion(r.Context(), question)
	body, sources := splitSources(answer)

	writeJSON(w, http.StatusOK, AskResponse{
		Question: question,
		Answer:   answer,
		Body:     body,
		Sources:  sources,
	})
}

// splitSources separates the answer body from its source lines. Answers
// without a sources block yield a nil slice.
func splitSources(answer string) (string, []string) {
	body, block, found := strings.Cut(answer, sourcesSeparator)
	if !found {
		return answer, nil
	}
	var sources []string
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			sources = append(sources, line)
		}
	}
	return body, sources
}
