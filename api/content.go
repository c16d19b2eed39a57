package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/finsight/finsight/internal/backfill"
	"github.com/finsight/finsight/internal/log"
	"github.com/finsight/finsight/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ContentLister reads stored content for the browse endpoints.
type ContentLister interface {
	ListNews(ctx context.Context, limit int) ([]store.NewsItem, error)
	ListGlossaryTerms(ctx context.Context, limit int) ([]store.GlossaryTerm, error)
}

// RefreshStatus reports the background refresh supervisor's state.
type RefreshStatus interface {
	State() backfill.SupervisorState
}

// ContentHandler exposes stored content and the refresh state.
type ContentHandler struct {
	lister  ContentLister
	refresh RefreshStatus
	logger  log.Logger
}

// NewContentHandler creates a new content handler. refresh may be nil when
// no background refresh is running (e.g. one-shot CLI server).
func NewContentHandler(lister ContentLister, refresh RefreshStatus, logger log.Logger) *ContentHandler {
	return &ContentHandler{lister: lister, refresh: refresh, logger: logger}
}

// RegisterRoutes registers content routes on the given mux.
func (h *ContentHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.lister != nil {
		mux.HandleFunc("GET /api/news", h.listNews)
		mux.HandleFunc("GET /api/terms", h.listTerms)
	} else {
		h.logger.Warn("ContentHandler: lister is nil, content endpoints not registered")
	}
	mux.HandleFunc("GET /api/refresh", h.refreshState)
}

// NewsItem is the wire shape of one news record.
type NewsItem struct {
	Title     string `json:"title"`
	Source    string `json:"source"`
	URL       string `json:"url"`
	Published string `json:"published,omitempty"`
}

// GlossaryTerm is the wire shape of one glossary record.
type GlossaryTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	URL        string `json:"url"`
}

func (h *ContentHandler) listNews(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	items, err := h.lister.ListNews(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing news failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list news")
		return
	}

	out := make([]NewsItem, 0, len(items))
	for _, n := range items {
		item := NewsItem{Title: n.Title, Source: n.Source, URL: n.URL}
		if !n.Published.IsZero() {
			item.Published = n.Published.Format(time.RFC3339)
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"news": out})
}

func (h *ContentHandler) listTerms(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))

	terms, err := h.lister.ListGlossaryTerms(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing terms failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list terms")
		return
	}

	out := make([]GlossaryTerm, 0, len(terms))
	for _, t := range terms {
		out = append(out, GlossaryTerm{Term: t.Term, Definition: t.Definition, URL: t.URL})
	}
	writeJSON(w, http.StatusOK, map[string]any{"terms": out})
}

func (h *ContentHandler) refreshState(w http.ResponseWriter, _ *http.Request) {
	state := backfill.StateStopped
	if h.refresh != nil {
		state = h.refresh.State()
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(state)})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
