// Package httpapi exposes the notebook, crawl, query, and evaluation
// operations over HTTP.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sweetpotato0/notelm/answer"
	"github.com/sweetpotato0/notelm/background"
	"github.com/sweetpotato0/notelm/crawl"
	"github.com/sweetpotato0/notelm/evaluation"
	"github.com/sweetpotato0/notelm/ingest"
	"github.com/sweetpotato0/notelm/pkg/errors"
	"github.com/sweetpotato0/notelm/pkg/logging"
	"github.com/sweetpotato0/notelm/retrieval"
	"github.com/sweetpotato0/notelm/store"
)

// Server holds the wired application services behind the HTTP surface.
type Server struct {
	notebooks     *store.NotebookStore
	documents     *store.DocumentStore
	chunks        *store.ChunkStore
	crawls        *store.CrawlStore
	conversations *store.ConversationStore
	evaluations   *store.EvaluationStore

	ingestor  *ingest.Service
	crawler   *crawl.Service
	retriever *retrieval.Retriever
	answerer  *answer.Answerer
	generator *evaluation.Generator
	runner    *evaluation.Runner
	registry  *background.Registry

	logger *slog.Logger
}

// Deps bundles the collaborators a Server needs.
type Deps struct {
	Notebooks     *store.NotebookStore
	Documents     *store.DocumentStore
	Chunks        *store.ChunkStore
	Crawls        *store.CrawlStore
	Conversations *store.ConversationStore
	Evaluations   *store.EvaluationStore

	Ingestor  *ingest.Service
	Crawler   *crawl.Service
	Retriever *retrieval.Retriever
	Answerer  *answer.Answerer
	Generator *evaluation.Generator
	Runner    *evaluation.Runner
	Registry  *background.Registry
}

// New creates a Server.
func New(deps Deps) *Server {
	return &Server{
		notebooks:     deps.Notebooks,
		documents:     deps.Documents,
		chunks:        deps.Chunks,
		crawls:        deps.Crawls,
		conversations: deps.Conversations,
		evaluations:   deps.Evaluations,
		ingestor:      deps.Ingestor,
		crawler:       deps.Crawler,
		retriever:     deps.Retriever,
		answerer:      deps.Answerer,
		generator:     deps.Generator,
		runner:        deps.Runner,
		registry:      deps.Registry,
		logger:        logging.WithComponent("httpapi"),
	}
}

// Router builds the route tree with per-group rate limits.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(defaultRateLimit))

		r.Post("/notebooks", s.handleCreateNotebook)
		r.Get("/notebooks", s.handleListNotebooks)
		r.Get("/notebooks/{id}", s.handleGetNotebook)
		r.Delete("/notebooks/{id}", s.handleDeleteNotebook)

		r.Post("/notebooks/{id}/sources", s.handleAddSource)
		r.Get("/notebooks/{id}/sources", s.handleListSources)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Post("/documents/{id}/retry", s.handleRetryDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)

		r.Post("/notebooks/{id}/crawl", s.handleStartCrawl)
		r.Get("/crawl/{id}", s.handleGetCrawl)
		r.Post("/crawl/{id}/cancel", s.handleCancelCrawl)

		r.Post("/notebooks/{id}/evaluation/datasets", s.handleCreateDataset)
		r.Get("/evaluation/datasets/{id}", s.handleGetDataset)
		r.Post("/evaluation/datasets/{id}/runs", s.handleCreateRun)
		r.Get("/evaluation/runs/{id}", s.handleGetRun)
		r.Post("/evaluation/compare", s.handleCompareRuns)
	})

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(queryRateLimit))
		r.Post("/notebooks/{id}/query", s.handleQuery)
	})

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(conversationRateLimit))
		r.Post("/notebooks/{id}/conversations", s.handleCreateConversation)
		r.Get("/notebooks/{id}/conversations", s.handleListConversations)
		r.Get("/conversations/{id}/messages", s.handleListMessages)
	})

	return r
}

// statusFor maps the four domain error kinds onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsInvalidState(err):
		return http.StatusConflict
	case errors.IsExternalService(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		// Internal details stay out of the response body.
		s.writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Validationf("invalid request body: %v", err)
	}
	return nil
}
