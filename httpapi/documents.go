package httpapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

type documentResponse struct {
	ID           string    `json:"id"`
	NotebookID   string    `json:"notebook_id"`
	URL          string    `json:"url"`
	Title        string    `json:"title,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toDocumentResponse(d model.Document) documentResponse {
	return documentResponse{
		ID:           d.ID,
		NotebookID:   d.NotebookID,
		URL:          d.URL,
		Title:        d.Title,
		Status:       string(d.Status),
		ErrorMessage: d.ErrorMessage,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// handleAddSource creates a PENDING document for the URL and schedules
// ingestion. A duplicate (notebook, url) answers 409.
func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	notebookID := chi.URLParam(r, "id")
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := validateSourceURL(req.URL); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.notebooks.Get(r.Context(), notebookID); err != nil {
		s.writeError(w, err)
		return
	}

	doc := model.NewDocument(notebookID, req.URL)
	if err := s.documents.Save(r.Context(), doc); err != nil {
		s.writeError(w, err)
		return
	}
	s.ingestor.Trigger(doc.ID)
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": doc.ID})
}

func validateSourceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.Validationf("url %q is not an absolute http(s) url", raw)
	}
	return nil
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListByNotebook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toDocumentResponse(d))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// handleRetryDocument moves a FAILED document back to PENDING and
// re-triggers ingestion.
func (s *Server) handleRetryDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err = doc.Retry()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.documents.Update(r.Context(), doc); err != nil {
		s.writeError(w, err)
		return
	}
	s.ingestor.Trigger(doc.ID)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": doc.ID})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
