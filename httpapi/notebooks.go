package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

type notebookResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toNotebookResponse(nb model.Notebook) notebookResponse {
	return notebookResponse{
		ID:          nb.ID,
		Name:        nb.Name,
		Description: nb.Description,
		CreatedAt:   nb.CreatedAt,
		UpdatedAt:   nb.UpdatedAt,
	}
}

func (s *Server) handleCreateNotebook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Name == "" {
		s.writeError(w, errors.Validationf("name is required"))
		return
	}

	nb := model.NewNotebook(req.Name, req.Description)
	if err := s.notebooks.Save(r.Context(), nb); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toNotebookResponse(nb))
}

func (s *Server) handleListNotebooks(w http.ResponseWriter, r *http.Request) {
	notebooks, err := s.notebooks.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]notebookResponse, 0, len(notebooks))
	for _, nb := range notebooks {
		out = append(out, toNotebookResponse(nb))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetNotebook(w http.ResponseWriter, r *http.Request) {
	nb, err := s.notebooks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toNotebookResponse(nb))
}

func (s *Server) handleDeleteNotebook(w http.ResponseWriter, r *http.Request) {
	if err := s.notebooks.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
