package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweetpotato0/notelm/answer"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/errors"
)

const (
	defaultMaxSources = 5
	maxMaxSources     = 20
)

type queryResponse struct {
	Answer      string            `json:"answer"`
	Citations   []answer.Citation `json:"citations"`
	SourcesUsed int               `json:"sources_used"`
}

// handleQuery retrieves, answers, and (when a conversation is named)
// records the exchange.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	notebookID := chi.URLParam(r, "id")
	var req struct {
		Question       string `json:"question"`
		MaxSources     int    `json:"max_sources"`
		ConversationID string `json:"conversation_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Question == "" {
		s.writeError(w, errors.Validationf("question is required"))
		return
	}
	maxSources := req.MaxSources
	if maxSources <= 0 {
		maxSources = defaultMaxSources
	}
	if maxSources > maxMaxSources {
		maxSources = maxMaxSources
	}
	if _, err := s.notebooks.Get(r.Context(), notebookID); err != nil {
		s.writeError(w, err)
		return
	}

	var history []model.Message
	if req.ConversationID != "" {
		conv, err := s.conversations.Get(r.Context(), req.ConversationID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if conv.NotebookID != notebookID {
			s.writeError(w, errors.Validationf("conversation %s does not belong to notebook %s", conv.ID, notebookID))
			return
		}
		history, err = s.conversations.ListMessages(r.Context(), conv.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	retrieved, err := s.retriever.Retrieve(r.Context(), notebookID, req.Question, maxSources)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ans, err := s.answerer.Generate(r.Context(), req.Question, retrieved, history)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.ConversationID != "" {
		for _, m := range []model.Message{
			model.NewMessage(req.ConversationID, model.RoleUser, req.Question),
			model.NewMessage(req.ConversationID, model.RoleAssistant, ans.Text),
		} {
			if err := s.conversations.AppendMessage(r.Context(), m); err != nil {
				s.writeError(w, err)
				return
			}
		}
	}

	s.writeJSON(w, http.StatusOK, queryResponse{
		Answer:      ans.Text,
		Citations:   ans.Citations,
		SourcesUsed: ans.SourcesUsed,
	})
}

type conversationResponse struct {
	ID         string    `json:"id"`
	NotebookID string    `json:"notebook_id"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	notebookID := chi.URLParam(r, "id")
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.notebooks.Get(r.Context(), notebookID); err != nil {
		s.writeError(w, err)
		return
	}

	conv := model.NewConversation(notebookID, req.Title)
	if err := s.conversations.Save(r.Context(), conv); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, conversationResponse{
		ID:         conv.ID,
		NotebookID: conv.NotebookID,
		Title:      conv.Title,
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
	})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.conversations.ListByNotebook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]conversationResponse, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationResponse{
			ID:         c.ID,
			NotebookID: c.NotebookID,
			Title:      c.Title,
			CreatedAt:  c.CreatedAt,
			UpdatedAt:  c.UpdatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.conversations.ListMessages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	type messageResponse struct {
		ID        string    `json:"id"`
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}
