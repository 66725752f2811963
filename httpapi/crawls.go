package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweetpotato0/notelm/model"
)

type crawlJobResponse struct {
	ID              string    `json:"id"`
	NotebookID      string    `json:"notebook_id"`
	SeedURL         string    `json:"seed_url"`
	Domain          string    `json:"domain"`
	MaxDepth        int       `json:"max_depth"`
	MaxPages        int       `json:"max_pages"`
	Status          string    `json:"status"`
	TotalDiscovered int       `json:"total_discovered"`
	TotalIngested   int       `json:"total_ingested"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toCrawlJobResponse(j model.CrawlJob) crawlJobResponse {
	return crawlJobResponse{
		ID:              j.ID,
		NotebookID:      j.NotebookID,
		SeedURL:         j.SeedURL,
		Domain:          j.Domain,
		MaxDepth:        j.MaxDepth,
		MaxPages:        j.MaxPages,
		Status:          string(j.Status),
		TotalDiscovered: j.TotalDiscovered,
		TotalIngested:   j.TotalIngested,
		ErrorMessage:    j.ErrorMessage,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

func (s *Server) handleStartCrawl(w http.ResponseWriter, r *http.Request) {
	notebookID := chi.URLParam(r, "id")
	var req struct {
		SeedURL           string `json:"seed_url"`
		MaxDepth          int    `json:"max_depth"`
		MaxPages          int    `json:"max_pages"`
		URLIncludePattern string `json:"url_include_pattern"`
		URLExcludePattern string `json:"url_exclude_pattern"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.notebooks.Get(r.Context(), notebookID); err != nil {
		s.writeError(w, err)
		return
	}

	job, err := model.NewCrawlJob(notebookID, req.SeedURL, req.MaxDepth, req.MaxPages,
		req.URLIncludePattern, req.URLExcludePattern)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.crawls.SaveJob(r.Context(), job); err != nil {
		s.writeError(w, err)
		return
	}
	s.crawler.Trigger(job.ID)
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": job.ID})
}

func (s *Server) handleGetCrawl(w http.ResponseWriter, r *http.Request) {
	job, err := s.crawls.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	discovered, err := s.crawls.ListDiscovered(r.Context(), job.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	type discoveredResponse struct {
		URL        string `json:"url"`
		Depth      int    `json:"depth"`
		Status     string `json:"status"`
		DocumentID string `json:"document_id,omitempty"`
	}
	urls := make([]discoveredResponse, 0, len(discovered))
	for _, d := range discovered {
		urls = append(urls, discoveredResponse{
			URL:        d.URL,
			Depth:      d.Depth,
			Status:     string(d.Status),
			DocumentID: d.DocumentID,
		})
	}
	s.writeJSON(w, http.StatusOK, struct {
		crawlJobResponse
		DiscoveredURLs []discoveredResponse `json:"discovered_urls"`
	}{toCrawlJobResponse(job), urls})
}

// handleCancelCrawl flips the job to CANCELLED; the executor observes
// the persisted status on its next iteration. A terminal job answers
// 409.
func (s *Server) handleCancelCrawl(w http.ResponseWriter, r *http.Request) {
	job, err := s.crawls.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	job, err = job.Cancel()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.crawls.UpdateJob(r.Context(), job); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
