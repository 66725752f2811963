package model

import (
	"time"

	"github.com/sweetpotato0/notelm/pkg/errors"
)

// DocumentStatus is the ingestion state of a single source URL.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "PENDING"
	DocumentProcessing DocumentStatus = "PROCESSING"
	DocumentCompleted  DocumentStatus = "COMPLETED"
	DocumentFailed     DocumentStatus = "FAILED"
)

// Document is one source URL inside a notebook. (notebook_id, url) is
// unique; state transitions produce new values.
type Document struct {
	ID           string
	NotebookID   string
	URL          string
	Title        string
	Status       DocumentStatus
	ErrorMessage string
	ContentHash  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewDocument creates a PENDING document for the given notebook and URL.
func NewDocument(notebookID, url string) Document {
	now := Now()
	return Document{
		ID:         NewID(),
		NotebookID: notebookID,
		URL:        url,
		Status:     DocumentPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// StartProcessing transitions PENDING -> PROCESSING.
func (d Document) StartProcessing() (Document, error) {
	if d.Status != DocumentPending {
		return d, errors.InvalidStatef("document %s: cannot start processing from %s", d.ID, d.Status)
	}
	d.Status = DocumentProcessing
	d.ErrorMessage = ""
	d.UpdatedAt = Now()
	return d, nil
}

// Complete transitions PROCESSING -> COMPLETED, recording the extracted
// title and content hash.
func (d Document) Complete(title, contentHash string) (Document, error) {
	if d.Status != DocumentProcessing {
		return d, errors.InvalidStatef("document %s: cannot complete from %s", d.ID, d.Status)
	}
	d.Status = DocumentCompleted
	if title != "" {
		d.Title = title
	}
	d.ContentHash = contentHash
	d.ErrorMessage = ""
	d.UpdatedAt = Now()
	return d, nil
}

// Fail transitions PROCESSING -> FAILED with an error message.
func (d Document) Fail(message string) (Document, error) {
	if d.Status != DocumentProcessing {
		return d, errors.InvalidStatef("document %s: cannot fail from %s", d.ID, d.Status)
	}
	d.Status = DocumentFailed
	d.ErrorMessage = message
	d.UpdatedAt = Now()
	return d, nil
}

// Retry transitions FAILED -> PENDING so ingestion can run again.
func (d Document) Retry() (Document, error) {
	if d.Status != DocumentFailed {
		return d, errors.InvalidStatef("document %s: cannot retry from %s", d.ID, d.Status)
	}
	d.Status = DocumentPending
	d.ErrorMessage = ""
	d.UpdatedAt = Now()
	return d, nil
}
