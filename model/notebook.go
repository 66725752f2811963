package model

import "time"

// Notebook groups the documents, conversations, crawl jobs and
// evaluation datasets of one research topic.
type Notebook struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewNotebook creates a notebook with a fresh identifier.
func NewNotebook(name, description string) Notebook {
	now := Now()
	return Notebook{
		ID:          NewID(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Rename returns a copy with updated name and description.
func (n Notebook) Rename(name, description string) Notebook {
	n.Name = name
	n.Description = description
	n.UpdatedAt = Now()
	return n
}
