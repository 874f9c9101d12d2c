// internal/workers/application/build-document-checklist/models.go
package builddocumentchecklist

import "unipal-workers/internal/models"

type Input struct {
	// Documents is the current checklist; empty starts a fresh one.
	Documents []models.Document `json:"documents,omitempty"`
	Updates   []StatusUpdate    `json:"updates,omitempty"`
}

type StatusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Output struct {
	Documents      []models.Document `json:"documents"`
	CompletedCount int               `json:"completedCount"`
	TotalCount     int               `json:"totalCount"`
}
