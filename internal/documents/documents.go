// Package documents holds the application document checklist.
package documents

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"unipal-workers/internal/models"
)

var (
	ErrInvalidStatus    = errors.New("INVALID_DOCUMENT_STATUS")
	ErrDocumentNotFound = errors.New("DOCUMENT_NOT_FOUND")
)

var standard = []struct {
	name        string
	description string
}{
	{"10th Grade Marksheet", "Official marksheet/transcript from 10th grade"},
	{"12th Grade Marksheet", "Official marksheet/transcript from 12th grade"},
	{"B.Tech Degree/Marksheet", "Official B.Tech degree or latest semester marksheet"},
	{"IELTS/TOEFL Score", "English proficiency test score"},
	{"Passport", "Valid passport for international travel"},
	{"Statement of Purpose (SOP)", "Personal essay explaining academic and career goals"},
}

// StandardChecklist returns a fresh list of the required documents, all
// pending, each with a new id.
func StandardChecklist() []models.Document {
	docs := make([]models.Document, 0, len(standard))
	for _, s := range standard {
		docs = append(docs, models.Document{
			ID:          uuid.NewString(),
			Name:        s.name,
			Status:      models.DocumentPending,
			Description: s.description,
			Required:    true,
		})
	}
	return docs
}

// ValidStatus reports whether status is one of the document statuses.
func ValidStatus(status string) bool {
	switch status {
	case models.DocumentPending, models.DocumentInProgress, models.DocumentCompleted:
		return true
	}
	return false
}

// UpdateStatus returns a copy of list with the document id set to status.
func UpdateStatus(list []models.Document, id, status string) ([]models.Document, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	out := append([]models.Document(nil), list...)
	for i := range out {
		if out[i].ID == id {
			out[i].Status = status
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
}

// Completed counts documents marked completed.
func Completed(list []models.Document) int {
	n := 0
	for _, d := range list {
		if d.Status == models.DocumentCompleted {
			n++
		}
	}
	return n
}
