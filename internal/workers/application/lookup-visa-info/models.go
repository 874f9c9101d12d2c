// internal/workers/application/lookup-visa-info/models.go
package lookupvisainfo

import "unipal-workers/internal/models"

type Input struct {
	StudentProfile models.StudentProfile `json:"studentProfile"`
	Universities   []models.University   `json:"universities"`
	// Country skips the shortlist-based choice when set.
	Country string `json:"country,omitempty"`
}

type Output struct {
	VisaInfo    *models.VisaInfo `json:"visaInfo"`
	VisaCountry string           `json:"visaCountry"`
	Found       bool             `json:"found"`
}
