// internal/workers/application/aggregate-application-state/models.go
package aggregateapplicationstate

import "unipal-workers/internal/models"

type Input struct {
	StudentProfile *models.StudentProfile   `json:"studentProfile"`
	Universities   []models.University      `json:"universities"`
	VisaInfo       *models.VisaInfo         `json:"visaInfo"`
	Scholarships   []models.ScholarshipInfo `json:"scholarships"`
	Documents      []models.Document        `json:"documents"`
}

type Output struct {
	ApplicationState   models.ApplicationState `json:"applicationState"`
	ProgressPercentage int                     `json:"progressPercentage"`
}
