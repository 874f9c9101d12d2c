// internal/workers/application/search-scholarships/models.go
package searchscholarships

import "unipal-workers/internal/models"

type Input struct {
	StudentProfile models.StudentProfile `json:"studentProfile"`
	Universities   []models.University   `json:"universities"`
}

type Output struct {
	Scholarships     []models.ScholarshipInfo `json:"scholarships"`
	ScholarshipCount int                      `json:"scholarshipCount"`
}
