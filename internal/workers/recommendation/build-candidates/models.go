// internal/workers/recommendation/build-candidates/models.go
package buildcandidates

import "unipal-workers/internal/models"

type Input struct {
	StudentProfile models.StudentProfile `json:"studentProfile"`
}

type Output struct {
	Candidates     []models.RawCandidateRecord `json:"candidates"`
	CandidateCount int                         `json:"candidateCount"`
	Countries      []string                    `json:"countries"`
}
