// internal/workers/recommendation/rank-universities/models.go
package rankuniversities

import (
	"unipal-workers/internal/models"
	"unipal-workers/internal/ranking"
)

type Input struct {
	StudentProfile models.StudentProfile        `json:"studentProfile"`
	Candidates     []models.RawCandidateRecord `json:"candidates"`
}

type Output struct {
	Universities []models.University `json:"universities"`
	RankedCount  int                 `json:"rankedCount"`
	Scores       []ScoreEntry        `json:"scores"`
	Source       string              `json:"source"` // "candidates" or "catalog"
}

// ScoreEntry explains the match score of one ranked university.
type ScoreEntry struct {
	URL       string                 `json:"url"`
	Breakdown ranking.ScoreBreakdown `json:"breakdown"`
	Total     int                    `json:"total"`
}

const (
	SourceCandidates = "candidates"
	SourceCatalog    = "catalog"
)
