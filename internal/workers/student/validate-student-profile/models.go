// internal/workers/student/validate-student-profile/models.go
package validatestudentprofile

import "unipal-workers/internal/models"

type Input struct {
	StudentProfile models.StudentProfile `json:"studentProfile"`
	// ReplaceExisting overrides the configured snapshot policy when set.
	ReplaceExisting *bool `json:"replaceExisting,omitempty"`
}

type Output struct {
	StudentProfile models.StudentProfile `json:"studentProfile"`
	ProfileValid   bool                  `json:"profileValid"`
	Saved          bool                  `json:"saved"`
	SnapshotSaved  bool                  `json:"snapshotSaved"`
	SavedAt        string                `json:"savedAt"` // ISO 8601
}
