package models

// Document statuses.
const (
	DocumentPending    = "Pending"
	DocumentInProgress = "In Progress"
	DocumentCompleted  = "Completed"
)

type VisaInfo struct {
	Country      string   `json:"country"`
	Requirements []string `json:"requirements"`
	Fees         string   `json:"fees"`
	Currency     string   `json:"currency"`
}

type ScholarshipInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Eligibility string `json:"eligibility"`
	Amount      string `json:"amount"`
}

type Document struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// ApplicationState is the consolidated view of one recommendation run. It is
// rebuilt from scratch on every aggregation.
type ApplicationState struct {
	StudentInfo        *StudentProfile   `json:"studentInfo"`
	Universities       []University      `json:"universities"`
	VisaInfo           *VisaInfo         `json:"visaInfo"`
	Scholarships       []ScholarshipInfo `json:"scholarships"`
	Documents          []Document        `json:"documents"`
	ProgressPercentage int               `json:"progressPercentage"`
}
