package models

// ErrNoContent is the error marker for an empty page.
const ErrNoContent = "No content to analyze"

// ExtractionResult holds the seven fields read from one page. When Error is
// set every field is NotAvailable. RawContent keeps a reply that could be
// parsed in neither supported shape.
type ExtractionResult struct {
	UniversityName      string `json:"universityName"`
	Country             string `json:"country"`
	TuitionFees         string `json:"tuitionFees"`
	EligibilityCriteria string `json:"eligibilityCriteria"`
	Deadlines           string `json:"deadlines"`
	CourseCurriculum    string `json:"courseCurriculum"`
	ScholarshipOptions  string `json:"scholarshipOptions"`
	RawContent          string `json:"rawContent,omitempty"`
	Error               string `json:"error,omitempty"`
}

// FailedExtraction returns the all-N/A result carrying msg.
func FailedExtraction(msg string) ExtractionResult {
	return ExtractionResult{
		UniversityName:      NotAvailable,
		Country:             NotAvailable,
		TuitionFees:         NotAvailable,
		EligibilityCriteria: NotAvailable,
		Deadlines:           NotAvailable,
		CourseCurriculum:    NotAvailable,
		ScholarshipOptions:  NotAvailable,
		Error:               msg,
	}
}

func (e ExtractionResult) Failed() bool {
	return e.Error != ""
}

// ToCandidate builds the record for a page at url. A missing country falls
// back to the country that was searched.
func (e ExtractionResult) ToCandidate(url, searchedCountry string) RawCandidateRecord {
	country := e.Country
	if country == "" || country == NotAvailable {
		country = searchedCountry
	}
	return RawCandidateRecord{
		Name:                orNA(e.UniversityName),
		URL:                 url,
		Country:             country,
		TuitionFees:         orNA(e.TuitionFees),
		EligibilityCriteria: orNA(e.EligibilityCriteria),
		Deadlines:           orNA(e.Deadlines),
		CourseCurriculum:    orNA(e.CourseCurriculum),
		ScholarshipOptions:  orNA(e.ScholarshipOptions),
	}
}
