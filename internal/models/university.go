package models

import "strings"

// NotAvailable marks a field the extractor could not fill.
const NotAvailable = "N/A"

// RawCandidateRecord is one extracted search hit before ranking. Every text
// field is best effort and may be NotAvailable.
type RawCandidateRecord struct {
	Name                string `json:"name"`
	URL                 string `json:"url"`
	Country             string `json:"country"`
	TuitionFees         string `json:"tuitionFees"`
	EligibilityCriteria string `json:"eligibilityCriteria"`
	Deadlines           string `json:"deadlines"`
	CourseCurriculum    string `json:"courseCurriculum"`
	ScholarshipOptions  string `json:"scholarshipOptions"`
	DiscoveryIndex      int    `json:"discoveryIndex"`
}

// ToMap renders the record with its JSON keys.
func (r RawCandidateRecord) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"name":                r.Name,
		"url":                 r.URL,
		"country":             r.Country,
		"tuitionFees":         r.TuitionFees,
		"eligibilityCriteria": r.EligibilityCriteria,
		"deadlines":           r.Deadlines,
		"courseCurriculum":    r.CourseCurriculum,
		"scholarshipOptions":  r.ScholarshipOptions,
		"discoveryIndex":      r.DiscoveryIndex,
	}
}

// University is a ranked candidate. TuitionFees is either an INR amount with
// two decimals or NotAvailable; Currency is "INR" or empty accordingly.
type University struct {
	Name                string  `json:"name"`
	URL                 string  `json:"url"`
	Ranking             *int    `json:"ranking,omitempty"`
	TuitionFees         string  `json:"tuitionFees"`
	Currency            string  `json:"currency"`
	EligibilityCriteria string  `json:"eligibilityCriteria"`
	Deadlines           string  `json:"deadlines"`
	CourseCurriculum    string  `json:"courseCurriculum"`
	ScholarshipOptions  string  `json:"scholarshipOptions"`
	Country             string  `json:"country"`
	MatchScore          float64 `json:"matchScore"`
}

// UniversityFromCandidate copies the descriptive fields of r. Fee
// normalization and scoring are left to the caller.
func UniversityFromCandidate(r RawCandidateRecord) University {
	return University{
		Name:                orNA(r.Name),
		URL:                 strings.TrimSpace(r.URL),
		TuitionFees:         orNA(r.TuitionFees),
		EligibilityCriteria: orNA(r.EligibilityCriteria),
		Deadlines:           orNA(r.Deadlines),
		CourseCurriculum:    orNA(r.CourseCurriculum),
		ScholarshipOptions:  orNA(r.ScholarshipOptions),
		Country:             strings.TrimSpace(r.Country),
	}
}

// ToMap renders the university with its JSON keys.
func (u University) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"name":                u.Name,
		"url":                 u.URL,
		"tuitionFees":         u.TuitionFees,
		"currency":            u.Currency,
		"eligibilityCriteria": u.EligibilityCriteria,
		"deadlines":           u.Deadlines,
		"courseCurriculum":    u.CourseCurriculum,
		"scholarshipOptions":  u.ScholarshipOptions,
		"country":             u.Country,
		"matchScore":          u.MatchScore,
	}
	if u.Ranking != nil {
		m["ranking"] = *u.Ranking
	}
	return m
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return NotAvailable
	}
	return s
}
