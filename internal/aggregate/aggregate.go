// Package aggregate builds the consolidated application state of a run.
package aggregate

import (
	"strings"

	"unipal-workers/internal/common/logger"
	"unipal-workers/internal/models"
)

// Sections counted towards the progress percentage.
const sectionCount = 5

type Aggregator struct {
	logger logger.Logger
}

func NewAggregator(log logger.Logger) *Aggregator {
	return &Aggregator{logger: logger.OrNop(log).WithFields(map[string]interface{}{"component": "aggregator"})}
}

// Aggregate is NewAggregator(nil).Aggregate.
func Aggregate(profile *models.StudentProfile, universities []models.University, visa *models.VisaInfo,
	scholarships []models.ScholarshipInfo, documents []models.Document) models.ApplicationState {
	return NewAggregator(nil).Aggregate(profile, universities, visa, scholarships, documents)
}

// Aggregate copies the inputs into a fresh state. Nil or empty inputs count
// as missing sections; it never fails.
func (a *Aggregator) Aggregate(profile *models.StudentProfile, universities []models.University, visa *models.VisaInfo,
	scholarships []models.ScholarshipInfo, documents []models.Document) models.ApplicationState {
	state := models.ApplicationState{
		Universities: append([]models.University{}, universities...),
		Scholarships: append([]models.ScholarshipInfo{}, scholarships...),
		Documents:    append([]models.Document{}, documents...),
	}

	present := 0
	var missing []string

	if profilePresent(profile) {
		p := profile.Clone()
		state.StudentInfo = &p
		present++
	} else {
		missing = append(missing, "studentInfo")
	}
	if len(universities) > 0 {
		present++
	} else {
		missing = append(missing, "universities")
	}
	if visa != nil && strings.TrimSpace(visa.Country) != "" {
		v := *visa
		v.Requirements = append([]string(nil), visa.Requirements...)
		state.VisaInfo = &v
		present++
	} else {
		missing = append(missing, "visaInfo")
	}
	if len(scholarships) > 0 {
		present++
	} else {
		missing = append(missing, "scholarships")
	}
	if len(documents) > 0 {
		present++
	} else {
		missing = append(missing, "documents")
	}

	state.ProgressPercentage = 100 * present / sectionCount

	if len(missing) > 0 {
		a.logger.Info("application state incomplete", map[string]interface{}{
			"missing":  missing,
			"progress": state.ProgressPercentage,
		})
	}
	return state
}

func profilePresent(p *models.StudentProfile) bool {
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.Name) != "" || strings.TrimSpace(p.ContactInfo) != ""
}
